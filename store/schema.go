package store

const schemaVersion = 1

const ddlMeta = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	email                 TEXT NOT NULL UNIQUE,
	full_name             TEXT NOT NULL DEFAULT '',
	tier                  TEXT NOT NULL DEFAULT 'free',
	is_active             INTEGER NOT NULL DEFAULT 1,
	monthly_optimizations INTEGER NOT NULL DEFAULT 50,
	optimizations_used    INTEGER NOT NULL DEFAULT 0,
	monthly_tokens        INTEGER NOT NULL DEFAULT 10000,
	tokens_used           INTEGER NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
)`

const ddlPrompts = `
CREATE TABLE IF NOT EXISTS prompts (
	id                         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id                    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title                      TEXT NOT NULL DEFAULT '',
	original_prompt            TEXT NOT NULL,
	optimized_prompt           TEXT NOT NULL DEFAULT '',
	original_tokens            INTEGER NOT NULL DEFAULT 0,
	optimized_tokens           INTEGER NOT NULL DEFAULT 0,
	token_reduction_percentage REAL NOT NULL DEFAULT 0,
	clarity_score              REAL NOT NULL DEFAULT 0,
	specificity_score          REAL NOT NULL DEFAULT 0,
	overall_quality_score      REAL NOT NULL DEFAULT 0,
	status                     TEXT NOT NULL DEFAULT 'draft',
	created_at                 DATETIME NOT NULL,
	updated_at                 DATETIME NOT NULL
)`

const ddlOptimizations = `
CREATE TABLE IF NOT EXISTS optimizations (
	id                         INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt_id                  INTEGER NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
	user_id                    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	optimization_type          TEXT NOT NULL,
	model_used                 TEXT NOT NULL,
	original_prompt            TEXT NOT NULL,
	optimized_prompt           TEXT NOT NULL,
	original_tokens            INTEGER NOT NULL,
	optimized_tokens           INTEGER NOT NULL,
	token_reduction            INTEGER NOT NULL,
	token_reduction_percentage REAL NOT NULL,
	quality_score              REAL NOT NULL,
	clarity_score              REAL NOT NULL,
	specificity_score          REAL NOT NULL,
	original_cost              REAL NOT NULL,
	optimized_cost             REAL NOT NULL,
	cost_savings               REAL NOT NULL,
	cost_savings_percentage    REAL NOT NULL,
	settings                   TEXT NOT NULL DEFAULT '{}',
	processing_time            REAL NOT NULL,
	created_at                 DATETIME NOT NULL
)`

var ddlIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_prompts_user ON prompts(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_optimizations_user_created ON optimizations(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_optimizations_prompt ON optimizations(prompt_id)`,
}
