package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const optimizationColumns = `id, prompt_id, user_id, optimization_type, model_used,
	original_prompt, optimized_prompt, original_tokens, optimized_tokens, token_reduction,
	token_reduction_percentage, quality_score, clarity_score, specificity_score,
	original_cost, optimized_cost, cost_savings, cost_savings_percentage, settings,
	processing_time, created_at`

// SaveOptimization inserts o and applies upd to its prompt in one transaction.
// The prompt update is conditional on the prompt still existing; when it does
// not, nothing is written and the error wraps ErrNotFound.
func (s *Store) SaveOptimization(ctx context.Context, o *Optimization, upd PromptUpdate) error {
	if len(o.Settings) == 0 {
		o.Settings = []byte("{}")
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.SaveOptimization: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE prompts SET
		optimized_prompt = ?, original_tokens = ?, optimized_tokens = ?,
		token_reduction_percentage = ?, clarity_score = ?, specificity_score = ?,
		overall_quality_score = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		upd.OptimizedPrompt, upd.OriginalTokens, upd.OptimizedTokens,
		upd.TokenReductionPercentage, upd.ClarityScore, upd.SpecificityScore,
		upd.OverallQualityScore, string(PromptCompleted), now, o.PromptID,
	)
	if err != nil {
		return fmt.Errorf("store.SaveOptimization: update prompt: %w", err)
	}
	if err := requireRow(res, "prompt", o.PromptID); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `INSERT INTO optimizations (`+strings.TrimPrefix(optimizationColumns, "id, ")+`)
		VALUES (`+placeholders(20)+`)`,
		o.PromptID, o.UserID, o.OptimizationType, o.ModelUsed,
		o.OriginalPrompt, o.OptimizedPrompt, o.OriginalTokens, o.OptimizedTokens, o.TokenReduction,
		o.TokenReductionPercentage, o.QualityScore, o.ClarityScore, o.SpecificityScore,
		o.OriginalCost, o.OptimizedCost, o.CostSavings, o.CostSavingsPercentage, string(o.Settings),
		o.ProcessingTime, now,
	)
	if err != nil {
		return fmt.Errorf("store.SaveOptimization: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store.SaveOptimization: last id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store.SaveOptimization: commit: %w", err)
	}
	o.ID, o.CreatedAt = id, now
	return nil
}

// GetOptimization returns one optimization. A non-zero userID also requires ownership.
func (s *Store) GetOptimization(ctx context.Context, id, userID int64) (*Optimization, error) {
	query := `SELECT ` + optimizationColumns + ` FROM optimizations WHERE id = ?`
	args := []any{id}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	o, err := scanOptimization(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("optimization", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store.GetOptimization: %w", err)
	}
	return o, nil
}

// ListOptimizations returns a user's optimizations, newest first.
func (s *Store) ListOptimizations(ctx context.Context, userID int64, f OptimizationFilter) ([]*Optimization, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + optimizationColumns + ` FROM optimizations WHERE user_id = ?`)
	args := []any{userID}
	if f.Type != "" {
		b.WriteString(` AND optimization_type = ?`)
		args = append(args, f.Type)
	}
	if f.Model != "" {
		b.WriteString(` AND model_used = ?`)
		args = append(args, f.Model)
	}
	if !f.Since.IsZero() {
		b.WriteString(` AND created_at >= ?`)
		args = append(args, f.Since.UTC())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store.ListOptimizations: %w", err)
	}
	defer rows.Close()

	var out []*Optimization
	for rows.Next() {
		o, err := scanOptimization(rows)
		if err != nil {
			return nil, fmt.Errorf("store.ListOptimizations: scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.ListOptimizations: %w", err)
	}
	return out, nil
}

// DeleteOptimization removes one of the user's optimizations.
func (s *Store) DeleteOptimization(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM optimizations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store.DeleteOptimization: %w", err)
	}
	return requireRow(res, "optimization", id)
}

func scanOptimization(row rowScanner) (*Optimization, error) {
	o := &Optimization{}
	var settings string
	err := row.Scan(&o.ID, &o.PromptID, &o.UserID, &o.OptimizationType, &o.ModelUsed,
		&o.OriginalPrompt, &o.OptimizedPrompt, &o.OriginalTokens, &o.OptimizedTokens, &o.TokenReduction,
		&o.TokenReductionPercentage, &o.QualityScore, &o.ClarityScore, &o.SpecificityScore,
		&o.OriginalCost, &o.OptimizedCost, &o.CostSavings, &o.CostSavingsPercentage, &settings,
		&o.ProcessingTime, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Settings = []byte(settings)
	return o, nil
}
