package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const promptColumns = `id, user_id, title, original_prompt, optimized_prompt, original_tokens,
	optimized_tokens, token_reduction_percentage, clarity_score, specificity_score,
	overall_quality_score, status, created_at, updated_at`

// CreatePrompt inserts a draft prompt and sets its ID and timestamps.
func (s *Store) CreatePrompt(ctx context.Context, p *Prompt) error {
	if p.Status == "" {
		p.Status = PromptDraft
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO prompts
		(user_id, title, original_prompt, status, created_at, updated_at)
		VALUES (`+placeholders(6)+`)`,
		p.UserID, p.Title, p.OriginalPrompt, string(p.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("store.CreatePrompt: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("store.CreatePrompt: last id: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetPrompt returns a prompt by id. A non-zero userID also requires ownership;
// prompts owned by someone else are reported as not found.
func (s *Store) GetPrompt(ctx context.Context, id, userID int64) (*Prompt, error) {
	query := `SELECT ` + promptColumns + ` FROM prompts WHERE id = ?`
	args := []any{id}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	p, err := scanPrompt(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("prompt", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store.GetPrompt: %w", err)
	}
	return p, nil
}

func (s *Store) SetPromptStatus(ctx context.Context, id int64, status PromptStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE prompts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store.SetPromptStatus: %w", err)
	}
	return requireRow(res, "prompt", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row rowScanner) (*Prompt, error) {
	p := &Prompt{}
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.OriginalPrompt, &p.OptimizedPrompt,
		&p.OriginalTokens, &p.OptimizedTokens, &p.TokenReductionPercentage, &p.ClarityScore,
		&p.SpecificityScore, &p.OverallQualityScore, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = PromptStatus(status)
	return p, nil
}

// SetPromptScores records a standalone quality analysis on the prompt.
func (s *Store) SetPromptScores(ctx context.Context, id int64, clarity, specificity, overall float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE prompts
		SET clarity_score = ?, specificity_score = ?, overall_quality_score = ?, updated_at = ?
		WHERE id = ?`, clarity, specificity, overall, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store.SetPromptScores: %w", err)
	}
	return requireRow(res, "prompt", id)
}
