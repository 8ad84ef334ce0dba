package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const userColumns = `id, email, full_name, tier, is_active, monthly_optimizations,
	optimizations_used, monthly_tokens, tokens_used, created_at, updated_at`

// CreateUser inserts u and sets its ID and timestamps. Zero allowances take
// the free-tier defaults.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.Tier == "" {
		u.Tier = TierFree
	}
	if u.MonthlyOptimizations == 0 {
		u.MonthlyOptimizations = DefaultMonthlyOptimizations
	}
	if u.MonthlyTokens == 0 {
		u.MonthlyTokens = DefaultMonthlyTokens
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO users
		(email, full_name, tier, is_active, monthly_optimizations, optimizations_used,
		 monthly_tokens, tokens_used, created_at, updated_at)
		VALUES (`+placeholders(10)+`)`,
		u.Email, u.FullName, string(u.Tier), u.IsActive, u.MonthlyOptimizations,
		u.OptimizationsUsed, u.MonthlyTokens, u.TokensUsed, now, now,
	)
	if err != nil {
		return fmt.Errorf("store.CreateUser: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("store.CreateUser: last id: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store.GetUser: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store.GetUserByEmail: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var tier string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &tier, &u.IsActive, &u.MonthlyOptimizations,
		&u.OptimizationsUsed, &u.MonthlyTokens, &u.TokensUsed, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Tier = Tier(tier)
	return u, nil
}

// RecordUsage adds one optimization and tokens to the user's monthly counters.
func (s *Store) RecordUsage(ctx context.Context, userID int64, tokens int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users
		SET optimizations_used = optimizations_used + 1,
		    tokens_used = tokens_used + ?,
		    updated_at = ?
		WHERE id = ?`, tokens, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("store.RecordUsage: %w", err)
	}
	return requireRow(res, "user", userID)
}

// ResetMonthlyUsage zeroes every user's counters and returns how many rows changed.
func (s *Store) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users
		SET optimizations_used = 0, tokens_used = 0, updated_at = ?
		WHERE optimizations_used > 0 OR tokens_used > 0`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store.ResetMonthlyUsage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store.ResetMonthlyUsage: rows: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}
