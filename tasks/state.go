// Package tasks runs named units of work on a bounded worker pool and records
// their lifecycle in a pollable state backend.
//
// A task moves from pending through zero or more progress updates to exactly
// one terminal state, success or failure. Terminal states are never overwritten.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusProgress Status = "progress"
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrTerminalState = errors.New("task already finished")
	ErrQueueFull     = errors.New("task queue is full")
	ErrUnknownTask   = errors.New("no handler registered for task")
	ErrPoolStopped   = errors.New("task pool stopped")

	// ErrSoftTimeLimit is the cancellation cause of a handler context whose
	// soft time limit elapsed.
	ErrSoftTimeLimit = errors.New("soft time limit exceeded")
	ErrHardTimeLimit = errors.New("hard time limit exceeded")
)

// State is the observable record of one task.
type State struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    Status          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Backend stores task states. Save must refuse to replace a terminal state
// with ErrTerminalState; Get returns ErrTaskNotFound for unknown ids.
type Backend interface {
	Save(ctx context.Context, s *State) error
	Get(ctx context.Context, id string) (*State, error)
	// Purge drops terminal states last updated before the cutoff and
	// returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int, error)
}
