package optimizer

import (
	"context"
	"fmt"

	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/tasks"
)

// Task names registered on the pool.
const (
	TaskOptimizePrompt = "optimize_prompt"
	TaskAnalyzeQuality = "analyze_prompt_quality"
)

// Enqueuer submits a named task and returns its id without waiting.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}

// RegisterTasks binds the optimizer's handlers to the pool.
func (s *Service) RegisterTasks(pool *tasks.Pool) {
	pool.Register(TaskOptimizePrompt, s.optimizeTask)
	pool.Register(TaskAnalyzeQuality, s.analyzeTask)
}

func (s *Service) optimizeTask(ctx context.Context, job *tasks.Job) (any, error) {
	var req Request
	if err := job.Decode(&req); err != nil {
		return nil, err
	}
	return s.Optimize(ctx, req, func(msg string) {
		job.Progress(ctx, msg)
	})
}

// AnalyzeRequest is the payload of an analyze_prompt_quality task.
type AnalyzeRequest struct {
	PromptID int64 `json:"prompt_id" validate:"gt=0"`
	UserID   int64 `json:"user_id"`
}

func (s *Service) analyzeTask(ctx context.Context, job *tasks.Job) (any, error) {
	var req AnalyzeRequest
	if err := job.Decode(&req); err != nil {
		return nil, err
	}
	if err := llm.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid analysis request: %w", err)
	}
	job.Progress(ctx, "Analyzing prompt quality...")
	return s.Analyze(ctx, req.PromptID, req.UserID)
}

// BatchRequest optimizes several stored prompts with the same settings.
type BatchRequest struct {
	PromptIDs   []int64 `json:"prompt_ids" validate:"required,min=1,dive,gt=0"`
	UserID      int64   `json:"user_id"`
	Kind        string  `json:"optimization_type" validate:"required"`
	TargetModel string  `json:"target_model,omitempty"`
}

type BatchItem struct {
	PromptID int64  `json:"prompt_id"`
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
}

// EnqueueBatch fans out one optimize_prompt task per prompt id and returns
// the child task ids at once. Children are independent; nothing joins them.
// On an enqueue error the items enqueued so far are returned with the error.
func EnqueueBatch(ctx context.Context, q Enqueuer, req BatchRequest) ([]BatchItem, error) {
	if err := llm.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid batch request: %w", err)
	}
	if _, err := ParseKind(req.Kind); err != nil {
		return nil, err
	}

	items := make([]BatchItem, 0, len(req.PromptIDs))
	for _, id := range req.PromptIDs {
		taskID, err := q.Enqueue(ctx, TaskOptimizePrompt, Request{
			PromptID:    id,
			UserID:      req.UserID,
			Kind:        req.Kind,
			TargetModel: req.TargetModel,
		})
		if err != nil {
			return items, fmt.Errorf("enqueue prompt %d: %w", id, err)
		}
		items = append(items, BatchItem{PromptID: id, TaskID: taskID, Status: "processing"})
	}
	return items, nil
}
