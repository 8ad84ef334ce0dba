package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/quality"
	"github.com/teilomillet/promptopt/store"
	"github.com/teilomillet/promptopt/tokens"
	"github.com/teilomillet/promptopt/utils"
)

const DefaultMaxPromptLength = 10000

var ErrInvalidPrompt = errors.New("invalid prompt text")

// Store is the persistence the service needs.
type Store interface {
	GetPrompt(ctx context.Context, id, userID int64) (*store.Prompt, error)
	SetPromptStatus(ctx context.Context, id int64, status store.PromptStatus) error
	SetPromptScores(ctx context.Context, id int64, clarity, specificity, overall float64) error
	SaveOptimization(ctx context.Context, o *store.Optimization, upd store.PromptUpdate) error
	RecordUsage(ctx context.Context, userID int64, tokens int) error
}

type Assessor interface {
	Assess(ctx context.Context, text string) quality.Score
}

// Request asks for one optimization run of a stored prompt.
type Request struct {
	PromptID         int64    `json:"prompt_id" validate:"gt=0"`
	UserID           int64    `json:"user_id" validate:"gte=0"`
	Kind             string   `json:"optimization_type" validate:"required"`
	TargetModel      string   `json:"target_model,omitempty"`
	ReductionTarget  *float64 `json:"reduction_target,omitempty" validate:"omitempty,gte=0.1,lte=0.9"`
	QualityThreshold *float64 `json:"quality_threshold,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// Result is the outcome of a completed run.
type Result struct {
	ID                    int64         `json:"id"`
	PromptID              int64         `json:"prompt_id"`
	UserID                int64         `json:"user_id"`
	Kind                  Kind          `json:"optimization_type"`
	Model                 string        `json:"model_used"`
	OriginalText          string        `json:"original_prompt"`
	TransformedText       string        `json:"optimized_prompt"`
	OriginalTokens        int           `json:"original_tokens"`
	TransformedTokens     int           `json:"optimized_tokens"`
	TokenReduction        int           `json:"token_reduction"`
	TokenReductionPct     float64       `json:"token_reduction_percentage"`
	OriginalCost          float64       `json:"original_cost"`
	TransformedCost       float64       `json:"optimized_cost"`
	CostSavings           float64       `json:"cost_savings"`
	CostSavingsPct        float64       `json:"cost_savings_percentage"`
	Quality               quality.Score `json:"quality"`
	ProcessingTimeSeconds float64       `json:"processing_time"`
}

// ProgressFunc receives human-readable stage messages.
type ProgressFunc func(msg string)

type Service struct {
	store        Store
	counter      *tokens.Counter
	selector     *Selector
	assessor     Assessor
	logger       utils.Logger
	defaultModel string
	maxLength    int
	defaults     Params
	now          func() time.Time
}

type Option func(*Service)

func WithLogger(logger utils.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMaxPromptLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// WithDefaultParams sets the reduction target and quality threshold used
// when a request leaves them unset.
func WithDefaultParams(reductionTarget, qualityThreshold float64) Option {
	return func(s *Service) {
		s.defaults.ReductionTarget = reductionTarget
		s.defaults.QualityThreshold = qualityThreshold
	}
}

// NewService wires the orchestrator. defaultModel is used when a request
// names no target model.
func NewService(st Store, counter *tokens.Counter, gen llm.Generator, assessor Assessor, defaultModel string, opts ...Option) *Service {
	s := &Service{
		store:        st,
		counter:      counter,
		selector:     NewSelector(gen, defaultModel),
		assessor:     assessor,
		logger:       utils.NewNopLogger(),
		defaultModel: defaultModel,
		maxLength:    DefaultMaxPromptLength,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Optimize runs fetch, tokenize, transform, tokenize, cost, assess and
// persist in that order. Nothing is persisted unless every stage succeeds.
func (s *Service) Optimize(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if err := llm.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid optimization request: %w", err)
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	start := s.now()
	progress("Starting optimization...")

	prompt, err := s.store.GetPrompt(ctx, req.PromptID, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.checkText(prompt.OriginalPrompt); err != nil {
		return nil, err
	}
	if err := s.store.SetPromptStatus(ctx, prompt.ID, store.PromptOptimizing); err != nil {
		return nil, err
	}

	res, err := s.run(ctx, req, kind, prompt, start, progress)
	if err != nil {
		s.markFailed(ctx, prompt.ID, err)
		return nil, err
	}

	used := res.OriginalTokens + res.TransformedTokens
	if err := s.store.RecordUsage(context.WithoutCancel(ctx), res.UserID, used); err != nil {
		s.logger.Warn("Failed to record usage", "user_id", res.UserID, "tokens", used, "error", err)
	}
	s.logger.Info("Optimization completed", "prompt_id", prompt.ID, "kind", kind, "model", res.Model,
		"original_tokens", res.OriginalTokens, "optimized_tokens", res.TransformedTokens,
		"quality", res.Quality.Overall, "seconds", res.ProcessingTimeSeconds)
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request, kind Kind, prompt *store.Prompt, start time.Time, progress ProgressFunc) (*Result, error) {
	model := req.TargetModel
	if model == "" {
		model = s.defaultModel
	}
	params := s.defaults
	params.TargetModel = model
	if req.ReductionTarget != nil {
		params.ReductionTarget = *req.ReductionTarget
	}
	if req.QualityThreshold != nil {
		params.QualityThreshold = *req.QualityThreshold
	}

	original := prompt.OriginalPrompt
	origTokens := s.counter.CountTokens(original, model)

	progress("Processing optimization...")
	transformed, err := s.selector.Transform(ctx, kind, original, params)
	if err != nil {
		return nil, err
	}

	optTokens := s.counter.CountTokens(transformed, model)
	savings := s.counter.EstimateSavings(origTokens, optTokens, model)

	progress("Assessing quality...")
	score := s.assessor.Assess(ctx, transformed)

	res := &Result{
		PromptID:              prompt.ID,
		UserID:                prompt.UserID,
		Kind:                  kind,
		Model:                 model,
		OriginalText:          original,
		TransformedText:       transformed,
		OriginalTokens:        origTokens,
		TransformedTokens:     optTokens,
		TokenReduction:        savings.TokensSaved,
		TokenReductionPct:     savings.TokenReductionPct,
		OriginalCost:          savings.OriginalCost,
		TransformedCost:       savings.OptimizedCost,
		CostSavings:           savings.CostSavings,
		CostSavingsPct:        savings.CostSavingsPct,
		Quality:               score,
		ProcessingTimeSeconds: s.now().Sub(start).Seconds(),
	}

	if err := s.persist(ctx, res, params); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) persist(ctx context.Context, res *Result, params Params) error {
	params = params.withDefaults()
	settings, err := json.Marshal(map[string]any{
		"reduction_target":  params.ReductionTarget,
		"quality_threshold": params.QualityThreshold,
		"target_model":      params.TargetModel,
	})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	o := &store.Optimization{
		PromptID:                 res.PromptID,
		UserID:                   res.UserID,
		OptimizationType:         string(res.Kind),
		ModelUsed:                res.Model,
		OriginalPrompt:           res.OriginalText,
		OptimizedPrompt:          res.TransformedText,
		OriginalTokens:           res.OriginalTokens,
		OptimizedTokens:          res.TransformedTokens,
		TokenReduction:           res.TokenReduction,
		TokenReductionPercentage: res.TokenReductionPct,
		QualityScore:             res.Quality.Overall,
		ClarityScore:             res.Quality.Clarity,
		SpecificityScore:         res.Quality.Specificity,
		OriginalCost:             res.OriginalCost,
		OptimizedCost:            res.TransformedCost,
		CostSavings:              res.CostSavings,
		CostSavingsPercentage:    res.CostSavingsPct,
		Settings:                 settings,
		ProcessingTime:           res.ProcessingTimeSeconds,
	}
	err = s.store.SaveOptimization(ctx, o, store.PromptUpdate{
		OptimizedPrompt:          res.TransformedText,
		OriginalTokens:           res.OriginalTokens,
		OptimizedTokens:          res.TransformedTokens,
		TokenReductionPercentage: res.TokenReductionPct,
		ClarityScore:             res.Quality.Clarity,
		SpecificityScore:         res.Quality.Specificity,
		OverallQualityScore:      res.Quality.Overall,
	})
	if err != nil {
		return err
	}
	res.ID = o.ID
	return nil
}

func (s *Service) markFailed(ctx context.Context, promptID int64, cause error) {
	if err := s.store.SetPromptStatus(context.WithoutCancel(ctx), promptID, store.PromptFailed); err != nil {
		s.logger.Warn("Failed to mark prompt failed", "prompt_id", promptID, "error", err)
	}
	s.logger.Error("Optimization failed", "prompt_id", promptID, "error", cause)
}

func (s *Service) checkText(text string) error {
	n := utf8.RuneCountInString(text)
	if n == 0 || n > s.maxLength {
		return fmt.Errorf("%w: length %d outside 1..%d", ErrInvalidPrompt, n, s.maxLength)
	}
	return nil
}

// AnalyzeResult is a standalone quality analysis of a stored prompt.
type AnalyzeResult struct {
	PromptID int64         `json:"prompt_id"`
	Quality  quality.Score `json:"quality_scores"`
}

// Analyze scores a stored prompt's original text and records the scores.
func (s *Service) Analyze(ctx context.Context, promptID, userID int64) (*AnalyzeResult, error) {
	prompt, err := s.store.GetPrompt(ctx, promptID, userID)
	if err != nil {
		return nil, err
	}
	score := s.assessor.Assess(ctx, prompt.OriginalPrompt)
	if err := s.store.SetPromptScores(ctx, prompt.ID, score.Clarity, score.Specificity, score.Overall); err != nil {
		return nil, err
	}
	return &AnalyzeResult{PromptID: prompt.ID, Quality: score}, nil
}
