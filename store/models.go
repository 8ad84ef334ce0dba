package store

import (
	"encoding/json"
	"time"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierBusiness   Tier = "business"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierBusiness, TierEnterprise:
		return true
	}
	return false
}

// Default monthly allowances for new users.
const (
	DefaultMonthlyOptimizations = 50
	DefaultMonthlyTokens        = 10000
)

type User struct {
	ID                   int64     `json:"id"`
	Email                string    `json:"email"`
	FullName             string    `json:"full_name"`
	Tier                 Tier      `json:"tier"`
	IsActive             bool      `json:"is_active"`
	MonthlyOptimizations int       `json:"monthly_optimizations"`
	OptimizationsUsed    int       `json:"optimizations_used"`
	MonthlyTokens        int       `json:"monthly_tokens"`
	TokensUsed           int       `json:"tokens_used"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CanOptimize reports whether the user may start a run expected to use
// estimatedTokens. Enterprise users are unlimited; inactive users never may.
func (u *User) CanOptimize(estimatedTokens int) bool {
	switch {
	case !u.IsActive:
		return false
	case u.Tier == TierEnterprise:
		return true
	case u.OptimizationsUsed >= u.MonthlyOptimizations:
		return false
	case u.TokensUsed+estimatedTokens > u.MonthlyTokens:
		return false
	}
	return true
}

func (u *User) OptimizationsRemaining() int {
	return max(0, u.MonthlyOptimizations-u.OptimizationsUsed)
}

func (u *User) TokensRemaining() int {
	return max(0, u.MonthlyTokens-u.TokensUsed)
}

type PromptStatus string

const (
	PromptDraft      PromptStatus = "draft"
	PromptOptimizing PromptStatus = "optimizing"
	PromptCompleted  PromptStatus = "completed"
	PromptFailed     PromptStatus = "failed"
)

type Prompt struct {
	ID                       int64        `json:"id"`
	UserID                   int64        `json:"user_id"`
	Title                    string       `json:"title,omitempty"`
	OriginalPrompt           string       `json:"original_prompt"`
	OptimizedPrompt          string       `json:"optimized_prompt,omitempty"`
	OriginalTokens           int          `json:"original_tokens"`
	OptimizedTokens          int          `json:"optimized_tokens"`
	TokenReductionPercentage float64      `json:"token_reduction_percentage"`
	ClarityScore             float64      `json:"clarity_score"`
	SpecificityScore         float64      `json:"specificity_score"`
	OverallQualityScore      float64      `json:"overall_quality_score"`
	Status                   PromptStatus `json:"status"`
	CreatedAt                time.Time    `json:"created_at"`
	UpdatedAt                time.Time    `json:"updated_at"`
}

// PromptUpdate is written to the prompt row when an optimization is saved.
type PromptUpdate struct {
	OptimizedPrompt          string
	OriginalTokens           int
	OptimizedTokens          int
	TokenReductionPercentage float64
	ClarityScore             float64
	SpecificityScore         float64
	OverallQualityScore      float64
}

// Optimization is one completed run. It is immutable once saved.
type Optimization struct {
	ID                       int64           `json:"id"`
	PromptID                 int64           `json:"prompt_id"`
	UserID                   int64           `json:"user_id"`
	OptimizationType         string          `json:"optimization_type"`
	ModelUsed                string          `json:"model_used"`
	OriginalPrompt           string          `json:"original_prompt"`
	OptimizedPrompt          string          `json:"optimized_prompt"`
	OriginalTokens           int             `json:"original_tokens"`
	OptimizedTokens          int             `json:"optimized_tokens"`
	TokenReduction           int             `json:"token_reduction"`
	TokenReductionPercentage float64         `json:"token_reduction_percentage"`
	QualityScore             float64         `json:"quality_score"`
	ClarityScore             float64         `json:"clarity_score"`
	SpecificityScore         float64         `json:"specificity_score"`
	OriginalCost             float64         `json:"original_cost"`
	OptimizedCost            float64         `json:"optimized_cost"`
	CostSavings              float64         `json:"cost_savings"`
	CostSavingsPercentage    float64         `json:"cost_savings_percentage"`
	Settings                 json.RawMessage `json:"optimization_settings,omitempty"`
	ProcessingTime           float64         `json:"processing_time"`
	CreatedAt                time.Time       `json:"created_at"`
}

// OptimizationFilter narrows ListOptimizations. Zero values match everything.
type OptimizationFilter struct {
	Type   string
	Model  string
	Since  time.Time
	Offset int
	Limit  int
}
