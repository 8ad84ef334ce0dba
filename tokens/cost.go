package tokens

import (
	"math"

	"github.com/teilomillet/promptopt/catalog"
)

// inputShare is the fraction of a token count billed at the input rate.
const inputShare = 0.8

// DefaultComparisonModels are compared when the caller names none.
var DefaultComparisonModels = []string{"gpt-4", "gpt-3.5-turbo", "claude-3-sonnet", "gemini-pro"}

// Split divides a token count into billed input and output tokens.
func Split(tokens int) (input, output int) {
	if tokens <= 0 {
		return 0, 0
	}
	input = int(math.Floor(float64(tokens) * inputShare))
	return input, tokens - input
}

// EstimateCost prices tokens for model in USD. Unknown or unpriced models use
// the default model's pricing; negative counts cost nothing.
func (c *Counter) EstimateCost(tokens int, model string) float64 {
	pricing, _ := c.catalog.Pricing(model)
	return Cost(tokens, pricing)
}

// Cost applies pricing to a token count using the fixed 80/20 split.
func Cost(tokens int, pricing catalog.Pricing) float64 {
	in, out := Split(tokens)
	return float64(in)/1000*pricing.InputPer1K + float64(out)/1000*pricing.OutputPer1K
}

// Percent returns part/whole*100, or 0 when whole is not positive.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

type Savings struct {
	Model             string  `json:"model"`
	OriginalTokens    int     `json:"original_tokens"`
	OptimizedTokens   int     `json:"optimized_tokens"`
	TokensSaved       int     `json:"tokens_saved"`
	TokenReductionPct float64 `json:"token_reduction_percentage"`
	OriginalCost      float64 `json:"original_cost"`
	OptimizedCost     float64 `json:"optimized_cost"`
	CostSavings       float64 `json:"cost_savings"`
	CostSavingsPct    float64 `json:"cost_savings_percentage"`
}

// EstimateSavings compares the cost of two token counts under one model.
func (c *Counter) EstimateSavings(original, optimized int, model string) Savings {
	origCost := c.EstimateCost(original, model)
	optCost := c.EstimateCost(optimized, model)
	saved := original - optimized
	return Savings{
		Model:             model,
		OriginalTokens:    original,
		OptimizedTokens:   optimized,
		TokensSaved:       saved,
		TokenReductionPct: Percent(float64(saved), float64(original)),
		OriginalCost:      origCost,
		OptimizedCost:     optCost,
		CostSavings:       origCost - optCost,
		CostSavingsPct:    Percent(origCost-optCost, origCost),
	}
}

type ModelCost struct {
	Model           string  `json:"model"`
	TokenCount      int     `json:"token_count"`
	EstimatedCost   float64 `json:"estimated_cost"`
	CostPer1KTokens float64 `json:"cost_per_1k_tokens"`
	Supported       bool    `json:"supported"`
}

// CompareModels counts and prices text for each model, in the order given.
// With no models it uses DefaultComparisonModels.
func (c *Counter) CompareModels(text string, models ...string) []ModelCost {
	if len(models) == 0 {
		models = DefaultComparisonModels
	}
	out := make([]ModelCost, 0, len(models))
	for _, model := range models {
		n := c.CountTokens(text, model)
		cost := c.EstimateCost(n, model)
		mc := ModelCost{Model: model, TokenCount: n, EstimatedCost: cost}
		if n > 0 {
			mc.CostPer1KTokens = cost / (float64(n) / 1000)
		}
		_, mc.Supported = c.catalog.Lookup(model)
		out = append(out, mc)
	}
	return out
}

type ModelInfo struct {
	Model     string           `json:"model"`
	Supported bool             `json:"supported"`
	Provider  string           `json:"provider,omitempty"`
	Encoding  string           `json:"encoding,omitempty"`
	Pricing   *catalog.Pricing `json:"pricing"`
}

// ModelInfo describes a model. Unknown models report Supported=false and no pricing.
func (c *Counter) ModelInfo(model string) ModelInfo {
	spec, ok := c.catalog.Lookup(model)
	if !ok {
		return ModelInfo{Model: model}
	}
	return ModelInfo{
		Model:     spec.Name,
		Supported: true,
		Provider:  spec.Provider,
		Encoding:  spec.Encoding,
		Pricing:   spec.Pricing,
	}
}

// SupportedModels lists the models that carry their own pricing.
func (c *Counter) SupportedModels() []string {
	return c.catalog.PricedNames()
}
