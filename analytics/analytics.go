// Package analytics aggregates stored optimizations into usage summaries and
// return-on-investment figures.
package analytics

import (
	"math"
	"time"

	"github.com/teilomillet/promptopt/store"
)

// DefaultServiceCost is the assumed price of one optimization in USD.
const DefaultServiceCost = 0.01

// successQuality is the overall score at which a run counts as successful.
const successQuality = 7.0

type ROIParams struct {
	ServiceCostPerOptimization float64
	Since                      time.Time
	Now                        time.Time
}

type ROI struct {
	TotalCostSavings       float64 `json:"total_cost_savings"`
	AverageCostSavings     float64 `json:"average_cost_savings_per_optimization"`
	ROIPercentage          float64 `json:"roi_percentage"`
	ProjectedAnnualSavings float64 `json:"projected_annual_savings"`
}

// ComputeROI compares the token cost saved by opts with what the service
// charged for them, and projects the daily rate over a year.
func ComputeROI(opts []*store.Optimization, p ROIParams) ROI {
	if len(opts) == 0 {
		return ROI{}
	}
	n := float64(len(opts))

	total := 0.0
	for _, o := range opts {
		total += o.CostSavings
	}
	avg := total / n

	roi := 0.0
	if serviceCost := n * p.ServiceCostPerOptimization; serviceCost > 0 {
		roi = (total - serviceCost) / serviceCost * 100
	}

	projected := 0.0
	if days := math.Floor(p.Now.Sub(p.Since).Hours() / 24); days > 0 {
		projected = n / days * 365 * avg
	}

	return ROI{
		TotalCostSavings:       round(total, 4),
		AverageCostSavings:     round(avg, 4),
		ROIPercentage:          round(roi, 2),
		ProjectedAnnualSavings: round(projected, 2),
	}
}

type DailyStat struct {
	Date          string  `json:"date"`
	Optimizations int     `json:"optimizations"`
	TokensSaved   int     `json:"tokens_saved"`
	CostSavings   float64 `json:"cost_savings"`
}

type Summary struct {
	TotalOptimizations    int            `json:"total_optimizations"`
	TotalTokensSaved      int            `json:"total_tokens_saved"`
	TotalCostSavings      float64        `json:"total_cost_savings"`
	AverageTokenReduction float64        `json:"average_token_reduction"`
	AverageQualityScore   float64        `json:"average_quality_score"`
	SuccessRate           float64        `json:"success_rate"`
	AverageProcessingTime float64        `json:"average_processing_time"`
	ModelUsage            map[string]int `json:"model_usage"`
	TypeUsage             map[string]int `json:"optimization_type_usage"`
	Daily                 []DailyStat    `json:"daily_stats"`
}

// Summarize aggregates opts over the last days days ending at now (UTC
// calendar days, newest first).
func Summarize(opts []*store.Optimization, days int, now time.Time) Summary {
	s := Summary{
		ModelUsage: make(map[string]int),
		TypeUsage:  make(map[string]int),
		Daily:      make([]DailyStat, 0, max(days, 0)),
	}

	byDay := make(map[string]*DailyStat)
	now = now.UTC()
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -i).Format(time.DateOnly)
		s.Daily = append(s.Daily, DailyStat{Date: date})
		byDay[date] = &s.Daily[i]
	}

	var reductionSum, qualitySum, timeSum float64
	successes := 0
	for _, o := range opts {
		s.TotalOptimizations++
		s.TotalTokensSaved += o.TokenReduction
		s.TotalCostSavings += o.CostSavings
		reductionSum += o.TokenReductionPercentage
		qualitySum += o.QualityScore
		timeSum += o.ProcessingTime
		if o.QualityScore >= successQuality {
			successes++
		}
		if o.ModelUsed != "" {
			s.ModelUsage[o.ModelUsed]++
		}
		s.TypeUsage[o.OptimizationType]++

		if d, ok := byDay[o.CreatedAt.UTC().Format(time.DateOnly)]; ok {
			d.Optimizations++
			d.TokensSaved += o.TokenReduction
			d.CostSavings += o.CostSavings
		}
	}

	if n := float64(s.TotalOptimizations); n > 0 {
		s.AverageTokenReduction = round(reductionSum/n, 2)
		s.AverageQualityScore = round(qualitySum/n, 2)
		s.AverageProcessingTime = round(timeSum/n, 2)
		s.SuccessRate = round(float64(successes)/n*100, 2)
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
