package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/promptopt/store"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func sample() []*store.Optimization {
	return []*store.Optimization{
		{OptimizationType: "token_reduction", ModelUsed: "gpt-4", TokenReduction: 40, TokenReductionPercentage: 40,
			QualityScore: 7.5, CostSavings: 0.02, ProcessingTime: 1.5, CreatedAt: now.Add(-time.Hour)},
		{OptimizationType: "token_reduction", ModelUsed: "gpt-4", TokenReduction: 20, TokenReductionPercentage: 20,
			QualityScore: 6.0, CostSavings: 0.01, ProcessingTime: 2.5, CreatedAt: now.AddDate(0, 0, -1)},
		{OptimizationType: "clarity_improvement", ModelUsed: "claude-3-haiku", TokenReduction: -5, TokenReductionPercentage: -10,
			QualityScore: 8.0, CostSavings: 0, ProcessingTime: 2.0, CreatedAt: now.AddDate(0, 0, -40)},
	}
}

func TestComputeROI(t *testing.T) {
	roi := ComputeROI(sample(), ROIParams{
		ServiceCostPerOptimization: 0.01,
		Since:                      now.AddDate(0, 0, -30),
		Now:                        now,
	})

	assert.Equal(t, 0.03, roi.TotalCostSavings)
	assert.Equal(t, 0.01, roi.AverageCostSavings)
	// (0.03 - 0.03) / 0.03
	assert.Equal(t, 0.0, roi.ROIPercentage)
	// 3 runs / 30 days * 365 * 0.01
	assert.InDelta(t, 0.37, roi.ProjectedAnnualSavings, 0.005)
}

func TestComputeROIConfigurableServiceCost(t *testing.T) {
	opts := sample()[:1]
	p := ROIParams{Since: now.AddDate(0, 0, -7), Now: now}

	p.ServiceCostPerOptimization = 0.005
	assert.Equal(t, 300.0, ComputeROI(opts, p).ROIPercentage)

	p.ServiceCostPerOptimization = 0
	assert.Equal(t, 0.0, ComputeROI(opts, p).ROIPercentage)
}

func TestComputeROIEmpty(t *testing.T) {
	assert.Equal(t, ROI{}, ComputeROI(nil, ROIParams{ServiceCostPerOptimization: DefaultServiceCost, Now: now}))
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample(), 7, now)

	assert.Equal(t, 3, s.TotalOptimizations)
	assert.Equal(t, 55, s.TotalTokensSaved)
	assert.InDelta(t, 0.03, s.TotalCostSavings, 1e-12)
	assert.Equal(t, 16.67, s.AverageTokenReduction)
	assert.Equal(t, 7.17, s.AverageQualityScore)
	assert.Equal(t, 66.67, s.SuccessRate)
	assert.Equal(t, 2.0, s.AverageProcessingTime)
	assert.Equal(t, map[string]int{"gpt-4": 2, "claude-3-haiku": 1}, s.ModelUsage)
	assert.Equal(t, map[string]int{"token_reduction": 2, "clarity_improvement": 1}, s.TypeUsage)

	require.Len(t, s.Daily, 7)
	assert.Equal(t, DailyStat{Date: "2024-06-30", Optimizations: 1, TokensSaved: 40, CostSavings: 0.02}, s.Daily[0])
	assert.Equal(t, "2024-06-29", s.Daily[1].Date)
	assert.Equal(t, 1, s.Daily[1].Optimizations)
	assert.Zero(t, s.Daily[6].Optimizations)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, 3, now)
	assert.Zero(t, s.TotalOptimizations)
	assert.Zero(t, s.AverageQualityScore)
	assert.Len(t, s.Daily, 3)
	assert.NotNil(t, s.ModelUsage)
}
