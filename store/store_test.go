package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUserAndPrompt(t *testing.T, s *Store) (*User, *Prompt) {
	t.Helper()
	ctx := context.Background()
	u := &User{Email: "ada@example.com", IsActive: true}
	require.NoError(t, s.CreateUser(ctx, u))
	p := &Prompt{UserID: u.ID, OriginalPrompt: "Please kindly explain the concept"}
	require.NoError(t, s.CreatePrompt(ctx, p))
	return u, p
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	u := &User{Email: "mem@example.com", IsActive: true}
	require.NoError(t, s.CreateUser(context.Background(), u))
	assert.NotZero(t, u.ID)
}

func TestUserDefaults(t *testing.T) {
	s := newTestStore(t)
	u, _ := seedUserAndPrompt(t, s)

	got, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, TierFree, got.Tier)
	assert.True(t, got.IsActive)
	assert.Equal(t, DefaultMonthlyOptimizations, got.MonthlyOptimizations)
	assert.Equal(t, DefaultMonthlyTokens, got.MonthlyTokens)

	_, err = s.GetUser(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)

	byEmail, err := s.GetUserByEmail(context.Background(), u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanOptimize(t *testing.T) {
	testCases := []struct {
		name string
		user User
		est  int
		want bool
	}{
		{"fresh free user", User{IsActive: true, MonthlyOptimizations: 50, MonthlyTokens: 10000}, 100, true},
		{"inactive", User{MonthlyOptimizations: 50, MonthlyTokens: 10000}, 1, false},
		{"optimizations exhausted", User{IsActive: true, MonthlyOptimizations: 50, OptimizationsUsed: 50, MonthlyTokens: 10000}, 1, false},
		{"tokens would overflow", User{IsActive: true, MonthlyOptimizations: 50, MonthlyTokens: 10000, TokensUsed: 9990}, 11, false},
		{"tokens exactly at limit", User{IsActive: true, MonthlyOptimizations: 50, MonthlyTokens: 10000, TokensUsed: 9990}, 10, true},
		{"enterprise ignores limits", User{IsActive: true, Tier: TierEnterprise, OptimizationsUsed: 500, TokensUsed: 1e6}, 1e6, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.user.CanOptimize(tc.est))
		})
	}
}

func TestRecordAndResetUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, _ := seedUserAndPrompt(t, s)

	require.NoError(t, s.RecordUsage(ctx, u.ID, 120))
	require.NoError(t, s.RecordUsage(ctx, u.ID, 30))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.OptimizationsUsed)
	assert.Equal(t, 150, got.TokensUsed)
	assert.Equal(t, 48, got.OptimizationsRemaining())
	assert.Equal(t, 9850, got.TokensRemaining())

	assert.ErrorIs(t, s.RecordUsage(ctx, 404, 1), ErrNotFound)

	n, err := s.ResetMonthlyUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.OptimizationsUsed)
	assert.Zero(t, got.TokensUsed)
}

func TestPromptLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, p := seedUserAndPrompt(t, s)

	got, err := s.GetPrompt(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, PromptDraft, got.Status)
	assert.Equal(t, p.OriginalPrompt, got.OriginalPrompt)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	require.NoError(t, s.SetPromptStatus(ctx, p.ID, PromptOptimizing))
	got, err = s.GetPrompt(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, PromptOptimizing, got.Status)

	_, err = s.GetPrompt(ctx, p.ID, u.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetPrompt(ctx, 7, 0)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "prompt 7 not found", err.Error())

	assert.ErrorIs(t, s.SetPromptStatus(ctx, 7, PromptFailed), ErrNotFound)
}

func sampleOptimization(u *User, p *Prompt) *Optimization {
	return &Optimization{
		PromptID:                 p.ID,
		UserID:                   u.ID,
		OptimizationType:         "token_reduction",
		ModelUsed:                "gpt-4",
		OriginalPrompt:           p.OriginalPrompt,
		OptimizedPrompt:          "Explain the concept",
		OriginalTokens:           10,
		OptimizedTokens:          4,
		TokenReduction:           6,
		TokenReductionPercentage: 60,
		QualityScore:             6.1,
		ClarityScore:             5,
		SpecificityScore:         5.5,
		OriginalCost:             0.00036,
		OptimizedCost:            0.00015,
		CostSavings:              0.00021,
		CostSavingsPercentage:    58.3,
		Settings:                 json.RawMessage(`{"reduction_target":0.4}`),
		ProcessingTime:           1.25,
	}
}

func TestSaveOptimizationUpdatesPrompt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, p := seedUserAndPrompt(t, s)

	o := sampleOptimization(u, p)
	err := s.SaveOptimization(ctx, o, PromptUpdate{
		OptimizedPrompt:          o.OptimizedPrompt,
		OriginalTokens:           o.OriginalTokens,
		OptimizedTokens:          o.OptimizedTokens,
		TokenReductionPercentage: o.TokenReductionPercentage,
		ClarityScore:             o.ClarityScore,
		SpecificityScore:         o.SpecificityScore,
		OverallQualityScore:      o.QualityScore,
	})
	require.NoError(t, err)
	require.NotZero(t, o.ID)

	got, err := s.GetOptimization(ctx, o.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OptimizedPrompt, got.OptimizedPrompt)
	assert.Equal(t, 6, got.TokenReduction)
	assert.JSONEq(t, `{"reduction_target":0.4}`, string(got.Settings))
	assert.InDelta(t, float64(got.OriginalTokens-got.OptimizedTokens)/float64(got.OriginalTokens)*100,
		got.TokenReductionPercentage, 1e-9)

	prompt, err := s.GetPrompt(ctx, p.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, PromptCompleted, prompt.Status)
	assert.Equal(t, "Explain the concept", prompt.OptimizedPrompt)
	assert.Equal(t, 6.1, prompt.OverallQualityScore)
}

func TestSaveOptimizationMissingPromptWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, p := seedUserAndPrompt(t, s)

	o := sampleOptimization(u, p)
	o.PromptID = 999
	err := s.SaveOptimization(ctx, o, PromptUpdate{})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, o.ID)

	list, err := s.ListOptimizations(ctx, u.ID, OptimizationFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListAndDeleteOptimizations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u, p := seedUserAndPrompt(t, s)

	for _, kind := range []string{"token_reduction", "clarity_improvement", "token_reduction"} {
		o := sampleOptimization(u, p)
		o.OptimizationType = kind
		require.NoError(t, s.SaveOptimization(ctx, o, PromptUpdate{}))
	}

	all, err := s.ListOptimizations(ctx, u.ID, OptimizationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[2].ID, "newest first")

	reductions, err := s.ListOptimizations(ctx, u.ID, OptimizationFilter{Type: "token_reduction"})
	require.NoError(t, err)
	assert.Len(t, reductions, 2)

	page, err := s.ListOptimizations(ctx, u.ID, OptimizationFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[1].ID, page[0].ID)

	future, err := s.ListOptimizations(ctx, u.ID, OptimizationFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)

	assert.ErrorIs(t, s.DeleteOptimization(ctx, all[0].ID, u.ID+1), ErrNotFound)
	require.NoError(t, s.DeleteOptimization(ctx, all[0].ID, u.ID))
	_, err = s.GetOptimization(ctx, all[0].ID, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetPromptScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, p := seedUserAndPrompt(t, s)

	require.NoError(t, s.SetPromptScores(ctx, p.ID, 6.5, 5.5, 5.9))
	got, err := s.GetPrompt(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 6.5, got.ClarityScore)
	assert.Equal(t, 5.5, got.SpecificityScore)
	assert.Equal(t, 5.9, got.OverallQualityScore)
	assert.Equal(t, PromptDraft, got.Status)

	assert.ErrorIs(t, s.SetPromptScores(ctx, 999, 1, 1, 1), ErrNotFound)
}
