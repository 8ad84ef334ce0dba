package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/optimizer"
	"github.com/teilomillet/promptopt/quality"
	"github.com/teilomillet/promptopt/store"
	"github.com/teilomillet/promptopt/tasks"
	"github.com/teilomillet/promptopt/tokens"
)

type wordEncoder struct{}

func (wordEncoder) Encode(text string, _, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

type harness struct {
	t     *testing.T
	srv   *Server
	store *store.Store
	user  *store.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	counter := tokens.NewCounter(nil, tokens.WithLoader(func(string) (tokens.Encoder, error) {
		return wordEncoder{}, nil
	}))
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		return "Explain the concept", nil
	})
	svc := optimizer.NewService(st, counter, gen, quality.NewAssessor(nil, nil), "gpt-4")

	pool := tasks.NewPool(tasks.NewMemoryBackend(), tasks.WithWorkers(2))
	svc.RegisterTasks(pool)
	pool.Start(ctx)
	t.Cleanup(func() { pool.Stop(context.Background()) })

	u := &store.User{Email: "ada@example.com", IsActive: true}
	require.NoError(t, st.CreateUser(ctx, u))

	srv := New(Deps{Store: st, Tasks: pool, Counter: counter, Version: "test", Environment: "test"})
	return &harness{t: t, srv: srv, store: st, user: u}
}

func (h *harness) do(method, path, body string) (int, map[string]any) {
	h.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if h.user != nil {
		req.Header.Set(UserHeader, strconv.FormatInt(h.user.ID, 10))
	}
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(h.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (h *harness) waitForTask(id string) map[string]any {
	h.t.Helper()
	var body map[string]any
	require.Eventually(h.t, func() bool {
		_, body = h.do(http.MethodGet, "/v1/optimizations/task/"+id, "")
		return body["status"] != "processing"
	}, 2*time.Second, 10*time.Millisecond)
	return body
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)
	h.user = nil
	code, _ := h.do(http.MethodGet, "/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	h.user = &store.User{ID: 4242}
	code, _ = h.do(http.MethodGet, "/v1/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreateUserAndMe(t *testing.T) {
	h := newHarness(t)
	h.user = nil
	code, body := h.do(http.MethodPost, "/v1/users", `{"email":"grace@example.com","tier":"pro"}`)
	require.Equal(t, http.StatusCreated, code)
	id := int64(body["id"].(float64))

	code, _ = h.do(http.MethodPost, "/v1/users", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodPost, "/v1/users", `{"email":"linus@example.com","tier":"platinum"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	h.user = &store.User{ID: id}
	code, body = h.do(http.MethodGet, "/v1/users/me", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, store.DefaultMonthlyOptimizations, body["optimizations_remaining"])
}

func TestOptimizeEndToEnd(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(http.MethodPost, "/v1/optimizations", `{
		"original_prompt": "Please kindly provide me with a detailed explanation of the concept",
		"optimization_type": "token_reduction"
	}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "processing", body["status"])
	taskID := body["task_id"].(string)

	done := h.waitForTask(taskID)
	require.Equal(t, "completed", done["status"], done)
	result := done["result"].(map[string]any)
	assert.Equal(t, "Explain the concept", result["optimized_prompt"])
	assert.EqualValues(t, 11, result["original_tokens"])
	assert.EqualValues(t, 3, result["optimized_tokens"])

	code, body = h.do(http.MethodGet, "/v1/users/me", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, store.DefaultMonthlyOptimizations-1, body["optimizations_remaining"])

	list, err := h.store.ListOptimizations(context.Background(), h.user.ID, store.OptimizationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	code, body = h.do(http.MethodGet, "/v1/optimizations/"+strconv.FormatInt(list[0].ID, 10), "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "token_reduction", body["optimization_type"])

	code, body = h.do(http.MethodGet, "/v1/analytics/summary?days=7", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total_optimizations"])

	code, _ = h.do(http.MethodGet, "/v1/analytics/roi", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.do(http.MethodDelete, "/v1/optimizations/"+strconv.FormatInt(list[0].ID, 10), "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = h.do(http.MethodGet, "/v1/optimizations/"+strconv.FormatInt(list[0].ID, 10), "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOptimizeRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown kind", `{"original_prompt":"hi","optimization_type":"compression"}`, http.StatusBadRequest},
		{"missing prompt", `{"optimization_type":"token_reduction"}`, http.StatusBadRequest},
		{"reduction out of range", `{"original_prompt":"hi","optimization_type":"token_reduction","reduction_target":0.95}`, http.StatusBadRequest},
		{"unknown prompt id", `{"prompt_id":999,"optimization_type":"token_reduction"}`, http.StatusNotFound},
	}
	h := newHarness(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := h.do(http.MethodPost, "/v1/optimizations", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestOptimizeLimitReached(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for range store.DefaultMonthlyOptimizations {
		require.NoError(t, h.store.RecordUsage(ctx, h.user.ID, 1))
	}
	code, body := h.do(http.MethodPost, "/v1/optimizations", `{"original_prompt":"hi","optimization_type":"token_reduction"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Optimization limit reached. Please upgrade your plan.", body["error"])
}

func TestTaskStatusUnknown(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(http.MethodGet, "/v1/optimizations/task/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFailedTaskReportsReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := &store.Prompt{UserID: h.user.ID, OriginalPrompt: "Summarize this"}
	require.NoError(t, h.store.CreatePrompt(ctx, p))

	body := `{"prompt_ids":[` + strconv.FormatInt(p.ID, 10) + `,999],"optimization_type":"clarity_improvement"}`
	code, resp := h.do(http.MethodPost, "/v1/optimizations/batch", body)
	require.Equal(t, http.StatusAccepted, code)
	items := resp["results"].([]any)
	require.Len(t, items, 2)

	first := h.waitForTask(items[0].(map[string]any)["task_id"].(string))
	assert.Equal(t, "completed", first["status"])
	second := h.waitForTask(items[1].(map[string]any)["task_id"].(string))
	assert.Equal(t, "failed", second["status"])
	assert.Contains(t, second["error"], "not found")
}

func TestPromptsAndAnalyze(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(http.MethodPost, "/v1/prompts", `{"title":"t","original_prompt":"Write a haiku about autumn."}`)
	require.Equal(t, http.StatusCreated, code)
	id := strconv.FormatInt(int64(body["id"].(float64)), 10)

	code, body = h.do(http.MethodGet, "/v1/prompts/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "draft", body["status"])

	code, body = h.do(http.MethodPost, "/v1/prompts/"+id+"/analyze", "")
	require.Equal(t, http.StatusAccepted, code)
	done := h.waitForTask(body["task_id"].(string))
	assert.Equal(t, "completed", done["status"])

	code, _ = h.do(http.MethodGet, "/v1/prompts/abc", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTokenEndpoints(t *testing.T) {
	h := newHarness(t)
	code, body := h.do(http.MethodPost, "/v1/tokens/calculate", `{"text":"one two three four"}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 4, body["token_count"])
	assert.Equal(t, "gpt-4", body["model"])
	assert.Greater(t, body["estimated_cost"].(float64), 0.0)

	code, body = h.do(http.MethodPost, "/v1/tokens/compare", `{"text":"one two","models":["gpt-4","mystery-model"]}`)
	require.Equal(t, http.StatusOK, code)
	cmp := body["comparisons"].([]any)
	require.Len(t, cmp, 2)
	assert.Equal(t, false, cmp[1].(map[string]any)["supported"])

	code, body = h.do(http.MethodGet, "/v1/tokens/models", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["models"])
}

func TestListOptimizationsValidation(t *testing.T) {
	h := newHarness(t)
	code, _ := h.do(http.MethodGet, "/v1/optimizations?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = h.do(http.MethodGet, "/v1/analytics/summary?days=0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
