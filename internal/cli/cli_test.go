package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/promptopt/catalog"
	"github.com/teilomillet/promptopt/config"
	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/store"
	"github.com/teilomillet/promptopt/tokens"
	"github.com/teilomillet/promptopt/utils"
)

type wordEncoder struct{}

func (wordEncoder) Encode(text string, _, _ []string) []int {
	return make([]int, len(strings.Fields(text)))
}

// offline replaces the tokenizer and model backends for one test.
func offline(t *testing.T, reply string) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "OFF")

	prevLoader, prevGen := encodingLoader, newGenerator
	t.Cleanup(func() { encodingLoader, newGenerator = prevLoader, prevGen })

	encodingLoader = func(string) (tokens.Encoder, error) { return wordEncoder{}, nil }
	newGenerator = func(context.Context, *config.Config, *catalog.Catalog, utils.Logger) llm.Generator {
		return llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
			return reply, nil
		})
	}
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmdHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"serve", "tokens", "compare", "optimize", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "promptopt dev\n", out)
}

func TestOptimizeCmdFlagDefaults(t *testing.T) {
	cmd := NewOptimizeCmd()
	kind, _ := cmd.Flags().GetString("type")
	assert.Equal(t, "token_reduction", kind)
	db, _ := cmd.Flags().GetString("db")
	assert.Equal(t, ":memory:", db)
	reduction, _ := cmd.Flags().GetFloat64("reduction")
	assert.Equal(t, 0.4, reduction)
}

func TestPromptText(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr bool
	}{
		{"args joined", "", []string{"hello", "world"}, "hello world", false},
		{"stdin", "  from stdin \n", []string{"-"}, "from stdin", false},
		{"blank", "", []string{"  "}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := promptText(strings.NewReader(tt.stdin), tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokensCmdJSON(t *testing.T) {
	offline(t, "")
	out, err := run(t, "", "tokens", "--json", "one two three")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.EqualValues(t, 3, got["token_count"])
	assert.Equal(t, "gpt-4", got["model"])
	assert.EqualValues(t, 13, got["text_length"])
}

func TestCompareCmd(t *testing.T) {
	offline(t, "")
	out, err := run(t, "one two", "compare", "--models", "gpt-4,gpt-3.5-turbo", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "gpt-4")
	assert.Contains(t, out, "gpt-3.5-turbo")
	assert.Contains(t, out, "cheapest: gpt-3.5-turbo")
}

func TestOptimizeCmd(t *testing.T) {
	offline(t, "Explain the concept")
	out, err := run(t, "", "optimize", "--json",
		"Please kindly provide me with a detailed explanation of the concept")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Explain the concept", got["optimized_prompt"])
	assert.EqualValues(t, 11, got["original_tokens"])
	assert.EqualValues(t, 3, got["optimized_tokens"])
}

func TestOptimizeCmdReusesDatabase(t *testing.T) {
	offline(t, "Explain the concept")
	db := filepath.Join(t.TempDir(), "runs.db")
	for range 2 {
		out, err := run(t, "", "optimize", "--db", db, "Please explain the concept")
		require.NoError(t, err)
		assert.Contains(t, out, "Explain the concept")
	}

	st, err := store.Open(context.Background(), db)
	require.NoError(t, err)
	defer st.Close()
	u, err := st.GetUserByEmail(context.Background(), cliEmail)
	require.NoError(t, err)
	list, err := st.ListOptimizations(context.Background(), u.ID, store.OptimizationFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestOptimizeCmdRejectsUnknownType(t *testing.T) {
	offline(t, "")
	_, err := run(t, "", "optimize", "--type", "compression", "hello")
	assert.ErrorContains(t, err, "compression")
}
