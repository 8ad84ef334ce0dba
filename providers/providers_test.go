package providers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider(t *testing.T) {
	p := NewOpenAIProvider("sk-test", "", map[string]string{"X-Trace": "1"})

	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, openAIEndpoint, p.Endpoint())
	assert.Equal(t, "Bearer sk-test", p.Headers()["Authorization"])
	assert.Equal(t, "1", p.Headers()["X-Trace"])

	body, err := p.PrepareRequest(&Request{
		Model:        "gpt-4",
		SystemPrompt: "be brief",
		Prompt:       "hello",
		MaxTokens:    2000,
		Temperature:  0.7,
	})
	require.NoError(t, err)

	var decoded struct {
		Model    string          `json:"model"`
		Messages []openAIMessage `json:"messages"`
		Max      int             `json:"max_tokens"`
		Temp     float64         `json:"temperature"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "gpt-4", decoded.Model)
	assert.Equal(t, []openAIMessage{{"system", "be brief"}, {"user", "hello"}}, decoded.Messages)
	assert.Equal(t, 2000, decoded.Max)
	assert.Equal(t, 0.7, decoded.Temp)

	text, err := p.ParseResponse([]byte(`{"choices":[{"message":{"content":"hi there"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)

	_, err = p.ParseResponse([]byte(`{"choices":[]}`))
	assert.Error(t, err)
	_, err = p.ParseResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestOpenAIProviderBaseURL(t *testing.T) {
	p := NewOpenAIProvider("k", "http://localhost:8080/", nil)
	assert.Equal(t, "http://localhost:8080/v1/chat/completions", p.Endpoint())
}

func TestAnthropicProvider(t *testing.T) {
	p := NewAnthropicProvider("sk-ant", "http://proxy", nil)

	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "http://proxy/v1/messages", p.Endpoint())
	assert.Equal(t, "sk-ant", p.Headers()["x-api-key"])
	assert.Equal(t, anthropicVersion, p.Headers()["anthropic-version"])

	body, err := p.PrepareRequest(&Request{Model: "claude-3-haiku-20240307", Prompt: "hello", Temperature: 0.3})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, float64(anthropicDefaultMaxTokens), decoded["max_tokens"])
	assert.NotContains(t, decoded, "system")

	body, err = p.PrepareRequest(&Request{Model: "m", SystemPrompt: "judge", Prompt: "x", MaxTokens: 500})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "judge", decoded["system"])
	assert.Equal(t, float64(500), decoded["max_tokens"])

	text, err := p.ParseResponse([]byte(`{"content":[{"type":"text","text":"a"},{"type":"tool_use"},{"type":"text","text":"b"}],"stop_reason":"end_turn"}`))
	require.NoError(t, err)
	assert.Equal(t, "ab", text)

	_, err = p.ParseResponse([]byte(`{"content":[]}`))
	assert.Error(t, err)
}

func TestMockProviderResponses(t *testing.T) {
	provider := NewMockProvider("", "http://mock.api", nil)
	mock := provider.(*MockProvider)

	assert.Equal(t, "mock", provider.Name())
	assert.Equal(t, "http://mock.api", provider.Endpoint())

	text, err := provider.ParseResponse(nil)
	require.NoError(t, err)
	assert.Equal(t, "This is a mock response", text)

	mock.SetResponses([]string{"first", "second"}, false)
	text, _ = provider.ParseResponse(nil)
	assert.Equal(t, "first", text)
	text, _ = provider.ParseResponse(nil)
	assert.Equal(t, "second", text)
	_, err = provider.ParseResponse(nil)
	assert.ErrorIs(t, err, errMockExhausted)

	mock.SetResponses([]string{"loop"}, true)
	for i := 0; i < 3; i++ {
		text, err = provider.ParseResponse(nil)
		require.NoError(t, err)
		assert.Equal(t, "loop", text)
	}

	boom := errors.New("boom")
	mock.SetMockError(boom)
	_, err = provider.ParseResponse(nil)
	assert.ErrorIs(t, err, boom)
}

func TestMockProviderRecordsRequests(t *testing.T) {
	provider := NewMockProvider("", "", nil)
	_, err := provider.PrepareRequest(&Request{Model: "gpt-4", Prompt: "p"})
	require.NoError(t, err)

	reqs := provider.(*MockProvider).Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "p", reqs[0].Prompt)
}

func TestProviderRegistry(t *testing.T) {
	registry := NewProviderRegistry()
	assert.Equal(t, []string{"anthropic", "deepseek", "groq", "mistral", "mock", "openai"}, registry.Names())

	for _, name := range registry.Names() {
		t.Run(name, func(t *testing.T) {
			provider, err := registry.Get(name, "key", "", nil)
			require.NoError(t, err)
			assert.Equal(t, name, provider.Name())
		})
	}

	_, err := registry.Get("cohere", "key", "", nil)
	assert.Error(t, err)

	only := NewProviderRegistry("openai", "nonexistent")
	assert.Equal(t, []string{"openai"}, only.Names())

	only.Register("Custom", NewMockProvider)
	_, err = only.Get("custom", "", "", nil)
	assert.NoError(t, err)
}

func TestCompatibleProviders(t *testing.T) {
	tests := []struct {
		name     string
		ctor     ProviderConstructor
		baseURL  string
		endpoint string
	}{
		{"groq", NewGroqProvider, "", "https://api.groq.com/openai/v1/chat/completions"},
		{"mistral", NewMistralProvider, "", "https://api.mistral.ai/v1/chat/completions"},
		{"deepseek", NewDeepSeekProvider, "", "https://api.deepseek.com/v1/chat/completions"},
		{"deepseek", NewDeepSeekProvider, "http://proxy.local/", "http://proxy.local/v1/chat/completions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.ctor("key", tt.baseURL, nil)
			assert.Equal(t, tt.name, p.Name())
			assert.Equal(t, tt.endpoint, p.Endpoint())
			assert.Equal(t, "Bearer key", p.Headers()["Authorization"])

			text, err := p.ParseResponse([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
			require.NoError(t, err)
			assert.Equal(t, "ok", text)
		})
	}
}
