package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teilomillet/promptopt/utils"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"

	// The messages API requires max_tokens.
	anthropicDefaultMaxTokens = 1024
)

// AnthropicProvider implements the Provider interface for Anthropic's messages API
type AnthropicProvider struct {
	apiKey       string
	endpoint     string
	extraHeaders map[string]string
	logger       utils.Logger
}

func NewAnthropicProvider(apiKey, baseURL string, extraHeaders map[string]string) Provider {
	endpoint := anthropicEndpoint
	if baseURL != "" {
		endpoint = strings.TrimSuffix(baseURL, "/") + "/v1/messages"
	}
	return &AnthropicProvider{
		apiKey:       apiKey,
		endpoint:     endpoint,
		extraHeaders: mergeHeaders(make(map[string]string), extraHeaders),
		logger:       utils.NewNopLogger(),
	}
}

func (p *AnthropicProvider) SetLogger(logger utils.Logger) {
	p.logger = logger
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Endpoint() string {
	return p.endpoint
}

func (p *AnthropicProvider) Headers() map[string]string {
	headers := map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	return mergeHeaders(headers, p.extraHeaders)
}

func (p *AnthropicProvider) PrepareRequest(req *Request) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}
	requestBody := map[string]any{
		"model":       req.Model,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.SystemPrompt != "" {
		requestBody["system"] = req.SystemPrompt
	}
	return json.Marshal(requestBody)
}

func (p *AnthropicProvider) ParseResponse(body []byte) (string, error) {
	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("empty response from LLM")
	}

	var text strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	p.logger.Debug("Parsed response", "stop_reason", response.StopReason, "length", text.Len())
	return text.String(), nil
}
