package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teilomillet/promptopt/utils"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider implements the Provider interface for OpenAI's chat completions API
type OpenAIProvider struct {
	apiKey       string
	endpoint     string
	extraHeaders map[string]string
	logger       utils.Logger
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(apiKey, baseURL string, extraHeaders map[string]string) Provider {
	endpoint := openAIEndpoint
	if baseURL != "" {
		endpoint = strings.TrimSuffix(baseURL, "/") + "/v1/chat/completions"
	}
	return &OpenAIProvider{
		apiKey:       apiKey,
		endpoint:     endpoint,
		extraHeaders: mergeHeaders(make(map[string]string), extraHeaders),
		logger:       utils.NewNopLogger(),
	}
}

func (p *OpenAIProvider) SetLogger(logger utils.Logger) { p.logger = logger }

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Endpoint() string {
	return p.endpoint
}

// Headers returns the necessary headers for API requests
func (p *OpenAIProvider) Headers() map[string]string {
	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + p.apiKey,
	}
	return mergeHeaders(headers, p.extraHeaders)
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PrepareRequest prepares the request body for the API call
func (p *OpenAIProvider) PrepareRequest(req *Request) ([]byte, error) {
	messages := make([]openAIMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	reqJSON, err := json.Marshal(body)
	if err != nil {
		p.logger.Error("Failed to marshal request", "error", err)
		return nil, err
	}
	p.logger.Debug("Request prepared", "model", req.Model, "bytes", len(reqJSON))
	return reqJSON, nil
}

// ParseResponse parses the API response
func (p *OpenAIProvider) ParseResponse(body []byte) (string, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return response.Choices[0].Message.Content, nil
}
