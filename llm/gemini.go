package llm

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// GeminiGenerator generates text with the Gemini API through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
}

// NewGeminiGenerator creates a Gemini API client authenticated with apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewLLMError(ErrorTypeProvider, "failed to init genai client", err)
	}
	return &GeminiGenerator{client: client}, nil
}

// NewGeminiGeneratorFromClient wraps an existing client.
func NewGeminiGeneratorFromClient(c *genai.Client) *GeminiGenerator {
	return &GeminiGenerator{client: c}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := Validate(&req); err != nil {
		return "", NewLLMError(ErrorTypeInvalidInput, "invalid generation request", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.UserText), cfg)
	if err != nil {
		return "", geminiError(err)
	}
	text := resp.Text()
	if text == "" {
		return "", NewLLMError(ErrorTypeResponse, "empty response from Gemini", nil)
	}
	return text, nil
}

func geminiError(err error) *LLMError {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return NewLLMError(ErrorTypeRequest, "gemini request failed", err)
	}
	e := statusError(apiErr.Code)
	e.Err = err
	if apiErr.Code == http.StatusOK || apiErr.Code == 0 {
		e.Type = ErrorTypeProvider
	}
	return e
}
