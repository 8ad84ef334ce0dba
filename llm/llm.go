package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/teilomillet/promptopt/providers"
	"github.com/teilomillet/promptopt/utils"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of a failed response body is kept in logs.
const maxErrorBody = 512

// Client generates text through an HTTP provider. It performs exactly one
// request per call; redelivery is the task executor's job.
type Client struct {
	provider providers.Provider
	client   *http.Client
	limiter  *rate.Limiter
	logger   utils.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithRateLimit allows at most perMinute requests per minute. Zero disables it.
func WithRateLimit(perMinute int) ClientOption {
	return func(cl *Client) {
		if perMinute <= 0 {
			cl.limiter = nil
			return
		}
		cl.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
}

func WithClientLogger(logger utils.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func NewClient(provider providers.Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		client:   &http.Client{Timeout: 2 * time.Minute},
		logger:   utils.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	provider.SetLogger(c.logger)
	return c
}

// Generate sends one request to the provider.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if err := Validate(&req); err != nil {
		return "", NewLLMError(ErrorTypeInvalidInput, "invalid generation request", err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", NewLLMError(ErrorTypeRequest, "rate limiter wait", err)
		}
	}

	body, err := c.provider.PrepareRequest(&providers.Request{
		Model:        req.Model,
		SystemPrompt: req.SystemInstruction,
		Prompt:       req.UserText,
		MaxTokens:    req.MaxOutputTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		return "", NewLLMError(ErrorTypeRequest, "failed to prepare request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.provider.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", NewLLMError(ErrorTypeRequest, "failed to create request", err)
	}
	for k, v := range c.provider.Headers() {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("Generating text", "provider", c.provider.Name(), "model", req.Model)
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", NewLLMError(ErrorTypeRequest, "failed to send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewLLMError(ErrorTypeResponse, "failed to read response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		llmErr := statusError(resp.StatusCode)
		c.logger.Error("API error", append(llmErr.LoggableFields(), "provider", c.provider.Name(), "body", truncate(respBody))...)
		return "", llmErr
	}

	text, err := c.provider.ParseResponse(respBody)
	if err != nil {
		return "", NewLLMError(ErrorTypeResponse, "failed to parse response", err)
	}
	return text, nil
}

func statusError(code int) *LLMError {
	var errType ErrorType
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		errType = ErrorTypeAuthentication
	case code == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
	case code >= 500:
		errType = ErrorTypeAPI
	case code >= 400:
		errType = ErrorTypeInvalidInput
	default:
		errType = ErrorTypeResponse
	}
	e := NewLLMError(errType, fmt.Sprintf("API error: status code %d", code), nil)
	e.StatusCode = code
	return e
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
