package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLLMError(t *testing.T) {
	testCases := []struct {
		name          string
		errType       ErrorType
		message       string
		underlyingErr error
		expectedStr   string
	}{
		{
			name:          "Provider error with underlying error",
			errType:       ErrorTypeProvider,
			message:       "Failed to connect",
			underlyingErr: errors.New("connection refused"),
			expectedStr:   "ProviderError (Failed to connect): connection refused",
		},
		{
			name:        "API error without underlying error",
			errType:     ErrorTypeAPI,
			message:     "status 503",
			expectedStr: "APIError: status 503",
		},
		{
			name:        "Capability unavailable",
			errType:     ErrorTypeCapabilityUnavailable,
			message:     "no key",
			expectedStr: "CapabilityUnavailableError: no key",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			llmErr := NewLLMError(tc.errType, tc.message, tc.underlyingErr)

			assert.Equal(t, tc.errType, llmErr.Type)
			assert.Equal(t, tc.expectedStr, llmErr.Error())
			if tc.underlyingErr != nil {
				assert.Equal(t, tc.underlyingErr, errors.Unwrap(llmErr))
			}

			fields := llmErr.LoggableFields()
			assert.Len(t, fields, 6)
			assert.Equal(t, "error_type", fields[0])
			assert.Equal(t, llmErr.TypeString(), fields[1])
		})
	}
}

func TestErrCapabilityUnavailable(t *testing.T) {
	err := fmt.Errorf("transform: %w", Unavailable("google", "GEMINI_API_KEY not set"))
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.NotErrorIs(t, NewLLMError(ErrorTypeAPI, "x", nil), ErrCapabilityUnavailable)
}

func TestIsRetryable(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", NewLLMError(ErrorTypeRateLimit, "429", nil), true},
		{"server error", NewLLMError(ErrorTypeAPI, "502", nil), true},
		{"provider", NewLLMError(ErrorTypeProvider, "sdk", nil), true},
		{"network", NewLLMError(ErrorTypeRequest, "send", errors.New("connection reset")), true},
		{"deadline", NewLLMError(ErrorTypeRequest, "send", context.DeadlineExceeded), true},
		{"cancelled", NewLLMError(ErrorTypeRequest, "send", context.Canceled), false},
		{"auth", NewLLMError(ErrorTypeAuthentication, "401", nil), false},
		{"invalid input", NewLLMError(ErrorTypeInvalidInput, "400", nil), false},
		{"unavailable", Unavailable("openai", "no key"), false},
		{"wrapped", fmt.Errorf("stage: %w", NewLLMError(ErrorTypeRateLimit, "429", nil)), true},
		{"plain", errors.New("other"), false},
		{"nil", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}
