package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the type of an error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeProvider
	ErrorTypeRequest
	ErrorTypeResponse
	ErrorTypeAPI
	ErrorTypeRateLimit
	ErrorTypeAuthentication
	ErrorTypeInvalidInput
	ErrorTypeCapabilityUnavailable
)

// ErrCapabilityUnavailable is matched by errors.Is for every
// ErrorTypeCapabilityUnavailable error.
var ErrCapabilityUnavailable = errors.New("text generation capability unavailable")

// LLMError represents an error in the LLM package
type LLMError struct {
	Type       ErrorType
	Message    string
	Err        error
	StatusCode int
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.TypeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.TypeString(), e.Message)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

func (e *LLMError) Is(target error) bool {
	return target == ErrCapabilityUnavailable && e.Type == ErrorTypeCapabilityUnavailable
}

func (e *LLMError) TypeString() string {
	switch e.Type {
	case ErrorTypeProvider:
		return "ProviderError"
	case ErrorTypeRequest:
		return "RequestError"
	case ErrorTypeResponse:
		return "ResponseError"
	case ErrorTypeAPI:
		return "APIError"
	case ErrorTypeRateLimit:
		return "RateLimitError"
	case ErrorTypeAuthentication:
		return "AuthenticationError"
	case ErrorTypeInvalidInput:
		return "InvalidInputError"
	case ErrorTypeCapabilityUnavailable:
		return "CapabilityUnavailableError"
	default:
		return "UnknownError"
	}
}

// LoggableFields returns key-value pairs for structured logging.
func (e *LLMError) LoggableFields() []any {
	return []any{"error_type", e.TypeString(), "message", e.Message, "status", e.StatusCode}
}

// NewLLMError creates a new LLMError
func NewLLMError(errType ErrorType, message string, err error) *LLMError {
	return &LLMError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Unavailable reports a provider that is not configured.
func Unavailable(provider, reason string) *LLMError {
	return NewLLMError(ErrorTypeCapabilityUnavailable, fmt.Sprintf("provider %q: %s", provider, reason), nil)
}

// IsRetryable reports whether err is a transient provider failure worth
// redelivering: rate limits, 5xx responses, network errors and timeouts of the
// call itself. Authentication, invalid input and missing capabilities are final.
func IsRetryable(err error) bool {
	var llmErr *LLMError
	if !errors.As(err, &llmErr) {
		return false
	}
	switch llmErr.Type {
	case ErrorTypeRateLimit, ErrorTypeAPI, ErrorTypeProvider:
		return true
	case ErrorTypeRequest:
		// A cancelled caller is not a transient provider failure.
		return !errors.Is(llmErr.Err, context.Canceled)
	default:
		return false
	}
}
