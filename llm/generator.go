// Package llm provides the text-generation capability used by the optimizer and
// the quality judge, with HTTP and Gemini SDK backends routed by model name.
package llm

import "context"

// Request is one text-generation call.
type Request struct {
	SystemInstruction string
	UserText          string  `validate:"required"`
	Model             string  `validate:"required"`
	MaxOutputTokens   int     `validate:"min=0"`
	Temperature       float64 `validate:"gte=0,lte=2"`
}

// Generator produces text for a request. Implementations do not retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
