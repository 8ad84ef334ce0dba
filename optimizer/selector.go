package optimizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/promptopt/llm"
)

const (
	transformMaxTokens   = 2000
	transformTemperature = 0.7
)

// Selector turns a kind into one text-generation call.
type Selector struct {
	gen          llm.Generator
	defaultModel string
}

func NewSelector(gen llm.Generator, defaultModel string) *Selector {
	return &Selector{gen: gen, defaultModel: defaultModel}
}

// Transform rewrites text with the strategy for kind. It makes exactly one
// capability call and does not retry.
func (s *Selector) Transform(ctx context.Context, kind Kind, text string, p Params) (string, error) {
	if p.TargetModel == "" {
		p.TargetModel = s.defaultModel
	}
	instruction, err := BuildInstruction(kind, p)
	if err != nil {
		return "", err
	}
	out, err := s.gen.Generate(ctx, llm.Request{
		SystemInstruction: instruction,
		UserText:          text,
		Model:             p.TargetModel,
		MaxOutputTokens:   transformMaxTokens,
		Temperature:       transformTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("transform %s: %w", kind, err)
	}
	return strings.TrimSpace(out), nil
}
