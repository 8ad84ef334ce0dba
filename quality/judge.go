package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/teilomillet/promptopt/llm"
)

const (
	judgeTemperature = 0.3
	judgeMaxTokens   = 500
)

// Judgment is the structured reply expected from the judging model.
type Judgment struct {
	Overall     float64 `json:"overall" jsonschema:"minimum=1,maximum=10,description=Overall quality of the prompt" validate:"gte=1,lte=10"`
	Clarity     float64 `json:"clarity,omitempty" jsonschema:"minimum=1,maximum=10" validate:"omitempty,gte=1,lte=10"`
	Specificity float64 `json:"specificity,omitempty" jsonschema:"minimum=1,maximum=10" validate:"omitempty,gte=1,lte=10"`
}

// Judge obtains an external quality judgment for a prompt.
type Judge interface {
	Judge(ctx context.Context, text string) (*Judgment, error)
}

// LLMJudge asks a text-generation model to rate a prompt.
type LLMJudge struct {
	gen         llm.Generator
	model       string
	timeout     time.Duration
	instruction string
}

// NewLLMJudge builds a judge that calls model through gen. A zero timeout
// leaves the call bounded only by the caller's context.
func NewLLMJudge(gen llm.Generator, model string, timeout time.Duration) *LLMJudge {
	return &LLMJudge{
		gen:         gen,
		model:       model,
		timeout:     timeout,
		instruction: judgeInstruction(),
	}
}

func judgeInstruction() string {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema, err := json.Marshal(r.Reflect(&Judgment{}))
	if err != nil {
		panic(fmt.Sprintf("quality: judgment schema: %v", err))
	}
	return "Analyze the quality of this prompt. Consider clarity, specificity, and effectiveness. " +
		"Reply with only a JSON object scoring each dimension from 1 to 10 that matches this schema:\n" +
		string(schema)
}

func (j *LLMJudge) Judge(ctx context.Context, text string) (*Judgment, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	reply, err := j.gen.Generate(ctx, llm.Request{
		SystemInstruction: j.instruction,
		UserText:          text,
		Model:             j.model,
		MaxOutputTokens:   judgeMaxTokens,
		Temperature:       judgeTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("judgment call: %w", err)
	}
	return ParseJudgment(reply)
}

// ParseJudgment decodes and range-checks a judge reply.
func ParseJudgment(reply string) (*Judgment, error) {
	var jd Judgment
	if err := json.Unmarshal([]byte(llm.CleanJSONResponse(reply)), &jd); err != nil {
		return nil, fmt.Errorf("parse judgment: %w", err)
	}
	if err := llm.Validate(&jd); err != nil {
		return nil, fmt.Errorf("invalid judgment: %w", err)
	}
	return &jd, nil
}
