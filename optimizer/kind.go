// Package optimizer rewrites prompts along one optimization axis and records
// the token, cost and quality effect of each rewrite.
package optimizer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/teilomillet/promptopt/catalog"
)

// Kind is the transformation strategy of a run.
type Kind string

const (
	TokenReduction     Kind = "token_reduction"
	QualityEnhancement Kind = "quality_enhancement"
	ClarityImprovement Kind = "clarity_improvement"
	ModelAdaptation    Kind = "model_adaptation"
)

const (
	DefaultReductionTarget  = 0.4
	DefaultQualityThreshold = 8.0
)

var ErrInvalidOptimizationKind = errors.New("invalid optimization kind")

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{TokenReduction, QualityEnhancement, ClarityImprovement, ModelAdaptation}
}

// ParseKind accepts exactly the supported kind names.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(s))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOptimizationKind, s)
}

// Params tune the instruction. Zero values take the defaults.
type Params struct {
	ReductionTarget  float64
	QualityThreshold float64
	TargetModel      string
}

func (p Params) withDefaults() Params {
	if p.ReductionTarget == 0 {
		p.ReductionTarget = DefaultReductionTarget
	}
	if p.QualityThreshold == 0 {
		p.QualityThreshold = DefaultQualityThreshold
	}
	if p.TargetModel == "" {
		p.TargetModel = catalog.DefaultModel
	}
	return p
}

var instructionFuncs = template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
}

var instructions = map[Kind]*template.Template{
	TokenReduction: template.Must(template.New("token_reduction").Funcs(instructionFuncs).Parse(
		`You are an expert at optimizing prompts to reduce token usage while maintaining effectiveness.
Reduce the token count by approximately {{percent .ReductionTarget}} while preserving the core meaning and intent.

Guidelines:
- Remove redundant words and phrases
- Use more concise language
- Maintain clarity and specificity
- Preserve all essential information
- Use abbreviations where appropriate

Return only the optimized prompt, no explanations.`)),

	QualityEnhancement: template.Must(template.New("quality_enhancement").Parse(
		`You are an expert at improving prompt quality and effectiveness.
Enhance the prompt to achieve a quality score of at least {{printf "%.1f" .QualityThreshold}}/10.

Focus on:
- Clarity and precision
- Specificity and context
- Logical structure
- Actionable instructions
- Appropriate tone and style

Return only the enhanced prompt, no explanations.`)),

	ClarityImprovement: template.Must(template.New("clarity_improvement").Parse(
		`You are an expert at improving prompt clarity and understandability.
Make the prompt clearer, more specific, and easier to understand.

Focus on:
- Clear and unambiguous language
- Specific instructions and requirements
- Logical flow and structure
- Removing ambiguity
- Adding context where needed

Return only the improved prompt, no explanations.`)),

	ModelAdaptation: template.Must(template.New("model_adaptation").Parse(
		`You are an expert at adapting prompts for different AI models.
Adapt this prompt specifically for {{.TargetModel}} to maximize effectiveness.

Consider:
- Model-specific capabilities and limitations
- Optimal prompt structure for this model
- Model-specific best practices
- Token efficiency for this model

Return only the adapted prompt, no explanations.`)),
}

// BuildInstruction renders the system instruction for kind.
func BuildInstruction(kind Kind, p Params) (string, error) {
	tmpl, ok := instructions[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidOptimizationKind, kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p.withDefaults()); err != nil {
		return "", fmt.Errorf("render %s instruction: %w", kind, err)
	}
	return buf.String(), nil
}
