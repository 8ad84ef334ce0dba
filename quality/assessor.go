// Package quality scores prompts by blending local heuristics with an external
// judgment. Assessment always completes: a failed judgment degrades to a neutral
// score and is reported as an annotation.
package quality

import (
	"context"
	"math"
	"strings"

	"github.com/teilomillet/promptopt/utils"
)

const (
	neutralJudgment = 5.0

	weightExternal    = 0.40
	weightClarity     = 0.25
	weightSpecificity = 0.20
	weightStructure   = 0.15
)

// Score is a blended quality score. Every value lies in [1,10].
type Score struct {
	Overall       float64   `json:"overall"`
	Clarity       float64   `json:"clarity"`
	Specificity   float64   `json:"specificity"`
	Structure     float64   `json:"structure"`
	External      float64   `json:"external"`
	Judgment      *Judgment `json:"ai_assessment,omitempty"`
	JudgmentError string    `json:"judgment_error,omitempty"`
}

type Assessor struct {
	judge  Judge
	logger utils.Logger
}

// NewAssessor creates an Assessor. A nil judge is allowed; every assessment then
// carries an ErrNoJudge annotation.
func NewAssessor(judge Judge, logger utils.Logger) *Assessor {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Assessor{judge: judge, logger: logger}
}

func (a *Assessor) Assess(ctx context.Context, text string) Score {
	clarity := Clarity(text)
	specificity := Specificity(text)
	structure := Structure(text)

	external := neutralJudgment
	score := Score{}
	jd, err := a.externalJudgment(ctx, text)
	if err != nil {
		a.logger.Warn("Quality judgment failed, using neutral score", "error", err)
		score.JudgmentError = err.Error()
	} else {
		external = jd.Overall
		score.Judgment = jd
	}

	score.Overall = round2(Blend(external, clarity, specificity, structure))
	score.Clarity = round2(clarity)
	score.Specificity = round2(specificity)
	score.Structure = round2(structure)
	score.External = round2(external)
	return score
}

func (a *Assessor) externalJudgment(ctx context.Context, text string) (jd *Judgment, err error) {
	if a.judge == nil {
		return nil, ErrNoJudge
	}
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyText
	}
	defer func() {
		if r := recover(); r != nil {
			jd, err = nil, &judgePanic{value: r}
		}
	}()
	jd, err = a.judge.Judge(ctx, text)
	if err == nil && jd == nil {
		err = errNoJudgment
	}
	return jd, err
}

// Blend applies the fixed weights and clamps the result to [1,10].
func Blend(external, clarity, specificity, structure float64) float64 {
	return clamp(external*weightExternal +
		clarity*weightClarity +
		specificity*weightSpecificity +
		structure*weightStructure)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
