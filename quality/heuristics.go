package quality

import (
	"regexp"
	"strings"
)

const (
	seedScore = 5.0
	minScore  = 1.0
	maxScore  = 10.0

	paragraphBreak = "\n\n"
)

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	digitPattern  = regexp.MustCompile(`\d+`)
	datePattern   = regexp.MustCompile(`\d{4}|\d{1,2}/\d{1,2}|\d{1,2}-\d{1,2}`)
	properNoun    = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	listLine      = regexp.MustCompile(`(?m)^\s*[-*•]\s|^\s*\d+\.`)

	clarityWords   = []string{"clearly", "specifically", "precisely", "exactly", "in detail"}
	ambiguityWords = []string{"maybe", "perhaps", "possibly", "might", "could", "somehow"}
	precisionWords = []string{"exactly", "precisely", "specifically", "in particular"}
	vagueWords     = []string{"thing", "stuff", "something", "anything", "everything", "nothing"}
	connectorWords = []string{"because", "therefore", "however", "although", "furthermore", "additionally"}
	actionVerbs    = []string{"create", "generate", "write", "analyze", "explain", "describe", "compare"}
)

// Clarity scores length, sentence length and wording.
func Clarity(text string) float64 {
	score := seedScore
	lower := strings.ToLower(text)

	words := len(strings.Fields(text))
	switch {
	case words >= 10 && words <= 100:
		score += 1.0
	case words < 10:
		score -= 1.0
	case words > 200:
		score -= 0.5
	}

	avg := averageSentenceLength(text)
	switch {
	case avg >= 5 && avg <= 20:
		score += 0.5
	case avg > 30:
		score -= 0.5
	}

	score += capped(countContained(lower, clarityWords), 0.3, 1.0)
	score -= capped(countContained(lower, ambiguityWords), 0.2, 1.0)
	return clamp(score)
}

// Specificity rewards concrete details and penalises vague terms.
func Specificity(text string) float64 {
	score := seedScore
	lower := strings.ToLower(text)

	signals := 0
	if digitPattern.MatchString(text) {
		signals++
	}
	if datePattern.MatchString(text) {
		signals++
	}
	if properNoun.MatchString(text) {
		signals++
	}
	if countContained(lower, precisionWords) > 0 {
		signals++
	}
	score += capped(signals, 0.5, 2.0)
	score -= capped(countContained(lower, vagueWords), 0.3, 1.5)
	return clamp(score)
}

// Structure scores paragraphs, lists, connectors, questions and action verbs.
func Structure(text string) float64 {
	score := seedScore
	lower := strings.ToLower(text)

	if p := paragraphCount(text); p >= 1 && p <= 3 {
		score += 0.5
	}
	if listLine.MatchString(text) {
		score += 0.5
	}
	score += capped(countContained(lower, connectorWords), 0.2, 1.0)
	if strings.Contains(text, "?") {
		score += 0.3
	}
	score += capped(countContained(lower, actionVerbs), 0.2, 1.0)
	return clamp(score)
}

// Breakdown is the raw signal set behind the heuristic scores.
type Breakdown struct {
	WordCount         int     `json:"word_count"`
	SentenceCount     int     `json:"sentence_count"`
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	ParagraphCount    int     `json:"paragraph_count"`
	HasNumbers        bool    `json:"has_numbers"`
	HasDates          bool    `json:"has_dates"`
	ProperNouns       int     `json:"proper_nouns"`
	HasQuestions      bool    `json:"has_questions"`
	HasLists          bool    `json:"has_lists"`
}

func Analyze(text string) Breakdown {
	sentences := sentenceSplit.Split(text, -1)
	words := len(strings.Fields(text))
	b := Breakdown{
		WordCount:      words,
		SentenceCount:  len(sentences),
		ParagraphCount: paragraphCount(text),
		HasNumbers:     digitPattern.MatchString(text),
		HasDates:       datePattern.MatchString(text),
		ProperNouns:    len(properNoun.FindAllString(text, -1)),
		HasQuestions:   strings.Contains(text, "?"),
		HasLists:       listLine.MatchString(text),
	}
	if text != "" {
		b.AvgSentenceLength = float64(words) / float64(len(sentences))
	}
	return b
}

// averageSentenceLength splits on runs of sentence punctuation, keeping empty
// trailing segments in the denominator.
func averageSentenceLength(text string) float64 {
	sentences := sentenceSplit.Split(text, -1)
	if len(sentences) == 0 {
		return 0
	}
	total := 0
	for _, s := range sentences {
		total += len(strings.Fields(s))
	}
	return float64(total) / float64(len(sentences))
}

func paragraphCount(text string) int {
	return len(strings.Split(text, paragraphBreak))
}

// countContained counts the keywords that occur as substrings of lower.
func countContained(lower string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

func capped(count int, weight, limit float64) float64 {
	return min(float64(count)*weight, limit)
}

func clamp(v float64) float64 {
	return max(minScore, min(maxScore, v))
}
