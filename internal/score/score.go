// Package score derives a numeric grade from parsed feedback text plus
// objective length signals. Backends are not trusted to emit a consistent
// numeric score across providers, so the number is always computed here.
package score

import (
	"strings"

	"github.com/langexam/grader/internal/model"
)

// Declared score range. Historically two ranges existed (0-75 and 0-100);
// this implementation standardizes on 0-100.
const (
	Min = 0
	Max = 100
)

const base = 50

// negativeIndicators in the narrative each trigger a single -20 adjustment.
var negativeIndicators = []string{
	"off-topic",
	"off topic",
	"insufficient content",
	"severely insufficient",
	"too short",
	"did not address",
	"does not address",
	"no answer provided",
	"incomprehensible",
	"lacks coherence",
}

// positiveIndicators each trigger a single +15 adjustment.
var positiveIndicators = []string{
	"excellent",
	"comprehensive",
	"outstanding",
	"well-structured",
	"well structured",
	"strong command",
	"highly articulate",
}

// Estimate computes the heuristic score for an evaluation narrative.
// The result always lies within [Min, Max].
func Estimate(examType model.ExamType, answers []model.Answer, summary, feedback string) int {
	text := strings.ToLower(summary + "\n" + feedback)

	s := base
	negative := containsAny(text, negativeIndicators)
	if negative {
		s -= 20
	}
	if containsAny(text, positiveIndicators) {
		s += 15
	}

	if examType == model.ExamSpeaking {
		s += charCountAdjustment(model.TotalChars(answers))
	} else {
		s += wordCountAdjustment(model.TotalWords(answers))
	}

	if len(answers) < 2 {
		s -= 15
	}
	if len(answers) >= 3 && !negative {
		s += 5
	}

	return clamp(s)
}

// wordCountAdjustment steps from a severe penalty for near-empty written
// submissions to a bonus for well-developed ones.
func wordCountAdjustment(words int) int {
	switch {
	case words < 30:
		return -35
	case words < 50:
		return -25
	case words < 100:
		return -15
	case words < 150:
		return -5
	case words >= 400:
		return 10
	default:
		return 0
	}
}

// charCountAdjustment is the speaking-exam analogue, keyed to total
// transcript length in characters.
func charCountAdjustment(chars int) int {
	switch {
	case chars < 150:
		return -35
	case chars < 250:
		return -25
	case chars < 500:
		return -15
	case chars < 750:
		return -5
	case chars >= 2000:
		return 10
	default:
		return 0
	}
}

func containsAny(text string, indicators []string) bool {
	for _, ind := range indicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}

func clamp(s int) int {
	if s < Min {
		return Min
	}
	if s > Max {
		return Max
	}
	return s
}
