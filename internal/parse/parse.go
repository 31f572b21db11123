// Package parse extracts structured evaluation fields from free-form model
// output. Backends have emitted several response formats over time; the
// parser tries each in priority order and never fails — fidelity degrades
// instead.
package parse

import "strings"

// Section labels the prompt instructs backends to emit.
const (
	labelOverall         = "OVERALL_PERFORMANCE:"
	labelCriterionScores = "CRITERION_SCORES:"
	labelStrengths       = "STRENGTHS:"
	labelImprovements    = "AREAS_FOR_IMPROVEMENT:"
	labelRecommendations = "ACTIONABLE_RECOMMENDATIONS:"

	// Legacy format labels.
	labelSummary  = "SUMMARY:"
	labelFeedback = "DETAILED_FEEDBACK:"
)

var knownLabels = []string{
	labelOverall,
	labelCriterionScores,
	labelStrengths,
	labelImprovements,
	labelRecommendations,
	labelSummary,
	labelFeedback,
}

// Result holds the extracted evaluation fields. Either field may be empty;
// a response where both are empty is an invalid response and the caller
// must fall back at the provider level.
type Result struct {
	Summary  string
	Feedback string
}

// Empty reports whether parsing recovered nothing usable.
func (r Result) Empty() bool {
	return r.Summary == "" && r.Feedback == ""
}

// Parse extracts summary and feedback from raw backend text, trying the
// current labeled format, then the legacy format, then a half-split of the
// raw text by line count.
func Parse(raw string) Result {
	if r, ok := parseLabeled(raw); ok {
		return r
	}
	if r, ok := parseLegacy(raw); ok {
		return r
	}
	return halfSplit(raw)
}

func parseLabeled(raw string) (Result, bool) {
	if !strings.Contains(raw, labelOverall) {
		return Result{}, false
	}

	summary := section(raw, labelOverall)

	var feedback []string
	if s := section(raw, labelStrengths); s != "" {
		feedback = append(feedback, "Strengths:\n"+s)
	}
	if s := section(raw, labelImprovements); s != "" {
		feedback = append(feedback, "Areas for improvement:\n"+s)
	}
	if s := section(raw, labelRecommendations); s != "" {
		feedback = append(feedback, "Recommendations:\n"+s)
	}

	return Result{
		Summary:  summary,
		Feedback: strings.Join(feedback, "\n\n"),
	}, true
}

func parseLegacy(raw string) (Result, bool) {
	if !strings.Contains(raw, labelSummary) && !strings.Contains(raw, labelFeedback) {
		return Result{}, false
	}
	return Result{
		Summary:  section(raw, labelSummary),
		Feedback: section(raw, labelFeedback),
	}, true
}

// section returns the trimmed text between a label and the next known
// label, or the rest of the input when no label follows.
func section(raw, label string) string {
	start := strings.Index(raw, label)
	if start < 0 {
		return ""
	}
	body := raw[start+len(label):]

	end := len(body)
	for _, other := range knownLabels {
		if other == label {
			continue
		}
		if i := strings.Index(body, other); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(body[:end])
}

// halfSplit divides the raw text in half by line count: the first half
// becomes the summary, the second the feedback. Together the two halves
// preserve every line of the input.
func halfSplit(raw string) Result {
	lines := strings.Split(raw, "\n")
	half := (len(lines) + 1) / 2
	return Result{
		Summary:  strings.TrimSpace(strings.Join(lines[:half], "\n")),
		Feedback: strings.TrimSpace(strings.Join(lines[half:], "\n")),
	}
}
