package score

import (
	"fmt"

	"github.com/langexam/grader/internal/model"
)

// FallbackModel is the ModelUsed value for rule-based evaluations.
const FallbackModel = "rule-based"

// Fallback produces a deterministic evaluation when no backend is
// reachable. Pure function of the answer set and exam type: no randomness,
// no I/O. The tiers reuse the same length thresholds as the heuristic score
// so the narrative and the number stay consistent.
func Fallback(req model.GradingRequest) model.GradeOutcome {
	summary, feedback := fallbackNarrative(req)
	return model.GradeOutcome{
		Summary:      summary,
		Feedback:     feedback,
		Score:        Estimate(req.ExamType, req.Answers, summary, feedback),
		ProviderUsed: model.ProviderFallback,
		ModelUsed:    FallbackModel,
	}
}

func fallbackNarrative(req model.GradingRequest) (summary, feedback string) {
	n := len(req.Answers)
	notice := "This evaluation was produced by an automated rule-based process because no AI grading backend was available; a reviewer should verify it."

	if n == 0 {
		summary = "No answers were submitted for this exam, so no performance could be assessed. " + notice
		feedback = "Submit a response to every task. An empty submission cannot demonstrate any of the assessed skills."
		return summary, feedback
	}

	var tier string
	if req.ExamType == model.ExamSpeaking {
		switch chars := model.TotalChars(req.Answers); {
		case chars < 250:
			tier = "The combined transcripts are extremely short, indicating insufficient content to assess speaking ability."
		case chars < 750:
			tier = "The combined transcripts are on the short side; the responses show limited development of ideas."
		default:
			tier = "The transcripts show a substantial amount of spoken content across the questions."
		}
	} else {
		switch words := model.TotalWords(req.Answers); {
		case words < 50:
			tier = fmt.Sprintf("With only %d words in total the submission is severely insufficient for a written exam.", words)
		case words < 150:
			tier = fmt.Sprintf("At %d words in total the submission is below the expected length for the tasks.", words)
		default:
			tier = "The submission is of substantial length across the tasks."
		}
	}

	summary = fmt.Sprintf("%s answered %d of the exam's tasks. %s %s",
		displayName(req.StudentName), n, tier, notice)

	feedback = "Strengths and weaknesses could not be analyzed in detail without an AI backend.\n" +
		"General guidance: address every part of each task, develop each idea with examples, " +
		"and aim for the expected response length."
	return summary, feedback
}

func displayName(name string) string {
	if name == "" {
		return "The student"
	}
	return name
}
