package prompt

import (
	"fmt"
	"strings"

	"github.com/langexam/grader/internal/model"
)

// noAnswersSentinel replaces the answers placeholder when a request carries
// no answers at all.
const noAnswersSentinel = "[no answers available]"

// RenderTemplate substitutes the known placeholders in a custom grading
// template. Substitution is global and case-sensitive; both camelCase and
// snake_case spellings are recognized. Unknown placeholders are left
// untouched rather than treated as errors, so template authors can embed
// literal braces.
func RenderTemplate(tmpl string, req model.GradingRequest) string {
	answers := formatTemplateAnswers(req.Answers)

	r := strings.NewReplacer(
		"{studentName}", req.StudentName,
		"{student_name}", req.StudentName,
		"{examTitle}", req.ExamTitle,
		"{exam_title}", req.ExamTitle,
		"{examDescription}", req.ExamDescription,
		"{exam_description}", req.ExamDescription,
		"{examType}", string(req.ExamType),
		"{exam_type}", string(req.ExamType),
		"{answers}", answers,
	)
	return r.Replace(tmpl)
}

func formatTemplateAnswers(answers []model.Answer) string {
	if len(answers) == 0 {
		return noAnswersSentinel
	}
	var sb strings.Builder
	for i, a := range answers {
		label := a.QuestionLabel
		if label == "" {
			label = fmt.Sprintf("Question %d", i+1)
		}
		fmt.Fprintf(&sb, "Q%d: %s\nA%d: %s\n", i+1, label, i+1, sanitize(a.AnswerText))
	}
	return strings.TrimRight(sb.String(), "\n")
}
