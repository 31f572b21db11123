package prompt

import (
	"strings"
	"testing"

	"github.com/langexam/grader/internal/model"
)

func TestRenderTemplate(t *testing.T) {
	req := model.GradingRequest{
		StudentName: "Jane",
		ExamTitle:   "Essay Exam",
		ExamType:    model.ExamWriting,
		Answers: []model.Answer{
			{QuestionLabel: "Describe a book", AnswerText: "It was about the sea."},
		},
	}

	tmpl := "Grade {studentName} on {examTitle} ({examType}):\n{answers}"
	got := RenderTemplate(tmpl, req)

	if !strings.Contains(got, "Jane") {
		t.Error("rendered template should contain the student name")
	}
	if !strings.Contains(got, "Essay Exam") || !strings.Contains(got, "WRITING") {
		t.Error("rendered template should contain exam metadata")
	}
	if n := strings.Count(got, "Describe a book"); n != 1 {
		t.Errorf("answer block should appear exactly once, appeared %d times", n)
	}
	if strings.ContainsAny(got, "{}") {
		t.Errorf("rendered template should have no unresolved placeholders: %q", got)
	}
}

func TestRenderTemplateSnakeCaseAliases(t *testing.T) {
	req := model.GradingRequest{StudentName: "Bo", ExamTitle: "Oral", ExamType: model.ExamSpeaking}
	got := RenderTemplate("{student_name} / {exam_title} / {exam_type}", req)
	if got != "Bo / Oral / SPEAKING" {
		t.Errorf("snake_case substitution failed: %q", got)
	}
}

func TestRenderTemplateGlobalSubstitution(t *testing.T) {
	req := model.GradingRequest{StudentName: "Sam"}
	got := RenderTemplate("{studentName} and again {studentName}", req)
	if got != "Sam and again Sam" {
		t.Errorf("substitution must be global: %q", got)
	}
}

func TestRenderTemplateUnknownPlaceholderUntouched(t *testing.T) {
	req := model.GradingRequest{StudentName: "Sam"}
	got := RenderTemplate("{studentName} {mystery}", req)
	if !strings.Contains(got, "{mystery}") {
		t.Errorf("unknown placeholders must be left untouched: %q", got)
	}
}

func TestRenderTemplateNoAnswersSentinel(t *testing.T) {
	got := RenderTemplate("answers: {answers}", model.GradingRequest{})
	if !strings.Contains(got, noAnswersSentinel) {
		t.Errorf("empty answer set should substitute the sentinel, got %q", got)
	}
}
