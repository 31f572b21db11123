package orchestrator

import (
	"strings"
	"testing"

	"github.com/langexam/grader/internal/model"
	"github.com/langexam/grader/internal/prompt"
)

func answerOfChars(label string, chars int) model.Answer {
	return model.Answer{QuestionLabel: label, AnswerText: strings.Repeat("x", chars)}
}

func TestPartitionPreservesOrder(t *testing.T) {
	answers := []model.Answer{
		answerOfChars("a", 1200),
		answerOfChars("b", 1200),
		answerOfChars("c", 1200),
		answerOfChars("d", 1200),
		answerOfChars("e", 1200),
	}
	chunks := partition(answers, 700)

	// Concatenating the chunks' answers in order must reproduce the
	// original list.
	var flat []model.Answer
	var flatIdx []int
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		flat = append(flat, c.Answers...)
		flatIdx = append(flatIdx, c.QuestionIndices...)
	}
	if len(flat) != len(answers) {
		t.Fatalf("flattened %d answers, want %d", len(flat), len(answers))
	}
	for i := range answers {
		if flat[i].QuestionLabel != answers[i].QuestionLabel {
			t.Errorf("position %d: got %q, want %q", i, flat[i].QuestionLabel, answers[i].QuestionLabel)
		}
		if flatIdx[i] != i {
			t.Errorf("question index at %d = %d", i, flatIdx[i])
		}
	}
}

func TestPartitionRespectsBudget(t *testing.T) {
	answers := []model.Answer{
		answerOfChars("a", 400),
		answerOfChars("b", 400),
		answerOfChars("c", 400),
		answerOfChars("d", 400),
		answerOfChars("e", 400),
		answerOfChars("f", 400),
	}
	budget := 300
	chunks := partition(answers, budget)

	for _, c := range chunks {
		sum := 0
		for _, a := range c.Answers {
			sum += prompt.AnswerCost(a.AnswerText)
		}
		if sum > budget && len(c.Answers) > 1 {
			t.Errorf("chunk %d cost %d exceeds budget %d with %d answers", c.Index, sum, budget, len(c.Answers))
		}
	}
}

func TestPartitionOversizedAnswerIsSingleton(t *testing.T) {
	answers := []model.Answer{
		answerOfChars("small1", 100),
		answerOfChars("huge", 40000),
		answerOfChars("small2", 100),
	}
	chunks := partition(answers, 500)

	found := false
	for _, c := range chunks {
		for _, a := range c.Answers {
			if a.QuestionLabel == "huge" {
				found = true
				if len(c.Answers) != 1 {
					t.Errorf("oversized answer must be a singleton chunk, got %d answers", len(c.Answers))
				}
			}
		}
	}
	if !found {
		t.Fatal("oversized answer missing from partition")
	}
}

func TestPartitionSingleChunkWhenFitting(t *testing.T) {
	answers := []model.Answer{
		answerOfChars("a", 100),
		answerOfChars("b", 100),
	}
	chunks := partition(answers, 10000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if len(chunks[0].Answers) != 2 {
		t.Errorf("single chunk should hold both answers, got %d", len(chunks[0].Answers))
	}
}

func TestPartitionEmpty(t *testing.T) {
	if chunks := partition(nil, 1000); len(chunks) != 0 {
		t.Errorf("empty answer set should produce no chunks, got %d", len(chunks))
	}
}
