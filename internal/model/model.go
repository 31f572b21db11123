package model

import (
	"fmt"
	"strings"
	"time"
)

// ExamType distinguishes spoken exams (transcribed answers) from written ones.
type ExamType string

const (
	ExamSpeaking ExamType = "SPEAKING"
	ExamWriting  ExamType = "WRITING"
)

// ParseExamType normalizes a user-supplied exam type string.
func ParseExamType(s string) (ExamType, error) {
	switch ExamType(strings.ToUpper(strings.TrimSpace(s))) {
	case ExamSpeaking:
		return ExamSpeaking, nil
	case ExamWriting:
		return ExamWriting, nil
	default:
		return "", fmt.Errorf("unknown exam type %q", s)
	}
}

// Answer is one question/answer pair from a learner's session. Speaking
// answers carry the transcript in AnswerText; audio never reaches this
// service.
type Answer struct {
	QuestionLabel   string `json:"question_label"`
	AnswerText      string `json:"answer_text"`
	WordCount       int    `json:"word_count,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

// Words returns the stored word count, falling back to counting fields in
// the answer text when the collaborator did not supply one.
func (a Answer) Words() int {
	if a.WordCount > 0 {
		return a.WordCount
	}
	return len(strings.Fields(a.AnswerText))
}

// TotalWords sums the word counts of all answers.
func TotalWords(answers []Answer) int {
	total := 0
	for _, a := range answers {
		total += a.Words()
	}
	return total
}

// TotalChars sums the transcript lengths of all answers in runes.
func TotalChars(answers []Answer) int {
	total := 0
	for _, a := range answers {
		total += len([]rune(a.AnswerText))
	}
	return total
}

// TotalDuration sums the recorded speaking time across answers.
func TotalDuration(answers []Answer) time.Duration {
	var total time.Duration
	for _, a := range answers {
		total += time.Duration(a.DurationSeconds) * time.Second
	}
	return total
}

// GradingRequest is the full input for one grading call. It is read-only for
// the orchestrator; every invocation is independent and stateless.
type GradingRequest struct {
	SessionID            string   `json:"session_id"`
	StudentName          string   `json:"student_name"`
	ExamTitle            string   `json:"exam_title"`
	ExamDescription      string   `json:"exam_description,omitempty"`
	ExamType             ExamType `json:"exam_type"`
	Answers              []Answer `json:"answers"`
	CustomPromptTemplate string   `json:"custom_prompt_template,omitempty"`
	MaxContextTokens     int      `json:"max_context_tokens,omitempty"`
	ReservedTokens       int      `json:"reserved_tokens,omitempty"`
	Provider             string   `json:"provider,omitempty"`
}

// ProviderConfig describes one text-generation backend. It is re-resolved on
// every grading call from layered configuration (explicit argument > stored
// admin configuration > environment defaults) and never cached.
type ProviderConfig struct {
	ID             string   `json:"id"`
	APIKey         string   `json:"api_key,omitempty"`
	Model          string   `json:"model"`
	BaseURL        string   `json:"base_url,omitempty"`
	FallbackModels []string `json:"fallback_models,omitempty"`
}

// Models returns the ordered model list: primary model first, then the
// fallback models, with empty entries and duplicates dropped.
func (c ProviderConfig) Models() []string {
	seen := make(map[string]bool, 1+len(c.FallbackModels))
	var models []string
	for _, m := range append([]string{c.Model}, c.FallbackModels...) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return models
}

// Configured reports whether the provider has at least one usable model.
// A provider with an empty model list is excluded from the available set.
func (c ProviderConfig) Configured() bool {
	return len(c.Models()) > 0
}

// Chunk is a contiguous, budget-sized subset of a request's answers. Chunks
// are derived per grading call and discarded after aggregation.
type Chunk struct {
	Index           int
	QuestionIndices []int
	Answers         []Answer
}

// ChunkResult holds one chunk's grading output. Ordering by ChunkIndex is
// significant for reproducible aggregation prompts.
type ChunkResult struct {
	ChunkIndex      int
	QuestionIndices []int
	Summary         string
	Feedback        string
	RawResponse     string
}

// ProviderFallback is the ProviderUsed value when no backend produced the
// evaluation and the rule-based fallback did.
const ProviderFallback = "fallback"

// GradeOutcome is the terminal artifact of a grading call. Grading always
// succeeds: total backend failure is represented as a valid outcome with
// ProviderUsed set to ProviderFallback and a diagnostic ErrorNote.
type GradeOutcome struct {
	Summary      string `json:"summary"`
	Feedback     string `json:"feedback"`
	Score        int    `json:"score"`
	ProviderUsed string `json:"provider_used"`
	ModelUsed    string `json:"model_used"`
	ChunksUsed   int    `json:"chunks_used"`
	ErrorNote    string `json:"error_note,omitempty"`
}
