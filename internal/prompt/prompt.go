package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/langexam/grader/internal/model"
)

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// maxAnswerRunes caps a single answer's contribution to a prompt.
const maxAnswerRunes = 10000

// Build renders the full grading prompt for a request. A non-empty custom
// template takes precedence over the structured prompt.
func Build(req model.GradingRequest) string {
	if strings.TrimSpace(req.CustomPromptTemplate) != "" {
		return RenderTemplate(req.CustomPromptTemplate, req)
	}
	return buildStructured(req, req.Answers, 0, 0)
}

// BuildChunk renders the grading prompt for one chunk of a larger answer
// set. The prompt tells the backend this is a partial evaluation so chunk
// summaries stay combinable.
func BuildChunk(req model.GradingRequest, chunk model.Chunk, totalChunks int) string {
	return buildStructured(req, chunk.Answers, chunk.Index+1, totalChunks)
}

// BuildAggregation renders the final prompt that merges per-chunk
// evaluations into one coherent result. Results must be in chunk order.
func BuildAggregation(req model.GradingRequest, results []model.ChunkResult) string {
	var sb strings.Builder
	sb.WriteString("You are an experienced language examiner. A student's ")
	sb.WriteString(strings.ToLower(string(req.ExamType)))
	sb.WriteString(" exam was evaluated in parts because of its length. ")
	sb.WriteString("Combine the partial evaluations below into ONE final evaluation of the whole exam.\n\n")

	sb.WriteString("STUDENT: " + req.StudentName + "\n")
	sb.WriteString("EXAM: " + req.ExamTitle + "\n\n")

	for _, r := range results {
		fmt.Fprintf(&sb, "--- PART %d (questions %s) ---\n", r.ChunkIndex+1, joinIndices(r.QuestionIndices))
		if r.Summary != "" {
			sb.WriteString("Summary: " + r.Summary + "\n")
		}
		if r.Feedback != "" {
			sb.WriteString("Feedback: " + r.Feedback + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Weigh every part; do not let one part dominate. ")
	sb.WriteString("Resolve contradictions between parts in favor of the more specific observation.\n\n")
	writeOutputFormat(&sb)
	return sb.String()
}

func buildStructured(req model.GradingRequest, answers []model.Answer, part, totalParts int) string {
	var sb strings.Builder

	switch req.ExamType {
	case model.ExamSpeaking:
		sb.WriteString("You are an experienced speaking examiner. Evaluate the transcribed spoken responses below.\n")
	default:
		sb.WriteString("You are an experienced writing examiner. Evaluate the written responses below.\n")
	}
	if totalParts > 1 {
		fmt.Fprintf(&sb, "This is PART %d of %d of the exam; evaluate only the responses shown here.\n", part, totalParts)
	}
	sb.WriteString("\n")

	sb.WriteString("STUDENT: " + req.StudentName + "\n")
	sb.WriteString("EXAM: " + req.ExamTitle + "\n")
	if req.ExamDescription != "" {
		sb.WriteString("DESCRIPTION: " + req.ExamDescription + "\n")
	}
	sb.WriteString("TYPE: " + string(req.ExamType) + "\n\n")

	writeAnswers(&sb, req.ExamType, answers)
	writeLengthAdvisory(&sb, req.ExamType, answers)
	writeRubric(&sb, req.ExamType)
	writeOutputFormat(&sb)

	return sb.String()
}

func writeAnswers(sb *strings.Builder, examType model.ExamType, answers []model.Answer) {
	if len(answers) == 0 {
		sb.WriteString("The student did not submit any answers.\n\n")
		return
	}

	sb.WriteString("RESPONSES:\n\n")
	for i, a := range answers {
		label := a.QuestionLabel
		if label == "" {
			label = fmt.Sprintf("Question %d", i+1)
		}
		switch examType {
		case model.ExamSpeaking:
			fmt.Fprintf(sb, "Question %d: %s\n", i+1, label)
			if a.DurationSeconds > 0 {
				fmt.Fprintf(sb, "Speaking time: %ds\n", a.DurationSeconds)
			}
			fmt.Fprintf(sb, "Words: %d\n", a.Words())
			sb.WriteString("Transcript:\n" + sanitize(a.AnswerText) + "\n\n")
		default:
			fmt.Fprintf(sb, "Task %d: %s\n", i+1, label)
			fmt.Fprintf(sb, "Word count: %d\n", a.Words())
			sb.WriteString("Content:\n" + sanitize(a.AnswerText) + "\n\n")
		}
	}

	if examType == model.ExamSpeaking {
		if wpm, ok := wordsPerMinute(answers); ok {
			fmt.Fprintf(sb, "Overall speaking rate: %d words per minute.\n\n", wpm)
		}
	}
}

// writeLengthAdvisory escalates its wording at fixed thresholds. Backends
// otherwise over-reward minimal effort; this block is the main
// quality-control lever since no deterministic logic inspects content
// quality directly.
func writeLengthAdvisory(sb *strings.Builder, examType model.ExamType, answers []model.Answer) {
	if examType == model.ExamSpeaking {
		chars := model.TotalChars(answers)
		switch {
		case chars < 250:
			sb.WriteString("LENGTH WARNING: The combined transcripts are extremely short. ")
			sb.WriteString("This almost always indicates insufficient content to demonstrate speaking ability. ")
			sb.WriteString("Do NOT award average or above-average marks for effort; grade what is actually there.\n\n")
		case chars < 500:
			sb.WriteString("LENGTH WARNING: The combined transcripts are very short. ")
			sb.WriteString("Treat brevity as a red flag for task fulfilment and score accordingly.\n\n")
		case chars < 750:
			sb.WriteString("LENGTH NOTE: The combined transcripts are on the short side; weigh development of ideas carefully.\n\n")
		}
		return
	}

	words := model.TotalWords(answers)
	switch {
	case words < 50:
		fmt.Fprintf(sb, "LENGTH WARNING: The student wrote only %d words in total. ", words)
		sb.WriteString("This is severely insufficient for a written exam. ")
		sb.WriteString("Such submissions must NOT receive passing-level marks for content, however correct the fragments are.\n\n")
	case words < 100:
		fmt.Fprintf(sb, "LENGTH WARNING: The student wrote only %d words in total, well below what the tasks require. ", words)
		sb.WriteString("Treat the lack of development as a major weakness.\n\n")
	case words < 150:
		fmt.Fprintf(sb, "LENGTH NOTE: The total of %d words is below expectations; consider whether the tasks are fully addressed.\n\n", words)
	}
}

func writeRubric(sb *strings.Builder, examType model.ExamType) {
	sb.WriteString("GRADING RUBRIC (weighted):\n")
	if examType == model.ExamSpeaking {
		sb.WriteString("- Fluency and coherence: 25%\n")
		sb.WriteString("- Pronunciation (as inferable from the transcript): 20%\n")
		sb.WriteString("- Vocabulary range and precision: 20%\n")
		sb.WriteString("- Grammatical accuracy: 20%\n")
		sb.WriteString("- Task response: 15%\n\n")
	} else {
		sb.WriteString("- Task achievement: 25%\n")
		sb.WriteString("- Grammatical accuracy: 25%\n")
		sb.WriteString("- Coherence and cohesion: 20%\n")
		sb.WriteString("- Vocabulary range and precision: 20%\n")
		sb.WriteString("- Spelling and punctuation: 10%\n\n")
	}
}

func writeOutputFormat(sb *strings.Builder) {
	sb.WriteString("REQUIRED OUTPUT FORMAT — respond with exactly these labeled sections:\n\n")
	sb.WriteString("OVERALL_PERFORMANCE:\n<two or three sentences summarizing the performance>\n\n")
	sb.WriteString("CRITERION_SCORES:\n<one line per rubric criterion with a 0-10 rating>\n\n")
	sb.WriteString("STRENGTHS:\n<bullet list>\n\n")
	sb.WriteString("AREAS_FOR_IMPROVEMENT:\n<bullet list>\n\n")
	sb.WriteString("ACTIONABLE_RECOMMENDATIONS:\n<bullet list>\n")
}

func wordsPerMinute(answers []model.Answer) (int, bool) {
	secs := int(model.TotalDuration(answers).Seconds())
	if secs <= 0 {
		return 0, false
	}
	return model.TotalWords(answers) * 60 / secs, true
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("%d", idx+1)
	}
	return strings.Join(parts, ", ")
}

func sanitize(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
