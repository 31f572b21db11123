// Package orchestrator drives a grading request through sizing, single-shot
// or chunked generation, aggregation, and scoring. It holds no state across
// calls, which is what allows safe concurrent grading of many sessions.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/langexam/grader/internal/model"
	"github.com/langexam/grader/internal/parse"
	"github.com/langexam/grader/internal/prompt"
	"github.com/langexam/grader/internal/provider"
	"github.com/langexam/grader/internal/score"
)

// Defaults applied when a request leaves the context window unspecified.
const (
	DefaultMaxContextTokens = 8192
	DefaultReservedTokens   = 2000
)

// Orchestrator grades learner answer sets. Safe for concurrent use; each
// Grade call is fully independent.
type Orchestrator struct {
	gateway *provider.Gateway
	pacer   Pacer
}

// New creates an orchestrator. A nil pacer disables the inter-chunk delay.
func New(gw *provider.Gateway, pacer Pacer) *Orchestrator {
	if pacer == nil {
		pacer = NoDelay()
	}
	return &Orchestrator{gateway: gw, pacer: pacer}
}

// Grade produces an evaluation for the request. It never returns an error:
// total backend failure yields a valid fallback outcome with a diagnostic
// note, so the caller always receives a complete evaluation record.
func (o *Orchestrator) Grade(ctx context.Context, req model.GradingRequest) model.GradeOutcome {
	if req.MaxContextTokens <= 0 {
		req.MaxContextTokens = DefaultMaxContextTokens
	}
	if req.ReservedTokens <= 0 {
		req.ReservedTokens = DefaultReservedTokens
	}

	fullPrompt := prompt.Build(req)
	promptTokens := prompt.EstimateTokens(fullPrompt)

	// Sizing. Custom templates are never chunked: the caller has opted out
	// of automatic sizing.
	custom := strings.TrimSpace(req.CustomPromptTemplate) != ""
	if custom || prompt.Fits(promptTokens, req.MaxContextTokens, req.ReservedTokens) {
		return o.singleShot(ctx, req, fullPrompt)
	}

	slog.Info("prompt exceeds context budget, chunking",
		"session", req.SessionID,
		"prompt_tokens", promptTokens,
		"max_context_tokens", req.MaxContextTokens,
		"reserved_tokens", req.ReservedTokens)
	return o.chunked(ctx, req)
}

func (o *Orchestrator) singleShot(ctx context.Context, req model.GradingRequest, p string) model.GradeOutcome {
	res, err := o.gateway.GenerateWithFallback(ctx, p, req.Provider)
	if err != nil {
		return o.fallback(req, err)
	}

	parsed := parse.Parse(res.Text)
	if parsed.Empty() {
		return o.fallback(req, fmt.Errorf("invalid response format from %s/%s", res.Provider, res.Model))
	}

	return model.GradeOutcome{
		Summary:      parsed.Summary,
		Feedback:     parsed.Feedback,
		Score:        score.Estimate(req.ExamType, req.Answers, parsed.Summary, parsed.Feedback),
		ProviderUsed: res.Provider,
		ModelUsed:    res.Model,
	}
}

func (o *Orchestrator) chunked(ctx context.Context, req model.GradingRequest) model.GradeOutcome {
	budget := prompt.ChunkBudget(req.MaxContextTokens, req.ReservedTokens)
	chunks := partition(req.Answers, budget)

	results := make([]model.ChunkResult, 0, len(chunks))
	failed := 0
	var lastGood provider.Result

	// Chunks are graded sequentially, not concurrently, to stay polite to
	// rate-limited backends. A failed chunk contributes a placeholder so
	// aggregation still proceeds.
	for _, c := range chunks {
		if c.Index > 0 {
			if err := o.pacer.Wait(ctx); err != nil {
				return o.fallback(req, err)
			}
		}

		res, err := o.gateway.GenerateWithFallback(ctx, prompt.BuildChunk(req, c, len(chunks)), req.Provider)
		if err != nil {
			if ctx.Err() != nil {
				return o.fallback(req, ctx.Err())
			}
			slog.Warn("chunk grading failed, using placeholder",
				"session", req.SessionID, "chunk", c.Index, "error", err)
			failed++
			results = append(results, placeholderResult(c))
			continue
		}

		parsed := parse.Parse(res.Text)
		lastGood = res
		results = append(results, model.ChunkResult{
			ChunkIndex:      c.Index,
			QuestionIndices: c.QuestionIndices,
			Summary:         parsed.Summary,
			Feedback:        parsed.Feedback,
			RawResponse:     res.Text,
		})
	}

	return o.aggregate(ctx, req, chunks, results, failed, lastGood)
}

func (o *Orchestrator) aggregate(ctx context.Context, req model.GradingRequest, chunks []model.Chunk, results []model.ChunkResult, failedChunks int, lastGood provider.Result) model.GradeOutcome {
	var note string
	if failedChunks > 0 {
		note = fmt.Sprintf("%d of %d chunks could not be graded", failedChunks, len(chunks))
	}

	res, err := o.gateway.GenerateWithFallback(ctx, prompt.BuildAggregation(req, results), req.Provider)
	if err == nil {
		parsed := parse.Parse(res.Text)
		if !parsed.Empty() {
			return model.GradeOutcome{
				Summary:      parsed.Summary,
				Feedback:     parsed.Feedback,
				Score:        score.Estimate(req.ExamType, req.Answers, parsed.Summary, parsed.Feedback),
				ProviderUsed: res.Provider,
				ModelUsed:    res.Model,
				ChunksUsed:   len(chunks),
				ErrorNote:    note,
			}
		}
		err = fmt.Errorf("invalid aggregation response format from %s/%s", res.Provider, res.Model)
	}

	if failedChunks == len(chunks) {
		// Nothing real survived: every chunk is a placeholder and the
		// aggregation call failed too.
		return o.fallback(req, err)
	}

	// Partial chunk results beat a full placeholder: degrade to a verbatim
	// concatenation in chunk order.
	slog.Warn("aggregation failed, concatenating chunk results",
		"session", req.SessionID, "error", err)

	var summaries, feedbacks []string
	for _, r := range results {
		if r.Summary != "" {
			summaries = append(summaries, r.Summary)
		}
		if r.Feedback != "" {
			feedbacks = append(feedbacks, r.Feedback)
		}
	}
	summary := strings.Join(summaries, "\n\n")
	feedback := strings.Join(feedbacks, "\n\n")

	aggNote := "final aggregation failed; chunk evaluations shown unmerged"
	if note != "" {
		aggNote = note + "; " + aggNote
	}

	return model.GradeOutcome{
		Summary:      summary,
		Feedback:     feedback,
		Score:        score.Estimate(req.ExamType, req.Answers, summary, feedback),
		ProviderUsed: lastGood.Provider,
		ModelUsed:    lastGood.Model,
		ChunksUsed:   len(chunks),
		ErrorNote:    aggNote,
	}
}

func (o *Orchestrator) fallback(req model.GradingRequest, cause error) model.GradeOutcome {
	slog.Error("grading fell back to rule-based evaluation",
		"session", req.SessionID, "error", cause)
	out := score.Fallback(req)
	if cause != nil {
		out.ErrorNote = cause.Error()
	}
	return out
}

func placeholderResult(c model.Chunk) model.ChunkResult {
	return model.ChunkResult{
		ChunkIndex:      c.Index,
		QuestionIndices: c.QuestionIndices,
		Summary:         fmt.Sprintf("[Part %d could not be evaluated automatically.]", c.Index+1),
		Feedback:        fmt.Sprintf("[No feedback is available for questions %s.]", indicesList(c.QuestionIndices)),
	}
}

func indicesList(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprintf("%d", idx+1)
	}
	return strings.Join(parts, ", ")
}
