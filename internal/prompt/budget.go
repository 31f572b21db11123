package prompt

// bytesPerToken is the crude English-text approximation (one token is about
// four characters). Slight overestimation is fine; believing a prompt fits
// when it does not is the failure mode to avoid.
const bytesPerToken = 4

// systemOverheadTokens is a fixed estimate for the instructional framing
// (role, rubric, output-format section) that wraps the answers in every
// generated prompt.
const systemOverheadTokens = 800

// perAnswerOverheadTokens covers the labels and metadata lines rendered
// around each answer block.
const perAnswerOverheadTokens = 40

// minChunkBudget keeps partitioning sane when the configured window is tiny.
const minChunkBudget = 256

// EstimateTokens approximates the token length of text: ceil(len/4).
// Deterministic and monotonic; not a real tokenizer by design.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + bytesPerToken - 1) / bytesPerToken
}

// Fits reports whether a prompt of the given estimated size can be sent in a
// single request against the configured window.
func Fits(promptTokens, maxContextTokens, reservedTokens int) bool {
	return promptTokens <= maxContextTokens-reservedTokens
}

// ChunkBudget returns the per-chunk token budget: the context window minus
// the reserved output tokens and the fixed system-prompt overhead.
func ChunkBudget(maxContextTokens, reservedTokens int) int {
	b := maxContextTokens - reservedTokens - systemOverheadTokens
	if b < minChunkBudget {
		b = minChunkBudget
	}
	return b
}

// AnswerCost estimates the tokens one answer contributes to a chunk prompt,
// including its rendered metadata lines.
func AnswerCost(answerText string) int {
	return EstimateTokens(answerText) + perAnswerOverheadTokens
}
