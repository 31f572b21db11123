package orchestrator

import (
	"github.com/langexam/grader/internal/model"
	"github.com/langexam/grader/internal/prompt"
)

// partition splits answers into budget-sized chunks with a greedy
// single-pass, first-fit packing that preserves the original answer order.
// An answer whose own cost exceeds the budget becomes a singleton chunk: a
// single answer is the atomic unit and is never split further. Chunk count
// only affects latency and cost, so near-optimal packing is not a goal.
func partition(answers []model.Answer, budget int) []model.Chunk {
	var chunks []model.Chunk

	var current model.Chunk
	currentCost := 0

	flush := func() {
		if len(current.Answers) == 0 {
			return
		}
		current.Index = len(chunks)
		chunks = append(chunks, current)
		current = model.Chunk{}
		currentCost = 0
	}

	for i, a := range answers {
		cost := prompt.AnswerCost(a.AnswerText)

		if cost > budget {
			flush()
			chunks = append(chunks, model.Chunk{
				Index:           len(chunks),
				QuestionIndices: []int{i},
				Answers:         []model.Answer{a},
			})
			continue
		}

		if currentCost+cost > budget {
			flush()
		}
		current.QuestionIndices = append(current.QuestionIndices, i)
		current.Answers = append(current.Answers, a)
		currentCost += cost
	}
	flush()

	return chunks
}
