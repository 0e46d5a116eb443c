// Package rag answers questions by grounding a language model in retrieved
// document chunks.
package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/queryd/internal/index"
)

// insufficientInformation is returned instead of guessing when retrieval
// yields nothing to ground an answer in.
const insufficientInformation = "The document does not contain enough information to answer this question."

// generator is the generation dependency, satisfied by *llm.FallbackChain.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// retriever is the retrieval dependency, satisfied by *index.Retriever.
type retriever interface {
	Retrieve(ctx context.Context, query string) ([]index.Result, error)
}

// Answerer produces grounded answers for single questions.
type Answerer struct {
	chain  generator
	logger *zap.Logger
}

// NewAnswerer creates an Answerer over a generation chain.
func NewAnswerer(chain generator, logger *zap.Logger) *Answerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{chain: chain, logger: logger}
}

// Answer retrieves context for the question and generates an answer.
//
// Retrieval failures and exhausted generation fallbacks surface as errors
// for the caller to convert into per-question placeholders; they never abort
// sibling questions.
func (a *Answerer) Answer(ctx context.Context, question string, r retriever) (string, error) {
	hits, err := r.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	return a.AnswerWithContext(ctx, question, ContextFromResults(hits))
}

// AnswerWithContext generates an answer from pre-retrieved context text.
// Used when the routing probe already fetched context for the question.
func (a *Answerer) AnswerWithContext(ctx context.Context, question, contextText string) (string, error) {
	if strings.TrimSpace(contextText) == "" {
		// Refusing beats hallucinating on an empty retrieval.
		return insufficientInformation, nil
	}

	answer, err := a.chain.Generate(ctx, buildPrompt(contextText, question))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return insufficientInformation, nil
	}
	return answer, nil
}

// ContextFromResults joins retrieval hits into one grounding context.
// Results arrive ordered by similarity with ties broken by chunk sequence,
// so the join is deterministic.
func ContextFromResults(hits []index.Result) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Text
	}
	return strings.Join(parts, "\n\n")
}
