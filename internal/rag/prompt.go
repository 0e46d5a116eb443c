package rag

import "fmt"

// answerTemplate grounds the model strictly in retrieved context. Answers
// are kept short and in the language of the question.
const answerTemplate = `You are an expert assistant. Your task is to provide accurate, precise answers based ONLY on the provided context.

CRITICAL INSTRUCTIONS:
1. Use ONLY the information from the context below - do not use external knowledge.
2. Be specific about any details like names, numbers, dates, percentages, and conditions mentioned in the context.
3. If the context contains a specific piece of information the user is asking for, provide it directly.
4. Use the exact terminology from the context when possible.
5. Answer in the same language as the question.
6. Answer in 1 or 2 lines.

CONTEXT:
%s

QUESTION: %s

ANSWER (based solely on the context above):`

// buildPrompt renders the grounding prompt for one question.
func buildPrompt(contextText, question string) string {
	return fmt.Sprintf(answerTemplate, contextText, question)
}
