package agent

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a highly specialized reasoning agent. Your mission is to follow instructions from a given document to find a final answer.

Workflow:
1. Analyze the mission: carefully read the INSTRUCTION DOCUMENT CONTENT below and understand every required step.
2. Execute step by step: for each step that requires fetching external data from a URL, use one of your tools.
3. Reason and combine: analyze the information you gather and decide the next step.
4. Conclude: once you have the final piece of information the USER QUERY asks for, state the answer clearly and concisely.

Rules:
- Do not guess or hallucinate. Rely only on the instruction document and tool results.
- Use exactly this format for every response, nothing else:

Thought: your reasoning about what to do next
Action: one of [%s]
Action Input: the input to the tool

or, when you know the answer:

Thought: your reasoning
Final Answer: the answer to the user query

Available tools:
%s`

// buildSystemPrompt renders the instruction header for the declared tool set.
func buildSystemPrompt(tools []Tool) string {
	names := make([]string, len(tools))
	descs := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
		descs[i] = fmt.Sprintf("- %s: %s", t.Name(), t.Description())
	}
	return fmt.Sprintf(systemPrompt, strings.Join(names, ", "), strings.Join(descs, "\n"))
}

// buildTaskPrompt renders the initial user turn.
func buildTaskPrompt(instructions, question string) string {
	return fmt.Sprintf(`### INSTRUCTION DOCUMENT CONTENT:
---
%s
---

### USER QUERY:
%s

Execute the mission based on the instructions above to answer the user query.`, instructions, question)
}
