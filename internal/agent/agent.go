// Package agent runs a bounded think-act-observe loop over a small set of
// read-only web tools to answer questions that require following instructions
// beyond a document's static content.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrStepLimitExceeded is the designed circuit breaker: the run used its
	// whole step budget without reaching a final answer. Surfaced as a
	// per-question failure, never a process fault.
	ErrStepLimitExceeded = errors.New("agent step limit exceeded")

	// ErrInstructionFetch means the instruction document itself could not be
	// loaded, so the run was aborted before the loop started.
	ErrInstructionFetch = errors.New("instruction document fetch failed")
)

// generator is the model dependency, satisfied by *llm.FallbackChain.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent executes the reasoning loop.
type Agent struct {
	chain       generator
	tools       []Tool
	byName      map[string]Tool
	maxSteps    int
	toolTimeout time.Duration
	logger      *zap.Logger
}

// Config bounds an Agent's loop and tool calls.
type Config struct {
	// MaxSteps caps think-act-observe cycles per run.
	MaxSteps int
	// ToolTimeout applies to each individual tool call.
	ToolTimeout time.Duration
}

// New creates an Agent over a generation chain and a declared tool set.
func New(chain generator, tools []Tool, cfg Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	return &Agent{
		chain:       chain,
		tools:       tools,
		byName:      byName,
		maxSteps:    cfg.MaxSteps,
		toolTimeout: cfg.ToolTimeout,
		logger:      logger,
	}
}

// RunFromURL pre-fetches the instruction document before starting the loop.
// A pre-fetch failure aborts the run for this question only.
func (a *Agent) RunFromURL(ctx context.Context, docURL, question string) (string, Trace, error) {
	fetcher, ok := a.byName["web_fetch"]
	if !ok {
		return "", nil, fmt.Errorf("%w: no web_fetch tool registered", ErrInstructionFetch)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.toolTimeout)
	instructions, err := fetcher.Call(callCtx, docURL)
	cancel()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInstructionFetch, err)
	}
	return a.Run(ctx, instructions, question)
}

// Run executes the loop against already-loaded instruction text. It returns
// the final answer and the full step trace; the trace is returned on failure
// too, since partial runs are still worth auditing.
func (a *Agent) Run(ctx context.Context, instructions, question string) (string, Trace, error) {
	if strings.TrimSpace(instructions) == "" {
		return "", nil, fmt.Errorf("%w: empty instruction document", ErrInstructionFetch)
	}

	// Run IDs correlate the step log lines of concurrent runs.
	logger := a.logger.With(zap.String("run_id", uuid.NewString()))

	var trace Trace
	transcript := &strings.Builder{}
	transcript.WriteString(buildSystemPrompt(a.tools))
	transcript.WriteString("\n\n")
	transcript.WriteString(buildTaskPrompt(instructions, question))

	for step := 0; step < a.maxSteps; step++ {
		out, err := a.chain.Generate(ctx, transcript.String())
		if err != nil {
			// Model failure with no remaining fallback: terminal Fail.
			return "", trace, err
		}

		parsed := parseStep(out)
		if parsed.final != "" {
			trace = trace.append(Step{Thought: parsed.thought})
			logger.Debug("agent finished",
				zap.Int("steps", len(trace)),
				zap.String("question", question))
			return parsed.final, trace, nil
		}

		observation, toolErr := a.act(ctx, parsed.action, parsed.input)
		rec := Step{
			Thought:     parsed.thought,
			Tool:        parsed.action,
			Input:       parsed.input,
			Observation: observation,
		}
		if toolErr != nil {
			rec.Err = toolErr.Error()
		}
		trace = trace.append(rec)

		logger.Debug("agent step",
			zap.Int("step", len(trace)),
			zap.String("tool", parsed.action),
			zap.String("input", parsed.input),
			zap.Bool("failed", toolErr != nil))

		// Feed the model's own output and the observation back, errors
		// included, so it can route around a failed fetch.
		fmt.Fprintf(transcript, "\n\n%s\nObservation: %s", strings.TrimSpace(out), observation)

		if ctx.Err() != nil {
			return "", trace, ctx.Err()
		}
	}

	return "", trace, ErrStepLimitExceeded
}

// act executes one tool call under the per-call timeout. Failures come back
// as observation text, never as run-terminating errors.
func (a *Agent) act(ctx context.Context, name, input string) (string, error) {
	tool, ok := a.byName[name]
	if !ok {
		err := fmt.Errorf("%w: unknown tool %q", ErrToolFailed, name)
		return fmt.Sprintf("Error: unknown tool %q, available tools: %s", name, a.toolNames()), err
	}

	callCtx, cancel := context.WithTimeout(ctx, a.toolTimeout)
	defer cancel()

	out, err := tool.Call(callCtx, input)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), err
	}
	return out, nil
}

func (a *Agent) toolNames() string {
	names := make([]string, len(a.tools))
	for i, t := range a.tools {
		names[i] = t.Name()
	}
	return strings.Join(names, ", ")
}

type parsedStep struct {
	thought string
	action  string
	input   string
	final   string
}

// parseStep extracts the next action or the final answer from model output.
// It is total: output that fits neither shape is taken as the final answer,
// which keeps malformed generations from looping the budget away.
func parseStep(out string) parsedStep {
	var p parsedStep

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Thought:"):
			p.thought = strings.TrimSpace(strings.TrimPrefix(trimmed, "Thought:"))
		case strings.HasPrefix(trimmed, "Final Answer:"):
			rest := []string{strings.TrimSpace(strings.TrimPrefix(trimmed, "Final Answer:"))}
			for _, l := range lines[i+1:] {
				rest = append(rest, l)
			}
			p.final = strings.TrimSpace(strings.Join(rest, "\n"))
			return p
		case strings.HasPrefix(trimmed, "Action:"):
			p.action = strings.TrimSpace(strings.TrimPrefix(trimmed, "Action:"))
		case strings.HasPrefix(trimmed, "Action Input:"):
			p.input = strings.TrimSpace(strings.TrimPrefix(trimmed, "Action Input:"))
		}
	}

	if p.action == "" {
		p.final = strings.TrimSpace(out)
	}
	return p
}
