package agent

import "time"

// Step records one think-act-observe cycle for auditability. The trace is
// append-only within a run and discarded with the request state.
type Step struct {
	// N is the 1-based step number within the run.
	N int `json:"n"`
	// Thought is the model's reasoning text for this step.
	Thought string `json:"thought,omitempty"`
	// Tool is the tool the model chose, empty on the final step.
	Tool string `json:"tool,omitempty"`
	// Input is the raw tool input.
	Input string `json:"input,omitempty"`
	// Observation is the tool output or error text fed back to the model.
	Observation string `json:"observation,omitempty"`
	// Err is set when the tool call failed.
	Err string `json:"err,omitempty"`
	// At is when the step completed.
	At time.Time `json:"at"`
}

// Trace is the ordered Tool Invocation Record for one agent run.
type Trace []Step

// append records a completed step and returns the grown trace.
func (t Trace) append(s Step) Trace {
	s.N = len(t) + 1
	s.At = time.Now()
	return append(t, s)
}
