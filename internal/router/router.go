// Package router decides between the retrieval (RAG) path and the reasoning
// agent path for a request.
//
// The decision is a pure function of the probed document text: documents
// that read like interactive API instructions go to the agent, everything
// else takes the cheaper retrieval path. Routing happens once per request
// (per-document granularity), not per question.
package router

import (
	"regexp"
)

// Decision selects the answering strategy for a request.
type Decision int

const (
	// RAG answers from retrieved document chunks. The default for
	// ambiguous documents.
	RAG Decision = iota
	// Agent runs the tool-using reasoning loop.
	Agent
)

// String implements fmt.Stringer.
func (d Decision) String() string {
	if d == Agent {
		return "agent"
	}
	return "rag"
}

// endpointPattern matches REST endpoints written as an HTTP verb followed
// by a URL.
var endpointPattern = regexp.MustCompile(`(?i)\b(GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\s+https?://`)

// instructionalPatterns match documents that instruct the reader to call an
// API: endpoint references, curl invocations, auth headers, parameter and
// status-code documentation.
var instructionalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcall\s+this\s+endpoint`),
	regexp.MustCompile(`(?i)\bcall\s+the\s+api`),
	regexp.MustCompile(`(?i)\bmake\s+a\s+request\s+to`),
	regexp.MustCompile(`(?i)\bendpoint\s+to\s+get`),
	regexp.MustCompile(`(?i)\bapi\s+response`),
	regexp.MustCompile(`(?i)\bcurl\s+-[XH]`),
	regexp.MustCompile(`(?i)\b(request|response)\s*(body|payload|headers?)`),
	regexp.MustCompile(`(?i)\b(authorization|auth)\s*:\s*(bearer|basic|api[_-]?key)`),
	regexp.MustCompile(`(?i)\bapi[_-]?key\s*[:=]`),
	regexp.MustCompile(`(?i)\b(query\s*param|path\s*param|header\s*param)`),
	regexp.MustCompile(`(?i)\b(endpoint|api)\s*:\s*https?://`),
	regexp.MustCompile(`(?i)\b(base\s*url|baseurl)\s*:\s*https?://`),
	regexp.MustCompile(`(?i)\b(content-type|accept)\s*:\s*application/`),
	regexp.MustCompile(`(?i)\b(status\s*code|http\s*status)\s*:\s*\d{3}`),
}

// Route returns Agent when the document text carries interactive API
// signals, RAG otherwise. It is total and deterministic; empty text routes
// to RAG.
func Route(documentText string) Decision {
	if HasAPISignals(documentText) {
		return Agent
	}
	return RAG
}

// HasAPISignals reports whether the text contains interactive API
// documentation patterns.
func HasAPISignals(text string) bool {
	if text == "" {
		return false
	}
	if endpointPattern.MatchString(text) {
		return true
	}
	for _, p := range instructionalPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// ProbeQuery is the fixed retrieval query used to pull API-looking context
// out of a freshly built index before routing.
const ProbeQuery = "Api endpoints and urls. search for http"
