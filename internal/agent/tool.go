package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/queryd/internal/document"
)

// ErrToolFailed wraps tool execution failures. The loop feeds these back to
// the model as observations rather than aborting, so the agent can recover.
var ErrToolFailed = errors.New("tool failed")

// maxToolResponseSize caps how much of an external response is handed back
// to the model.
const maxToolResponseSize = 4 << 20 // 4 MiB

// Tool is a read-only external capability the agent may invoke. Write-capable
// tools must not be registered without explicit operator intent.
type Tool interface {
	// Name is the identifier the model uses to select the tool.
	Name() string
	// Description tells the model when to use the tool.
	Description() string
	// Call executes the tool. The context carries the per-call timeout.
	Call(ctx context.Context, input string) (string, error)
}

// WebFetchTool fetches a URL and returns its text content. HTML is stripped
// to plain text, JSON is returned verbatim, everything else is returned as-is.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool creates the web fetch tool with the given per-call timeout.
func NewWebFetchTool(timeout time.Duration) *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: timeout}}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetches the text content of a web page, document, or API endpoint. Input is a single URL."
}

func (t *WebFetchTool) Call(ctx context.Context, input string) (string, error) {
	body, contentType, err := fetch(ctx, t.client, input)
	if err != nil {
		return "", err
	}

	switch {
	case strings.Contains(contentType, "application/json"):
		return string(body), nil
	case strings.Contains(contentType, "text/html"), looksLikeHTML(body):
		text, err := document.HTMLToText(body)
		if err != nil {
			return "", fmt.Errorf("%w: parse html: %w", ErrToolFailed, err)
		}
		if text == "" {
			return "fetched the URL but found no text content", nil
		}
		return text, nil
	default:
		return string(body), nil
	}
}

// APICallTool performs a GET against an API endpoint and returns the raw
// response body, untouched. Useful when the agent needs exact payloads
// rather than readable text.
type APICallTool struct {
	client *http.Client
}

// NewAPICallTool creates the API call tool with the given per-call timeout.
func NewAPICallTool(timeout time.Duration) *APICallTool {
	return &APICallTool{client: &http.Client{Timeout: timeout}}
}

func (t *APICallTool) Name() string { return "api_call" }

func (t *APICallTool) Description() string {
	return "Performs an HTTP GET against an API endpoint and returns the raw response body. Input is a single URL."
}

func (t *APICallTool) Call(ctx context.Context, input string) (string, error) {
	body, _, err := fetch(ctx, t.client, input)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, "", fmt.Errorf("%w: empty url", ErrToolFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrToolFailed, err)
	}
	req.Header.Set("User-Agent", "queryd/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrToolFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: unexpected status %d for %s", ErrToolFailed, resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolResponseSize))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %w", ErrToolFailed, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func looksLikeHTML(body []byte) bool {
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
