package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrFetch indicates the document bytes could not be retrieved.
var ErrFetch = errors.New("fetch failed")

// maxDocumentSize caps downloads at 64MB.
const maxDocumentSize = 64 << 20

// Fetcher downloads document bytes over HTTP.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a Fetcher with a per-request timeout.
func NewFetcher(timeout time.Duration, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch downloads the document and returns its bytes and Content-Type.
//
// Non-2xx responses, timeouts and transport errors all surface as ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, docURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: building request: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "queryd/1.0")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: unexpected status %d", ErrFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	if len(data) > maxDocumentSize {
		return nil, "", fmt.Errorf("%w: document exceeds %d bytes", ErrFetch, maxDocumentSize)
	}

	f.logger.Debug("fetched document",
		zap.String("url", docURL),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)

	return data, resp.Header.Get("Content-Type"), nil
}
