// Package fingerprint derives stable cache keys for documents and chunks.
//
// A fingerprint is a hex-encoded SHA-256 digest. Document fingerprints are
// computed over the source URL and key the vector index cache; content
// fingerprints are computed over chunk text and key the embedding cache, so
// identical chunks across documents share one embedding entry.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidInput indicates an empty input string.
var ErrInvalidInput = errors.New("invalid input")

// Document returns the cache key for a document URL.
func Document(docURL string) (string, error) {
	if docURL == "" {
		return "", fmt.Errorf("%w: document URL is empty", ErrInvalidInput)
	}
	sum := sha256.Sum256([]byte(docURL))
	return hex.EncodeToString(sum[:]), nil
}

// Content returns the cache key for a span of text.
func Content(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:]), nil
}

// DocumentWithContent combines the URL fingerprint with a digest of the
// fetched bytes. Use it when the URL may serve mutable content.
func DocumentWithContent(docURL string, content []byte) (string, error) {
	if docURL == "" {
		return "", fmt.Errorf("%w: document URL is empty", ErrInvalidInput)
	}
	h := sha256.New()
	h.Write([]byte(docURL))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil)), nil
}
