// Package document handles fetching documents, extracting their text and
// splitting it into retrieval chunks.
//
// Format-specific extraction (PDF, PPTX, XLSX, OCR) is an external
// collaborator: this package defines the Extractor contract and ships only
// the generic web-page and plain-text extractors. Everything else is
// registered at wiring time.
package document

import (
	"github.com/fyrsmithlabs/queryd/internal/fingerprint"
)

// Reference identifies a document by source URL and derived fingerprint.
// Immutable once computed; the fingerprint keys the vector index cache.
type Reference struct {
	URL         string
	Fingerprint string
}

// NewReference computes the fingerprint for a document URL.
func NewReference(docURL string) (Reference, error) {
	fp, err := fingerprint.Document(docURL)
	if err != nil {
		return Reference{}, err
	}
	return Reference{URL: docURL, Fingerprint: fp}, nil
}

// Chunk is a bounded span of normalized document text.
//
// Seq is the position of the chunk within its document and Hash is the
// SHA-256 of the text, which keys the embedding cache. Chunks are never
// mutated after creation.
type Chunk struct {
	Seq  int
	Text string
	Hash string
}
