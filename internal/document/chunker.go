package document

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/queryd/internal/fingerprint"
)

// Chunker splits normalized text into fixed-size overlapping chunks.
// Splitting is deterministic: identical input always yields identical chunks.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// normalizeLines collapses horizontal whitespace within each line and runs of
// blank lines into one, keeping newlines so the splitter can prefer paragraph
// and line boundaries over mid-sentence spaces.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// NewChunker creates a Chunker with the given target size and overlap.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split chunks the text, assigning sequence indexes and content hashes.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	text = normalizeLines(text)
	if text == "" {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		hash, err := fingerprint.Content(part)
		if err != nil {
			continue
		}
		chunks = append(chunks, Chunk{
			Seq:  len(chunks),
			Text: part,
			Hash: hash,
		})
	}
	return chunks, nil
}
