// Package index provides the vector index over document chunks and its
// persistent, fingerprint-keyed cache.
//
// The cache carries the pipeline's strongest concurrency contract: for one
// fingerprint at most one build runs at a time across all concurrent
// callers, while builds for distinct fingerprints proceed in parallel. The
// embedding cache next door deliberately has no such guarantee; do not try
// to unify the two.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/queryd/internal/document"
)

var tracer = otel.Tracer("queryd.index")

var (
	// ErrInvalidConfig indicates invalid index configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyIndex indicates an index was built from zero chunks.
	ErrEmptyIndex = errors.New("index has no chunks")
)

// Result is one retrieval hit.
type Result struct {
	// Seq is the chunk's sequence index within its document.
	Seq int
	// Text is the chunk content.
	Text string
	// Score is the cosine similarity to the query, higher is better.
	Score float32
}

// Index is a nearest-neighbor structure over one document's chunk
// embeddings. It is read-only after construction and safe for concurrent
// queries.
type Index struct {
	collection *chromem.Collection
	key        string
}

// Key returns the document fingerprint this index was built for.
func (i *Index) Key() string {
	return i.key
}

// Count returns the number of indexed chunks.
func (i *Index) Count() int {
	return i.collection.Count()
}

// Query returns up to k chunks nearest to the query vector, ordered by
// similarity descending with ties broken by chunk sequence index.
func (i *Index) Query(ctx context.Context, queryVector []float32, k int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "Index.Query")
	defer span.End()
	span.SetAttributes(attribute.String("key", i.key), attribute.Int("k", k))

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	hits, err := i.collection.QueryEmbedding(ctx, queryVector, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying index %s: %w", i.key, err)
	}

	results := make([]Result, len(hits))
	for n, hit := range hits {
		seq, _ := strconv.Atoi(hit.Metadata["seq"])
		results[n] = Result{
			Seq:   seq,
			Text:  hit.Content,
			Score: hit.Similarity,
		}
	}

	// chromem orders by similarity; make tie order deterministic.
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Seq < results[b].Seq
	})

	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// Embedder is the query-embedding dependency of a Retriever.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever is a read-only query interface over an Index, bound to a
// configured top-k.
type Retriever struct {
	index    *Index
	embedder Embedder
	topK     int
}

// NewRetriever wraps an index with a query embedder and top-k.
func NewRetriever(index *Index, embedder Embedder, topK int) *Retriever {
	return &Retriever{index: index, embedder: embedder, topK: topK}
}

// Retrieve embeds the query and returns the top-k nearest chunks.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return r.index.Query(ctx, vector, r.topK)
}

// docToChromem converts a chunk and its vector to a chromem document.
func docToChromem(ch document.Chunk, vector []float32) chromem.Document {
	return chromem.Document{
		ID:        fmt.Sprintf("chunk_%06d", ch.Seq),
		Content:   ch.Text,
		Embedding: vector,
		Metadata: map[string]string{
			"seq":  strconv.Itoa(ch.Seq),
			"hash": ch.Hash,
		},
	}
}
