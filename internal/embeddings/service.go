package embeddings

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/queryd/internal/document"
)

// Service resolves chunk embeddings through the cache, computing only the
// missing ones against the upstream provider.
type Service struct {
	provider    Provider
	cache       *Cache
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// NewService creates an embedding service.
func NewService(provider Provider, cache *Cache, batchSize, concurrency int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		provider:    provider,
		cache:       cache,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// EmbedChunks returns one vector per chunk, in chunk order.
//
// Cached vectors are reused by content hash; the rest are embedded in
// concurrent batches and written back to the cache. A provider failure
// aborts the whole call: the ingestion pipeline must not build an index
// from partial embeddings.
func (s *Service) EmbedChunks(ctx context.Context, chunks []document.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	hashes := make([]string, len(chunks))
	for i, ch := range chunks {
		hashes[i] = ch.Hash
	}
	cached := s.cache.GetMany(hashes)

	// Collect distinct missing hashes, keeping first-seen chunk text.
	var missingTexts []string
	var missingHashes []string
	seen := make(map[string]bool)
	for _, ch := range chunks {
		if _, ok := cached[ch.Hash]; ok || seen[ch.Hash] {
			continue
		}
		seen[ch.Hash] = true
		missingHashes = append(missingHashes, ch.Hash)
		missingTexts = append(missingTexts, ch.Text)
	}

	s.logger.Debug("resolving chunk embeddings",
		zap.Int("chunks", len(chunks)),
		zap.Int("cached", len(chunks)-len(missingHashes)),
		zap.Int("to_embed", len(missingHashes)),
	)

	if len(missingHashes) > 0 {
		computed, err := s.embedBatches(ctx, missingTexts, missingHashes)
		if err != nil {
			return nil, err
		}
		s.cache.PutMany(computed)
		for h, v := range computed {
			cached[h] = v
		}
	}

	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		v, ok := cached[ch.Hash]
		if !ok {
			return nil, fmt.Errorf("%w: no vector for chunk %d", ErrProvider, ch.Seq)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string, bypassing the chunk cache.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.provider.EmbedQuery(ctx, text)
}

// embedBatches fans batch requests out to the provider with bounded
// concurrency. Any batch failure cancels the rest.
func (s *Service) embedBatches(ctx context.Context, texts, hashes []string) (map[string][]float32, error) {
	results := make(map[string][]float32, len(hashes))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batchTexts := texts[start:end]
		batchHashes := hashes[start:end]

		g.Go(func() error {
			vectors, err := s.provider.EmbedDocuments(ctx, batchTexts)
			if err != nil {
				providerBatches.WithLabelValues("error").Inc()
				return err
			}
			providerBatches.WithLabelValues("success").Inc()

			mu.Lock()
			for i, h := range batchHashes {
				results[h] = vectors[i]
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
