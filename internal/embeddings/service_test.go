package embeddings

import (
	"context"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/queryd/internal/document"
	"github.com/fyrsmithlabs/queryd/internal/fingerprint"
)

// fakeProvider returns a deterministic vector per text and counts calls.
type fakeProvider struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, ErrProvider
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 2}
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.fail {
		return nil, ErrProvider
	}
	return []float32{float32(len(text)), 1, 2}, nil
}

func mkChunks(t *testing.T, texts ...string) []document.Chunk {
	t.Helper()
	chunks := make([]document.Chunk, len(texts))
	for i, txt := range texts {
		h, err := fingerprint.Content(txt)
		require.NoError(t, err)
		chunks[i] = document.Chunk{Seq: i, Text: txt, Hash: h}
	}
	return chunks
}

func TestService_EmbedChunks(t *testing.T) {
	provider := &fakeProvider{}
	cache := NewCache(t.TempDir(), nil)
	svc := NewService(provider, cache, 100, 2, nil)

	chunks := mkChunks(t, "alpha", "beta", "gamma")
	vectors, err := svc.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{5, 1, 2}, vectors[0])
}

func TestService_CacheAvoidsRecomputation(t *testing.T) {
	provider := &fakeProvider{}
	cache := NewCache(t.TempDir(), nil)
	svc := NewService(provider, cache, 100, 2, nil)

	chunks := mkChunks(t, "alpha", "beta")

	_, err := svc.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	first := provider.calls.Load()
	require.Greater(t, first, int64(0))

	_, err = svc.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, first, provider.calls.Load(), "warm cache should not call the provider")
}

func TestService_CachePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	provider := &fakeProvider{}
	svc := NewService(provider, NewCache(dir, nil), 100, 2, nil)

	chunks := mkChunks(t, "alpha")
	_, err := svc.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	calls := provider.calls.Load()

	// Fresh cache instance over the same directory.
	svc2 := NewService(provider, NewCache(dir, nil), 100, 2, nil)
	_, err = svc2.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, calls, provider.calls.Load())
}

func TestService_IdenticalChunksShareOneEmbedding(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(provider, NewCache(t.TempDir(), nil), 100, 2, nil)

	chunks := mkChunks(t, "same text", "same text")
	vectors, err := svc.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, vectors[0], vectors[1])
}

func TestService_ProviderFailureAborts(t *testing.T) {
	provider := &fakeProvider{fail: true}
	svc := NewService(provider, NewCache(t.TempDir(), nil), 100, 2, nil)

	_, err := svc.EmbedChunks(context.Background(), mkChunks(t, "alpha"))
	require.ErrorIs(t, err, ErrProvider)
}

func TestService_EmptyInput(t *testing.T) {
	svc := NewService(&fakeProvider{}, NewCache(t.TempDir(), nil), 100, 2, nil)
	_, err := svc.EmbedChunks(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestService_BatchSplitting(t *testing.T) {
	provider := &fakeProvider{}
	svc := NewService(provider, NewCache(t.TempDir(), nil), 2, 2, nil)

	chunks := mkChunks(t, "a1", "b22", "c333", "d4444", "e55555")
	vectors, err := svc.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	// 5 texts, batch size 2 -> 3 batches.
	assert.Equal(t, int64(3), provider.calls.Load())
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache := NewCache(dir, nil)

	h, err := fingerprint.Content("something")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cache.path(h), []byte("{not json"), 0o644))

	found := cache.GetMany([]string{h})
	assert.Empty(t, found)
}
