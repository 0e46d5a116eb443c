package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/queryd/internal/document"
	"github.com/fyrsmithlabs/queryd/internal/fingerprint"
)

// staticEmbedder maps text length onto a trivially separable vector space.
type staticEmbedder struct{}

func (staticEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return textVector(text), nil
}

func textVector(text string) []float32 {
	v := []float32{0, 0, 0, 1}
	for i, r := range text {
		v[i%3] += float32(r) / 1000
	}
	return v
}

func buildInput(texts ...string) ([]document.Chunk, [][]float32) {
	chunks := make([]document.Chunk, len(texts))
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		h, _ := fingerprint.Content(t)
		chunks[i] = document.Chunk{Seq: i, Text: t, Hash: h}
		vectors[i] = textVector(t)
	}
	return chunks, vectors
}

func staticBuild(texts ...string) BuildFunc {
	return func(context.Context) ([]document.Chunk, [][]float32, error) {
		chunks, vectors := buildInput(texts...)
		return chunks, vectors, nil
	}
}

func TestCache_GetOrBuild(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)

	idx, err := cache.GetOrBuild(context.Background(), "key1", staticBuild("grace period is thirty days", "premium is due monthly"))
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Count())
	assert.Equal(t, "key1", idx.Key())
}

func TestCache_AtMostOneBuild(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)

	var builds atomic.Int64
	build := func(ctx context.Context) ([]document.Chunk, [][]float32, error) {
		builds.Add(1)
		chunks, vectors := buildInput("alpha", "beta")
		return chunks, vectors, nil
	}

	const n = 16
	var wg sync.WaitGroup
	indexes := make([]*Index, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			indexes[i], errs[i] = cache.GetOrBuild(context.Background(), "same-key", build)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, indexes[i])
		assert.Equal(t, 2, indexes[i].Count())
	}
	assert.Equal(t, int64(1), builds.Load(), "exactly one build across all concurrent callers")
}

func TestCache_CancelledWaiterDoesNotCancelBuild(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)

	var builds atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	var buildCtxErr error
	build := func(ctx context.Context) ([]document.Chunk, [][]float32, error) {
		builds.Add(1)
		close(started)
		<-release
		buildCtxErr = ctx.Err()
		chunks, vectors := buildInput("alpha", "beta")
		return chunks, vectors, nil
	}

	// First waiter gives up mid-build.
	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := cache.GetOrBuild(ctx, "shared-key", build)
		firstDone <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-firstDone, context.Canceled)

	// Second waiter arrives while the build is still running.
	type result struct {
		idx *Index
		err error
	}
	secondDone := make(chan result, 1)
	go func() {
		idx, err := cache.GetOrBuild(context.Background(), "shared-key", build)
		secondDone <- result{idx, err}
	}()

	close(release)
	second := <-secondDone
	require.NoError(t, second.err)
	require.NotNil(t, second.idx)
	assert.Equal(t, 2, second.idx.Count())

	assert.NoError(t, buildCtxErr, "build context must outlive the cancelled waiter")
	assert.Equal(t, int64(1), builds.Load(), "cancellation only removes the waiter, never restarts the build")
}

func TestCache_DistinctKeysBuildIndependently(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)

	var builds atomic.Int64
	build := func(ctx context.Context) ([]document.Chunk, [][]float32, error) {
		builds.Add(1)
		chunks, vectors := buildInput("content")
		return chunks, vectors, nil
	}

	_, err := cache.GetOrBuild(context.Background(), "key-a", build)
	require.NoError(t, err)
	_, err = cache.GetOrBuild(context.Background(), "key-b", build)
	require.NoError(t, err)

	assert.Equal(t, int64(2), builds.Load())
}

func TestCache_FailedBuildNotCachedAndRetryable(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)

	var calls atomic.Int64
	boom := errors.New("upstream down")
	build := func(ctx context.Context) ([]document.Chunk, [][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, nil, boom
		}
		chunks, vectors := buildInput("recovered")
		return chunks, vectors, nil
	}

	_, err := cache.GetOrBuild(context.Background(), "flaky", build)
	require.ErrorIs(t, err, boom)

	idx, err := cache.GetOrBuild(context.Background(), "flaky", build)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Count())
	assert.Equal(t, int64(2), calls.Load())
}

func TestCache_WarmIdempotence(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)
	texts := []string{"the grace period is thirty days", "claims require a hospital bill", "the premium is due monthly"}

	var builds atomic.Int64
	build := func(ctx context.Context) ([]document.Chunk, [][]float32, error) {
		builds.Add(1)
		chunks, vectors := buildInput(texts...)
		return chunks, vectors, nil
	}

	first, err := cache.GetOrBuild(context.Background(), "doc", build)
	require.NoError(t, err)
	second, err := cache.GetOrBuild(context.Background(), "doc", build)
	require.NoError(t, err)
	assert.Equal(t, int64(1), builds.Load())

	r1 := NewRetriever(first, staticEmbedder{}, 2)
	r2 := NewRetriever(second, staticEmbedder{}, 2)

	hitsA, err := r1.Retrieve(context.Background(), "grace period")
	require.NoError(t, err)
	hitsB, err := r2.Retrieve(context.Background(), "grace period")
	require.NoError(t, err)

	require.Equal(t, len(hitsA), len(hitsB))
	for i := range hitsA {
		assert.Equal(t, hitsA[i].Seq, hitsB[i].Seq)
		assert.Equal(t, hitsA[i].Text, hitsB[i].Text)
	}
}

func TestCache_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	cache := NewCache(CacheConfig{Dir: dir}, nil)
	_, err := cache.GetOrBuild(context.Background(), "persisted", staticBuild("kept across restarts"))
	require.NoError(t, err)

	reopened := NewCache(CacheConfig{Dir: dir}, nil)
	var builds atomic.Int64
	idx, err := reopened.GetOrBuild(context.Background(), "persisted", func(ctx context.Context) ([]document.Chunk, [][]float32, error) {
		builds.Add(1)
		chunks, vectors := buildInput("kept across restarts")
		return chunks, vectors, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), builds.Load(), "persisted index should be served without rebuilding")
	assert.Equal(t, 1, idx.Count())
}

func TestCache_EmptyBuildRejected(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)

	_, err := cache.GetOrBuild(context.Background(), "empty", staticBuild())
	require.ErrorIs(t, err, ErrEmptyIndex)
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache(CacheConfig{Dir: t.TempDir()}, nil)

	_, err := cache.GetOrBuild(context.Background(), "gone", staticBuild("short lived"))
	require.NoError(t, err)

	cache.Invalidate("gone")
	_, ok := cache.Get("gone")
	assert.False(t, ok)
}

func TestCache_InMemoryFallback(t *testing.T) {
	// Empty dir means no persistence; everything must still work.
	cache := NewCache(CacheConfig{}, nil)

	idx, err := cache.GetOrBuild(context.Background(), "mem", staticBuild("in memory only"))
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Count())

	again, ok := cache.Get("mem")
	require.True(t, ok)
	assert.Equal(t, 1, again.Count())
}

func TestRetriever_OrderingAndTieBreak(t *testing.T) {
	cache := NewCache(CacheConfig{}, nil)

	// Two identical chunks force a similarity tie; the lower sequence index
	// must come first.
	build := func(ctx context.Context) ([]document.Chunk, [][]float32, error) {
		chunks, vectors := buildInput("duplicate text", "duplicate text", "unrelated zzz")
		return chunks, vectors, nil
	}
	idx, err := cache.GetOrBuild(context.Background(), "ties", build)
	require.NoError(t, err)

	r := NewRetriever(idx, staticEmbedder{}, 3)
	hits, err := r.Retrieve(context.Background(), "duplicate text")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 0, hits[0].Seq)
	assert.Equal(t, 1, hits[1].Seq)
}

func TestRetriever_TopKCappedAtCount(t *testing.T) {
	cache := NewCache(CacheConfig{}, nil)
	idx, err := cache.GetOrBuild(context.Background(), "small", staticBuild("only one chunk"))
	require.NoError(t, err)

	r := NewRetriever(idx, staticEmbedder{}, 15)
	hits, err := r.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
