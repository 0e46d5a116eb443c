package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/queryd/internal/document"
)

// BuildFunc produces the chunks and their embeddings for one document. It is
// invoked at most once per key across all concurrent GetOrBuild callers.
type BuildFunc func(ctx context.Context) ([]document.Chunk, [][]float32, error)

// manifest marks a collection as fully built. A collection without a
// matching manifest is treated as incomplete and rebuilt, which is what
// keeps a crashed half-written build from ever being served.
type manifest struct {
	Key       string    `json:"key"`
	Chunks    int       `json:"chunks"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheConfig holds index cache configuration.
type CacheConfig struct {
	// Dir is the persistence directory. Empty means in-memory only.
	Dir string
	// Compress enables gzip compression of persisted collections.
	Compress bool
}

// Cache is the content-addressed store of vector indexes, keyed by document
// fingerprint.
//
// Persistence is best effort: if the backing directory cannot be opened the
// cache degrades to in-memory operation with a warning, never a request
// failure. Entries survive process restarts and are evicted only by explicit
// invalidation.
type Cache struct {
	db     *chromem.DB
	dir    string
	logger *zap.Logger

	group singleflight.Group

	// mu guards memManifests; collection state is chromem's concern.
	mu           sync.RWMutex
	memManifests map[string]manifest
}

// NewCache opens (or degrades) the persistent index store.
func NewCache(cfg CacheConfig, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Cache{
		dir:          cfg.Dir,
		logger:       logger,
		memManifests: make(map[string]manifest),
	}

	if cfg.Dir != "" {
		db, err := chromem.NewPersistentDB(cfg.Dir, cfg.Compress)
		if err == nil {
			err = os.MkdirAll(filepath.Join(cfg.Dir, "manifests"), 0o755)
		}
		if err == nil {
			c.db = db
			return c
		}
		logger.Warn("index persistence unavailable, caching in memory only",
			zap.String("dir", cfg.Dir),
			zap.Error(err),
		)
		c.dir = ""
	}

	c.db = chromem.NewDB()
	return c
}

// Get returns the cached index for key, or (nil, false) when absent or
// incomplete. Corrupt entries are dropped and reported as misses.
func (c *Cache) Get(key string) (*Index, bool) {
	m, ok := c.loadManifest(key)
	if !ok {
		return nil, false
	}

	collection := c.db.GetCollection(collectionName(key), nil)
	if collection == nil || collection.Count() != m.Chunks {
		// Manifest without a matching collection (or vice versa) means a
		// torn entry; invalidate so the next caller rebuilds.
		c.logger.Warn("dropping incomplete index cache entry", zap.String("key", key))
		c.Invalidate(key)
		return nil, false
	}

	cacheLookups.WithLabelValues("hit").Inc()
	return &Index{collection: collection, key: key}, true
}

// GetOrBuild returns the index for key, building it at most once across all
// concurrent callers.
//
// The build itself runs detached from any single caller's context: a caller
// that gives up only leaves the waiter set, it never cancels a build other
// waiters depend on. A failed build is not cached and a later caller will
// retry.
func (c *Cache) GetOrBuild(ctx context.Context, key string, build BuildFunc) (*Index, error) {
	if idx, ok := c.Get(key); ok {
		return idx, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have finished the
		// build while we queued.
		if idx, ok := c.Get(key); ok {
			return idx, nil
		}
		return c.buildLocked(context.WithoutCancel(ctx), key, build)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Index), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// buildLocked runs the build and persists the result. Callers must hold the
// singleflight slot for key.
func (c *Cache) buildLocked(ctx context.Context, key string, build BuildFunc) (*Index, error) {
	ctx, span := tracer.Start(ctx, "Cache.Build")
	defer span.End()

	start := time.Now()
	chunks, vectors, err := build(ctx)
	if err != nil {
		buildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(chunks) == 0 {
		buildsTotal.WithLabelValues("error").Inc()
		return nil, ErrEmptyIndex
	}
	if len(chunks) != len(vectors) {
		buildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", ErrInvalidConfig, len(chunks), len(vectors))
	}

	idx, err := c.store(ctx, key, chunks, vectors)
	if err != nil {
		buildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	buildsTotal.WithLabelValues("success").Inc()
	c.logger.Info("built vector index",
		zap.String("key", key),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return idx, nil
}

// store writes the collection and, last, its manifest.
func (c *Cache) store(ctx context.Context, key string, chunks []document.Chunk, vectors [][]float32) (*Index, error) {
	name := collectionName(key)

	// Drop any torn leftover from a previous failed build.
	if c.db.GetCollection(name, nil) != nil {
		if err := c.db.DeleteCollection(name); err != nil {
			return nil, fmt.Errorf("clearing stale collection: %w", err)
		}
	}

	collection, err := c.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = docToChromem(chunk, vectors[i])
	}

	// Embeddings are precomputed, so no concurrency is needed here.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		_ = c.db.DeleteCollection(name)
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	m := manifest{
		Key:       key,
		Chunks:    len(chunks),
		Dimension: len(vectors[0]),
		CreatedAt: time.Now().UTC(),
	}
	if err := c.saveManifest(m); err != nil {
		// Persistence trouble downgrades to a warning; the index is
		// complete and usable for this process lifetime.
		c.logger.Warn("persisting index manifest failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	return &Index{collection: collection, key: key}, nil
}

// Invalidate removes the cached index for key.
func (c *Cache) Invalidate(key string) {
	_ = c.db.DeleteCollection(collectionName(key))
	c.mu.Lock()
	delete(c.memManifests, key)
	c.mu.Unlock()
	if c.dir != "" {
		_ = os.Remove(c.manifestPath(key))
	}
}

func collectionName(key string) string {
	return "doc-" + key
}

func (c *Cache) manifestPath(key string) string {
	return filepath.Join(c.dir, "manifests", key+".json")
}

func (c *Cache) loadManifest(key string) (manifest, bool) {
	c.mu.RLock()
	m, ok := c.memManifests[key]
	c.mu.RUnlock()
	if ok {
		return m, true
	}
	if c.dir == "" {
		return manifest{}, false
	}
	data, err := os.ReadFile(c.manifestPath(key))
	if err != nil {
		return manifest{}, false
	}
	if err := json.Unmarshal(data, &m); err != nil || m.Key != key || m.Chunks <= 0 {
		_ = os.Remove(c.manifestPath(key))
		return manifest{}, false
	}
	return m, true
}

func (c *Cache) saveManifest(m manifest) error {
	c.mu.Lock()
	c.memManifests[m.Key] = m
	c.mu.Unlock()
	if c.dir == "" {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := c.manifestPath(m.Key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.manifestPath(m.Key))
}
