package embeddings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Cache is a best-effort, content-addressed store of embedding vectors keyed
// by chunk content hash.
//
// Unlike the index cache there is no cross-key locking: embedding
// recomputation is pure and merely wasteful, so concurrent writers for the
// same hash race harmlessly and last-write-wins. Entries persist to one JSON
// file per hash; corrupt or unreadable files are treated as misses, never as
// errors.
type Cache struct {
	dir    string
	logger *zap.Logger

	mu  sync.RWMutex
	mem map[string][]float32
}

// NewCache creates an embedding cache persisting under dir. If the directory
// cannot be created the cache degrades to in-memory only with a warning.
func NewCache(dir string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("embedding cache directory unavailable, using memory only",
				zap.String("dir", dir),
				zap.Error(err),
			)
			dir = ""
		}
	}
	return &Cache{
		dir:    dir,
		logger: logger,
		mem:    make(map[string][]float32),
	}
}

// GetMany returns the cached vectors for the given content hashes. The
// result is partial: absent hashes are simply missing from the map.
func (c *Cache) GetMany(hashes []string) map[string][]float32 {
	found := make(map[string][]float32, len(hashes))

	c.mu.RLock()
	var missing []string
	for _, h := range hashes {
		if v, ok := c.mem[h]; ok {
			found[h] = v
		} else {
			missing = append(missing, h)
		}
	}
	c.mu.RUnlock()

	for _, h := range missing {
		if v, ok := c.loadFromDisk(h); ok {
			found[h] = v
			c.mu.Lock()
			c.mem[h] = v
			c.mu.Unlock()
		}
	}

	cacheHits.Add(float64(len(found)))
	cacheMisses.Add(float64(len(hashes) - len(found)))

	return found
}

// PutMany stores the vectors in memory and, best effort, on disk.
func (c *Cache) PutMany(vectors map[string][]float32) {
	c.mu.Lock()
	for h, v := range vectors {
		c.mem[h] = v
	}
	c.mu.Unlock()

	if c.dir == "" {
		return
	}
	for h, v := range vectors {
		if err := c.saveToDisk(h, v); err != nil {
			c.logger.Warn("persisting embedding failed",
				zap.String("hash", h),
				zap.Error(err),
			)
		}
	}
}

func (c *Cache) path(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

func (c *Cache) loadFromDisk(hash string) ([]float32, bool) {
	if c.dir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil || len(v) == 0 {
		// Corrupt entry: drop it and report a miss.
		_ = os.Remove(c.path(hash))
		return nil, false
	}
	return v, true
}

func (c *Cache) saveToDisk(hash string, v []float32) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// Write-then-rename keeps readers from observing partial files.
	tmp := c.path(hash) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(hash))
}
