package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/recbench/recbench/internal/config"
	"github.com/recbench/recbench/internal/experiment"
)

// Cache stores experiment outcomes keyed by a fingerprint of everything
// that influences the result, so unchanged experiments replay for free.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a cache rooted at dir. An empty dir disables the cache.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key generates a cache key for an experiment spec. The key covers:
// - spec identity (name, split, models and params, metrics, options)
// - dataset file contents, including modality files
// A changed rating row or feature vector invalidates the entry.
func Key(spec *config.Spec) (string, error) {
	h := sha256.New()

	if err := writeString(h, spec.Name); err != nil {
		return "", err
	}

	// Spec sections that shape the result. JSON keeps the encoding
	// stable across runs.
	for _, section := range []any{spec.Split, spec.Models, spec.Metrics, spec.Options, spec.Search} {
		raw, err := json.Marshal(section)
		if err != nil {
			return "", fmt.Errorf("marshaling spec section: %w", err)
		}
		if _, err := h.Write(raw); err != nil {
			return "", err
		}
	}

	// Dataset and modality file contents.
	for _, p := range []string{
		spec.Dataset.Path,
		spec.Dataset.ImageFeatures,
		spec.Dataset.TextFeatures,
		spec.Dataset.ItemGraph,
	} {
		if p == "" {
			continue
		}
		if err := hashFile(h, spec.ResolvePath(p)); err != nil {
			// A missing file still contributes its path so the key
			// changes when the file appears.
			if os.IsNotExist(err) {
				if err := writeString(h, p); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("hashing dataset file %s: %w", p, err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached outcome if it exists
func (c *Cache) Get(key string) (*experiment.Outcome, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}
	defer f.Close() //nolint:errcheck

	zr, err := gzip.NewReader(f)
	if err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}
	defer zr.Close() //nolint:errcheck

	var outcome experiment.Outcome
	if err := json.NewDecoder(zr).Decode(&outcome); err != nil {
		slog.Debug("discarding unreadable cache entry", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("cache hit", "key", key)
	return &outcome, true
}

// Put stores an experiment outcome in the cache
func (c *Cache) Put(key string, outcome *experiment.Outcome) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	f, err := os.Create(c.cachePath(key))
	if err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(outcome); err != nil {
		zw.Close() //nolint:errcheck
		return fmt.Errorf("marshaling outcome: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing cache file: %w", err)
	}
	return nil
}

// Clear removes all cached results
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: verify this looks like a recbench cache directory
	// before removing anything.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if filepath.Ext(entry.Name()) == ".gz" {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// cachePath returns the file path for a cache key
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json.gz")
}

func writeString(w io.Writer, s string) error {
	// Null byte delimiter prevents hash collisions between adjacent
	// fields.
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	return nil
}
