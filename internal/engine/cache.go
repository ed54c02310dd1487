package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// PageStore keeps rendered transcript pages on local disk, one file per video:
// <dir>/<id>.html. Pages never expire; delete the file to invalidate.
type PageStore struct {
	dir string
}

// Cache counters.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheWrites atomic.Int64
)

const pageExt = ".html"

// NewPageStore creates the cache directory if needed.
// Called once at startup; the store lives for the whole process.
func NewPageStore(dir string) (*PageStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create %s: %w", dir, err)
	}
	slog.Info("cache: initialized", slog.String("dir", dir))
	return &PageStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *PageStore) Dir() string { return s.dir }

// Path maps a video ID to its page file.
func (s *PageStore) Path(id string) string {
	return filepath.Join(s.dir, id+pageExt)
}

// Has reports whether a page exists for id and records a hit or miss.
func (s *PageStore) Has(id string) bool {
	if !s.Exists(id) {
		cacheMisses.Add(1)
		return false
	}
	cacheHits.Add(1)
	return true
}

// Exists is Has without touching the hit/miss counters.
func (s *PageStore) Exists(id string) bool {
	info, err := os.Stat(s.Path(id))
	return err == nil && !info.IsDir()
}

// Get returns the stored page. Only meaningful after Has(id) returned true.
func (s *PageStore) Get(id string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", id, err)
	}
	return data, nil
}

// Put stores the page for id, replacing any previous one.
// The write goes to a temp file in the same directory and is renamed into
// place, so a concurrent Get sees either the old page or the new one.
func (s *PageStore) Put(id string, page []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+id+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp for %s: %w", id, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(page); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cache: write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: close %s: %w", id, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: chmod %s: %w", id, err)
	}
	if err := os.Rename(tmpName, s.Path(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename %s: %w", id, err)
	}
	cacheWrites.Add(1)
	return nil
}

// Len counts stored pages. Temp files from in-flight writes are skipped.
func (s *PageStore) Len() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, pageExt) {
			continue
		}
		n++
	}
	return n
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}
