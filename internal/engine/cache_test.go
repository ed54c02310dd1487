package engine

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s, err := NewPageStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, s.Dir())

	_, err = NewPageStore("")
	assert.Error(t, err)
}

func TestPageStorePath(t *testing.T) {
	s := &PageStore{dir: "/var/cache/pages"}
	assert.Equal(t, "/var/cache/pages/dQw4w9WgXcQ.html", s.Path("dQw4w9WgXcQ"))
}

func TestPageStoreRoundTrip(t *testing.T) {
	s, err := NewPageStore(t.TempDir())
	require.NoError(t, err)

	assert.False(t, s.Has("abc"))

	page := []byte("<!doctype html>\n<pre>000.0  hi</pre>\n")
	require.NoError(t, s.Put("abc", page))
	assert.True(t, s.Has("abc"))

	got, err := s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, page, got)
	assert.Equal(t, 1, s.Len())

	// Replace keeps exactly one page for the id.
	require.NoError(t, s.Put("abc", []byte("v2")))
	got, err = s.Get("abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
	assert.Equal(t, 1, s.Len())
}

func TestPageStoreGetMissing(t *testing.T) {
	s, err := NewPageStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Get("nope")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPageStoreDirectoryIsNotAPage(t *testing.T) {
	s, err := NewPageStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(s.Path("weird"), 0o755))
	assert.False(t, s.Has("weird"))
	assert.Equal(t, 0, s.Len())
}

func TestPageStoreConcurrentPut(t *testing.T) {
	s, err := NewPageStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Put("same", []byte("deterministic page")))
		}()
	}
	wg.Wait()

	got, err := s.Get("same")
	require.NoError(t, err)
	assert.Equal(t, "deterministic page", string(got))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCacheStats(t *testing.T) {
	s, err := NewPageStore(t.TempDir())
	require.NoError(t, err)
	cacheHits.Store(0)
	cacheMisses.Store(0)

	s.Has("x")
	hits, misses := CacheStats()
	assert.EqualValues(t, 0, hits)
	assert.EqualValues(t, 1, misses)

	require.NoError(t, s.Put("x", []byte("p")))
	s.Has("x")
	hits, misses = CacheStats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}
