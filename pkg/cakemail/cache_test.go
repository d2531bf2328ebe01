package cakemail

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateCacheBasicOperations(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 2})
	require.True(t, cache.Enabled())

	tmpl := &Template{source: "a"}
	cache.Set("a", tmpl)

	got, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Same(t, tmpl, got)
	assert.Equal(t, 1, cache.Size())

	cache.Remove("a")
	_, ok = cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size())
}

func TestTemplateCacheEviction(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 2})

	cache.Set("a", &Template{source: "a"})
	cache.Set("b", &Template{source: "b"})
	_, _ = cache.Get("a") // a is now most recently used
	cache.Set("c", &Template{source: "c"})

	_, okA := cache.Get("a")
	_, okB := cache.Get("b")
	_, okC := cache.Get("c")
	assert.True(t, okA)
	assert.False(t, okB, "least recently used entry is evicted")
	assert.True(t, okC)
	assert.Equal(t, 2, cache.Size())
}

func TestTemplateCacheTTL(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10, TTL: 20 * time.Millisecond})
	cache.Set("a", &Template{source: "a"})

	_, ok := cache.Get("a")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := cache.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestTemplateCacheDisabled(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 0})
	assert.False(t, cache.Enabled())

	cache.Set("a", &Template{source: "a"})
	_, ok := cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size())

	cache.Clear()
	cache.Remove("a")

	var nilCache *TemplateCache
	_, ok = nilCache.Get("a")
	assert.False(t, ok)
}

func TestTemplateCacheClear(t *testing.T) {
	cache := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 10})
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("t%d", i)
		cache.Set(key, &Template{source: key})
	}
	assert.Equal(t, 5, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestEngineWithoutCache(t *testing.T) {
	engine, err := NewWithConfig(&Config{}, WithLogger(NewNopLogger()))
	require.NoError(t, err)

	// A zero CacheMaxSize in an override means caching is off.
	first, err := engine.Parse("[a]")
	require.NoError(t, err)
	second, err := engine.Parse("[a]")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestCacheKey(t *testing.T) {
	assert.NotEqual(t, cacheKey("x", true), cacheKey("x", false))
}

func TestEnginesShareCache(t *testing.T) {
	shared := NewTemplateCacheWithConfig(CacheConfig{MaxSize: 4})
	us := newTestEngine(t, WithCache(shared))
	de := newTestEngine(t, WithCache(shared), WithCulture("de-DE"))

	content := "[x|N2]"
	data := Data{"x": 1234.5}
	assert.Equal(t, "1,234.50", render(t, us, content, data))
	assert.Equal(t, 1, shared.Size())

	// The German engine reuses the cached template but formats with its own culture.
	assert.Equal(t, "1.234,50", render(t, de, content, data))
	assert.Equal(t, 1, shared.Size())
	tmpl, err := de.Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "1.234,50", tmpl.Render(data))

	tmpl, err = us.Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "1,234.50", tmpl.Render(data))
	assert.Equal(t, 1, shared.Size())
}
