package cakemail

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheConfig contains configuration options for the template cache
type CacheConfig struct {
	// MaxSize is the maximum number of templates to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached templates. 0 means no expiration.
	TTL time.Duration
}

// TemplateCache caches parsed templates keyed by their source text. It is
// safe for concurrent use.
type TemplateCache struct {
	lru    *expirable.LRU[string, *Template]
	config CacheConfig
}

// NewTemplateCache creates a new template cache with the global configuration
func NewTemplateCache() *TemplateCache {
	config := GetGlobalConfig()
	return NewTemplateCacheWithConfig(CacheConfig{
		MaxSize: config.CacheMaxSize,
		TTL:     config.CacheTTL,
	})
}

// NewTemplateCacheWithConfig creates a new template cache with the given configuration
func NewTemplateCacheWithConfig(config CacheConfig) *TemplateCache {
	tc := &TemplateCache{config: config}
	if config.MaxSize > 0 {
		tc.lru = expirable.NewLRU[string, *Template](config.MaxSize, nil, config.TTL)
	}
	return tc
}

// Enabled reports whether the cache stores anything.
func (tc *TemplateCache) Enabled() bool {
	return tc != nil && tc.lru != nil
}

// Get retrieves a template from the cache
func (tc *TemplateCache) Get(key string) (*Template, bool) {
	if !tc.Enabled() {
		return nil, false
	}
	return tc.lru.Get(key)
}

// Set stores a template, evicting the least recently used entry when full
func (tc *TemplateCache) Set(key string, template *Template) {
	if !tc.Enabled() {
		return
	}
	tc.lru.Add(key, template)
}

// Remove removes a template from the cache
func (tc *TemplateCache) Remove(key string) {
	if !tc.Enabled() {
		return
	}
	tc.lru.Remove(key)
}

// Clear removes all templates from the cache
func (tc *TemplateCache) Clear() {
	if !tc.Enabled() {
		return
	}
	tc.lru.Purge()
}

// Size returns the number of cached templates
func (tc *TemplateCache) Size() int {
	if !tc.Enabled() {
		return 0
	}
	return tc.lru.Len()
}

// cacheKey separates full templates from merge-field-only ones that share a
// source text.
func cacheKey(content string, mergeOnly bool) string {
	if mergeOnly {
		return "m:" + content
	}
	return "t:" + content
}
