// Package cache memoises fetched page text within a single verification batch.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Key derives the cache key for a page URL. Surrounding whitespace and the
// fragment do not change the page, so they do not change the key.
func Key(url string) string {
	url = strings.TrimSpace(url)
	if i := strings.IndexByte(url, '#'); i >= 0 {
		url = url[:i]
	}
	sum := sha256.Sum256([]byte(url))
	return "negcheck:page:v1:" + hex.EncodeToString(sum[:])
}

// Pages holds page text keyed by URL. Empty text (a failed fetch) is cached
// like any other result so a dead link is only tried once per batch.
type Pages struct {
	store  *gocache.Cache
	flight singleflight.Group

	loads   atomic.Int64
	fetches atomic.Int64
}

// NewPages creates a page cache whose entries live for ttl. The cache has no
// janitor goroutine; it is meant to be dropped with the batch that owns it.
func NewPages(ttl time.Duration) *Pages {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &Pages{store: gocache.New(ttl, 0)}
}

// Get returns the cached text for url
func (p *Pages) Get(url string) (string, bool) {
	v, ok := p.store.Get(Key(url))
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Load returns the cached text for url, calling fetch on a miss. Concurrent
// callers for the same URL share a single fetch.
func (p *Pages) Load(url string, fetch func() string) string {
	p.loads.Add(1)
	if text, ok := p.Get(url); ok {
		return text
	}

	key := Key(url)
	v, _, _ := p.flight.Do(key, func() (any, error) {
		if v, ok := p.store.Get(key); ok {
			return v, nil
		}
		p.fetches.Add(1)
		text := fetch()
		p.store.SetDefault(key, text)
		return text, nil
	})
	return v.(string)
}

// Len returns the number of cached pages, including expired ones not yet evicted
func (p *Pages) Len() int {
	return p.store.ItemCount()
}

// Stats returns how many Load calls were served without a fetch, and how many fetched
func (p *Pages) Stats() (hits, fetches int64) {
	f := p.fetches.Load()
	return p.loads.Load() - f, f
}
