package marketdata

import (
	"sync"
	"time"
)

type cacheEntry struct {
	series []DailyClose
	exp    time.Time
}

// seriesCache memoizes fetched daily-close series per symbol. Entries expire
// on read; a zero TTL never expires.
type seriesCache struct {
	mu sync.RWMutex
	m  map[string]cacheEntry
}

func newSeriesCache() *seriesCache {
	return &seriesCache{m: make(map[string]cacheEntry)}
}

func (c *seriesCache) Get(key string) ([]DailyClose, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.series, true
}

func (c *seriesCache) Set(key string, series []DailyClose, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = cacheEntry{series: series, exp: exp}
	c.mu.Unlock()
}
