package service

import (
	"sync"

	"batteryusage/internal/modules/resolver/domain"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 512

type cacheEntry struct {
	info     domain.PackageInfo
	resolved bool
}

// Cache memoizes lookups for one locale, including negative results. Changing
// the locale drops every entry.
type Cache struct {
	mu      sync.Mutex
	locale  string
	entries *lru.Cache[string, cacheEntry]
}

func NewCache(size int, locale string) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{locale: locale, entries: entries}, nil
}

func (c *Cache) Locale() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locale
}

func (c *Cache) SetLocale(locale string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if locale == c.locale {
		return
	}
	c.locale = locale
	c.entries.Purge()
}

func (c *Cache) Get(name string) (domain.PackageInfo, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries.Get(name)
	if !ok {
		return domain.PackageInfo{}, false, false
	}
	return entry.info, entry.resolved, true
}

func (c *Cache) Put(name string, info domain.PackageInfo, resolved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(name, cacheEntry{info: info, resolved: resolved})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}
