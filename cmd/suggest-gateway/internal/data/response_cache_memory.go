package data

import (
	"context"
	"sync"
	"time"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

type cacheEntry struct {
	value    domain.ResponseData
	storedAt time.Time
}

// MemoryResponseCache 进程内有界TTL缓存
// 过期为惰性删除；满容量时淘汰 storedAt 最小的条目（按写入时间，不按访问时间）
type MemoryResponseCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        Clock
}

// NewMemoryResponseCache 创建进程内缓存
func NewMemoryResponseCache(ttl time.Duration, maxEntries int) *MemoryResponseCache {
	return NewMemoryResponseCacheWithClock(ttl, maxEntries, time.Now)
}

// NewMemoryResponseCacheWithClock 使用指定时间源创建缓存
func NewMemoryResponseCacheWithClock(ttl time.Duration, maxEntries int, now Clock) *MemoryResponseCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryResponseCache{
		entries:    make(map[string]cacheEntry, maxEntries),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        now,
	}
}

// Get 获取缓存，过期条目删除并返回未命中
func (c *MemoryResponseCache) Get(_ context.Context, key string) (domain.ResponseData, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.ResponseData{}, false
	}
	if now.Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return domain.ResponseData{}, false
	}
	return e.value, true
}

// Put 写入缓存；容量已满且是新key时先淘汰最旧条目
func (c *MemoryResponseCache) Put(_ context.Context, key string, value domain.ResponseData) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	value.Cached = false
	c.entries[key] = cacheEntry{value: value, storedAt: now}
}

// Len 当前条目数（含尚未惰性删除的过期条目）
func (c *MemoryResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryResponseCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
