package cache

import (
	"context"
	"sync"
	"time"
)

// LocalCache 本地内存缓存（L1 缓存）
//
// 特点：
// - 支持 TTL 过期
// - 容量满时先清理过期条目，仍然满则淘汰最早过期的条目
// - StartCleanup 定期清理过期条目
type LocalCache[V any] struct {
	mu      sync.RWMutex
	data    map[string]cacheEntry[V]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数，<= 0 表示不限制
//   - ttl: 默认过期时间
func NewLocalCache[V any](maxSize int, ttl time.Duration) *LocalCache[V] {
	return &LocalCache[V]{
		data:    make(map[string]cacheEntry[V]),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get 获取缓存值
func (c *LocalCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return entry.value, true
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (c *LocalCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.maxSize > 0 && len(c.data) >= c.maxSize {
		c.evictLocked(now)
	}
	c.data[key] = cacheEntry[V]{value: value, expiresAt: now.Add(ttl)}
}

// Delete 删除缓存值
func (c *LocalCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Len 当前条目数（包含尚未清理的过期条目）
func (c *LocalCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear 清空所有缓存
func (c *LocalCache[V]) Clear() {
	c.mu.Lock()
	c.data = make(map[string]cacheEntry[V])
	c.mu.Unlock()
}

// Cleanup 清理过期条目，返回清理数量
func (c *LocalCache[V]) Cleanup() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeExpiredLocked(now)
}

// StartCleanup 定期清理过期条目，ctx 取消后退出
func (c *LocalCache[V]) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

func (c *LocalCache[V]) removeExpiredLocked(now time.Time) int {
	removed := 0
	for key, entry := range c.data {
		if !now.Before(entry.expiresAt) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// evictLocked 腾出一个位置
func (c *LocalCache[V]) evictLocked(now time.Time) {
	if c.removeExpiredLocked(now) > 0 {
		return
	}

	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for key, entry := range c.data {
		if !found || entry.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, entry.expiresAt, true
		}
	}
	if found {
		delete(c.data, oldestKey)
	}
}
