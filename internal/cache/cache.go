package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL keeps a day of results per keyword.
const DefaultTTL = 24 * time.Hour

// Store is a byte-oriented key/value store with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Purge deletes expired entries and reports how many were removed.
	Purge(ctx context.Context) (int, error)
}

// Key builds "news:<keyword>:<YYYY-MM-DD>" with the date taken in loc.
func Key(keyword string, t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return "news:" + strings.ToLower(strings.TrimSpace(keyword)) + ":" + t.In(loc).Format("2006-01-02")
}

type item struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are swept periodically until Close.
type Memory struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

var _ Store = (*Memory)(nil)

// NewMemory starts a Memory store sweeping every interval (hourly if zero).
func NewMemory(interval time.Duration) *Memory {
	if interval <= 0 {
		interval = time.Hour
	}
	m := &Memory{
		items: make(map[string]item),
		now:   time.Now,
		done:  make(chan struct{}),
	}
	go m.cleanupLoop(interval)
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || m.now().After(it.expiresAt) {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = item{value: append([]byte(nil), value...), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Purge(context.Context) (int, error) {
	return m.cleanup(), nil
}

// GetStats counts stored entries, expired ones included until the next sweep.
func (m *Memory) GetStats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int{"total_items": len(m.items)}
}

// Close stops the sweeper.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

func (m *Memory) cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, it := range m.items {
		if now.After(it.expiresAt) {
			delete(m.items, key)
			removed++
		}
	}
	return removed
}
