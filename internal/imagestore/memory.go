package imagestore

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mmcdole/artwork/internal/domain"
)

// memoryTier is an LRU bounded by entry count and by total image cost.
type memoryTier struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, *domain.Image]
	maxBytes int64
	bytes    int64 // sum of Cost() of resident images
}

func newMemoryTier(maxEntries int, maxBytes int64) (*memoryTier, error) {
	m := &memoryTier{maxBytes: maxBytes}
	l, err := simplelru.NewLRU[string, *domain.Image](maxEntries, func(_ string, img *domain.Image) {
		m.bytes -= img.Cost()
	})
	if err != nil {
		return nil, err
	}
	m.lru = l
	return m, nil
}

// get returns a resident image and marks it most recently used.
func (m *memoryTier) get(key string) (*domain.Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Get(key)
}

// add inserts an image, evicting the oldest entries until both ceilings hold.
// Images larger than the byte ceiling are never admitted.
func (m *memoryTier) add(key string, img *domain.Image) {
	cost := img.Cost()
	if m.maxBytes > 0 && cost > m.maxBytes {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Replacing a key does not fire the eviction callback
	if old, ok := m.lru.Peek(key); ok {
		m.bytes -= old.Cost()
	}
	m.lru.Add(key, img)
	m.bytes += cost

	for m.maxBytes > 0 && m.bytes > m.maxBytes {
		if _, _, ok := m.lru.RemoveOldest(); !ok {
			break
		}
	}
}

func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
}

func (m *memoryTier) purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
}

func (m *memoryTier) stats() (entries int, bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len(), m.bytes
}
