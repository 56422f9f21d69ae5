package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/artwork/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketResponses = []byte("responses")
)

// ResponseStore implements domain.ResponseCache using BoltDB.
// It is the HTTP transport cache consulted by the fetch client; the image
// layer keeps its own flat content-addressed directory.
type ResponseStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects cache

	// Backing map when running without a database, nil otherwise
	cache map[string][]byte
}

// NewResponseStore opens (or creates) the transport cache under baseCacheDir.
// Each canonical host gets its own database so switching hosts never serves
// another host's responses. An empty baseCacheDir gives a memory-only store.
func NewResponseStore(baseCacheDir, host string) (*ResponseStore, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &ResponseStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if host != "" {
		dir = filepath.Join(baseCacheDir, hashHost(host))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "transport.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResponses)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ResponseStore{db: db}, nil
}

func hashHost(host string) string {
	normalized := strings.TrimRight(strings.ToLower(host), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *ResponseStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *ResponseStore) get(bucket []byte, key string, dest interface{}) bool {
	if s.db == nil {
		s.mu.RLock()
		data, ok := s.cache[string(bucket)+":"+key]
		s.mu.RUnlock()
		return ok && json.Unmarshal(data, dest) == nil
	}

	// Persistent mode never duplicates bodies in memory
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *ResponseStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if s.db == nil {
		// Memory-only mode
		s.mu.Lock()
		s.cache[string(bucket)+":"+key] = data
		s.mu.Unlock()
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *ResponseStore) delete(bucket []byte, key string) {
	if s.db == nil {
		s.mu.Lock()
		delete(s.cache, string(bucket)+":"+key)
		s.mu.Unlock()
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

// === Responses ===

// GetResponse returns the stored response for a request URL.
func (s *ResponseStore) GetResponse(rawURL string) (*domain.CachedResponse, bool) {
	var resp domain.CachedResponse
	if !s.get(bucketResponses, rawURL, &resp) {
		return nil, false
	}
	return &resp, true
}

// SaveResponse stores a response, replacing any previous one for the URL.
func (s *ResponseStore) SaveResponse(rawURL string, resp *domain.CachedResponse) error {
	if resp.StoredAt == 0 {
		resp.StoredAt = time.Now().Unix()
	}
	return s.set(bucketResponses, rawURL, resp)
}

// InvalidateResponse drops one URL.
func (s *ResponseStore) InvalidateResponse(rawURL string) {
	s.delete(bucketResponses, rawURL)
}

// InvalidateAll wipes every stored response.
func (s *ResponseStore) InvalidateAll() {
	if s.db == nil {
		s.mu.Lock()
		s.cache = make(map[string][]byte)
		s.mu.Unlock()
		return
	}

	// Recreate the bucket; deleting under a live cursor skips keys
	s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketResponses) != nil {
			if err := tx.DeleteBucket(bucketResponses); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucketResponses)
		return err
	})
}

// Len returns the number of persisted responses (memory entries in memory-only mode).
func (s *ResponseStore) Len() int {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.cache)
	}
	n := 0
	s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucketResponses); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n
}

var _ domain.ResponseCache = (*ResponseStore)(nil)
