// Package imagestore implements the two-tier image cache.
//
// The memory tier is an LRU bounded by entry count and total cost. The disk
// tier is a flat directory with one file per canonical URL, named by the
// SHA-256 hex digest of the URL string plus a fixed extension. There is no
// index file: a file's existence is the only source of truth, so any file can
// be deleted independently and names are stable across restarts.
package imagestore

import (
	"bytes"
	_ "crypto/sha256" // register the digest algorithm
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/mmcdole/artwork/internal/domain"
	"github.com/mmcdole/artwork/internal/imagecodec"
)

const (
	// DefaultMaxEntries is the memory tier entry ceiling.
	DefaultMaxEntries = 200

	// DefaultMaxBytes is the memory tier cost ceiling.
	DefaultMaxBytes = 64 << 20

	// DefaultExtension is appended to every cache file name.
	DefaultExtension = ".img"

	tempPrefix = ".tmp-"
	dirPerm    = 0o755
)

// Store is the content-addressed image cache. It is safe for concurrent use
// and meant to be shared by every coordinator in the process.
type Store struct {
	dir    string
	ext    string
	logger *slog.Logger

	maxEntries int
	maxBytes   int64
	memory     *memoryTier

	// Background disk writes and deletes
	writes errgroup.Group

	// Serializes renames into place with removal of corrupt files
	diskMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithMaxEntries sets the memory tier entry ceiling.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// WithMaxBytes sets the memory tier cost ceiling in bytes.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		s.maxBytes = n
	}
}

// WithExtension sets the file extension of cache files (".img" by default).
func WithExtension(ext string) Option {
	return func(s *Store) {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.ext = ext
	}
}

// New creates a store persisting to dir. The directory is created if missing.
func New(dir string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errors.New("image cache dir is empty")
	}

	s := &Store{
		dir:        dir,
		ext:        DefaultExtension,
		logger:     logger,
		maxEntries: DefaultMaxEntries,
		maxBytes:   DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxEntries <= 0 {
		return nil, fmt.Errorf("max entries must be > 0, got %d", s.maxEntries)
	}
	if s.maxBytes < 0 {
		return nil, fmt.Errorf("max bytes must be >= 0, got %d", s.maxBytes)
	}

	memory, err := newMemoryTier(s.maxEntries, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory tier: %w", err)
	}
	s.memory = memory

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, &domain.StorageError{Op: "mkdir", Path: dir, Err: err}
	}

	cleanupTempFiles(dir)

	return s, nil
}

// cleanupTempFiles removes partial writes left behind by an interrupted process.
func cleanupTempFiles(dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, tempPrefix+"*"))
	if err != nil || len(matches) == 0 {
		return
	}
	for _, path := range matches {
		os.Remove(path) // Ignore errors
	}
}

// Path returns the content-addressed file path for a canonical URL.
func (s *Store) Path(u *url.URL) string {
	return filepath.Join(s.dir, digest.FromString(u.String()).Encoded()+s.ext)
}

// Get returns the cached image for u, or nil on a miss. A disk hit is promoted
// into memory. A disk file that does not decode is deleted and reported as a miss.
func (s *Store) Get(u *url.URL) *domain.Image {
	if u == nil {
		return nil
	}
	key := u.String()

	if img, ok := s.memory.get(key); ok {
		return img
	}

	path := s.Path(u)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache read failed", "error", &domain.StorageError{Op: "read", Path: path, Err: err})
		}
		return nil
	}

	img, err := imagecodec.Decode(data)
	if err != nil {
		s.logger.Warn("removing corrupt cache file", "url", key, "path", path, "error", err)
		s.removeCorrupt(path, data)
		return nil
	}

	s.memory.add(key, img)
	return img
}

// Put validates data, caches it in memory immediately and persists it to disk
// in the background. An existing disk file is never rewritten.
func (s *Store) Put(u *url.URL, data []byte) (*domain.Image, error) {
	if u == nil {
		return nil, errors.New("put: nil url")
	}
	img, err := imagecodec.Decode(data)
	if err != nil {
		return nil, err
	}

	key := u.String()
	s.memory.add(key, img)

	path := s.Path(u)
	s.writes.Go(func() error {
		if err := s.persist(path, data); err != nil {
			s.logger.Warn("cache write failed", "url", key, "error", err)
		}
		return nil
	})
	return img, nil
}

// removeCorrupt deletes path only while it still holds the bytes that failed
// to decode. A valid file renamed into place since the read is kept.
func (s *Store) removeCorrupt(path string, corrupt []byte) bool {
	s.diskMu.Lock()
	defer s.diskMu.Unlock()

	current, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(current, corrupt) {
		return false
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("cache delete failed", "error", &domain.StorageError{Op: "remove", Path: path, Err: err})
		return false
	}
	return true
}

// persist writes data to path unless the file already exists. Concurrent
// writers of the same URL may both pass the existence check; the rename makes
// the second write an atomic replace with identical bytes.
func (s *Store) persist(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return &domain.StorageError{Op: "create", Path: s.dir, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return &domain.StorageError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &domain.StorageError{Op: "close", Path: tmpPath, Err: err}
	}
	s.diskMu.Lock()
	err = os.Rename(tmpPath, path)
	s.diskMu.Unlock()
	if err != nil {
		_ = os.Remove(tmpPath)
		return &domain.StorageError{Op: "rename", Path: path, Err: err}
	}
	return nil
}

// Remove drops u from memory now and from disk in the background.
func (s *Store) Remove(u *url.URL) {
	if u == nil {
		return
	}
	s.memory.remove(u.String())

	path := s.Path(u)
	s.writes.Go(func() error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache delete failed", "error", &domain.StorageError{Op: "remove", Path: path, Err: err})
		}
		return nil
	})
}

// Flush blocks until pending background disk work has finished.
func (s *Store) Flush() {
	_ = s.writes.Wait()
}

// Stats reports memory tier occupancy.
func (s *Store) Stats() (entries int, bytes int64) {
	return s.memory.stats()
}

// Close flushes pending writes and empties the memory tier.
func (s *Store) Close() error {
	s.Flush()
	s.memory.purge()
	return nil
}

var _ domain.ImageStore = (*Store)(nil)
