package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for image loading operations
var (
	// ErrNetwork indicates the transport failed before a response arrived (DNS, connect, timeout)
	ErrNetwork = errors.New("image host is unreachable")

	// ErrBadStatus indicates the image host answered outside the 2xx range
	ErrBadStatus = errors.New("unexpected response status")

	// ErrDecode indicates a payload is not a decodable image with positive dimensions
	ErrDecode = errors.New("payload is not a valid image")

	// ErrCanceled indicates the caller abandoned the load. Never logged as a failure.
	ErrCanceled = errors.New("image load canceled")

	// ErrStorage indicates a disk cache read or write failed
	ErrStorage = errors.New("image cache storage failed")
)

// NetworkError wraps a transport failure for one URL.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// BadStatusError reports a non-2xx HTTP status.
type BadStatusError struct {
	URL        string
	StatusCode int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *BadStatusError) Is(target error) bool { return target == ErrBadStatus }

// Temporary reports whether retrying the same request could succeed.
func (e *BadStatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// StorageError wraps a failed disk operation on a cache file.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
