package domain

import (
	"context"
	"net/url"
	"time"
)

// FetchOptions controls a single image download.
type FetchOptions struct {
	// ForceRefresh bypasses any transport-level cache
	ForceRefresh bool

	// Timeout bounds the request; zero uses the client default
	Timeout time.Duration
}

// ImageFetcher downloads one image payload (implemented by the fetch client).
type ImageFetcher interface {
	// Fetch returns the raw bytes of a validated image.
	// Errors: *NetworkError, *BadStatusError, ErrDecode, ErrCanceled.
	Fetch(ctx context.Context, u *url.URL, opts FetchOptions) ([]byte, error)
}
