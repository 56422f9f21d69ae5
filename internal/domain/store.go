package domain

import "net/url"

// ImageStore is the two-tier (memory + disk) image cache.
// Implementations must be safe for concurrent use by several coordinators.
type ImageStore interface {
	// Get returns the cached image for a canonical URL, or nil on a miss.
	// Never blocks on network.
	Get(u *url.URL) *Image

	// Put validates and caches a payload, returning the decoded image.
	// Fails with ErrDecode when the payload is not a usable image.
	Put(u *url.URL, data []byte) (*Image, error)

	// Remove drops the entry from both tiers (best effort).
	Remove(u *url.URL)
}

// ResponseCache is the HTTP transport-level cache used by the fetch client.
type ResponseCache interface {
	GetResponse(rawURL string) (*CachedResponse, bool)
	SaveResponse(rawURL string, resp *CachedResponse) error
	InvalidateResponse(rawURL string)
	Close() error
}

// CachedResponse is the subset of an HTTP response kept by the transport cache.
type CachedResponse struct {
	StatusCode   int    `json:"status"`
	ContentType  string `json:"contentType,omitempty"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	Body         []byte `json:"body"`
	StoredAt     int64  `json:"storedAt"`
}
