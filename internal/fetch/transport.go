package fetch

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmcdole/artwork/internal/domain"
)

// CacheStatusHeader is set on responses passing through the transport cache.
const CacheStatusHeader = "X-Artwork-Cache"

// maxCacheableBody bounds what the transport cache will buffer and persist
const maxCacheableBody = 32 << 20

// cachingTransport serves GET responses from a ResponseCache unless the
// request carries a cache-bypassing directive. Successful network responses
// are stored, including those fetched with the cache bypassed.
type cachingTransport struct {
	base   http.RoundTripper
	cache  domain.ResponseCache
	logger *slog.Logger
}

func newCachingTransport(base http.RoundTripper, cache domain.ResponseCache, logger *slog.Logger) *cachingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &cachingTransport{base: base, cache: cache, logger: logger}
}

func (t *cachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.base.RoundTrip(req)
	}
	key := req.URL.String()

	if !bypassesCache(req.Header) {
		if cached, ok := t.cache.GetResponse(key); ok {
			t.logger.Debug("transport cache hit", "url", key)
			return cachedHTTPResponse(req, cached), nil
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Header.Set(CacheStatusHeader, "MISS")

	if resp.StatusCode != http.StatusOK || hasDirective(resp.Header.Get("Cache-Control"), "no-store") {
		return resp, nil
	}
	if resp.ContentLength > maxCacheableBody {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCacheableBody+1))
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxCacheableBody {
		// Too large to cache: stitch the buffered prefix back onto the stream
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return resp, nil
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &domain.CachedResponse{
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Body:         body,
	}
	if err := t.cache.SaveResponse(key, entry); err != nil {
		t.logger.Warn("failed to save response", "url", key, "error", err)
	}
	return resp, nil
}

func cachedHTTPResponse(req *http.Request, cached *domain.CachedResponse) *http.Response {
	header := make(http.Header)
	if cached.ContentType != "" {
		header.Set("Content-Type", cached.ContentType)
	}
	if cached.ETag != "" {
		header.Set("ETag", cached.ETag)
	}
	if cached.LastModified != "" {
		header.Set("Last-Modified", cached.LastModified)
	}
	header.Set("Content-Length", strconv.Itoa(len(cached.Body)))
	header.Set(CacheStatusHeader, "HIT")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", cached.StatusCode, http.StatusText(cached.StatusCode)),
		StatusCode:    cached.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(cached.Body)),
		ContentLength: int64(len(cached.Body)),
		Request:       req,
	}
}

func bypassesCache(h http.Header) bool {
	cc := h.Get("Cache-Control")
	return hasDirective(cc, "no-cache") || hasDirective(cc, "no-store") ||
		strings.EqualFold(strings.TrimSpace(h.Get("Pragma")), "no-cache")
}

func hasDirective(value, directive string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), directive) {
			return true
		}
	}
	return false
}
