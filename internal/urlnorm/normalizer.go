// Package urlnorm canonicalizes image references into one fetchable, cacheable URL.
//
// References come from API payloads in several shapes: absolute URLs on the API
// host, absolute URLs on a CDN mirror, or bare paths. All of them collapse to
// https://<canonical host><path>?<query> so the same resource always shares a
// cache key.
package urlnorm

import (
	"net/url"
	"strings"

	"github.com/mmcdole/artwork/internal/domain"
)

const canonicalScheme = "https"

// Normalizer rewrites references onto a single canonical host.
type Normalizer struct {
	host string
}

// New creates a Normalizer for the given host (e.g. "images.example.com").
// A scheme or trailing slash in host is tolerated and stripped.
func New(host string) *Normalizer {
	host = strings.TrimSpace(host)
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Host
	}
	return &Normalizer{host: strings.TrimRight(host, "/")}
}

// Host returns the canonical host.
func (n *Normalizer) Host() string {
	return n.host
}

// Normalize returns the canonical URL for a reference, or nil when the
// reference is unusable.
func (n *Normalizer) Normalize(ref string) *url.URL {
	ref = strings.TrimSpace(ref)
	if ref == "" || n.host == "" {
		return nil
	}

	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
		return &url.URL{
			Scheme:   canonicalScheme,
			Host:     n.host,
			Path:     u.Path,
			RawPath:  u.RawPath,
			RawQuery: u.RawQuery,
		}
	}

	// Scheme-relative ("//cdn.example.com/a.png") keeps only its path
	if strings.HasPrefix(ref, "//") {
		u, err := url.Parse("https:" + ref)
		if err != nil || u.Host == "" {
			return nil
		}
		return n.withPath(u.Path, u.RawPath, u.RawQuery)
	}

	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return nil
	}
	return n.withPath(u.Path, u.RawPath, u.RawQuery)
}

func (n *Normalizer) withPath(path, rawPath, query string) *url.URL {
	if path == "" {
		path = "/"
	}
	return &url.URL{
		Scheme:   canonicalScheme,
		Host:     n.host,
		Path:     path,
		RawPath:  rawPath,
		RawQuery: query,
	}
}

// Requests normalizes a list of references, dropping unusable ones and
// duplicate references while keeping first-seen order.
func (n *Normalizer) Requests(refs []string) []domain.Request {
	seen := make(map[string]bool, len(refs))
	out := make([]domain.Request, 0, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		u := n.Normalize(ref)
		if u == nil {
			continue
		}
		seen[ref] = true
		out = append(out, domain.Request{Reference: ref, URL: u})
	}
	return out
}
