// Package fetch downloads image payloads over HTTP.
//
// A Client issues one GET per attempt with a bounded timeout, validates the
// status and fully decodes the body, and classifies failures into the domain error
// taxonomy. Concurrent fetches of the same URL share one request. Optional
// mirror hosts and retries cover flaky image hosts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/artwork/internal/domain"
	"github.com/mmcdole/artwork/internal/imagecodec"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryInterval = 500 * time.Millisecond
	defaultMaxBodySize   = 64 << 20
	userAgent            = "Artwork/1.0"
)

// Client implements domain.ImageFetcher.
type Client struct {
	httpClient    *http.Client
	cache         domain.ResponseCache
	timeout       time.Duration
	mirrors       []string
	retries       int
	retryInterval time.Duration
	maxBodySize   int64
	userAgent     string
	logger        *slog.Logger

	inflight singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTransportCache serves and stores responses through cache.
// Requests made with ForceRefresh bypass it.
func WithTransportCache(cache domain.ResponseCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMirrors sets fallback hosts tried in order when the canonical host
// fails with a network error or a 5xx status.
func WithMirrors(hosts ...string) Option {
	return func(c *Client) {
		c.mirrors = append([]string(nil), hosts...)
	}
}

// WithRetries sets how many times a transient failure is retried with
// exponential backoff. Zero disables retries.
func WithRetries(n int) Option {
	return func(c *Client) {
		c.retries = n
	}
}

// WithRetryInterval sets the initial backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// WithMaxBodySize caps how many bytes a response body may carry.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates an image fetch client.
func New(logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient:    &http.Client{},
		timeout:       defaultTimeout,
		retryInterval: defaultRetryInterval,
		maxBodySize:   defaultMaxBodySize,
		userAgent:     userAgent,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.maxBodySize <= 0 {
		c.maxBodySize = defaultMaxBodySize
	}
	if c.cache != nil {
		wrapped := *c.httpClient
		wrapped.Transport = newCachingTransport(c.httpClient.Transport, c.cache, logger)
		c.httpClient = &wrapped
	}
	return c
}

// Fetch downloads the image at u. The returned bytes decode to an image with
// positive dimensions. A cancelled ctx yields domain.ErrCanceled
// promptly, even while the request is shared with other callers.
func (c *Client) Fetch(ctx context.Context, u *url.URL, opts domain.FetchOptions) ([]byte, error) {
	if u == nil {
		return nil, errors.New("fetch: nil url")
	}
	key := u.String()
	if opts.ForceRefresh {
		key = "refresh:" + key
	}

	for {
		ch := c.inflight.DoChan(key, func() (interface{}, error) {
			return c.fetchWithRetry(ctx, u, opts)
		})

		select {
		case <-ctx.Done():
			return nil, canceled(ctx)
		case res := <-ch:
			if res.Err != nil {
				// The shared call belonged to a caller that gave up; run our own
				if errors.Is(res.Err, domain.ErrCanceled) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			return res.Val.([]byte), nil
		}
	}
}

func (c *Client) fetchWithRetry(ctx context.Context, u *url.URL, opts domain.FetchOptions) ([]byte, error) {
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if c.retries > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = c.retryInterval
		policy = backoff.WithMaxRetries(eb, uint64(c.retries))
	}
	policy = backoff.WithContext(policy, ctx)

	var data []byte
	operation := func() error {
		body, err := c.fetchHosts(ctx, u, opts)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		data = body
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying image fetch", "url", u.String(), "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx)
		}
		return nil, err
	}
	return data, nil
}

// fetchHosts tries the canonical host, then each mirror in order.
func (c *Client) fetchHosts(ctx context.Context, u *url.URL, opts domain.FetchOptions) ([]byte, error) {
	hosts := append([]string{u.Host}, c.mirrors...)

	var lastErr error
	tried := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		if host == "" || tried[host] {
			continue
		}
		tried[host] = true

		target := *u
		target.Host = host
		body, err := c.fetchOnce(ctx, &target, opts)
		if err == nil {
			return body, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
		if len(c.mirrors) > 0 {
			c.logger.Debug("image host failed", "host", host, "error", err)
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, u *url.URL, opts domain.FetchOptions) ([]byte, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := u.String()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	req.Header.Set("User-Agent", c.userAgent)
	if opts.ForceRefresh {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}

	c.logger.Debug("image request", "url", reqURL, "forceRefresh", opts.ForceRefresh)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx)
		}
		return nil, &domain.NetworkError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body) // drain for connection reuse
		return nil, &domain.BadStatusError{URL: reqURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(ctx)
		}
		return nil, &domain.NetworkError{URL: reqURL, Err: err}
	}
	if int64(len(body)) > c.maxBodySize {
		c.invalidate(reqURL)
		return nil, fmt.Errorf("fetch %s: %w: body exceeds %d bytes", reqURL, domain.ErrDecode, c.maxBodySize)
	}

	if _, err := imagecodec.Decode(body); err != nil {
		c.invalidate(reqURL)
		return nil, fmt.Errorf("fetch %s: %w", reqURL, err)
	}

	c.logger.Debug("fetched image", "url", reqURL, "bytes", len(body), "cache", resp.Header.Get(CacheStatusHeader))
	return body, nil
}

// invalidate drops a response the transport cache must not serve again.
func (c *Client) invalidate(reqURL string) {
	if c.cache != nil {
		c.cache.InvalidateResponse(reqURL)
	}
}

// isTransient reports whether another attempt or another host may succeed.
func isTransient(err error) bool {
	if errors.Is(err, domain.ErrNetwork) {
		return true
	}
	var status *domain.BadStatusError
	return errors.As(err, &status) && status.Temporary()
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", domain.ErrCanceled, context.Cause(ctx))
}

var _ domain.ImageFetcher = (*Client)(nil)
