// Package loader coordinates image loading for screens.
//
// A Coordinator holds exactly one Mode at a time. Each non-idle mode gets a
// single background pass that walks its requests in order, fetching what the
// image store cannot already resolve and publishing results into an ImageMap
// keyed by the reference a screen used. Switching modes cancels the running
// pass and waits for it to exit before the next mode's map is seeded, so a
// stale pass can never write into the new map.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/artwork/internal/domain"
	"github.com/mmcdole/artwork/internal/urlnorm"
)

// task is one generation of the sequential fetch pass.
type task struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator is the mode state machine. Its methods are safe to call from
// any goroutine. Observers are called synchronously in publish order and must
// not switch modes from inside the callback.
type Coordinator struct {
	store     domain.ImageStore
	fetcher   domain.ImageFetcher
	norm      *urlnorm.Normalizer
	logger    *slog.Logger
	fetchOpts domain.FetchOptions

	switchMu sync.Mutex // serializes mode switches

	mu       sync.RWMutex // guards the fields below
	mode     domain.Mode
	images   domain.ImageMap
	task     *task
	lastList []domain.Request

	notifyMu  sync.Mutex // keeps observer delivery in publish order
	obsMu     sync.Mutex
	observers map[int]domain.ImageObserver
	nextObsID int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFetchTimeout sets the per-request timeout passed to the fetcher.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.fetchOpts.Timeout = d
	}
}

// WithForceRefresh makes every fetch bypass the transport cache.
func WithForceRefresh(force bool) Option {
	return func(c *Coordinator) {
		c.fetchOpts.ForceRefresh = force
	}
}

// New creates an idle coordinator. The store is shared; callers own its lifecycle.
func New(store domain.ImageStore, fetcher domain.ImageFetcher, norm *urlnorm.Normalizer, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		store:     store,
		fetcher:   fetcher,
		norm:      norm,
		logger:    logger,
		mode:      domain.IdleMode{},
		images:    make(domain.ImageMap),
		observers: make(map[int]domain.ImageObserver),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// === Screen operations ===

// Image returns the published image for ref, falling back to the store so a
// resource loaded under another mode is still visible.
func (c *Coordinator) Image(ref string) *domain.Image {
	c.mu.RLock()
	img, ok := c.images[ref]
	c.mu.RUnlock()
	if ok {
		return img
	}

	u := c.norm.Normalize(ref)
	if u == nil {
		return nil
	}
	return c.store.Get(u)
}

// ActivateList switches to list mode for refs. Activating the current list
// again is a no-op.
func (c *Coordinator) ActivateList(refs []string) {
	requests := c.norm.Requests(refs)
	c.switchMode(func(domain.Mode) (domain.Mode, bool) {
		return domain.ListMode{Requests: requests}, true
	})
}

// PauseList goes idle if the current mode is a list.
func (c *Coordinator) PauseList() {
	c.switchMode(func(current domain.Mode) (domain.Mode, bool) {
		if _, ok := current.(domain.ListMode); !ok {
			return nil, false
		}
		return domain.IdleMode{}, true
	})
}

// ResumeList re-activates the last list, if there was one.
func (c *Coordinator) ResumeList() {
	c.switchMode(func(domain.Mode) (domain.Mode, bool) {
		if c.lastList == nil {
			return nil, false
		}
		return domain.ListMode{Requests: c.lastList}, true
	})
}

// ActivateDetail switches to detail mode for one entity.
func (c *Coordinator) ActivateDetail(entityID string, refs []string) {
	requests := c.norm.Requests(refs)
	c.switchMode(func(domain.Mode) (domain.Mode, bool) {
		return domain.DetailMode{EntityID: entityID, Requests: requests}, true
	})
}

// PauseDetail goes idle only if entityID is the active detail. A stale call
// for another entity leaves the current mode alone.
func (c *Coordinator) PauseDetail(entityID string) {
	c.switchMode(func(current domain.Mode) (domain.Mode, bool) {
		detail, ok := current.(domain.DetailMode)
		if !ok || detail.EntityID != entityID {
			return nil, false
		}
		return domain.IdleMode{}, true
	})
}

// Subscribe registers an observer and immediately delivers the current map.
// The returned func removes the observer.
func (c *Coordinator) Subscribe(observer domain.ImageObserver) (unsubscribe func()) {
	c.mu.RLock()
	snapshot := c.images.Clone()
	c.notifyMu.Lock()
	c.mu.RUnlock()
	defer c.notifyMu.Unlock()

	c.obsMu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = observer
	c.obsMu.Unlock()

	observer.OnImagesChanged(snapshot)

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// Mode returns the current mode.
func (c *Coordinator) Mode() domain.Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Images returns a snapshot of the published map.
func (c *Coordinator) Images() domain.ImageMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.images.Clone()
}

// Wait blocks until the current pass, if any, has finished or been cancelled.
func (c *Coordinator) Wait() {
	c.mu.RLock()
	t := c.task
	c.mu.RUnlock()
	if t != nil {
		<-t.done
	}
}

// Close stops any running pass and leaves the coordinator idle.
func (c *Coordinator) Close() {
	c.switchMode(func(domain.Mode) (domain.Mode, bool) {
		return domain.IdleMode{}, true
	})
}

// === State machine ===

// switchMode runs one transition. decide sees the current mode and returns the
// next one, or false to leave everything untouched.
func (c *Coordinator) switchMode(decide func(current domain.Mode) (domain.Mode, bool)) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.RLock()
	current, running := c.mode, c.task
	c.mu.RUnlock()

	next, ok := decide(current)
	if !ok || current.Equal(next) {
		return
	}

	// The old pass must be gone before the new map exists
	if running != nil {
		running.cancel()
		<-running.done
	}

	requests := domain.ModeRequests(next)
	images := make(domain.ImageMap, len(requests))
	for _, req := range requests {
		if img := c.store.Get(req.URL); img != nil {
			images[req.Reference] = img
		}
	}

	var t *task
	if len(requests) > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		t = &task{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	}

	c.mu.Lock()
	c.mode = next
	c.images = images
	c.task = t
	if list, ok := next.(domain.ListMode); ok {
		c.lastList = list.Requests
	}
	snapshot := images.Clone()
	c.notifyMu.Lock()
	c.mu.Unlock()
	c.notify(snapshot)
	c.notifyMu.Unlock()

	c.logger.Debug("mode switched", "from", current.String(), "mode", next.String(), "seeded", len(images))

	if t != nil {
		go c.run(t, next, requests)
	}
}

// run is the sequential fetch pass for one mode generation.
func (c *Coordinator) run(t *task, mode domain.Mode, requests []domain.Request) {
	defer close(t.done)
	defer t.cancel()

	logger := c.logger.With("mode", mode.String())
	for _, req := range requests {
		if t.ctx.Err() != nil {
			logger.Debug("image pass canceled")
			return
		}
		if c.published(req.Reference) {
			continue
		}

		if img := c.store.Get(req.URL); img != nil {
			if !c.publish(t, req.Reference, img) {
				return
			}
			continue
		}

		data, err := c.fetcher.Fetch(t.ctx, req.URL, c.fetchOpts)
		if err != nil {
			if errors.Is(err, domain.ErrCanceled) || t.ctx.Err() != nil {
				logger.Debug("image pass canceled", "ref", req.Reference)
				return
			}
			logger.Warn("image load failed", "ref", req.Reference, "url", req.Key(), "error", err)
			continue
		}
		if t.ctx.Err() != nil {
			logger.Debug("image pass canceled", "ref", req.Reference)
			return
		}

		img, err := c.store.Put(req.URL, data)
		if err != nil {
			logger.Warn("image rejected", "ref", req.Reference, "url", req.Key(), "error", err)
			continue
		}
		if !c.publish(t, req.Reference, img) {
			return
		}
	}
	logger.Debug("image pass complete", "requests", len(requests))
}

func (c *Coordinator) published(ref string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.images[ref]
	return ok
}

// publish adds one entry for generation t. It reports false once t has been
// superseded, in which case nothing is written.
func (c *Coordinator) publish(t *task, ref string, img *domain.Image) bool {
	c.mu.Lock()
	if c.task != t || t.ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	c.images[ref] = img
	snapshot := c.images.Clone()
	c.notifyMu.Lock()
	c.mu.Unlock()

	c.notify(snapshot)
	c.notifyMu.Unlock()
	return true
}

// notify must be called with notifyMu held.
func (c *Coordinator) notify(images domain.ImageMap) {
	c.obsMu.Lock()
	observers := make([]domain.ImageObserver, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.obsMu.Unlock()

	for _, o := range observers {
		o.OnImagesChanged(images)
	}
}
