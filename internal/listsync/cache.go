// Package listsync keeps the items of a list view in sync with its query.
//
// A Cache holds the last page fetched for the current (entity, query) pair.
// Every change of the query by value starts exactly one fetch; results of
// superseded fetches are discarded, so the items always belong to the most
// recent pair. Failed fetches keep the previous items and surface through
// Status and Err. Items created locally can be appended without a round trip
// and are replaced by the next authoritative fetch.
package listsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"myday/backend"
	"myday/internal/breaker"
	"myday/internal/utils"
)

// ErrClosed is returned by Wait and SetEntity after Close.
var ErrClosed = errors.New("list cache closed")

// Status is the fetch state of a Cache.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of a Cache.
type Snapshot[T any] struct {
	Items      []T
	TotalPages int
	Entity     string
	Status     Status
	Err        error
}

type options struct {
	logger  *utils.Logger
	timeout time.Duration
	metrics *Metrics
	breaker *breaker.Breaker
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the logger for fetch failures and discarded results.
func WithLogger(l *utils.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout bounds every fetch. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithMetrics records every fetch in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithBreaker routes fetches through b.
func WithBreaker(b *breaker.Breaker) Option {
	return func(o *options) { o.breaker = b }
}

// Cache is the fetched page of one list view. It is safe for concurrent use.
type Cache[Q comparable, T any] struct {
	fetcher Fetcher
	opts    options

	ctx  context.Context // parent of every fetch, cancelled by Close
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	kind        string
	source      Source[Q, T]
	query       Q
	items       []T
	totalPages  int
	status      Status
	lastErr     error
	seq         uint64             // id of the most recently issued fetch
	cancelFetch context.CancelFunc // cancels the in-flight fetch
	settled     chan struct{}      // closed when the latest fetch resolves

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

// New creates a Cache for kind and q and starts the initial fetch.
// It fails with ErrUnsupportedEntity or ErrEntityMismatch when kind has no
// fetch operation for Q and T.
func New[Q comparable, T any](fetcher Fetcher, kind string, q Q, opts ...Option) (*Cache[Q, T], error) {
	src, err := resolve[Q, T](fetcher, kind)
	if err != nil {
		return nil, err
	}

	o := options{logger: utils.GetLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Cache[Q, T]{
		fetcher:   fetcher,
		opts:      o,
		ctx:       ctx,
		stop:      stop,
		kind:      kind,
		source:    src,
		query:     q,
		items:     []T{},
		status:    StatusIdle,
		listeners: make(map[int]func()),
	}

	c.mu.Lock()
	c.fetchLocked()
	c.mu.Unlock()
	c.notify()
	return c, nil
}

// SetQuery fetches for q unless it equals the current query.
func (c *Cache[Q, T]) SetQuery(q Q) {
	c.mu.Lock()
	if c.closed || q == c.query {
		c.mu.Unlock()
		return
	}
	c.query = q
	c.fetchLocked()
	c.mu.Unlock()
	c.notify()
}

// SetEntity switches the entity kind and fetches for it. Setting the kind
// already bound does nothing.
func (c *Cache[Q, T]) SetEntity(kind string) error {
	src, err := resolve[Q, T](c.fetcher, kind)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if kind == c.kind {
		c.mu.Unlock()
		return nil
	}
	c.kind = kind
	c.source = src
	c.fetchLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// Refresh fetches again for the current pair.
func (c *Cache[Q, T]) Refresh() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.fetchLocked()
	c.mu.Unlock()
	c.notify()
}

// Append adds a locally created item. Total pages and any fetch in flight
// are left alone.
func (c *Cache[Q, T]) Append(item T) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.items = append(c.items, item)
	c.mu.Unlock()
	c.notify()
}

// fetchLocked issues a fetch for the current pair and supersedes the one in
// flight. Callers hold c.mu.
func (c *Cache[Q, T]) fetchLocked() {
	c.seq++
	seq := c.seq

	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	var ctx context.Context
	var cancel context.CancelFunc
	if c.opts.timeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.opts.timeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}
	c.cancelFetch = cancel

	if c.status != StatusLoading {
		c.settled = make(chan struct{})
	}
	c.status = StatusLoading

	c.wg.Add(1)
	go c.run(ctx, cancel, seq, c.kind, c.source, c.query)
}

// run performs one fetch and applies it if it is still the latest.
func (c *Cache[Q, T]) run(ctx context.Context, cancel context.CancelFunc, seq uint64, kind string, src Source[Q, T], q Q) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	page, err := c.fetch(ctx, src, q)
	elapsed := time.Since(start)

	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		c.opts.metrics.observe(kind, resultStale, elapsed)
		c.opts.logger.Debug("listsync: discarded stale %s fetch #%d", kind, seq)
		return
	}

	c.cancelFetch = nil
	if err != nil {
		c.status = StatusError
		c.lastErr = err
		c.opts.metrics.observe(kind, resultError, elapsed)
		c.opts.logger.Warn("listsync: fetch %s failed: %v", kind, err)
	} else {
		items := page.Content
		if items == nil {
			items = []T{}
		}
		c.items = items
		c.totalPages = page.TotalPages
		c.status = StatusReady
		c.lastErr = nil
		c.opts.metrics.observe(kind, resultOK, elapsed)
		c.opts.logger.Debug("listsync: fetched %d %s items in %s", len(items), kind, elapsed)
	}
	close(c.settled)
	c.mu.Unlock()
	c.notify()
}

func (c *Cache[Q, T]) fetch(ctx context.Context, src Source[Q, T], q Q) (page backend.Page[T], err error) {
	if c.opts.breaker == nil {
		return src(ctx, q)
	}
	err = c.opts.breaker.Do(ctx, func(ctx context.Context) error {
		var ferr error
		page, ferr = src(ctx, q)
		return ferr
	})
	return page, err
}

// Snapshot returns the current state.
func (c *Cache[Q, T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{
		Items:      items,
		TotalPages: c.totalPages,
		Entity:     c.kind,
		Status:     c.status,
		Err:        c.lastErr,
	}
}

// Items returns a copy of the cached items.
func (c *Cache[Q, T]) Items() []T {
	return c.Snapshot().Items
}

// TotalPages returns the page count of the last successful fetch.
func (c *Cache[Q, T]) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalPages
}

// Status returns the fetch state.
func (c *Cache[Q, T]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the error of the last fetch, or nil if it succeeded.
func (c *Cache[Q, T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Query returns the query the cache is synced to.
func (c *Cache[Q, T]) Query() Q {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Entity returns the entity kind.
func (c *Cache[Q, T]) Entity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kind
}

// Wait blocks until the latest fetch has resolved and returns its error.
// A fetch issued while waiting is waited for as well.
func (c *Cache[Q, T]) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.status != StatusLoading {
			err := c.lastErr
			c.mu.Unlock()
			return err
		}
		settled := c.settled
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-settled:
		}
	}
}

// OnChange registers fn to run after every state change. fn runs without
// the cache locked and may read it; it must not block.
func (c *Cache[Q, T]) OnChange(fn func()) (cancel func()) {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Cache[Q, T]) notify() {
	c.listenersMu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Close cancels the fetch in flight and waits for it to return.
func (c *Cache[Q, T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.status == StatusLoading {
		close(c.settled)
	}
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// String describes the cache for logs.
func (c *Cache[Q, T]) String() string {
	s := c.Snapshot()
	return fmt.Sprintf("%s cache: %d items, %d pages, %s", s.Entity, len(s.Items), s.TotalPages, s.Status)
}
