package query

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nimburion/providerdesk/pkg/observability/logger"
	"github.com/nimburion/providerdesk/pkg/observability/metrics"
	"github.com/nimburion/providerdesk/pkg/observability/tracing"
)

// Fetcher loads a full collection from the data service.
type Fetcher[T any] func(ctx context.Context) ([]T, error)

type entry struct {
	data       any
	hasData    bool
	inFlight   int
	err        error
	stale      bool
	generation uint64
	// dataGeneration is the generation the stored data was fetched at.
	dataGeneration uint64
	updatedAt      time.Time
	// snapshotChecked is set once the snapshot store was consulted.
	snapshotChecked bool
}

type subscription struct {
	key Key
	fn  func(Key)
}

// Client owns the collection cache. It is safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	entries map[Key]*entry
	subs    map[uint64]subscription
	nextSub uint64

	group       singleflight.Group
	store       Store
	snapshotTTL time.Duration
	logger      logger.Logger
	now         func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithStore persists successful payloads to s and warm-starts from them.
func WithStore(s Store, ttl time.Duration) Option {
	return func(c *Client) {
		c.store = s
		c.snapshotTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates an empty cache.
func NewClient(opts ...Option) *Client {
	c := &Client{
		entries: make(map[Key]*entry),
		subs:    make(map[uint64]subscription),
		logger:  logger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Invalidate marks every entry covered by keys as stale, drops their
// snapshots and notifies subscribers. Cached data stays readable until the
// refetch replaces it.
func (c *Client) Invalidate(keys ...Key) {
	if len(keys) == 0 {
		return
	}

	c.mu.Lock()
	var dropped []Key
	for k, e := range c.entries {
		if coveredByAny(keys, k) {
			e.stale = true
			e.generation++
			dropped = append(dropped, k)
		}
	}
	var notify []subscription
	for _, s := range c.subs {
		if coveredByAny(keys, s.key) {
			notify = append(notify, s)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		if !slices.Contains(dropped, k) {
			dropped = append(dropped, k)
		}
	}
	if c.store != nil {
		for _, k := range dropped {
			if err := c.store.Delete(context.Background(), string(k)); err != nil {
				c.logger.Warn("drop collection snapshot failed", "key", k, "error", err)
			}
		}
	}

	for _, k := range keys {
		_, span := tracing.StartCacheSpan(context.Background(), tracing.SpanOperationCacheInvalidate, string(k))
		span.End()
	}
	c.logger.Debug("collections invalidated", "keys", keys, "entries", len(dropped))

	for _, s := range notify {
		s.fn(s.key)
	}
}

// Subscribe calls fn after any invalidation that covers key. The returned
// function removes the subscription.
func (c *Client) Subscribe(key Key, fn func(Key)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = subscription{key: key, fn: fn}
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func coveredByAny(keys []Key, k Key) bool {
	for _, invalidated := range keys {
		if invalidated.Covers(k) {
			return true
		}
	}
	return false
}

func (c *Client) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

// Query binds a typed fetcher to a key.
type Query[T any] struct {
	client *Client
	key    Key
	fetch  Fetcher[T]
}

// NewQuery creates a typed handle on key. Handles are cheap; screens may
// create one per render.
func NewQuery[T any](c *Client, key Key, fetch Fetcher[T]) *Query[T] {
	return &Query[T]{client: c, key: key, fetch: fetch}
}

// Key returns the collection key.
func (q *Query[T]) Key() Key { return q.key }

// State returns the current snapshot without fetching.
func (q *Query[T]) State() State[T] {
	q.client.mu.Lock()
	defer q.client.mu.Unlock()
	return snapshot[T](q.client.entries[q.key])
}

// Load returns fresh cached data, or fetches when the entry is absent or
// stale. Concurrent loads of the same key share one fetch.
func (q *Query[T]) Load(ctx context.Context) State[T] {
	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheLoad, string(q.key))
	defer span.End()

	q.client.warmStart(ctx, q.key, decodeSnapshot[T])

	q.client.mu.Lock()
	e := q.client.entryLocked(q.key)
	if e.hasData && !e.stale {
		state := snapshot[T](e)
		q.client.mu.Unlock()
		metrics.RecordCacheResult("hit")
		return state
	}
	hadData := e.hasData
	q.client.mu.Unlock()

	if hadData {
		metrics.RecordCacheResult("stale")
	} else {
		metrics.RecordCacheResult("miss")
	}
	return q.Refetch(ctx)
}

// Refetch fetches regardless of freshness. A fetch cancelled through ctx
// leaves the entry as it was. Only callers that see the same generation
// share a fetch, so a load after Invalidate never joins a fetch that began
// before it.
func (q *Query[T]) Refetch(ctx context.Context) State[T] {
	c := q.client
	c.mu.Lock()
	generation := c.entryLocked(q.key).generation
	c.mu.Unlock()

	flight := string(q.key) + "@" + strconv.FormatUint(generation, 10)
	_, _, _ = c.group.Do(flight, func() (any, error) {
		return nil, q.run(ctx, generation)
	})
	return q.State()
}

func (q *Query[T]) run(ctx context.Context, generation uint64) error {
	c := q.client

	c.mu.Lock()
	e := c.entryLocked(q.key)
	e.inFlight++
	c.mu.Unlock()

	ctx, span := tracing.StartCacheSpan(ctx, tracing.SpanOperationCacheFetch, string(q.key))
	defer span.End()

	started := c.now()
	data, err := q.fetch(ctx)
	elapsed := c.now().Sub(started)

	c.mu.Lock()
	e.inFlight--
	switch {
	case e.hasData && generation < e.dataGeneration:
		// A fetch started after ours already stored newer data; its outcome
		// stands, whatever ours was.
		c.mu.Unlock()
		metrics.ObserveFetch(q.key.Collection(), "superseded", elapsed)
		return nil
	case err == nil:
		if data == nil {
			data = []T{}
		}
		e.data = data
		e.hasData = true
		e.dataGeneration = generation
		e.err = nil
		e.stale = e.generation != generation
		e.updatedAt = c.now()
		c.mu.Unlock()

		metrics.ObserveFetch(q.key.Collection(), "success", elapsed)
		tracing.RecordSuccess(span)
		c.saveSnapshot(ctx, q.key, data)
		return nil
	case ctx.Err() != nil:
		c.mu.Unlock()
		metrics.ObserveFetch(q.key.Collection(), "cancelled", elapsed)
		c.logger.WithContext(ctx).Debug("collection fetch cancelled", "key", q.key)
		return ctx.Err()
	default:
		e.err = err
		hasData := e.hasData
		c.mu.Unlock()

		metrics.ObserveFetch(q.key.Collection(), "error", elapsed)
		tracing.RecordError(span, err)
		c.logger.WithContext(ctx).Warn("collection fetch failed", "key", q.key, "error", err, "stale_data", hasData)
		return err
	}
}

func (c *Client) saveSnapshot(ctx context.Context, key Key, data any) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("encode collection snapshot failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(context.WithoutCancel(ctx), string(key), raw, c.snapshotTTL); err != nil {
		c.logger.Warn("save collection snapshot failed", "key", key, "error", err)
	}
}

// warmStart seeds an empty entry from the snapshot store once per key. The
// seeded entry stays stale, so it is always refetched.
func (c *Client) warmStart(ctx context.Context, key Key, decode func([]byte) (any, error)) {
	if c.store == nil {
		return
	}
	c.mu.Lock()
	e := c.entryLocked(key)
	if e.snapshotChecked || e.hasData {
		c.mu.Unlock()
		return
	}
	e.snapshotChecked = true
	c.mu.Unlock()

	raw, err := c.store.Get(ctx, string(key))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("load collection snapshot failed", "key", key, "error", err)
		}
		return
	}
	data, err := decode(raw)
	if err != nil {
		c.logger.Warn("decode collection snapshot failed", "key", key, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e.hasData {
		return
	}
	e.data = data
	e.hasData = true
	e.stale = true
	metrics.RecordCacheResult("snapshot")
}

func decodeSnapshot[T any](raw []byte) (any, error) {
	var data []T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = []T{}
	}
	return data, nil
}

func snapshot[T any](e *entry) State[T] {
	if e == nil {
		return State[T]{}
	}
	state := State[T]{
		IsLoading: e.inFlight > 0,
		IsError:   e.err != nil,
		Err:       e.err,
		Stale:     e.stale,
		UpdatedAt: e.updatedAt,
	}
	if data, ok := e.data.([]T); ok && e.hasData {
		state.Data = data
		state.HasData = true
	}
	return state
}
