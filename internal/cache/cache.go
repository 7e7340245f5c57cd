// Package cache implements the bounded, TTL-indexed, single-flight record
// cache that sits between the storage facade and the database adapters.
package cache

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/a-agmon/prism-cache/internal/record"
	"github.com/a-agmon/prism-cache/internal/telemetry"
)

// Producer fetches the authoritative record for a cache miss. It is invoked
// at most once per key per single-flight round, under a cache-managed
// timeout independent of any individual caller's context.
type Producer func(ctx context.Context) (record.Data, error)

const defaultShardCount = 32

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the total number of live entries across all shards.
	MaxEntries int
	// TTL is how long an inserted entry remains live.
	TTL time.Duration
	// RequestTimeout bounds how long a single producer invocation may run.
	// Zero means no timeout.
	RequestTimeout time.Duration
	// Shards overrides the shard count; zero uses defaultShardCount.
	Shards int
	Logger telemetry.Logger
}

// Cache is a fixed-capacity, TTL-indexed map of Fingerprint -> record.Data
// with per-key single-flight coalescing of concurrent misses.
type Cache struct {
	shards         []*shard
	ttl            time.Duration
	requestTimeout time.Duration
	logger         telemetry.Logger
}

// New builds a Cache. MaxEntries and TTL must both be positive.
func New(opts Options) *Cache {
	n := opts.Shards
	if n <= 0 {
		n = defaultShardCount
	}
	// A shard with capacity 0 never evicts, so the shard count can never
	// exceed max_entries: capping it here (rather than letting a shard sit
	// at cap 0) is what keeps distributeCapacity's per-shard caps >= 1 and
	// their sum an exact, enforced max_entries.
	if opts.MaxEntries > 0 && n > opts.MaxEntries {
		n = opts.MaxEntries
	}
	if n < 1 {
		n = 1
	}

	logger := telemetry.Coalesce(opts.Logger)

	c := &Cache{
		shards:         make([]*shard, n),
		ttl:            opts.TTL,
		requestTimeout: opts.RequestTimeout,
		logger:         logger,
	}

	cap := distributeCapacity(opts.MaxEntries, n)
	for i := range c.shards {
		c.shards[i] = newShard(cap[i])
	}
	return c
}

// distributeCapacity splits total as evenly as possible across n buckets so
// the sum is exactly total (never more), which is what makes the global
// live-entry bound an equality rather than an approximation.
func distributeCapacity(total, n int) []int {
	base := total / n
	rem := total % n
	out := make([]int, n)
	for i := range out {
		out[i] = base
		if i < rem {
			out[i]++
		}
	}
	return out
}

func (c *Cache) shardFor(key Fingerprint) *shard {
	h := fnv1a(string(key))
	return c.shards[h%uint64(len(c.shards))]
}

func fnv1a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// Get returns a live record for key, or (zero, false) on miss (including
// expired entries, which are lazily evicted on access).
func (c *Cache) Get(key Fingerprint) (record.Data, bool) {
	return c.shardFor(key).get(key)
}

// Insert unconditionally stores rec under key, resetting its TTL, and runs
// eviction if the shard is over capacity.
func (c *Cache) Insert(key Fingerprint, rec record.Data) {
	now := time.Now()
	c.shardFor(key).insert(key, rec, now, now.Add(c.ttl))
}

// Invalidate drops key if present.
func (c *Cache) Invalidate(key Fingerprint) {
	c.shardFor(key).invalidate(key)
}

// GetOrFill implements the atomic "check, else produce once, else wait"
// contract: a live entry is returned immediately; otherwise producer is
// invoked at most once per overlapping wave of callers and its result (or
// failure) is published to every waiter. Failures are never cached.
//
// ctx governs how long THIS caller is willing to wait; canceling it only
// stops this call from waiting, it never cancels a producer that other
// callers may still be relying on.
func (c *Cache) GetOrFill(ctx context.Context, key Fingerprint, producer Producer) (record.Data, error) {
	if rec, ok := c.Get(key); ok {
		return rec, nil
	}
	sh := c.shardFor(key)
	fut, started := sh.startOrJoin(key)
	if started {
		go c.run(key, sh, fut, producer)
	}
	select {
	case <-fut.done:
		return fut.rec, fut.err
	case <-ctx.Done():
		return record.Data{}, ctx.Err()
	}
}

func (c *Cache) run(key Fingerprint, sh *shard, fut *future, producer Producer) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if c.requestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	rec, err := producer(ctx)
	if err == nil {
		// Insert before publishing to waiters/removing the inflight entry:
		// otherwise a window opens where the key is neither inflight nor
		// cached, and a GetOrFill landing in that window re-invokes the
		// producer instead of observing the fresh value.
		now := time.Now()
		sh.insert(key, rec, now, now.Add(c.ttl))
	} else {
		c.logger.Debug("cache producer failed", telemetry.Fields{"error": err.Error()})
	}
	sh.finish(key, fut, rec, err)
}

// Len returns the current total number of stored entries across all shards,
// including expired entries that have not been removed yet. Used by tests
// and diagnostics; it does not evict expired entries as a side effect.
func (c *Cache) Len() int {
	total := 0
	for _, sh := range c.shards {
		total += sh.len()
	}
	return total
}

// future is the single-flight completion signal shared by every waiter on a
// key. Its result is inserted into the cache before the inflight placeholder
// is removed and done is closed, so no waiter can observe a key as neither
// inflight nor cached.
type future struct {
	done chan struct{}
	rec  record.Data
	err  error
}

type node struct {
	key       Fingerprint
	rec       record.Data
	insertedAt time.Time
	expiresAt time.Time
	elem      *list.Element
}

// shard is one lock-protected partition of the cache. Eviction order is
// tracked with a doubly linked list in insertion order (oldest at the
// front), which is exactly the "approximate LRU by inserted_at" policy the
// eviction rule calls for — accesses never reorder it.
type shard struct {
	mu       sync.Mutex
	cap      int
	entries  map[Fingerprint]*node
	order    *list.List // of *node, oldest-inserted at Front
	inflight map[Fingerprint]*future
}

func newShard(capacity int) *shard {
	return &shard{
		cap:      capacity,
		entries:  make(map[Fingerprint]*node),
		order:    list.New(),
		inflight: make(map[Fingerprint]*future),
	}
}

func (s *shard) get(key Fingerprint) (record.Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.entries[key]
	if !ok {
		return record.Data{}, false
	}
	if time.Now().After(n.expiresAt) {
		s.removeLocked(n)
		return record.Data{}, false
	}
	return n.rec.Clone(), true
}

func (s *shard) insert(key Fingerprint, rec record.Data, insertedAt, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok {
		s.order.Remove(existing.elem)
		delete(s.entries, key)
	}
	n := &node{key: key, rec: rec.Clone(), insertedAt: insertedAt, expiresAt: expiresAt}
	n.elem = s.order.PushBack(n)
	s.entries[key] = n

	for s.cap > 0 && len(s.entries) > s.cap {
		s.evictOneLocked()
	}
}

func (s *shard) invalidate(key Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.entries[key]; ok {
		s.removeLocked(n)
	}
}

func (s *shard) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// removeLocked drops n from both the map and the order list. Caller holds
// s.mu.
func (s *shard) removeLocked(n *node) {
	delete(s.entries, n.key)
	s.order.Remove(n.elem)
}

// evictOneLocked drops a single entry: an expired one if any exists,
// otherwise the oldest by insertedAt, ties broken by fingerprint for
// deterministic behavior under identical timestamps. Caller holds s.mu.
func (s *shard) evictOneLocked() {
	now := time.Now()
	var candidates []*node
	for e := s.order.Front(); e != nil; e = e.Next() {
		n := e.Value.(*node)
		if now.After(n.expiresAt) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].key < candidates[j].key })
		s.removeLocked(candidates[0])
		return
	}
	front := s.order.Front()
	if front == nil {
		return
	}
	oldest := front.Value.(*node)
	// scan the rest of the (small) tied-timestamp prefix for a
	// fingerprint tiebreak; entries are already insertion-ordered so any
	// tie sits at the very front.
	for e := front.Next(); e != nil; e = e.Next() {
		n := e.Value.(*node)
		if !n.insertedAt.Equal(oldest.insertedAt) {
			break
		}
		if n.key < oldest.key {
			oldest = n
		}
	}
	s.removeLocked(oldest)
}

// startOrJoin returns the future for key, creating and registering a fresh
// one (started=true) if none is in flight, or joining the existing one
// (started=false) otherwise.
func (s *shard) startOrJoin(key Fingerprint) (*future, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fut, ok := s.inflight[key]; ok {
		return fut, false
	}
	fut := &future{done: make(chan struct{})}
	s.inflight[key] = fut
	return fut, true
}

// finish publishes the producer's outcome to every waiter and removes the
// in-flight placeholder. Must be called exactly once per future.
func (s *shard) finish(key Fingerprint, fut *future, rec record.Data, err error) {
	s.mu.Lock()
	if s.inflight[key] == fut {
		delete(s.inflight, key)
	}
	s.mu.Unlock()
	fut.rec, fut.err = rec, err
	close(fut.done)
}
