package securenotify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// pendingRequest is one in-flight deduplicated operation. All duplicate
// callers block on done; the owner settles value/err then closes it.
type pendingRequest struct {
	done    chan struct{}
	value   interface{}
	err     error
	created time.Time
	evicted bool
}

// DedupStats is a snapshot of deduplicator counters.
type DedupStats struct {
	Hits      uint64
	Misses    uint64
	Errors    uint64
	Pending   int
	Completed int
}

// Deduplicator collapses concurrent identical logical requests into one
// execution and optionally caches completed results for a TTL window.
// The pending set and the completed cache are guarded independently; neither
// critical section ever suspends, only the owning operation does.
type Deduplicator struct {
	maxPending int

	mu      sync.Mutex
	pending map[string]*pendingRequest
	order   []string // pending keys in insertion order, for eviction

	completed *expirable.LRU[string, interface{}]

	statsMu sync.Mutex
	hits    uint64
	misses  uint64
	errors  uint64
}

// NewDeduplicator creates a deduplicator tracking at most maxPending
// in-flight requests and caching up to maxCached completed results for ttl.
func NewDeduplicator(ttl time.Duration, maxPending, maxCached int) *Deduplicator {
	return &Deduplicator{
		maxPending: maxPending,
		pending:    make(map[string]*pendingRequest),
		completed:  expirable.NewLRU[string, interface{}](maxCached, nil, ttl),
	}
}

// Key derives the deduplication key for an endpoint + parameter set.
// encoding/json marshals map keys in sorted order, so logically identical
// requests hash identically regardless of construction order.
func (d *Deduplicator) Key(endpoint string, params map[string]interface{}) string {
	var paramsJSON []byte
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			b = []byte(fmt.Sprintf("%v", params))
		}
		paramsJSON = b
	}

	sum := sha256.Sum256(append([]byte(endpoint+":"), paramsJSON...))
	return hex.EncodeToString(sum[:])
}

// Execute runs op with deduplication. Concurrent callers with the same key
// receive the exact same result or error from a single execution; when
// useCache is set, a completed result within the TTL window is returned
// without executing at all.
func (d *Deduplicator) Execute(ctx context.Context, endpoint string, params map[string]interface{}, op Operation, useCache bool) (interface{}, error) {
	value, _, err := d.execute(ctx, endpoint, params, op, useCache)
	return value, err
}

// execute is Execute plus a hit report: hit is true when the result came
// from the completed cache or another caller's in-flight execution, false
// when this caller ran op itself.
func (d *Deduplicator) execute(ctx context.Context, endpoint string, params map[string]interface{}, op Operation, useCache bool) (interface{}, bool, error) {
	key := d.Key(endpoint, params)

	for {
		if useCache {
			if v, ok := d.completed.Get(key); ok {
				d.recordHit()
				return v, true, nil
			}
		}

		d.mu.Lock()
		if pr, ok := d.pending[key]; ok {
			d.mu.Unlock()
			d.recordHit()

			select {
			case <-pr.done:
			case <-ctx.Done():
				return nil, true, ctx.Err()
			}
			if pr.evicted {
				// The owner was evicted from the pending set before settling;
				// fall through and execute the operation ourselves.
				continue
			}
			return pr.value, true, pr.err
		}

		// Miss: register ourselves as the owner.
		pr := &pendingRequest{
			done:    make(chan struct{}),
			created: time.Now(),
		}
		if len(d.pending) >= d.maxPending {
			d.evictOldestLocked()
		}
		d.pending[key] = pr
		d.order = append(d.order, key)
		d.mu.Unlock()
		d.recordMiss()

		value, err := d.run(ctx, key, pr, op, useCache)
		return value, false, err
	}
}

// run executes the owned operation and settles the pending record. The
// record is removed from the pending set the instant the operation settles,
// before waiters observe the result, so a stale entry can never be resurrected.
func (d *Deduplicator) run(ctx context.Context, key string, pr *pendingRequest, op Operation, useCache bool) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(CodeUnknown, fmt.Sprintf("operation panic: %v", r), nil)
		}
		if err == nil && useCache {
			d.completed.Add(key, value)
		}
		if err != nil {
			d.recordError()
		}

		d.mu.Lock()
		pr.value = value
		pr.err = err
		if !pr.evicted {
			d.removeLocked(key)
			close(pr.done)
		}
		d.mu.Unlock()
	}()

	return op(ctx)
}

// evictOldestLocked drops the oldest pending entry to admit a new one.
// Waiters on the evicted entry see the evicted flag and re-issue the
// operation themselves. Caller holds mu.
func (d *Deduplicator) evictOldestLocked() {
	for len(d.order) > 0 {
		oldest := d.order[0]
		d.order = d.order[1:]
		pr, ok := d.pending[oldest]
		if !ok {
			continue
		}
		delete(d.pending, oldest)
		pr.evicted = true
		pr.err = ErrDedupEvicted
		close(pr.done)
		return
	}
}

// removeLocked deletes key from the pending set and insertion order.
func (d *Deduplicator) removeLocked(key string) {
	delete(d.pending, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// ClearCompleted empties the completed-result cache.
func (d *Deduplicator) ClearCompleted() {
	d.completed.Purge()
}

// Stats returns a snapshot of hit/miss/error counters and table sizes.
func (d *Deduplicator) Stats() DedupStats {
	d.statsMu.Lock()
	stats := DedupStats{Hits: d.hits, Misses: d.misses, Errors: d.errors}
	d.statsMu.Unlock()

	d.mu.Lock()
	stats.Pending = len(d.pending)
	d.mu.Unlock()
	stats.Completed = d.completed.Len()
	return stats
}

// ResetStats zeroes the counters.
func (d *Deduplicator) ResetStats() {
	d.statsMu.Lock()
	d.hits, d.misses, d.errors = 0, 0, 0
	d.statsMu.Unlock()
}

func (d *Deduplicator) recordHit() {
	d.statsMu.Lock()
	d.hits++
	d.statsMu.Unlock()
}

func (d *Deduplicator) recordMiss() {
	d.statsMu.Lock()
	d.misses++
	d.statsMu.Unlock()
}

func (d *Deduplicator) recordError() {
	d.statsMu.Lock()
	d.errors++
	d.statsMu.Unlock()
}
