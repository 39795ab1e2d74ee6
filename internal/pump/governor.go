package pump

import (
	"context"
	"sync"
	"time"
)

// Governor defaults. Each is independently tunable via GovernorConfig.
const (
	// DefaultMinInterval is the minimum spacing between any two requests.
	DefaultMinInterval = 250 * time.Millisecond

	// DefaultWriteCooldown is how long reads back off after a write, giving
	// the gateway time to settle before values are re-read.
	DefaultWriteCooldown = 2 * time.Second

	// DefaultWriteYield bounds how long a read defers to queued writes.
	DefaultWriteYield = 500 * time.Millisecond

	// DefaultDebounceDelay collapses rapid repeated writes to one control
	// (e.g. a slider being dragged) into a single request.
	DefaultDebounceDelay = 300 * time.Millisecond

	// DefaultCacheTTL is how long a fetched value is served without a new
	// network request. Zero disables caching entirely.
	DefaultCacheTTL = 5 * time.Second

	// yieldPollInterval is how often YieldToWrites re-checks the pending
	// write counter.
	yieldPollInterval = 10 * time.Millisecond
)

// GovernorConfig holds scheduling and cache tunables.
type GovernorConfig struct {
	MinInterval   time.Duration
	WriteCooldown time.Duration
	WriteYield    time.Duration
	DebounceDelay time.Duration
	CacheTTL      time.Duration
}

// withDefaults fills zero fields with the package defaults. CacheTTL is left
// untouched: zero is a meaningful value (caching disabled).
func (c GovernorConfig) withDefaults() GovernorConfig {
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.WriteCooldown <= 0 {
		c.WriteCooldown = DefaultWriteCooldown
	}
	if c.WriteYield <= 0 {
		c.WriteYield = DefaultWriteYield
	}
	if c.DebounceDelay < 0 {
		c.DebounceDelay = DefaultDebounceDelay
	}
	return c
}

// cacheEntry is a cached value with its capture timestamp.
type cacheEntry struct {
	value any
	at    time.Time
}

// debounceCall is a pending debounced execution shared by all callers of the
// same key within the window.
type debounceCall struct {
	timer  *time.Timer
	fn     func(context.Context) (any, error)
	done   chan struct{}
	result any
	err    error
}

// Governor is the central gatekeeper every gateway access passes through.
//
// It enforces minimum inter-request spacing, gives writes scheduling priority
// over reads, maintains a short cooldown after writes, debounces duplicate
// near-simultaneous writes, and holds a TTL value cache keyed by
// "deviceID:dataID".
//
// The governor never returns device errors; it only delays callers or serves
// cache misses. Its mutex protects the scheduling and cache structures for
// O(map lookup) durations and is never held across an HTTP call or sleep.
type Governor struct {
	cfg GovernorConfig

	mu            sync.Mutex
	lastRequest   time.Time
	lastWrite     time.Time
	pendingWrites int
	cache         map[string]cacheEntry
	debounced     map[string]*debounceCall

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// NewGovernor creates a governor with the given tunables.
func NewGovernor(cfg GovernorConfig) *Governor {
	return &Governor{
		cfg:       cfg.withDefaults(),
		cache:     make(map[string]cacheEntry),
		debounced: make(map[string]*debounceCall),
		now:       time.Now,
	}
}

// WaitForSlot blocks until the caller may start a request.
//
// Reads wait until minInterval has elapsed since the last request AND the
// write cooldown has elapsed since the last write. Writes only honor
// minInterval, which gives them priority after a preceding write.
//
// Returns a context error if ctx is cancelled while waiting; never a device
// error.
func (g *Governor) WaitForSlot(ctx context.Context, isWrite bool) error {
	for {
		g.mu.Lock()
		now := g.now()

		var wait time.Duration
		if !g.lastRequest.IsZero() {
			if d := g.cfg.MinInterval - now.Sub(g.lastRequest); d > wait {
				wait = d
			}
		}
		if !isWrite && !g.lastWrite.IsZero() {
			if d := g.cfg.WriteCooldown - now.Sub(g.lastWrite); d > wait {
				wait = d
			}
		}

		if wait <= 0 {
			g.lastRequest = now
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// YieldToWrites blocks the calling read while writes are pending, up to
// maxWait (the configured write-yield bound when maxWait <= 0). The bound
// caps worst-case read starvation; expiry is not an error.
func (g *Governor) YieldToWrites(ctx context.Context, maxWait time.Duration) error {
	if maxWait <= 0 {
		maxWait = g.cfg.WriteYield
	}
	deadline := g.now().Add(maxWait)

	for g.PendingWrites() > 0 {
		if !g.now().Before(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(yieldPollInterval):
		}
	}
	return nil
}

// BeginWrite marks a write as queued, before the write waits for its slot.
// Reads observing the counter via YieldToWrites defer until it drains.
func (g *Governor) BeginWrite() {
	g.mu.Lock()
	g.pendingWrites++
	g.mu.Unlock()
}

// FinishWrite unmarks a queued write. Paired with BeginWrite regardless of
// the write's outcome.
func (g *Governor) FinishWrite() {
	g.mu.Lock()
	if g.pendingWrites > 0 {
		g.pendingWrites--
	}
	g.mu.Unlock()
}

// PendingWrites returns the number of writes queued or in flight.
func (g *Governor) PendingWrites() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingWrites
}

// SignalWriteComplete stamps the last-write timestamp after a successful
// write. The timestamp only moves forward.
func (g *Governor) SignalWriteComplete() {
	g.mu.Lock()
	if now := g.now(); now.After(g.lastWrite) {
		g.lastWrite = now
	}
	g.mu.Unlock()
}

// Debounce schedules fn to run after delay. A second call for the same key
// within the window cancels the earlier schedule, replaces fn, and restarts
// the timer: only the last call actually executes, and every caller waiting
// on the key receives that single execution's result.
//
// A non-positive delay executes fn immediately. The executed fn runs with a
// background context because it is detached from any single caller; each
// caller's own ctx still bounds how long that caller waits.
func (g *Governor) Debounce(ctx context.Context, key string, delay time.Duration, fn func(context.Context) (any, error)) (any, error) {
	if delay <= 0 {
		return fn(ctx)
	}

	g.mu.Lock()
	call, ok := g.debounced[key]
	if ok {
		call.fn = fn
		call.timer.Reset(delay)
	} else {
		call = &debounceCall{fn: fn, done: make(chan struct{})}
		g.debounced[key] = call
		call.timer = time.AfterFunc(delay, func() { g.runDebounced(key) })
	}
	g.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		return call.result, call.err
	}
}

// runDebounced executes the pending call for key, if still registered.
func (g *Governor) runDebounced(key string) {
	g.mu.Lock()
	call, ok := g.debounced[key]
	if !ok {
		// A stale timer fire after the call already ran.
		g.mu.Unlock()
		return
	}
	delete(g.debounced, key)
	fn := call.fn
	g.mu.Unlock()

	call.result, call.err = fn(context.Background())
	close(call.done)
}

// CacheGet returns the cached value for key if it is still within TTL.
// Expired entries are evicted, never served. With TTL zero every lookup is a
// miss, forcing all reads through the network.
func (g *Governor) CacheGet(key string) (any, bool) {
	if g.cfg.CacheTTL <= 0 {
		return nil, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.cache[key]
	if !ok {
		return nil, false
	}
	if g.now().Sub(entry.at) >= g.cfg.CacheTTL {
		delete(g.cache, key)
		return nil, false
	}
	return entry.value, true
}

// CacheSet stores value under key with the current capture timestamp.
// No-op when caching is disabled.
func (g *Governor) CacheSet(key string, value any) {
	if g.cfg.CacheTTL <= 0 {
		return
	}

	g.mu.Lock()
	g.cache[key] = cacheEntry{value: value, at: g.now()}
	g.mu.Unlock()
}

// InvalidateDevice removes every cached key prefixed by deviceID. Called
// after any successful write, since one write can change several readable
// fields at once.
func (g *Governor) InvalidateDevice(deviceID string) {
	prefix := deviceID + ":"

	g.mu.Lock()
	for key := range g.cache {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(g.cache, key)
		}
	}
	g.mu.Unlock()
}

// ClearCache drops every cached value. Used on reconnect and system reset.
func (g *Governor) ClearCache() {
	g.mu.Lock()
	g.cache = make(map[string]cacheEntry)
	g.mu.Unlock()
}
