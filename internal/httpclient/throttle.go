package httpclient

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// throttle is a two-level admission controller: a global weighted
// semaphore of capacity concurrency, and a reference-counted map of
// per-host weighted semaphores of capacity concurrencyPerHost. A per-host
// entry is created on first acquire and removed once its reference count
// returns to zero — the Go substitute for the reference implementation's
// weak-valued host map, since Go has no standard weak-reference
// collection suitable for a latency-sensitive admission path.
type throttle struct {
	global *semaphore.Weighted

	mu               sync.Mutex
	perHost          map[string]*hostEntry
	concurrencyPerHost int64
}

type hostEntry struct {
	sem      *semaphore.Weighted
	refcount int
}

func newThrottle(concurrency, concurrencyPerHost int64) *throttle {
	return &throttle{
		global:             semaphore.NewWeighted(concurrency),
		perHost:            map[string]*hostEntry{},
		concurrencyPerHost: concurrencyPerHost,
	}
}

func (t *throttle) acquireHost(host string) *hostEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.perHost[host]
	if !ok {
		e = &hostEntry{sem: semaphore.NewWeighted(t.concurrencyPerHost)}
		t.perHost[host] = e
	}
	e.refcount++
	return e
}

func (t *throttle) releaseHost(host string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.perHost[host]
	if !ok {
		return
	}
	e.refcount--
	if e.refcount <= 0 {
		delete(t.perHost, host)
	}
}

// Acquire blocks until both the global and per-host permits are available,
// then returns a release function that must be called exactly once to
// release both permits (in reverse order) and drop the host's reference
// count. Acquire honors ctx cancellation.
func (t *throttle) Acquire(ctx context.Context, host string) (func(), error) {
	if err := t.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	entry := t.acquireHost(host)
	if err := entry.sem.Acquire(ctx, 1); err != nil {
		t.global.Release(1)
		t.releaseHost(host)
		return nil, err
	}
	release := func() {
		entry.sem.Release(1)
		t.releaseHost(host)
		t.global.Release(1)
	}
	return release, nil
}
