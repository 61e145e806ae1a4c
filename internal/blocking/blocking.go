// Package blocking exposes a synchronous handle over httpclient.Client's
// asynchronous Future, for callers that cannot use channels/goroutines
// directly (e.g. a callback-driven embedder). It is the Go analogue of the
// reference implementation's dedicated-thread client: most Go code that is
// already on a goroutine has no need of it.
package blocking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

// ErrTimeout is returned by Future.Result when the wait duration elapses
// before the underlying request completes.
var ErrTimeout = errors.New("blocking: result timed out")

// Future wraps an httpclient.Future that may not exist yet: Submit returns
// immediately, and the underlying async future is attached once the
// client's worker has accepted the batch.
type Future struct {
	mu     sync.Mutex
	async  *httpclient.Future
	cancel bool
}

func (f *Future) attach(async *httpclient.Future) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.async = async
	if f.cancel {
		async.Cancel()
	}
}

// Cancel requests cancellation. If the underlying async future has not yet
// been attached, the cancellation is applied as soon as it is.
func (f *Future) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancel = true
	if f.async != nil {
		f.async.Cancel()
	}
}

func (f *Future) running() *httpclient.Future {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.async
}

// Cancelled reports whether Cancel was called and has taken effect.
func (f *Future) Cancelled() bool {
	a := f.running()
	return a != nil && a.Cancelled()
}

// Done reports whether the request has completed.
func (f *Future) Done() bool {
	a := f.running()
	return a != nil && a.Done()
}

// Result polls at a coarse ~100ms granularity until the request completes
// or timeout elapses.
func (f *Future) Result(timeout time.Duration) (any, error) {
	deadline := time.Now().Add(timeout)
	for {
		if a := f.running(); a != nil && a.Done() {
			return a.Wait(context.Background())
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		time.Sleep(100 * time.Millisecond)
	}
}

type submission struct {
	future   *Future
	requests []httpclient.Request
}

// Client owns a dedicated goroutine running an httpclient.Client and
// accepts work through a buffered channel (capacity 64); Submit blocks
// only while that buffer is full.
type Client struct {
	queue chan submission
	stop  chan struct{}
	done  chan struct{}
}

// New starts a Client backed by an httpclient.Client built from settings.
func New(settings httpclient.Settings, opts ...httpclient.ClientOption) *Client {
	c := &Client{
		queue: make(chan submission, 64),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go c.loop(settings, opts...)
	return c
}

func (c *Client) loop(settings httpclient.Settings, opts ...httpclient.ClientOption) {
	defer close(c.done)
	async := httpclient.NewClient(settings, opts...)
	defer async.Close(context.Background())
	for {
		select {
		case <-c.stop:
			return
		case s := <-c.queue:
			asyncFuture := async.Submit(s.requests...)
			s.future.attach(asyncFuture)
		}
	}
}

// Submit enqueues requests (waiting only while the queue is full) and returns a Future that will
// be attached to the underlying async future once the worker goroutine
// picks it up.
func (c *Client) Submit(requests ...httpclient.Request) *Future {
	f := &Future{}
	c.queue <- submission{future: f, requests: requests}
	return f
}

// Close stops the worker goroutine and waits for it to exit.
func (c *Client) Close() {
	close(c.stop)
	<-c.done
}
