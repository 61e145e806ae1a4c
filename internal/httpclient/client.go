// Package httpclient implements the throttled HTTP client backing the
// fetch-pipeline DSL: a request-batch queue, a worker goroutine, retry and
// timeout policy, and response materialization.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"
)

// Settings configures a Client's defaults. Per-request fields on Request
// override the corresponding Settings value when non-nil.
type Settings struct {
	Timeout            time.Duration
	Retry              int
	RetryInterval      time.Duration
	SleepPerRequest    time.Duration
	Concurrency        int64
	ConcurrencyPerHost int64
	Headers            map[string][]string
	Cookies            map[string]string
}

// DefaultSettings mirrors the reference client's documented defaults
// (SPEC_FULL.md §6).
func DefaultSettings() Settings {
	return Settings{
		Timeout:            20 * time.Second,
		Retry:              1,
		RetryInterval:      1 * time.Second,
		SleepPerRequest:    1 * time.Second,
		Concurrency:        4,
		ConcurrencyPerHost: 2,
		Headers: map[string][]string{
			"User-Agent": {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/69.0.3497.100 Safari/537.36"},
			"Accept":          {"*/*"},
			"Accept-Encoding": {"gzip, deflate"},
			"Accept-Language": {"en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7,ja;q=0.6,zh-TW;q=0.5"},
		},
		Cookies: map[string]string{},
	}
}

// HistorySink receives every materialized Response produced by a Client,
// if one has been attached via WithHistorySink. Implemented by the value
// internal/history.Store.Sink returns; defined here (rather than imported from there)
// to avoid a dependency cycle.
type HistorySink interface {
	RecordResponse(resp *Response) error
}

// Client is a throttled, asynchronous-style HTTP client: Submit enqueues
// work and returns immediately; a single background goroutine drains the
// queue and fans each batch out across per-request goroutines.
type Client struct {
	settings Settings
	http     *http.Client
	throttle *throttle
	logger   *slog.Logger
	history  HistorySink

	queue chan batch

	pending    int64
	processing int64
	done       int64
	mu         sync.Mutex

	closeOnce sync.Once
	stopped   chan struct{}
}

// ClientOption configures optional Client behavior.
type ClientOption func(*Client)

func WithLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.logger = l } }
func WithHistorySink(h HistorySink) ClientOption {
	return func(c *Client) { c.history = h }
}

// NewClient builds a Client and starts its worker goroutine.
func NewClient(settings Settings, opts ...ClientOption) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		settings: settings,
		http: &http.Client{
			Jar:     jar,
			Timeout: 0, // per-attempt timeout is enforced via context, not the client-wide timeout
		},
		throttle: newThrottle(settings.Concurrency, settings.ConcurrencyPerHost),
		logger:   slog.Default(),
		queue:    make(chan batch, 64),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("client start")
	go c.run()
	return c
}

type batch struct {
	future   *Future
	isSingle bool
	requests []Request
}

// Future is a one-shot handle over the eventual result of a Submit call:
// a single *Response if the batch held exactly one request, or a
// []*Response (in submission order) otherwise.
type Future struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	result any
	err    error
}

func newFuture() *Future {
	ctx, cancel := context.WithCancel(context.Background())
	return &Future{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Cancel marks the future cancelled. If the worker has not yet dequeued
// the batch, it is discarded without dispatching any requests.
func (f *Future) Cancel() { f.cancel() }

// Cancelled reports whether Cancel was called.
func (f *Future) Cancelled() bool { return f.ctx.Err() != nil }

// Done reports whether the future has resolved (successfully, with an
// error, or via cancellation).
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Future) setResult(v any, err error) {
	f.mu.Lock()
	f.result, f.err = v, err
	f.mu.Unlock()
	close(f.done)
}

// Wait blocks until the future resolves or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit enqueues reqs as one batch and returns immediately. A single
// request yields a *Response from the future; more than one yields
// []*Response in submission order.
func (c *Client) Submit(reqs ...Request) *Future {
	f := newFuture()
	b := batch{future: f, isSingle: len(reqs) == 1, requests: reqs}
	c.mu.Lock()
	c.pending += int64(len(reqs))
	c.mu.Unlock()
	c.queue <- b
	return f
}

// Close stops accepting new work and waits (up to ctx's deadline) for the
// worker to drain its queue.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.queue)
		select {
		case <-c.stopped:
			c.logger.Info("client closed")
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func (c *Client) run() {
	defer close(c.stopped)
	for b := range c.queue {
		c.mu.Lock()
		c.pending -= int64(len(b.requests))
		c.mu.Unlock()

		if b.future.Cancelled() {
			b.future.setResult(nil, context.Canceled)
			continue
		}

		c.mu.Lock()
		c.processing = int64(len(b.requests))
		c.done = 0
		c.mu.Unlock()

		c.logger.Debug("batch start", "size", len(b.requests))
		responses := make([]*Response, len(b.requests))
		var wg sync.WaitGroup
		for i, req := range b.requests {
			wg.Add(1)
			go func(i int, req Request) {
				defer wg.Done()
				responses[i] = c.process(b.future.ctx, req)
				c.mu.Lock()
				c.done++
				c.mu.Unlock()
			}(i, req)
		}
		wg.Wait()
		c.logger.Debug("batch done", "size", len(b.requests))

		if b.future.Cancelled() {
			// cancelled while in flight: no Response is delivered or recorded
			b.future.setResult(nil, context.Canceled)
			continue
		}

		if c.history != nil {
			for _, r := range responses {
				if err := c.history.RecordResponse(r); err != nil {
					c.logger.Warn("history record failed", "error", err)
				}
			}
		}

		if b.isSingle {
			b.future.setResult(responses[0], nil)
		} else {
			b.future.setResult(responses, nil)
		}
	}
}

func (c *Client) process(ctx context.Context, req Request) *Response {
	host := req.Host()
	release, err := c.throttle.Acquire(ctx, host)
	if err != nil {
		return NewFailureResponse(err.Error(), req)
	}
	defer release()

	timeout := c.settings.Timeout
	if req.Timeout != nil {
		timeout = *req.Timeout
	}
	retry := c.settings.Retry
	if req.Retry != nil {
		retry = *req.Retry
	}
	retryInterval := c.settings.RetryInterval
	if req.RetryInterval != nil {
		retryInterval = *req.RetryInterval
	}
	sleep := c.settings.SleepPerRequest
	if req.Sleep != nil {
		sleep = *req.Sleep
	}
	defer func() {
		if sleep > 0 {
			time.Sleep(sleep)
		}
	}()

	var resp *Response
	for attempt := 0; attempt <= retry; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		r, err := c.doOnce(attemptCtx, req)
		cancel()
		if err == nil {
			resp = r
			break
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			resp = NewFailureResponse(err.Error(), req)
			break
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("request timed out", "url", req.URL, "attempt", attempt, "timeout", timeout)
			if attempt < retry {
				time.Sleep(retryInterval)
				continue
			}
			resp = NewFailureResponse(fmt.Sprintf("TimeoutError: %s", timeout), req)
			break
		}
		c.logger.Error("unexpected transport error", "url", req.URL, "error", err)
		resp = NewFailureResponse(err.Error(), req)
		break
	}
	return resp
}

func (c *Client) doOnce(ctx context.Context, req Request) (*Response, error) {
	httpReq, bodyCloser, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if bodyCloser != nil {
		defer bodyCloser.Close()
	}
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	content, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return NewResponse(httpResp.Request.URL, httpResp.StatusCode, httpResp.Status, content, req), nil
}

func (c *Client) buildHTTPRequest(ctx context.Context, req Request) (*http.Request, io.Closer, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, nil, err
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, v := range req.Params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	var contentType string
	var closer io.Closer

	switch {
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, nil, err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	case req.Form != nil:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range req.Form {
			if err := w.WriteField(k, v); err != nil {
				return nil, nil, err
			}
		}
		w.Close()
		body = &buf
		contentType = w.FormDataContentType()
	case req.Body != nil:
		body = bytes.NewReader(req.Body)
	case req.Text != "":
		body = bytes.NewReader([]byte(req.Text))
		contentType = "text/plain; charset=utf-8"
	case req.File != "":
		f, err := os.Open(req.File)
		if err != nil {
			return nil, nil, err
		}
		body = f
		closer = f
	}

	method := string(req.Method)
	if method == "" {
		method = string(MethodGET)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}

	for k, vs := range c.settings.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.settings.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	return httpReq, closer, nil
}
