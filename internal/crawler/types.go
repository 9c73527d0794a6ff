package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one outbound HTTP call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Delay is the minimum wait before the request is executed. Poll
	// follow-ups use it to space out status checks.
	Delay time.Duration
}

// Host returns the lower-cased host of the request URL, or "unknown".
func (r Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Response is the transport-level result of a Request.
type Response struct {
	Request    Request
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the status code is 2xx.
func (r Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Parser interprets a Response. It returns the outputs of the step, or an
// error that drops the work item. Outputs returned alongside an error are
// discarded.
type Parser[T any] func(ctx context.Context, resp Response) ([]Output[T], error)

// Output is either a finished item or a follow-up request to chase.
type Output[T any] struct {
	value T
	next  *Work[T]
}

// Item wraps a finished result.
func Item[T any](v T) Output[T] {
	return Output[T]{value: v}
}

// Follow wraps a follow-up request and the parser for its response.
func Follow[T any](req Request, parser Parser[T]) Output[T] {
	return Output[T]{next: &Work[T]{Request: req, Parser: parser}}
}

// IsFollow reports whether o carries follow-up work.
func (o Output[T]) IsFollow() bool {
	return o.next != nil
}

// Value returns the finished item; the zero value for follow-ups.
func (o Output[T]) Value() T {
	return o.value
}

// Next returns the follow-up work; the zero Work for items.
func (o Output[T]) Next() Work[T] {
	if o.next == nil {
		return Work[T]{}
	}
	return *o.next
}

// WithDrop attaches fn to a follow-up; the engine calls it if it gives up on
// that work item. Items are returned unchanged.
func (o Output[T]) WithDrop(fn func(err error)) Output[T] {
	if o.next == nil {
		return o
	}
	next := *o.next
	next.OnDrop = fn
	return Output[T]{next: &next}
}

// Work is a queued request/parser pair with its attempt counter.
type Work[T any] struct {
	Request Request
	Parser  Parser[T]
	Attempt int
	// OnDrop, when set, is called with the cause once the item is dropped.
	OnDrop func(err error)
}

// Fetcher executes a Request. Any response the server sends back, whatever
// its status, is returned without error; errors mean the exchange itself failed.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req Request) (Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Clock supplies time and context-aware sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
