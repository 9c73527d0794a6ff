package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/vies-crawler/internal/progress"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func (c *fakeClock) TotalSleep() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps() {
		total += d
	}
	return total
}

// scriptedFetcher answers by URL and records the order of calls.
type scriptedFetcher struct {
	mu     sync.Mutex
	calls  []string
	handle func(call int, req Request) (Response, error)
	counts map[string]int
}

func newScriptedFetcher(handle func(call int, req Request) (Response, error)) *scriptedFetcher {
	return &scriptedFetcher{handle: handle, counts: make(map[string]int)}
}

func (f *scriptedFetcher) Fetch(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	f.counts[req.URL]++
	n := f.counts[req.URL]
	f.mu.Unlock()
	return f.handle(n, req)
}

func (f *scriptedFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *scriptedFetcher) Count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[url]
}

func okResponse(req Request, body string) (Response, error) {
	return Response{Request: req, StatusCode: 200, Body: []byte(body)}, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, evt := range r.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

func get(url string) Request {
	return Request{Method: "GET", URL: url}
}

// bodyItem yields the response body as the single item.
func bodyItem(_ context.Context, resp Response) ([]Output[string], error) {
	return []Output[string]{Item(string(resp.Body))}, nil
}
