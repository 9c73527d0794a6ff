package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
	"github.com/JakeFAU/vies-crawler/internal/progress"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
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

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

// stubService records the numbers it was asked to build work for.
type stubService struct {
	checks  []string
	batches [][]string
	err     error
}

func (s *stubService) Name() string { return "stub" }

func (s *stubService) Check(number string) (crawler.Work[flatten.Value], error) {
	if s.err != nil {
		return crawler.Work[flatten.Value]{}, s.err
	}
	s.checks = append(s.checks, number)
	return crawler.Work[flatten.Value]{Request: crawler.Request{Method: "GET", URL: "https://stub/" + number}}, nil
}

func (s *stubService) Submit(numbers []string) (crawler.Work[flatten.Value], error) {
	if s.err != nil {
		return crawler.Work[flatten.Value]{}, s.err
	}
	s.batches = append(s.batches, append([]string(nil), numbers...))
	return crawler.Work[flatten.Value]{Request: crawler.Request{Method: "POST", URL: "https://stub/batch"}}, nil
}
