package crawler

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/vies-crawler/internal/progress"
	"github.com/JakeFAU/vies-crawler/internal/queue/memory"
)

// Options tunes an Engine.
type Options struct {
	// Retries bounds the extra attempts for transient failures.
	Retries int
	// Delay is the first backoff wait; later waits grow by Backoff.
	Delay   time.Duration
	Backoff float64
	// Timeout bounds a single fetch attempt. Zero disables it.
	Timeout time.Duration
	// Concurrency is the number of fetches in flight. Values below 2 keep the
	// single-threaded loop.
	Concurrency int
	// RunID tags diagnostics events.
	RunID [16]byte
}

var errMissingParser = errors.New("follow-up without parser")

// Stats counts what happened during a crawl.
type Stats struct {
	Fetched int64
	Retried int64
	Dropped int64
	Yielded int64
}

// Engine drives a crawl over work items producing values of type T.
type Engine[T any] struct {
	fetcher Fetcher
	opts    Options
	retry   RetryPolicy
	clock   Clock
	diag    progress.Emitter
	logger  *zap.Logger

	started atomic.Bool
	fetched atomic.Int64
	retried atomic.Int64
	dropped atomic.Int64
	yielded atomic.Int64
}

// NewEngine wires an engine. A nil diag discards events and a nil logger is
// replaced with a no-op logger.
func NewEngine[T any](fetcher Fetcher, opts Options, clock Clock, diag progress.Emitter, logger *zap.Logger) *Engine[T] {
	if diag == nil {
		diag = progress.Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Engine[T]{
		fetcher: fetcher,
		opts:    opts,
		retry:   RetryPolicy{Retries: opts.Retries, Delay: opts.Delay, Backoff: opts.Backoff},
		clock:   clock,
		diag:    diag,
		logger:  logger,
	}
}

// Stats returns a snapshot of the counters.
func (e *Engine[T]) Stats() Stats {
	return Stats{
		Fetched: e.fetched.Load(),
		Retried: e.retried.Load(),
		Dropped: e.dropped.Load(),
		Yielded: e.yielded.Load(),
	}
}

// Crawl returns a single-use sequence of the items produced by processing
// seeds and every follow-up they lead to. Items stream as soon as their
// parser returns. Stopping the iteration or cancelling ctx halts the crawl;
// queued work is discarded. A second iteration yields nothing.
func (e *Engine[T]) Crawl(ctx context.Context, seeds []Work[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		if !e.started.CompareAndSwap(false, true) {
			e.logger.Warn("crawl sequence already consumed")
			return
		}
		start := e.clock.Now()
		e.emit(progress.Event{Stage: progress.StageRunStart, Note: "seeds=" + strconv.Itoa(len(seeds))})
		defer func() {
			e.emit(progress.Event{Stage: progress.StageRunDone, Dur: e.clock.Now().Sub(start)})
		}()

		q := memory.NewQueue(seeds...)
		if e.opts.Concurrency > 1 {
			e.runPool(ctx, q, yield)
			return
		}
		for ctx.Err() == nil {
			w, ok := q.Pop()
			if !ok {
				return
			}
			outs, ok := e.process(ctx, w)
			if ok && !e.dispatch(q, outs, yield) {
				return
			}
		}
	}
}

// dispatch routes parser outputs: follow-ups to the back of the queue, items
// to the consumer. It reports false once the consumer stops.
func (e *Engine[T]) dispatch(q *memory.Queue[Work[T]], outs []Output[T], yield func(T) bool) bool {
	for _, out := range outs {
		if out.IsFollow() {
			next := out.Next()
			if next.Parser == nil {
				e.drop(next, 0, "dispatch", errMissingParser)
				continue
			}
			next.Attempt = 0
			q.Push(next)
			continue
		}
		e.yielded.Add(1)
		e.emit(progress.Event{Stage: progress.StageItemYielded})
		if !yield(out.Value()) {
			return false
		}
	}
	return true
}

// process runs one work item to a terminal state and returns its outputs.
// ok is false when the item was dropped or the crawl was cancelled.
func (e *Engine[T]) process(ctx context.Context, w Work[T]) ([]Output[T], bool) {
	if w.Request.Delay > 0 {
		if err := e.clock.Sleep(ctx, w.Request.Delay); err != nil {
			return nil, false
		}
	}
	var resp Response
	attempt, err := e.retry.Retry(ctx, e.clock, w.Attempt,
		func(ctx context.Context) error {
			r, err := e.fetch(ctx, w.Request)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		func(err error) bool { return ctx.Err() == nil && IsTransient(err) },
		func(attempt int, wait time.Duration, err error) {
			e.retried.Add(1)
			e.logger.Info("retrying fetch",
				zap.String("url", w.Request.URL),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			e.emit(progress.Event{
				Stage:   progress.StageFetchRetry,
				Host:    w.Request.Host(),
				URL:     w.Request.URL,
				Attempt: attempt,
				Dur:     wait,
				Note:    err.Error(),
			})
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		e.drop(w, attempt, "fetch", err)
		return nil, false
	}
	pctx := context.WithValue(ctx, rejectKey{}, rejectFunc(func(subject string, cause error) {
		e.reject(w, attempt, subject, cause)
	}))
	outs, err := w.Parser(pctx, resp)
	if err != nil {
		e.drop(w, attempt, "parse", err)
		return nil, false
	}
	return outs, true
}

// fetch performs one attempt bounded by the per-request timeout. Transient
// statuses are surfaced as errors so the retry policy sees them.
func (e *Engine[T]) fetch(ctx context.Context, req Request) (Response, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	started := e.clock.Now()
	resp, err := e.fetcher.Fetch(ctx, req)
	if err != nil {
		return Response{}, err
	}
	e.fetched.Add(1)
	if resp.Duration == 0 {
		resp.Duration = e.clock.Now().Sub(started)
	}
	resp.Request = req
	e.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		Host:        req.Host(),
		URL:         req.URL,
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         max(resp.Duration, 0),
	})
	if transientStatus(resp.StatusCode) {
		return Response{}, NewStatusError(resp)
	}
	return resp, nil
}

func (e *Engine[T]) drop(w Work[T], attempt int, phase string, err error) {
	e.dropped.Add(1)
	e.logger.Warn("dropping work item",
		zap.String("url", w.Request.URL),
		zap.String("phase", phase),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
	note := phase + ": " + err.Error()
	if errors.Is(err, ErrRemote) {
		note = "remote: " + err.Error()
	}
	e.emit(progress.Event{
		Stage:   progress.StageItemDropped,
		Host:    w.Request.Host(),
		URL:     w.Request.URL,
		Attempt: attempt,
		Note:    note,
	})
	if w.OnDrop != nil {
		w.OnDrop(err)
	}
}

func (e *Engine[T]) reject(w Work[T], attempt int, subject string, cause error) {
	e.dropped.Add(1)
	e.logger.Warn("dropping rejected entry",
		zap.String("url", w.Request.URL),
		zap.String("subject", subject),
		zap.Error(cause),
	)
	e.emit(progress.Event{
		Stage:   progress.StageItemDropped,
		Host:    w.Request.Host(),
		URL:     w.Request.URL,
		Attempt: attempt,
		Note:    "rejected " + subject + ": " + cause.Error(),
	})
}

type rejectKey struct{}

type rejectFunc func(subject string, cause error)

// Reject lets a parser report one entry of a response that the remote side
// refused while the rest of the response still yields items. The engine
// counts it as dropped. Outside a crawl it is a no-op.
func Reject(ctx context.Context, subject string, cause error) {
	if fn, ok := ctx.Value(rejectKey{}).(rejectFunc); ok {
		fn(subject, cause)
	}
}

func (e *Engine[T]) emit(evt progress.Event) {
	evt.RunID = e.opts.RunID
	if evt.TS.IsZero() {
		evt.TS = e.clock.Now()
	}
	e.diag.Emit(evt)
}
