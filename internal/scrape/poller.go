package scrape

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
	"github.com/JakeFAU/vies-crawler/internal/metrics"
	"github.com/JakeFAU/vies-crawler/internal/progress"
)

// ErrJobTimeout is returned when a batch job is still running after the
// poll timeout.
var ErrJobTimeout = errors.New("batch job timed out")

// StatusFunc extracts the completion percentage from a poll response.
type StatusFunc func(resp crawler.Response) (float64, error)

// CompleteFunc turns the poll response that reported completion into the
// job's outputs: records parsed inline or a follow-up fetching them.
type CompleteFunc func(ctx context.Context, job *Job, resp crawler.Response) ([]crawler.Output[flatten.Value], error)

// Poller drives batch jobs through repeated status checks spaced by Interval.
// Each check is its own work item, so the engine never blocks inside a parser.
type Poller struct {
	Interval time.Duration
	// Timeout bounds the time from submission to completion. Zero waits forever.
	Timeout time.Duration
	Clock   crawler.Clock
	Diag    progress.Emitter
	RunID   [16]byte
	Logger  *zap.Logger
}

// Submitted registers a new job and emits its submission event.
func (p Poller) Submitted(token string, size int) *Job {
	job := NewJob(token, size, p.Clock.Now())
	metrics.ObserveBatchJob(StateSubmitted.String())
	p.logger().Info("batch job submitted", zap.String("token", token), zap.Int("numbers", size))
	p.emit(progress.Event{Stage: progress.StageJobSubmitted, Token: token, Note: "numbers=" + strconv.Itoa(size)})
	return job
}

// Start returns the first poll hop for job. Until the job reports 100% every
// poll yields exactly one follow-up, the same request again, and no items.
func (p Poller) Start(job *Job, poll crawler.Request, status StatusFunc, complete CompleteFunc) crawler.Output[flatten.Value] {
	poll.Delay = p.Interval
	return p.follow(job, poll, status, complete)
}

// follow wraps the next poll hop so a hop the engine gives up on fails the job.
func (p Poller) follow(job *Job, poll crawler.Request, status StatusFunc, complete CompleteFunc) crawler.Output[flatten.Value] {
	return crawler.Follow(poll, p.parser(job, poll, status, complete)).WithDrop(func(err error) {
		if job.State().Terminal() {
			return
		}
		_ = p.fail(job, fmt.Errorf("poll dropped: %w", err))
	})
}

func (p Poller) parser(job *Job, poll crawler.Request, status StatusFunc, complete CompleteFunc) crawler.Parser[flatten.Value] {
	return func(ctx context.Context, resp crawler.Response) ([]crawler.Output[flatten.Value], error) {
		job.polls++
		pct, err := status(resp)
		if err != nil {
			return nil, p.fail(job, err)
		}
		p.emit(progress.Event{
			Stage: progress.StageJobPolled,
			Token: job.token,
			Note:  "percentage=" + strconv.FormatFloat(pct, 'f', -1, 64),
		})
		if pct >= 100 {
			if err := job.Advance(StateComplete); err != nil {
				return nil, err
			}
			elapsed := p.Clock.Now().Sub(job.submitted)
			metrics.ObserveBatchJob(StateComplete.String())
			p.logger().Info("batch job complete",
				zap.String("token", job.token),
				zap.Int("polls", job.polls),
				zap.Duration("elapsed", elapsed),
			)
			p.emit(progress.Event{Stage: progress.StageJobComplete, Token: job.token, Dur: max(elapsed, 0)})
			return complete(ctx, job, resp)
		}
		if p.Timeout > 0 && p.Clock.Now().Sub(job.submitted) >= p.Timeout {
			return nil, p.fail(job, fmt.Errorf("%w after %s at %v%%", ErrJobTimeout, p.Timeout, pct))
		}
		if err := job.Advance(StatePolling); err != nil {
			return nil, err
		}
		p.logger().Debug("batch job in progress", zap.String("token", job.token), zap.Float64("percentage", pct))
		next := poll
		next.Delay = p.Interval
		return []crawler.Output[flatten.Value]{p.follow(job, next, status, complete)}, nil
	}
}

func (p Poller) fail(job *Job, cause error) error {
	if err := job.Advance(StateFailed); err != nil {
		return errors.Join(cause, err)
	}
	metrics.ObserveBatchJob(StateFailed.String())
	p.logger().Warn("batch job failed", zap.String("token", job.token), zap.Int("polls", job.polls), zap.Error(cause))
	p.emit(progress.Event{
		Stage: progress.StageJobFailed,
		Token: job.token,
		Dur:   max(p.Clock.Now().Sub(job.submitted), 0),
		Note:  cause.Error(),
	})
	return cause
}

func (p Poller) emit(evt progress.Event) {
	if p.Diag == nil {
		return
	}
	evt.RunID = p.RunID
	evt.TS = p.Clock.Now()
	p.Diag.Emit(evt)
}

func (p Poller) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
