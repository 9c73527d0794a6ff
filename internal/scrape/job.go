package scrape

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle position of a batch job.
type State int

// Batch job states. Transitions only move forward.
const (
	StateSubmitted State = iota
	StatePolling
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// ErrInvalidTransition is returned when a job would move backwards or leave a
// terminal state.
var ErrInvalidTransition = errors.New("invalid job transition")

// Job tracks one submitted batch. The token is fixed at creation. A job is
// only touched by the hops of its own chain, which never run concurrently.
type Job struct {
	token     string
	state     State
	polls     int
	size      int
	submitted time.Time
}

// NewJob records a freshly submitted batch of size numbers.
func NewJob(token string, size int, submitted time.Time) *Job {
	return &Job{token: token, size: size, submitted: submitted}
}

// Token returns the server-issued job token.
func (j *Job) Token() string { return j.token }

// State returns the current state.
func (j *Job) State() State { return j.state }

// Polls returns how many status responses were observed.
func (j *Job) Polls() int { return j.polls }

// Size returns the number of VAT numbers in the batch.
func (j *Job) Size() int { return j.size }

// Submitted returns the submission time.
func (j *Job) Submitted() time.Time { return j.submitted }

// Advance moves the job to next. Polling may repeat; everything else must
// move strictly forward.
func (j *Job) Advance(next State) error {
	ok := false
	switch j.state {
	case StateSubmitted:
		ok = next == StatePolling || next == StateComplete || next == StateFailed
	case StatePolling:
		ok = next == StatePolling || next == StateComplete || next == StateFailed
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s (token %s)", ErrInvalidTransition, j.state, next, j.token)
	}
	j.state = next
	return nil
}
