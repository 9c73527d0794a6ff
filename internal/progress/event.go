package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the kind of milestone an Event reports.
type Stage string

// Supported diagnostics stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageFetchDone    Stage = "FETCH_DONE"
	StageFetchRetry   Stage = "FETCH_RETRY"
	StageItemDropped  Stage = "ITEM_DROPPED"
	StageItemYielded  Stage = "ITEM_YIELDED"
	StageJobSubmitted Stage = "JOB_SUBMITTED"
	StageJobPolled    Stage = "JOB_POLLED"
	StageJobComplete  Stage = "JOB_COMPLETE"
	StageJobFailed    Stage = "JOB_FAILED"
	StageRunDone      Stage = "RUN_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event is a single diagnostics record.
type Event struct {
	// RunID identifies the crawl run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	Stage Stage
	// Host scopes fetch events to the remote registry host.
	Host string
	// URL of the request; never carries credentials.
	URL string
	// Attempt is the zero-based fetch attempt for retry and drop events.
	Attempt int
	// StatusClass groups the HTTP response code of FETCH_DONE events.
	StatusClass StatusClass
	// Token is the batch job token for JOB_* stages.
	Token string
	// Dur is the fetch latency, backoff wait or job runtime depending on Stage.
	Dur time.Duration
	// Note carries low-volume context such as error text or a drop reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageFetchRetry, StageItemDropped, StageItemYielded:
	case StageFetchDone:
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageJobSubmitted, StageJobPolled, StageJobComplete:
		if e.Token == "" {
			return fmt.Errorf("%s requires token", e.Stage)
		}
	case StageJobFailed:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
