package api

import (
	"net/http"
	"time"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
)

// RunInfo describes the scrape the process is running.
type RunInfo struct {
	RunID    string
	Service  string
	Strategy string
	Started  time.Time
}

// RunHandler exposes read-only counters of the current run.
type RunHandler struct {
	info  RunInfo
	stats func() crawler.Stats
	now   func() time.Time
}

// NewRunHandler wires the run metadata and a stats snapshot function.
func NewRunHandler(info RunInfo, stats func() crawler.Stats, now func() time.Time) *RunHandler {
	if now == nil {
		now = time.Now
	}
	return &RunHandler{info: info, stats: stats, now: now}
}

type runDTO struct {
	RunID          string    `json:"run_id"`
	Service        string    `json:"service"`
	Strategy       string    `json:"strategy"`
	Started        time.Time `json:"started"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Fetched        int64     `json:"fetched"`
	Retried        int64     `json:"retried"`
	Dropped        int64     `json:"dropped"`
	Yielded        int64     `json:"yielded"`
}

// Get handles GET /v1/run. It returns 503 when no stats source is wired.
func (h *RunHandler) Get(w http.ResponseWriter, _ *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "run not started")
		return
	}
	st := h.stats()
	writeJSON(w, http.StatusOK, runDTO{
		RunID:          h.info.RunID,
		Service:        h.info.Service,
		Strategy:       h.info.Strategy,
		Started:        h.info.Started,
		ElapsedSeconds: max(h.now().Sub(h.info.Started), 0).Seconds(),
		Fetched:        st.Fetched,
		Retried:        st.Retried,
		Dropped:        st.Dropped,
		Yielded:        st.Yielded,
	})
}
