// Package api hosts the operator HTTP server that runs alongside a scrape.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for a snapshot of the current run's counters.
package api
