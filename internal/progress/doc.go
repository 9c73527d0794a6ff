// Package progress carries the diagnostics stream of a crawl run. The engine
// and the scrape services emit Events for fetches, retries, drops and batch job
// transitions; a Hub batches them on a background goroutine and fans them out
// to sinks such as structured logs or Prometheus collectors.
package progress
