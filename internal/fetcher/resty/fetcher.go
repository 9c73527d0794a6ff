// Package restyfetcher implements crawler.Fetcher on top of a shared resty client.
package restyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
	"github.com/JakeFAU/vies-crawler/internal/metrics"
)

// Config controls the client.
type Config struct {
	UserAgent string
}

// Fetcher executes crawler requests with resty. Retries and timeouts are
// owned by the engine, so the client is configured with neither.
type Fetcher struct {
	client *resty.Client
}

// New builds a Fetcher with its own client.
func New(cfg Config) *Fetcher {
	client := resty.New()
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return NewWithClient(client)
}

// NewWithClient wraps an existing client.
func NewWithClient(client *resty.Client) *Fetcher {
	client.SetRetryCount(0)
	return &Fetcher{client: client}
}

// Fetch sends req and returns the response whatever its status.
func (f *Fetcher) Fetch(ctx context.Context, req crawler.Request) (crawler.Response, error) {
	r := f.client.R().SetContext(ctx)
	if len(req.Header) > 0 {
		r.SetHeaderMultiValues(req.Header)
	}
	if len(req.Body) > 0 {
		r.SetBody(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	if err != nil {
		metrics.ObserveFetchError(req.URL, "resty")
		return crawler.Response{}, fmt.Errorf("resty %s %s: %w", method, req.URL, err)
	}
	return crawler.Response{
		Request:    req,
		StatusCode: resp.StatusCode(),
		Header:     resp.Header().Clone(),
		Body:       resp.Body(),
		Duration:   time.Since(start),
	}, nil
}
