// Package app initializes and holds the long-lived services of a scrape run,
// acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/vies-crawler/internal/api"
	"github.com/JakeFAU/vies-crawler/internal/clock/system"
	"github.com/JakeFAU/vies-crawler/internal/config"
	"github.com/JakeFAU/vies-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/vies-crawler/internal/fetcher/colly"
	restyfetcher "github.com/JakeFAU/vies-crawler/internal/fetcher/resty"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
	"github.com/JakeFAU/vies-crawler/internal/id/uuid"
	"github.com/JakeFAU/vies-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/vies-crawler/internal/progress"
	"github.com/JakeFAU/vies-crawler/internal/progress/sinks"
	"github.com/JakeFAU/vies-crawler/internal/request"
	"github.com/JakeFAU/vies-crawler/internal/scrape"
	"github.com/JakeFAU/vies-crawler/internal/vies/ec"
	"github.com/JakeFAU/vies-crawler/internal/vies/viesapi"
)

// Options overrides process-wide defaults, mainly for tests.
type Options struct {
	// Strategy labels the run ("unary" or "batch") in the status endpoint.
	Strategy string
	// Registerer receives the progress collectors. Defaults to the global one.
	Registerer prometheus.Registerer
	// Fetcher replaces the configured transport. Rate limiting still applies.
	Fetcher crawler.Fetcher
	// Clock replaces the system clock.
	Clock crawler.Clock
}

// App holds the services shared by one run.
type App struct {
	logger  *zap.Logger
	hub     *progress.Hub
	scraper *scrape.Scraper
	server  *api.Server
}

// New wires the run described by cfg. It fails fast when a component cannot
// be built.
func New(cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var clock crawler.Clock = system.New()
	if opts.Clock != nil {
		clock = opts.Clock
	}

	runID, err := uuid.New().NewRunID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", uuid.String(runID)))

	promSink, err := sinks.NewPrometheusSink(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	fetcher, err := buildFetcher(cfg.HTTP, opts.Fetcher)
	if err != nil {
		return nil, errors.Join(err, hub.Close(context.Background()))
	}
	engine := crawler.NewEngine[flatten.Value](fetcher, crawler.Options{
		Retries:     cfg.Crawl.Retries,
		Delay:       cfg.Crawl.Delay,
		Backoff:     cfg.Crawl.Backoff,
		Timeout:     cfg.HTTP.Timeout,
		Concurrency: cfg.Crawl.Concurrency,
		RunID:       runID,
	}, clock, hub, logger.Named("engine"))

	factory := request.Factory{
		BaseURL:   cfg.API.BaseURL,
		Username:  cfg.API.Username,
		Password:  cfg.API.Password,
		UserAgent: cfg.HTTP.UserAgent,
	}
	poller := scrape.Poller{
		Interval: cfg.Batch.PollInterval,
		Timeout:  cfg.Batch.PollTimeout,
		Clock:    clock,
		Diag:     hub,
		RunID:    runID,
		Logger:   logger.Named("poller"),
	}
	svc, err := buildService(cfg.Service, factory, poller, logger)
	if err != nil {
		return nil, errors.Join(err, hub.Close(context.Background()))
	}
	scraper := scrape.New(svc, engine, logger.Named("scrape"))

	a := &App{logger: logger, hub: hub, scraper: scraper}
	if cfg.Metrics.Addr != "" {
		run := api.NewRunHandler(api.RunInfo{
			RunID:    uuid.String(runID),
			Service:  svc.Name(),
			Strategy: opts.Strategy,
			Started:  clock.Now(),
		}, scraper.Stats, clock.Now)
		a.server = api.NewServer(run, logger.Named("api"))
	}
	logger.Info("application services initialized",
		zap.String("service", svc.Name()),
		zap.String("client", cfg.HTTP.Client),
	)
	return a, nil
}

func buildFetcher(cfg config.HTTPConfig, override crawler.Fetcher) (crawler.Fetcher, error) {
	base := override
	if base == nil {
		switch cfg.Client {
		case "", "resty":
			base = restyfetcher.New(restyfetcher.Config{UserAgent: cfg.UserAgent})
		case "colly":
			base = collyfetcher.New(collyfetcher.Config{UserAgent: cfg.UserAgent, Timeout: cfg.Timeout})
		default:
			return nil, fmt.Errorf("unknown http client: %s", cfg.Client)
		}
	}
	limiter := ratelimit.New(ratelimit.Config{RatePerSecond: cfg.RatePerSecond, Burst: cfg.Burst})
	return limiter.Wrap(base), nil
}

func buildService(name string, factory request.Factory, poller scrape.Poller, logger *zap.Logger) (scrape.Service, error) {
	switch name {
	case "ec":
		return ec.New(factory, poller, logger), nil
	case "viesapi":
		return viesapi.New(factory, poller, logger), nil
	default:
		return nil, fmt.Errorf("unknown service: %s", name)
	}
}

// Logger returns the run-scoped logger, tagged with the run ID.
func (a *App) Logger() *zap.Logger { return a.logger }

// Scraper returns the scrape orchestrator.
func (a *App) Scraper() *scrape.Scraper { return a.scraper }

// Server returns the operator server, or nil when metrics.addr is unset.
func (a *App) Server() *api.Server { return a.server }

// Close flushes diagnostics. It is called once the command finishes.
func (a *App) Close(ctx context.Context) error {
	a.logger.Debug("shutting down application services")
	if err := a.hub.Close(ctx); err != nil {
		return fmt.Errorf("close progress hub: %w", err)
	}
	return nil
}
