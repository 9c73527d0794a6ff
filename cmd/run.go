package cmd

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/vies-crawler/internal/app"
	"github.com/JakeFAU/vies-crawler/internal/config"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
	"github.com/JakeFAU/vies-crawler/internal/logging"
	"github.com/JakeFAU/vies-crawler/internal/metrics"
	"github.com/JakeFAU/vies-crawler/internal/output"
)

// runScrape loads configuration, wires the app and streams the results of
// inputs into the configured destination. batchSize maps the configured batch
// size to the one the command uses.
func runScrape(cmd *cobra.Command, opts *rootOptions, inputs []string, batchSize func(int) int) error {
	cfg, err := config.LoadFrom(opts.v, opts.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	size := batchSize(cfg.Batch.Size)
	strategy := "unary"
	if size > 0 {
		strategy = "batch"
	}
	appOpts := opts.base
	appOpts.Strategy = strategy
	a, err := app.New(cfg, logger, appOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	logger = a.Logger()
	ctx := cmd.Context()
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("failed to close application services", zap.Error(cerr))
		}
	}()

	if srv := a.Server(); srv != nil {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if serr := srv.ListenAndServe(srvCtx, cfg.Metrics.Addr); serr != nil {
				logger.Error("http server error", zap.Error(serr))
			}
		}()
		srv.MarkReady()
	}

	serializer, err := output.New(cfg.Output.Format, cfg.Output.Delimiter)
	if err != nil {
		return err
	}
	dst, err := openDestination(cmd, cfg.Output.Path)
	if err != nil {
		return err
	}
	defer dst.Close() //nolint:errcheck // write errors surface from Serialize

	records, err := a.Scraper().Scrape(ctx, slices.Values(inputs), size)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	written, err := serializer.Serialize(ctx, dst, observed(cfg.Service, records))
	stats := a.Scraper().Stats()
	logger.Info("scrape finished",
		zap.String("service", cfg.Service),
		zap.String("strategy", strategy),
		zap.Int("inputs", len(inputs)),
		zap.Int("written", written),
		zap.Int64("fetched", stats.Fetched),
		zap.Int64("retried", stats.Retried),
		zap.Int64("dropped", stats.Dropped),
		zap.Bool("resumed", dst.Resumed),
		zap.String("output", dst.Name()),
	)
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// openDestination routes stdout through the command so output can be captured.
func openDestination(cmd *cobra.Command, path string) (*output.Destination, error) {
	if path == "" || path == "-" {
		return output.Writer(cmd.OutOrStdout()), nil
	}
	return output.Open(path)
}

// observed counts every record on its way to the serializer.
func observed(service string, records iter.Seq[flatten.Value]) iter.Seq[flatten.Value] {
	return func(yield func(flatten.Value) bool) {
		for rec := range records {
			metrics.ObserveResult(service, rec.Lookup("valid").AsBool())
			if !yield(rec) {
				return
			}
		}
	}
}
