// Package cmd defines and implements the CLI commands for the vies executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JakeFAU/vies-crawler/internal/app"
	"github.com/JakeFAU/vies-crawler/internal/config"
)

// flagBindings maps persistent flags onto configuration keys.
var flagBindings = map[string]string{
	"output":       "output.path",
	"format":       "output.format",
	"delimiter":    "output.delimiter",
	"service":      "service",
	"base-url":     "api.base_url",
	"client":       "http.client",
	"timeout":      "http.timeout",
	"rate":         "http.rate_per_second",
	"retries":      "crawl.retries",
	"delay":        "crawl.delay",
	"backoff":      "crawl.backoff",
	"concurrency":  "crawl.concurrency",
	"metrics-addr": "metrics.addr",
	"dev":          "logging.development",
	"log-level":    "logging.level",
}

// rootOptions carries what every subcommand needs to build a run.
type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	base    app.Options
}

// newRootCmd creates and configures the root command. base seeds the app
// options of every run, letting tests inject a private metrics registry.
func newRootCmd(base app.Options) *cobra.Command {
	opts := &rootOptions{v: config.New(), base: base}
	cmd := &cobra.Command{
		Use:   "vies",
		Short: "Validate European VAT numbers against VIES registries.",
		Long: `vies validates EU VAT numbers one by one or in batches against the
European Commission VIES service or the viesapi.eu registry, and writes the
results as JSON lines, CSV or a terminal table. CSV output appends to an
existing file so interrupted runs can be resumed.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	pf.StringP("output", "o", "-", "output file, - for stdout")
	pf.StringP("format", "f", "json", "output format: json, csv or table")
	pf.String("delimiter", ".", "separator for flattened keys in csv and table output")
	pf.String("service", "ec", "registry to query: ec or viesapi")
	pf.String("base-url", "", "override the registry base URL")
	pf.String("client", "resty", "http client: resty or colly")
	pf.Duration("timeout", time.Minute, "per-request timeout")
	pf.Float64("rate", 0, "requests per second per host, 0 disables limiting")
	pf.Int("retries", 3, "retry attempts for transient failures")
	pf.Duration("delay", time.Second, "initial delay between retries")
	pf.Float64("backoff", 2, "multiplier applied to the retry delay")
	pf.Int("concurrency", 1, "requests in flight")
	pf.String("metrics-addr", "", "serve /metrics and /healthz on this address")
	pf.Bool("dev", false, "human-readable development logging")
	pf.String("log-level", "info", "log level")
	for flag, key := range flagBindings {
		_ = opts.v.BindPFlag(key, pf.Lookup(flag)) //nolint:errcheck // flags are registered above
	}

	cmd.AddCommand(newCheckCmd(opts), newBatchCmd(opts))
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(app.Options{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}
