// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. VIES_CRAWL_RETRIES=5.
const EnvPrefix = "VIES"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Service string        `mapstructure:"service"`
	API     APIConfig     `mapstructure:"api"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig points at the registry. An empty BaseURL selects the service default.
type APIConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// HTTPConfig configures the transport.
type HTTPConfig struct {
	Client        string        `mapstructure:"client"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// CrawlConfig governs engine retries and parallelism.
type CrawlConfig struct {
	Retries     int           `mapstructure:"retries"`
	Delay       time.Duration `mapstructure:"delay"`
	Backoff     float64       `mapstructure:"backoff"`
	Concurrency int           `mapstructure:"concurrency"`
}

// BatchConfig controls batch submission and polling.
type BatchConfig struct {
	Size         int           `mapstructure:"size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// OutputConfig selects the serializer and destination.
type OutputConfig struct {
	Format    string `mapstructure:"format"`
	Delimiter string `mapstructure:"delimiter"`
	Path      string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig enables the metrics server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// New returns a Viper instance carrying defaults and environment overrides.
// Callers may bind flags onto it before calling LoadFrom.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	return LoadFrom(New(), path)
}

// LoadFrom reads the optional file at path into v and decodes the result.
func LoadFrom(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service", "ec")
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")
	v.SetDefault("http.client", "resty")
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.user_agent", "vies-crawler/0.1")
	v.SetDefault("http.rate_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("crawl.retries", 3)
	v.SetDefault("crawl.delay", "1s")
	v.SetDefault("crawl.backoff", 2.0)
	v.SetDefault("crawl.concurrency", 1)
	v.SetDefault("batch.size", 99)
	v.SetDefault("batch.poll_interval", "5s")
	v.SetDefault("batch.poll_timeout", "10m")
	v.SetDefault("output.format", "json")
	v.SetDefault("output.delimiter", ".")
	v.SetDefault("output.path", "-")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	switch c.Service {
	case "ec", "viesapi":
	default:
		errs = append(errs, fmt.Errorf("service must be ec or viesapi, got %q", c.Service))
	}
	switch c.HTTP.Client {
	case "resty", "colly":
	default:
		errs = append(errs, fmt.Errorf("http.client must be resty or colly, got %q", c.HTTP.Client))
	}
	switch c.Output.Format {
	case "json", "jsonl", "csv", "table":
	default:
		errs = append(errs, fmt.Errorf("output.format must be json, csv or table, got %q", c.Output.Format))
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, errors.New("http.timeout must be >= 0"))
	}
	if c.HTTP.RatePerSecond < 0 {
		errs = append(errs, errors.New("http.rate_per_second must be >= 0"))
	}
	if c.Crawl.Retries < 0 {
		errs = append(errs, errors.New("crawl.retries must be >= 0"))
	}
	if c.Crawl.Delay < 0 {
		errs = append(errs, errors.New("crawl.delay must be >= 0"))
	}
	if c.Crawl.Backoff <= 0 {
		errs = append(errs, errors.New("crawl.backoff must be > 0"))
	}
	if c.Crawl.Concurrency <= 0 {
		errs = append(errs, errors.New("crawl.concurrency must be > 0"))
	}
	if c.Batch.Size < 0 {
		errs = append(errs, errors.New("batch.size must be >= 0"))
	}
	if c.Batch.PollInterval <= 0 {
		errs = append(errs, errors.New("batch.poll_interval must be > 0"))
	}
	if c.Batch.PollTimeout < 0 {
		errs = append(errs, errors.New("batch.poll_timeout must be >= 0"))
	}
	return errors.Join(errs...)
}
