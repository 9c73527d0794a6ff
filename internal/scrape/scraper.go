package scrape

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
)

// Service builds the first hop of a lookup against one registry.
type Service interface {
	// Name identifies the registry in logs.
	Name() string
	// Check builds the unary lookup of a single number.
	Check(number string) (crawler.Work[flatten.Value], error)
	// Submit builds the batch submission of numbers.
	Submit(numbers []string) (crawler.Work[flatten.Value], error)
}

// Seeds builds the initial work for inputs. With batchSize <= 0 every number
// gets its own unary lookup; otherwise numbers are chunked into batches of
// batchSize with one submission each. Input without any number gives no seeds.
func Seeds(svc Service, inputs iter.Seq[string], batchSize int) ([]crawler.Work[flatten.Value], error) {
	numbers := slices.Collect(Numbers(inputs))
	if len(numbers) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		seeds := make([]crawler.Work[flatten.Value], 0, len(numbers))
		for _, n := range numbers {
			w, err := svc.Check(n)
			if err != nil {
				return nil, fmt.Errorf("build %s check for %s: %w", svc.Name(), n, err)
			}
			seeds = append(seeds, w)
		}
		return seeds, nil
	}
	seeds := make([]crawler.Work[flatten.Value], 0, (len(numbers)+batchSize-1)/batchSize)
	for chunk := range slices.Chunk(numbers, batchSize) {
		w, err := svc.Submit(chunk)
		if err != nil {
			return nil, fmt.Errorf("build %s batch of %d: %w", svc.Name(), len(chunk), err)
		}
		seeds = append(seeds, w)
	}
	return seeds, nil
}

// Scraper runs lookups for a service on a crawl engine.
type Scraper struct {
	service Service
	engine  *crawler.Engine[flatten.Value]
	logger  *zap.Logger
}

// New creates a Scraper.
func New(service Service, engine *crawler.Engine[flatten.Value], logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{service: service, engine: engine, logger: logger}
}

// Scrape builds the seeds for inputs and returns the stream of result
// records. Only a failure to build the seeds is returned as an error;
// per-number failures are dropped by the engine and reported as diagnostics.
func (s *Scraper) Scrape(ctx context.Context, inputs iter.Seq[string], batchSize int) (iter.Seq[flatten.Value], error) {
	seeds, err := Seeds(s.service, inputs, batchSize)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		s.logger.Info("no VAT numbers to check", zap.String("service", s.service.Name()))
	}
	strategy := "unary"
	if batchSize > 0 {
		strategy = "batch"
	}
	s.logger.Info("starting scrape",
		zap.String("service", s.service.Name()),
		zap.String("strategy", strategy),
		zap.Int("seeds", len(seeds)),
	)
	return s.engine.Crawl(ctx, seeds), nil
}

// Stats exposes the engine counters of the run.
func (s *Scraper) Stats() crawler.Stats {
	return s.engine.Stats()
}
