// Package viesapi implements scrape.Service against the viesapi.eu JSON API.
package viesapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
	"github.com/JakeFAU/vies-crawler/internal/request"
	"github.com/JakeFAU/vies-crawler/internal/scrape"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://viesapi.eu/api"

type output = crawler.Output[flatten.Value]

// Service talks to viesapi.eu.
type Service struct {
	factory request.Factory
	poller  scrape.Poller
	logger  *zap.Logger
}

// New creates a Service. The factory carries the base URL and credentials.
func New(factory request.Factory, poller scrape.Poller, logger *zap.Logger) *Service {
	if factory.BaseURL == "" {
		factory.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{factory: factory, poller: poller, logger: logger.With(zap.String("service", "viesapi"))}
}

// Name implements scrape.Service.
func (s *Service) Name() string { return "viesapi" }

// Check builds GET /get/vies/euvat/{number}.
func (s *Service) Check(number string) (crawler.Work[flatten.Value], error) {
	req := s.factory.Get("/get/vies/euvat/" + url.PathEscape(number))
	return crawler.Work[flatten.Value]{Request: req, Parser: s.parseCheck}, nil
}

// Submit builds POST /batch/vies for numbers.
func (s *Service) Submit(numbers []string) (crawler.Work[flatten.Value], error) {
	body := map[string]any{"batch": map[string]any{"numbers": numbers}}
	req, err := s.factory.JSON(http.MethodPost, "/batch/vies", body)
	if err != nil {
		return crawler.Work[flatten.Value]{}, err
	}
	size := len(numbers)
	parse := func(ctx context.Context, resp crawler.Response) ([]output, error) {
		return s.parseSubmit(ctx, resp, size)
	}
	return crawler.Work[flatten.Value]{Request: req, Parser: parse}, nil
}

func (s *Service) parseCheck(_ context.Context, resp crawler.Response) ([]output, error) {
	payload, err := decode(resp)
	if err != nil {
		return nil, err
	}
	vies, ok := payload.Get("vies")
	if !ok {
		return nil, crawler.Malformed("check response", errors.New("missing vies object"))
	}
	return []output{crawler.Item(toRecord(vies))}, nil
}

func (s *Service) parseSubmit(_ context.Context, resp crawler.Response, size int) ([]output, error) {
	payload, err := decode(resp)
	if err != nil {
		return nil, err
	}
	token := payload.Lookup("token").Str()
	if token == "" {
		token = payload.Lookup("batch", "token").Str()
	}
	if token == "" {
		return nil, crawler.Malformed("batch response", errors.New("missing token"))
	}
	job := s.poller.Submitted(token, size)
	poll := s.factory.Get("/batch/vies/" + url.PathEscape(token))
	return []output{s.poller.Start(job, poll, status, s.complete)}, nil
}

// status reads the completion percentage. A payload that already lists the
// numbers counts as complete.
func status(resp crawler.Response) (float64, error) {
	payload, err := decode(resp)
	if err != nil {
		return 0, err
	}
	if _, ok := numbersOf(payload); ok {
		return 100, nil
	}
	pct, ok := payload.Lookup("percentage").Float64()
	if !ok {
		pct, ok = payload.Lookup("batch", "percentage").Float64()
	}
	if !ok {
		return 0, crawler.Malformed("batch status", errors.New("missing percentage"))
	}
	return pct, nil
}

// complete parses the results carried by the final poll response.
func (s *Service) complete(ctx context.Context, job *scrape.Job, resp crawler.Response) ([]output, error) {
	payload, err := decode(resp)
	if err != nil {
		return nil, err
	}
	numbers, ok := numbersOf(payload)
	if !ok {
		return nil, crawler.Malformed("batch result", fmt.Errorf("token %s: missing numbers", job.Token()))
	}
	outs := make([]output, 0, numbers.Len())
	for i, entry := range numbers.Elems() {
		if e, failed := entry.Get("error"); failed && !e.IsNull() {
			desc := e.Lookup("description").Text()
			if desc == "" {
				desc = e.Text()
			}
			crawler.Reject(ctx, fmt.Sprintf("%s[%d]", job.Token(), i), crawler.Remote(desc))
			continue
		}
		if inner, wrapped := entry.Get("vies"); wrapped {
			entry = inner
		}
		outs = append(outs, crawler.Item(toRecord(entry)))
	}
	s.logger.Debug("batch results parsed",
		zap.String("token", job.Token()),
		zap.Int("polls", job.Polls()),
		zap.Int("records", len(outs)),
		zap.Int("rejected", numbers.Len()-len(outs)),
	)
	return outs, nil
}

func numbersOf(payload flatten.Value) (flatten.Value, bool) {
	for _, path := range [][]string{{"numbers"}, {"batch", "numbers"}} {
		if v := payload.Lookup(path...); v.Kind() == flatten.KindArray {
			return v, true
		}
	}
	return flatten.Value{}, false
}

// decode parses a JSON body, mapping the documented error payload to a
// remote error and any other non-2xx status to a StatusError.
func decode(resp crawler.Response) (flatten.Value, error) {
	payload, err := flatten.Parse(resp.Body)
	if err == nil {
		if e, failed := payload.Get("error"); failed && !e.IsNull() {
			desc := e.Lookup("description").Text()
			if desc == "" {
				desc = e.Text()
			}
			return flatten.Value{}, crawler.Remote(desc)
		}
	}
	if !resp.OK() {
		return flatten.Value{}, crawler.NewStatusError(resp)
	}
	if err != nil {
		return flatten.Value{}, crawler.Malformed("decode response", err)
	}
	return payload, nil
}

// toRecord maps a vies object to the uniform record, keeping the raw object.
func toRecord(vies flatten.Value) flatten.Value {
	return scrape.Record{
		CountryCode: vies.Lookup("countryCode").Text(),
		VATNumber:   vies.Lookup("vatNumber").Text(),
		Valid:       vies.Lookup("valid").AsBool(),
		Name:        vies.Lookup("traderName").Text(),
		Address:     scrape.FoldLines(vies.Lookup("traderAddress").Text()),
		Extra:       []flatten.Member{flatten.Field("vies", vies)},
	}.Value()
}
