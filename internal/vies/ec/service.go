// Package ec implements scrape.Service against the European Commission VIES
// endpoints: the checkVat SOAP service for single numbers and the REST batch
// validation API for uploads.
package ec

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
	"github.com/JakeFAU/vies-crawler/internal/flatten"
	"github.com/JakeFAU/vies-crawler/internal/request"
	"github.com/JakeFAU/vies-crawler/internal/scrape"
)

// DefaultBaseURL is the production VIES root.
const DefaultBaseURL = "https://ec.europa.eu/taxation_customs/vies"

const (
	checkVatPath = "/services/checkVatService"
	batchPath    = "/rest-api/vat-validation"
	reportPath   = "/rest-api/vat-validation-report"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var uploadHeader = []string{"MS Code", "VAT Number", "Requester MS Code", "Requester VAT Number"}

type output = crawler.Output[flatten.Value]

// Service talks to the Commission's VIES endpoints.
type Service struct {
	factory request.Factory
	poller  scrape.Poller
	logger  *zap.Logger
}

// New creates a Service.
func New(factory request.Factory, poller scrape.Poller, logger *zap.Logger) *Service {
	if factory.BaseURL == "" {
		factory.BaseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{factory: factory, poller: poller, logger: logger.With(zap.String("service", "ec"))}
}

// Name implements scrape.Service.
func (s *Service) Name() string { return "ec" }

// Check builds a checkVat SOAP call for number.
func (s *Service) Check(number string) (crawler.Work[flatten.Value], error) {
	country, rest := scrape.SplitNumber(number)
	envelope, err := checkVatEnvelope(country, rest)
	if err != nil {
		return crawler.Work[flatten.Value]{}, err
	}
	req := s.factory.SOAP(checkVatPath, envelope)
	return crawler.Work[flatten.Value]{Request: req, Parser: parseCheck}, nil
}

func parseCheck(_ context.Context, resp crawler.Response) ([]output, error) {
	res, err := decodeCheckVat(resp)
	if err != nil {
		return nil, err
	}
	raw, err := flatten.FromAny(res)
	if err != nil {
		return nil, crawler.Malformed("checkVat result", err)
	}
	rec := scrape.Record{
		CountryCode: res.CountryCode,
		VATNumber:   res.VATNumber,
		Valid:       res.Valid,
		Name:        res.Name,
		Address:     scrape.FoldLines(res.Address),
		Extra:       []flatten.Member{flatten.Field("ec", raw)},
	}
	return []output{crawler.Item(rec.Value())}, nil
}

// Submit uploads numbers as a batch validation CSV.
func (s *Service) Submit(numbers []string) (crawler.Work[flatten.Value], error) {
	data, err := uploadCSV(numbers)
	if err != nil {
		return crawler.Work[flatten.Value]{}, err
	}
	req, err := s.factory.Multipart(batchPath, "fileToUpload", "upload.csv", "text/csv", data)
	if err != nil {
		return crawler.Work[flatten.Value]{}, err
	}
	size := len(numbers)
	parse := func(_ context.Context, resp crawler.Response) ([]output, error) {
		payload, err := decodeJSON(resp)
		if err != nil {
			return nil, err
		}
		token := payload.Lookup("token").Str()
		if token == "" {
			return nil, crawler.Malformed("batch upload response", errors.New("missing token"))
		}
		job := s.poller.Submitted(token, size)
		poll := s.factory.Get(batchPath + "/" + url.PathEscape(token))
		return []output{s.poller.Start(job, poll, status, s.complete)}, nil
	}
	return crawler.Work[flatten.Value]{Request: req, Parser: parse}, nil
}

func uploadCSV(numbers []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(uploadHeader); err != nil {
		return nil, fmt.Errorf("write upload header: %w", err)
	}
	for _, n := range numbers {
		country, rest := scrape.SplitNumber(n)
		if err := w.Write([]string{country, rest, "", ""}); err != nil {
			return nil, fmt.Errorf("write upload row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush upload csv: %w", err)
	}
	return buf.Bytes(), nil
}

func status(resp crawler.Response) (float64, error) {
	payload, err := decodeJSON(resp)
	if err != nil {
		return 0, err
	}
	pct, ok := payload.Lookup("percentage").Float64()
	if !ok {
		return 0, crawler.Malformed("batch status", errors.New("missing percentage"))
	}
	return pct, nil
}

// complete chases the report once the job is done.
func (s *Service) complete(_ context.Context, job *scrape.Job, _ crawler.Response) ([]output, error) {
	req := s.factory.Get(reportPath + "/" + url.PathEscape(job.Token()))
	req.Header.Set("Accept", xlsxMIME)
	token := job.Token()
	parse := func(_ context.Context, resp crawler.Response) ([]output, error) {
		if !resp.OK() {
			if _, err := decodeJSON(resp); err != nil {
				return nil, err
			}
			return nil, crawler.NewStatusError(resp)
		}
		records, err := readReport(resp.Body)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("validation report parsed", zap.String("token", token), zap.Int("records", len(records)))
		outs := make([]output, 0, len(records))
		for _, rec := range records {
			outs = append(outs, crawler.Item(rec))
		}
		return outs, nil
	}
	return []output{crawler.Follow(req, parse)}, nil
}

// decodeJSON parses a REST reply. The API reports failures as a list of
// errorWrappers, which map to remote errors.
func decodeJSON(resp crawler.Response) (flatten.Value, error) {
	payload, err := flatten.Parse(resp.Body)
	if err == nil {
		if wrappers := payload.Lookup("errorWrappers").Elems(); len(wrappers) > 0 {
			first := wrappers[0]
			desc := first.Lookup("message").Text()
			if desc == "" {
				desc = first.Lookup("error").Text()
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
