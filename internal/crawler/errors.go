package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrRemote marks a well-formed response whose payload reports a logical
	// failure. Terminal for the item.
	ErrRemote = errors.New("remote error")
	// ErrMalformed marks a payload that could not be parsed. Terminal for the item.
	ErrMalformed = errors.New("malformed payload")
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code int
	URL  string
	// Snippet holds the start of the response body for diagnostics.
	Snippet string
}

const snippetLimit = 256

// NewStatusError builds a StatusError from resp.
func NewStatusError(resp Response) *StatusError {
	snippet := resp.Body
	if len(snippet) > snippetLimit {
		snippet = snippet[:snippetLimit]
	}
	return &StatusError{Code: resp.StatusCode, URL: resp.Request.URL, Snippet: string(snippet)}
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.Code, e.URL, e.Snippet)
}

// Transient reports whether the status signals a temporary server condition.
func (e *StatusError) Transient() bool {
	return transientStatus(e.Code)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Remote wraps a server-reported failure description as an ErrRemote.
func Remote(description string) error {
	return fmt.Errorf("%w: %s", ErrRemote, description)
}

// Malformed wraps a decode failure as an ErrMalformed.
func Malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformed, what, err)
}

// IsTransient classifies err as a connection or timeout class failure worth
// retrying. Cancellation, remote and malformed payload errors never are.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrRemote) || errors.Is(err, ErrMalformed) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
