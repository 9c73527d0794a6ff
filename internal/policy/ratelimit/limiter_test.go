package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
)

func TestLimiterWaitDelaysSecondToken(t *testing.T) {
	t.Parallel()

	// 20 rps with burst 1 gives one token every 50ms.
	l := New(Config{RatePerSecond: 20, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "example.com"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RatePerSecond: 0.1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "a.example"))
	require.NoError(t, l.Wait(ctx, "b.example"))
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	for range 50 {
		require.NoError(t, l.Wait(ctx, "example.com"))
	}
}

func TestLimiterWaitCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{RatePerSecond: 0.01, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, "example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLimiterWaitPastDeadlineIsTransient(t *testing.T) {
	t.Parallel()

	l := New(Config{RatePerSecond: 0.01, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := l.Wait(ctx, "example.com")
	require.Error(t, err)
	require.NoError(t, ctx.Err())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, crawler.IsTransient(err))
}

func TestWrapDelegatesAfterToken(t *testing.T) {
	t.Parallel()

	var calls int
	next := crawler.FetcherFunc(func(_ context.Context, req crawler.Request) (crawler.Response, error) {
		calls++
		return crawler.Response{Request: req, StatusCode: 200}, nil
	})
	f := New(Config{RatePerSecond: 1000, Burst: 5}).Wrap(next)

	resp, err := f.Fetch(context.Background(), crawler.Request{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestWrapSkipsFetchWhenCanceled(t *testing.T) {
	t.Parallel()

	var calls int
	next := crawler.FetcherFunc(func(context.Context, crawler.Request) (crawler.Response, error) {
		calls++
		return crawler.Response{}, nil
	})
	l := New(Config{RatePerSecond: 0.01, Burst: 1})
	f := l.Wrap(next)
	_, err := f.Fetch(context.Background(), crawler.Request{URL: "https://example.com"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, crawler.Request{URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
