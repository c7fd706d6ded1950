package graph

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy decides which Graph responses are retried and how long to wait.
//
// Throttled responses (429) wait for the server's Retry-After and are retried
// without limit. Server errors (5xx) get at most MaxServerAttempts attempts in
// total, counting the first, with delays of BaseDelay, 2*BaseDelay and so on
// between them. Anything else fails immediately.
type RetryPolicy struct {
	MaxServerAttempts int
	BaseDelay         time.Duration
	DefaultRetryAfter time.Duration
	// Sleep waits for d or until ctx is done. Nil means a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy gives up on 5xx after three attempts (waiting 1s, then
// 2s) and waits 5s on a 429 that carries no Retry-After header.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxServerAttempts: 3,
		BaseDelay:         time.Second,
		DefaultRetryAfter: 5 * time.Second,
	}
}

// Next reports whether a response should be retried and the wait before the
// next attempt. serverRetries is the number of 5xx retries already made.
func (p RetryPolicy) Next(status int, header http.Header, serverRetries int) (time.Duration, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return p.retryAfter(header.Get("Retry-After")), true
	case status >= 500 && serverRetries+1 < p.MaxServerAttempts:
		return p.BaseDelay << serverRetries, true
	default:
		return 0, false
	}
}

func (p RetryPolicy) retryAfter(v string) time.Duration {
	if v == "" {
		return p.DefaultRetryAfter
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return p.DefaultRetryAfter
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
