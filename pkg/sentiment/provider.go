// Package sentiment scores news flow for supported tickers on a [-1, 1]
// scale, with a pluggable scorer and a bounded TTL cache in front of the
// news provider.
package sentiment

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pfolio-api/pkg/fault"
)

// Article is one news item about a ticker.
type Article struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// NewsProvider fetches recent articles for a ticker over a trailing window.
type NewsProvider interface {
	Articles(ctx context.Context, ticker string, windowDays int) ([]Article, error)
}

const (
	defaultNewsTimeout = 8 * time.Second
	defaultNewsRetries = 2
	newsRetryBackoff   = 200 * time.Millisecond
)

// ResilientNewsProvider wraps a provider with per-call timeout and bounded
// retry on transient network failures.
type ResilientNewsProvider struct {
	name    string
	inner   NewsProvider
	timeout time.Duration
	retries int
}

// NewsOption configures a ResilientNewsProvider.
type NewsOption func(*ResilientNewsProvider)

// WithNewsTimeout overrides the per-attempt timeout.
func WithNewsTimeout(d time.Duration) NewsOption {
	return func(p *ResilientNewsProvider) { p.timeout = d }
}

// WithNewsMaxRetries overrides the retry budget.
func WithNewsMaxRetries(n int) NewsOption {
	return func(p *ResilientNewsProvider) { p.retries = n }
}

// NewResilientNewsProvider wraps inner with the default timeout and retry
// policy.
func NewResilientNewsProvider(name string, inner NewsProvider, opts ...NewsOption) *ResilientNewsProvider {
	p := &ResilientNewsProvider{
		name:    name,
		inner:   inner,
		timeout: defaultNewsTimeout,
		retries: defaultNewsRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Articles retries transient failures with doubling backoff and reports
// exhaustion as a ProviderTimeoutError.
func (p *ResilientNewsProvider) Articles(ctx context.Context, ticker string, windowDays int) ([]Article, error) {
	var lastErr error
	backoff := newsRetryBackoff
	attempts := p.retries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			logx.Infof("sentiment: %s retry %d/%d for %s after %v", p.name, attempt, p.retries, ticker, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		articles, err := p.inner.Articles(attemptCtx, ticker, windowDays)
		cancel()
		if err == nil {
			return articles, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, &fault.ProviderTimeoutError{Provider: p.name, Attempts: attempts, Cause: lastErr}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// StaticNewsProvider serves a fixed article set; used by tests and the
// synthetic environment.
type StaticNewsProvider struct {
	ByTicker map[string][]Article
}

func (p *StaticNewsProvider) Articles(ctx context.Context, ticker string, windowDays int) ([]Article, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -windowDays)
	var out []Article
	for _, a := range p.ByTicker[ticker] {
		if a.PublishedAt.IsZero() || a.PublishedAt.After(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}
