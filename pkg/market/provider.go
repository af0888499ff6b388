package market

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"pfolio-api/pkg/fault"
)

const defaultRequestTimeout = 8 * time.Second

// Provider supplies historical daily price data for a ticker.
type Provider interface {
	// History returns daily bars for the half-open range [start, end).
	History(ctx context.Context, ticker string, start, end time.Time) (*PriceSeries, error)
}

// ProviderBuilder constructs a Provider from configuration.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// RegisterProvider registers a market provider constructor by type name.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[strings.ToLower(strings.TrimSpace(typeName))] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[strings.ToLower(strings.TrimSpace(typeName))]
	return builder, ok
}

// ResilientProvider wraps a Provider with a per-request timeout and bounded
// retries for transient network failures. Persistent failures surface as a
// fault.ProviderTimeoutError rather than a hang.
type ResilientProvider struct {
	name    string
	inner   Provider
	timeout time.Duration
	retries int
	backoff time.Duration
}

// ResilientOption customises the wrapper.
type ResilientOption func(*ResilientProvider)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ResilientOption {
	return func(p *ResilientProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxRetries sets the number of retries for transient failures.
func WithMaxRetries(n int) ResilientOption {
	return func(p *ResilientProvider) {
		if n >= 0 {
			p.retries = n
		}
	}
}

// NewResilientProvider wraps inner with timeout and retry behaviour.
func NewResilientProvider(name string, inner Provider, opts ...ResilientOption) *ResilientProvider {
	p := &ResilientProvider{
		name:    name,
		inner:   inner,
		timeout: defaultRequestTimeout,
		retries: 2,
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// History fetches bars, retrying transient errors with exponential backoff.
func (p *ResilientProvider) History(ctx context.Context, ticker string, start, end time.Time) (*PriceSeries, error) {
	var lastErr error
	backoff := p.backoff
	for attempt := 0; attempt <= p.retries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		series, err := p.inner.History(reqCtx, ticker, start, end)
		cancel()
		if err == nil {
			return series, nil
		}
		lastErr = err
		if !transient(err) {
			return nil, err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, &fault.ProviderTimeoutError{Provider: p.name, Attempts: attempt + 1, Cause: ctx.Err()}
		}
		backoff *= 2
	}
	return nil, &fault.ProviderTimeoutError{Provider: p.name, Attempts: p.retries + 1, Cause: lastErr}
}

func transient(err error) bool {
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
