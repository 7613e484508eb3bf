// Package exchange hosts market data connectors that produce one ticker snapshot per call.
package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/metrics"
	"cryptoagents-go/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic tickers (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderBithumb polls the Bithumb public ticker endpoint.
	ProviderBithumb = "bithumb"
)

// Feed represents a pluggable market data source.
type Feed struct {
	provider string
	symbols  []string
	quote    string
	log      zerolog.Logger
	baseURL  string
	timeout  time.Duration
	retries  int
	now      func() time.Time

	bithumb *BithumbClient
	stub    *stubSource
	mu      sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

const (
	defaultTimeout = 10 * time.Second
	defaultQuote   = "KRW"
)

// WithBaseURL points HTTP providers at a different host.
func WithBaseURL(u string) Option {
	return func(f *Feed) {
		if u != "" {
			f.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithQuoteCurrency selects the quote market, KRW by default.
func WithQuoteCurrency(q string) Option {
	return func(f *Feed) {
		if q = strings.ToUpper(strings.TrimSpace(q)); q != "" {
			f.quote = q
		}
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRetries sets how many times a failed HTTP request is retried with backoff.
func WithRetries(n int) Option {
	return func(f *Feed) {
		if n >= 0 {
			f.retries = n
		}
	}
}

// WithClock overrides the timestamp source of synthetic data and fallbacks.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider: strings.ToLower(provider),
		quote:    defaultQuote,
		log:      log,
		baseURL:  defaultBithumbBaseURL,
		timeout:  defaultTimeout,
		retries:  2,
		now:      time.Now,
	}
	f.setSymbols(symbols)
	for _, opt := range opts {
		opt(f)
	}
	switch f.provider {
	case ProviderBithumb:
		f.bithumb = NewBithumbClient(f.baseURL, f.quote, f.timeout, f.retries, f.now)
	default:
		f.provider = ProviderStub
		f.stub = newStubSource(f.quote)
	}
	return f
}

// Provider returns the active provider name.
func (f *Feed) Provider() string { return f.provider }

// Name identifies the feed in logs.
func (f *Feed) Name() string { return "market" }

func (f *Feed) setSymbols(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unique := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		unique[sym] = struct{}{}
	}
	f.symbols = f.symbols[:0]
	for sym := range unique {
		f.symbols = append(f.symbols, sym)
	}
	sort.Strings(f.symbols)
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Fetch returns one ticker snapshot and the venue timestamp. When symbols are configured the
// result is filtered to them.
func (f *Feed) Fetch(ctx context.Context) (map[string]signal.Ticker, time.Time, error) {
	symbols := f.snapshotSymbols()
	var (
		tickers map[string]signal.Ticker
		ts      time.Time
		err     error
	)
	switch f.provider {
	case ProviderBithumb:
		tickers, ts, err = f.bithumb.FetchAll(ctx)
	default:
		tickers, ts = f.stub.next(symbols, f.now())
	}
	if err != nil {
		metrics.MarketFetchesTotal.WithLabelValues(f.provider, "error").Inc()
		return nil, time.Time{}, fmt.Errorf("%s tickers: %w", f.provider, err)
	}
	metrics.MarketFetchesTotal.WithLabelValues(f.provider, "ok").Inc()

	if len(symbols) > 0 {
		wanted := make(map[string]struct{}, len(symbols))
		for _, sym := range symbols {
			wanted[sym] = struct{}{}
		}
		for sym := range tickers {
			if _, ok := wanted[sym]; !ok {
				delete(tickers, sym)
			}
		}
	}
	f.log.Debug().Str("provider", f.provider).Int("tickers", len(tickers)).Msg("market snapshot")
	return tickers, ts, nil
}
