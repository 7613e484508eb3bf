package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"cryptoagents-go/internal/signal"
)

const (
	defaultBithumbBaseURL = "https://api.bithumb.com"
	bithumbOK             = "0000"
)

// ErrAPIStatus is wrapped by every APIError.
var ErrAPIStatus = errors.New("exchange: api returned non-success status")

// APIError carries the venue status code and message.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bithumb api error %s: %s", e.Status, e.Message)
}

// Unwrap lets callers match ErrAPIStatus.
func (e *APIError) Unwrap() error { return ErrAPIStatus }

type bithumbEnvelope struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Data    map[string]json.RawMessage `json:"data"`
}

type bithumbTicker struct {
	Closing string `json:"closing_price"`
	Opening string `json:"opening_price"`
	Volume  string `json:"units_traded_24H"`
	High    string `json:"max_price"`
	Low     string `json:"min_price"`
}

// BithumbClient reads the public all-tickers endpoint.
type BithumbClient struct {
	client *resty.Client
	quote  string
	now    func() time.Time
}

// NewBithumbClient builds a client. Failed requests and 5xx replies are retried with backoff.
func NewBithumbClient(baseURL, quote string, timeout time.Duration, retries int, now func() time.Time) *BithumbClient {
	if now == nil {
		now = time.Now
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &BithumbClient{client: client, quote: quote, now: now}
}

// FetchAll returns every ticker of the quote market.
func (c *BithumbClient) FetchAll(ctx context.Context) (map[string]signal.Ticker, time.Time, error) {
	resp, err := c.client.R().SetContext(ctx).Get("/public/ticker/ALL_" + c.quote)
	if err != nil {
		return nil, time.Time{}, err
	}
	if resp.IsError() {
		return nil, time.Time{}, fmt.Errorf("http %d", resp.StatusCode())
	}
	return ParseTickers(resp.Body(), c.quote, c.now())
}

// ParseTickers decodes an all-tickers payload. Entries that are not objects or carry malformed
// numbers are skipped. The snapshot time comes from data.date in epoch milliseconds, or now.
func ParseTickers(raw []byte, quote string, now time.Time) (map[string]signal.Ticker, time.Time, error) {
	var env bithumbEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode tickers: %w", err)
	}
	if env.Status != bithumbOK {
		status := env.Status
		if status == "" {
			status = "unknown"
		}
		return nil, time.Time{}, &APIError{Status: status, Message: env.Message}
	}

	ts := now.UTC()
	if rawDate, ok := env.Data["date"]; ok {
		if ms, err := parseEpochMillis(rawDate); err == nil {
			ts = time.UnixMilli(ms).UTC()
		}
	}

	out := make(map[string]signal.Ticker, len(env.Data))
	for sym, payload := range env.Data {
		if sym == "date" {
			continue
		}
		var entry bithumbTicker
		if err := json.Unmarshal(payload, &entry); err != nil {
			continue
		}
		tk, err := entry.toTicker(strings.ToUpper(sym), quote, ts)
		if err != nil {
			continue
		}
		out[tk.Symbol] = tk
	}
	return out, ts, nil
}

func parseEpochMillis(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	var n int64
	err := json.Unmarshal(raw, &n)
	return n, err
}

func optionalDecimal(v string) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(v))
}

func (t bithumbTicker) toTicker(symbol, quote string, ts time.Time) (signal.Ticker, error) {
	price, err := optionalDecimal(t.Closing)
	if err != nil {
		return signal.Ticker{}, err
	}
	open, err := optionalDecimal(t.Opening)
	if err != nil {
		return signal.Ticker{}, err
	}
	volume, err := optionalDecimal(t.Volume)
	if err != nil {
		return signal.Ticker{}, err
	}
	high, err := optionalDecimal(t.High)
	if err != nil {
		return signal.Ticker{}, err
	}
	low, err := optionalDecimal(t.Low)
	if err != nil {
		return signal.Ticker{}, err
	}
	var change decimal.Decimal
	if !open.IsZero() {
		change = price.Sub(open).Div(open).Mul(decimal.NewFromInt(100))
	}
	return signal.Ticker{
		Symbol:    symbol,
		Price:     price.InexactFloat64(),
		Change24h: change.InexactFloat64(),
		Volume24h: volume.InexactFloat64(),
		High24h:   high.InexactFloat64(),
		Low24h:    low.InexactFloat64(),
		Currency:  quote,
		Ts:        ts,
	}, nil
}
