package exchange

import (
	"math"
	"time"

	"cryptoagents-go/internal/signal"
)

var stubBases = map[string]float64{
	"BTC": 36_000_000,
	"ETH": 3_000_000,
	"XRP": 900,
	"ADA": 500,
	"SOL": 150_000,
}

var stubDefaultSymbols = []string{"ADA", "BTC", "ETH", "SOL", "XRP"}

// stubSource walks every symbol along a fixed oscillation so runs are reproducible.
type stubSource struct {
	quote string
	step  int
}

func newStubSource(quote string) *stubSource { return &stubSource{quote: quote} }

func (s *stubSource) next(symbols []string, now time.Time) (map[string]signal.Ticker, time.Time) {
	if len(symbols) == 0 {
		symbols = stubDefaultSymbols
	}
	s.step++
	ts := now.UTC()
	out := make(map[string]signal.Ticker, len(symbols))
	for i, sym := range symbols {
		base, ok := stubBases[sym]
		if !ok {
			base = 1000 * float64(i+1)
		}
		phase := float64(s.step) + float64(i)
		price := base * (1 + 0.04*math.Sin(phase/2))
		open := base
		out[sym] = signal.Ticker{
			Symbol:    sym,
			Price:     price,
			Change24h: (price - open) / open * 100,
			Volume24h: 800 + 400*math.Abs(math.Cos(phase/3)),
			High24h:   math.Max(price, open) * 1.01,
			Low24h:    math.Min(price, open) * 0.99,
			Currency:  s.quote,
			Ts:        ts,
		}
	}
	return out, ts
}
