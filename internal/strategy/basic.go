package strategy

import (
	"fmt"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/signal"
)

// Basic requires sentiment and 24h price change to agree before acting.
type Basic struct {
	p Params
}

// NewBasic builds the two-factor fallback strategy.
func NewBasic(p Params) *Basic { return &Basic{p: p} }

// Name returns the configured identifier for logging.
func (s *Basic) Name() string { return "basic" }

func priceComponent(changePct float64) float64 { return signal.Clamp(changePct/10, -1, 1) }

// Signal fills sentiment, price change and a 60/40 composite.
func (s *Basic) Signal(tk signal.Ticker, sentiment float64) signal.Breakdown {
	momentum := priceComponent(tk.Change24h)
	return signal.Breakdown{
		Symbol:      tk.Symbol,
		Sentiment:   sentiment,
		PriceChange: tk.Change24h,
		Momentum:    momentum,
		Composite:   0.6*sentiment + 0.4*momentum,
	}
}

// Decide emits BUY or SELL only when both thresholds agree.
func (s *Basic) Decide(b signal.Breakdown) (execution.Action, float64) {
	var action execution.Action
	switch {
	case b.Sentiment >= s.p.SentimentBuy && b.PriceChange >= s.p.PriceBuy:
		action = execution.Buy
	case b.Sentiment <= -s.p.SentimentSell && b.PriceChange <= s.p.PriceSell:
		action = execution.Sell
	default:
		return execution.Hold, 0
	}
	combined := 0.6*signal.Clamp(b.Sentiment, -1, 1) + 0.4*priceComponent(b.PriceChange)
	return action, signal.Clamp((combined+1)/2, 0, 1)
}

// Rationale names the direction and both inputs.
func (s *Basic) Rationale(action execution.Action, b signal.Breakdown) string {
	return fmt.Sprintf("%s setup: sentiment %+.1f%% and price change %+.2f%%", direction(action), b.Sentiment*100, b.PriceChange)
}
