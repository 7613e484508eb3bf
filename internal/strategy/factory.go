package strategy

import (
	"strings"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/signal"
)

// Strategy turns one ticker plus its aggregated sentiment into a scored signal and a verdict.
type Strategy interface {
	Name() string
	Signal(tk signal.Ticker, sentiment float64) signal.Breakdown
	Decide(b signal.Breakdown) (execution.Action, float64)
	Rationale(action execution.Action, b signal.Breakdown) string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	ExpertBuyScore      float64
	ExpertSellScore     float64
	SentimentBuy        float64
	SentimentSell       float64
	PriceBuy            float64
	PriceSell           float64
	BreakoutMargin      float64
	MeanReversionMargin float64
	MomentumScale       float64
	VolumeThreshold     float64
	VolatilityThreshold float64
}

// DefaultParams mirrors the stock thresholds.
func DefaultParams() Params {
	return Params{
		ExpertBuyScore:      0.35,
		ExpertSellScore:     0.35,
		SentimentBuy:        0.25,
		SentimentSell:       0.25,
		PriceBuy:            1.0,
		PriceSell:           -1.0,
		BreakoutMargin:      0.01,
		MeanReversionMargin: 0.02,
		MomentumScale:       5,
		VolumeThreshold:     1000,
		VolatilityThreshold: 0.12,
	}
}

// Build returns a strategy implementation matching the configured mode.
// Anything other than expert falls back to the basic sentiment and price setup.
func Build(mode string, params Params) Strategy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "expert":
		return NewExpert(params)
	default:
		return NewBasic(params)
	}
}

func direction(action execution.Action) string {
	if action == execution.Buy {
		return "Bullish"
	}
	return "Bearish"
}
