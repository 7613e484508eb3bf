package strategy

import (
	"fmt"
	"math"
	"strings"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/signal"
)

const (
	weightSentiment     = 0.45
	weightMomentum      = 0.25
	weightBreakout      = 0.15
	weightVolume        = 0.10
	weightVolatility    = 0.05
	weightMeanReversion = 0.10
)

// Expert blends sentiment with momentum, range position, volatility and volume.
type Expert struct {
	p Params
}

// NewExpert builds the multi-factor strategy.
func NewExpert(p Params) *Expert { return &Expert{p: p} }

// Name returns the configured identifier for logging.
func (e *Expert) Name() string { return "expert" }

// Signal computes every sub-score. Missing or degenerate inputs contribute zero.
func (e *Expert) Signal(tk signal.Ticker, sentiment float64) signal.Breakdown {
	b := signal.Breakdown{Symbol: tk.Symbol, Sentiment: sentiment, PriceChange: tk.Change24h}
	price := tk.Price

	if e.p.MomentumScale > 0 {
		b.Momentum = signal.Clamp(tk.Change24h/e.p.MomentumScale, -1, 1)
	}

	if tk.HasRange() && price > 0 {
		high, low := tk.High24h, tk.Low24h
		switch {
		case price >= high*(1-e.p.BreakoutMargin):
			b.BreakoutBias = 1
		case price <= low*(1+e.p.BreakoutMargin):
			b.BreakoutBias = -1
		}
		if high != low {
			if mid := (high + low) / 2; mid != 0 {
				deviation := (price - mid) / mid
				switch {
				case deviation > e.p.MeanReversionMargin:
					b.MeanReversionBias = -1
				case deviation < -e.p.MeanReversionMargin:
					b.MeanReversionBias = 1
				}
			}
		}
		b.VolatilityRange = math.Abs(high-low) / price
		if e.p.VolatilityThreshold > 0 {
			b.VolatilityPenalty = signal.Clamp(b.VolatilityRange/e.p.VolatilityThreshold, 0, 1)
		}
	}
	b.VolatilityBias = 1 - 0.5*b.VolatilityPenalty

	if e.p.VolumeThreshold > 0 {
		b.VolumeStrength = signal.Clamp(tk.Volume24h/e.p.VolumeThreshold, 0, 1)
	}

	b.Composite = weightSentiment*sentiment +
		weightMomentum*b.Momentum +
		weightBreakout*b.BreakoutBias +
		weightVolume*b.VolumeStrength +
		weightVolatility*b.VolatilityBias +
		weightMeanReversion*b.MeanReversionBias
	return b
}

// Decide maps the composite onto an action; confidence shrinks with thin volume and wide ranges.
func (e *Expert) Decide(b signal.Breakdown) (execution.Action, float64) {
	var action execution.Action
	switch {
	case b.Composite >= e.p.ExpertBuyScore:
		action = execution.Buy
	case b.Composite <= -e.p.ExpertSellScore:
		action = execution.Sell
	default:
		return execution.Hold, 0
	}
	adjusted := math.Abs(b.Composite) * math.Max(0.2, b.VolumeStrength) * (1 - 0.5*b.VolatilityPenalty)
	return action, signal.Clamp(adjusted, 0, 1)
}

// Rationale summarizes the contributing factors.
func (e *Expert) Rationale(action execution.Action, b signal.Breakdown) string {
	var tags []string
	switch {
	case b.BreakoutBias > 0:
		tags = append(tags, "breakout confirmation")
	case b.BreakoutBias < 0:
		tags = append(tags, "breakdown risk")
	}
	switch {
	case b.MeanReversionBias > 0:
		tags = append(tags, "oversold rebound")
	case b.MeanReversionBias < 0:
		tags = append(tags, "overbought pressure")
	}
	var suffix string
	if len(tags) > 0 {
		suffix = " (" + strings.Join(tags, ", ") + ")"
	}
	return fmt.Sprintf("%s expert signal: sentiment %+.1f%%, momentum %+.2f%%, volume strength %.2f, volatility %.2f%s",
		direction(action), b.Sentiment*100, b.PriceChange, b.VolumeStrength, b.VolatilityRange, suffix)
}
