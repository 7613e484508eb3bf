// Package risk enforces stop loss / take profit exits and per-trade notional limits.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/metrics"
	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

// Trigger names the exit rule that fired.
type Trigger string

const (
	StopLoss   Trigger = "Stop loss"
	TakeProfit Trigger = "Take profit"
)

// Params are the overseer thresholds, in percent of the average entry price.
type Params struct {
	StopLossPct   float64
	TakeProfitPct float64
	MinConfidence float64
}

// Overseer scans open positions and forces exits when a threshold is crossed.
type Overseer struct {
	params Params
	log    zerolog.Logger
	now    func() time.Time
}

// NewOverseer builds an Overseer. MinConfidence is clamped into [0, 1].
func NewOverseer(params Params, log zerolog.Logger) *Overseer {
	params.MinConfidence = signal.Clamp(params.MinConfidence, 0, 1)
	return &Overseer{params: params, log: log, now: time.Now}
}

// Name identifies the stage in logs and metrics.
func (o *Overseer) Name() string { return "risk" }

// Evaluate classifies an unrealized move. ok is false when no threshold is crossed.
func (o *Overseer) Evaluate(changePct float64) (trigger Trigger, threshold float64, ok bool) {
	switch {
	case o.params.StopLossPct > 0 && changePct <= -o.params.StopLossPct:
		return StopLoss, o.params.StopLossPct, true
	case o.params.TakeProfitPct > 0 && changePct >= o.params.TakeProfitPct:
		return TakeProfit, o.params.TakeProfitPct, true
	}
	return "", 0, false
}

// Run rebuilds the decision list: strategy BUYs on triggered symbols are retracted and a full
// exit SELL is appended, unless a SELL for that symbol is already pending. Running it twice on
// the same snapshot yields the same list.
func (o *Overseer) Run(_ context.Context, s *state.Snapshot) error {
	if s.Portfolio == nil {
		return nil
	}
	// The strategy engine emits at most one decision per symbol, so any pending SELL is
	// the symbol's final word.
	pendingSell := make(map[string]bool, len(s.Decisions))
	for _, d := range s.Decisions {
		if d.Action == execution.Sell {
			pendingSell[d.Symbol] = true
		}
	}

	exits := make(map[string]execution.Decision)
	var order []string
	for _, pos := range s.Portfolio.Positions() {
		if pos.Quantity <= 0 || pos.AvgPrice <= 0 {
			continue
		}
		tk, ok := s.Ticker(pos.Symbol)
		if !ok {
			continue
		}
		changePct := (tk.Price - pos.AvgPrice) / pos.AvgPrice * 100
		trigger, threshold, fired := o.Evaluate(changePct)
		if !fired || pendingSell[pos.Symbol] {
			continue
		}
		confidence := signal.Clamp(math.Max(o.params.MinConfidence, math.Abs(changePct)/threshold), 0, 1)
		exits[pos.Symbol] = execution.Decision{
			Symbol:     pos.Symbol,
			Action:     execution.Sell,
			Confidence: confidence,
			Price:      tk.Price,
			Reason:     fmt.Sprintf("%s triggered at %+.2f%% from average entry price", trigger, changePct),
			Quantity:   execution.Qty(pos.Quantity),
			CreatedAt:  o.now().UTC(),
		}
		order = append(order, pos.Symbol)
		metrics.RiskTriggersTotal.WithLabelValues(pos.Symbol, string(trigger)).Inc()
		o.log.Info().Str("sym", pos.Symbol).Str("trigger", string(trigger)).Float64("change_pct", changePct).Msg("risk exit")
	}
	if len(order) == 0 {
		return nil
	}

	rebuilt := make([]execution.Decision, 0, len(s.Decisions)+len(order))
	for _, d := range s.Decisions {
		if _, overridden := exits[d.Symbol]; overridden && d.Action == execution.Buy {
			o.log.Debug().Str("sym", d.Symbol).Msg("buy retracted by risk exit")
			continue
		}
		rebuilt = append(rebuilt, d)
	}
	for _, sym := range order {
		rebuilt = append(rebuilt, exits[sym])
	}
	s.Decisions = rebuilt
	return nil
}
