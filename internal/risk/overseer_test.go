package risk

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

func snapshotWith(sym string, qty, avg, price float64) *state.Snapshot {
	s := state.New("KRW")
	s.Portfolio.SetPosition(sym, qty, avg)
	s.SetMarket(map[string]signal.Ticker{sym: {Symbol: sym, Price: price}}, time.Now())
	return s
}

func TestStopLossOverridesBuy(t *testing.T) {
	s := snapshotWith("BTC", 0.5, 40_000_000, 36_000_000)
	s.AddDecision(execution.Decision{Symbol: "BTC", Action: execution.Buy, Confidence: 0.8, Price: 36_000_000})

	o := NewOverseer(Params{StopLossPct: 5, TakeProfitPct: 12, MinConfidence: 0.25}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background(), s))

	require.Len(t, s.Decisions, 1)
	d := s.Decisions[0]
	assert.Equal(t, execution.Sell, d.Action)
	require.True(t, d.HasQuantity())
	assert.InDelta(t, 0.5, *d.Quantity, 1e-12)
	assert.InDelta(t, 1.0, d.Confidence, 1e-12)
	assert.Equal(t, "Stop loss triggered at -10.00% from average entry price", d.Reason)
}

func TestTakeProfitReplacesBuy(t *testing.T) {
	s := snapshotWith("ETH", 1, 2_800_000, 3_200_000)
	s.AddDecision(execution.Decision{Symbol: "ETH", Action: execution.Buy, Confidence: 0.7})

	o := NewOverseer(Params{StopLossPct: 5, TakeProfitPct: 10, MinConfidence: 0.35}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background(), s))

	require.Len(t, s.Decisions, 1)
	assert.Equal(t, execution.Sell, s.Decisions[0].Action)
	assert.True(t, strings.HasPrefix(s.Decisions[0].Reason, "Take profit"))
}

func TestOverseerIsIdempotent(t *testing.T) {
	s := snapshotWith("BTC", 0.5, 40_000_000, 36_000_000)
	o := NewOverseer(Params{StopLossPct: 5, TakeProfitPct: 8, MinConfidence: 0.35}, zerolog.Nop())

	require.NoError(t, o.Run(context.Background(), s))
	require.NoError(t, o.Run(context.Background(), s))
	assert.Len(t, s.Decisions, 1)
}

func TestExistingSellLeftUntouched(t *testing.T) {
	s := snapshotWith("XRP", 10, 1000, 900)
	strategySell := execution.Decision{Symbol: "XRP", Action: execution.Sell, Confidence: 0.4, Reason: "strategy"}
	s.AddDecision(strategySell)

	o := NewOverseer(Params{StopLossPct: 5, TakeProfitPct: 8}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background(), s))

	require.Len(t, s.Decisions, 1)
	assert.Equal(t, "strategy", s.Decisions[0].Reason)
	assert.False(t, s.Decisions[0].HasQuantity())
}

func TestConfidenceFloorsAtMinimum(t *testing.T) {
	s := snapshotWith("SOL", 2, 100, 94.5)
	o := NewOverseer(Params{StopLossPct: 5, MinConfidence: 1.7}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background(), s))

	require.Len(t, s.Decisions, 1)
	assert.InDelta(t, 1.0, s.Decisions[0].Confidence, 1e-12)

	low := snapshotWith("SOL", 2, 100, 120)
	o = NewOverseer(Params{TakeProfitPct: 50, StopLossPct: 5, MinConfidence: 0.35}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background(), low))
	assert.Empty(t, low.Decisions)
}

func TestNoTriggerInsideBand(t *testing.T) {
	s := snapshotWith("ADA", 100, 500, 510)
	s.AddDecision(execution.Decision{Symbol: "ADA", Action: execution.Buy})
	o := NewOverseer(Params{StopLossPct: 5, TakeProfitPct: 8, MinConfidence: 0.35}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background(), s))

	require.Len(t, s.Decisions, 1)
	assert.Equal(t, execution.Buy, s.Decisions[0].Action)
}

func TestUnpricedPositionIgnored(t *testing.T) {
	s := state.New("KRW")
	s.Portfolio.SetPosition("DOGE", 100, 10)
	o := NewOverseer(Params{StopLossPct: 5, TakeProfitPct: 8}, zerolog.Nop())
	require.NoError(t, o.Run(context.Background(), s))
	assert.Empty(t, s.Decisions)
}

func TestDisabledThresholds(t *testing.T) {
	o := NewOverseer(Params{}, zerolog.Nop())
	if _, _, ok := o.Evaluate(-90); ok {
		t.Fatalf("zero stop loss must disable the trigger")
	}
	if _, _, ok := o.Evaluate(90); ok {
		t.Fatalf("zero take profit must disable the trigger")
	}
}
