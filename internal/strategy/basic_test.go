package strategy

import (
	"testing"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/signal"
)

func TestBasicRequiresBothConditions(t *testing.T) {
	strat := Build("basic", DefaultParams())
	if strat.Name() != "basic" {
		t.Fatalf("expected basic strategy, got %s", strat.Name())
	}

	cases := []struct {
		name      string
		sentiment float64
		change    float64
		action    execution.Action
		conf      float64
	}{
		{"bullish", 0.3, 2, execution.Buy, 0.63},
		{"bearish", -0.3, -2, execution.Sell, 0.37},
		{"sentiment only", 0.5, 0.5, execution.Hold, 0},
		{"price only", 0.1, 9, execution.Hold, 0},
	}
	for _, tc := range cases {
		b := strat.Signal(signal.Ticker{Symbol: "BTC", Price: 1, Change24h: tc.change}, tc.sentiment)
		action, conf := strat.Decide(b)
		if action != tc.action {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.action, action)
		}
		if diff := conf - tc.conf; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("%s: expected confidence %.4f, got %.4f", tc.name, tc.conf, conf)
		}
	}
}

func TestBasicRationale(t *testing.T) {
	strat := NewBasic(DefaultParams())
	b := strat.Signal(signal.Ticker{Symbol: "ETH", Price: 1, Change24h: 2}, 0.3)
	want := "Bullish setup: sentiment +30.0% and price change +2.00%"
	if got := strat.Rationale(execution.Buy, b); got != want {
		t.Fatalf("unexpected rationale %q", got)
	}
	if b.Composite < 0.2599 || b.Composite > 0.2601 {
		t.Fatalf("expected composite 0.26, got %.4f", b.Composite)
	}
}

func TestBuildDefaultsToExpert(t *testing.T) {
	if got := Build("", DefaultParams()).Name(); got != "expert" {
		t.Fatalf("expected expert, got %s", got)
	}
	if got := Build(" EXPERT ", DefaultParams()).Name(); got != "expert" {
		t.Fatalf("expected expert, got %s", got)
	}
}
