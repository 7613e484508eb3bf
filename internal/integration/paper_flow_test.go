package integration

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/config"
	"cryptoagents-go/internal/engine"
	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/paper"
	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

// scriptedFeed replays one ticker map per cycle and repeats the last one.
type scriptedFeed struct {
	steps []map[string]signal.Ticker
	calls int
}

func (f *scriptedFeed) Fetch(context.Context) (map[string]signal.Ticker, time.Time, error) {
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	out := make(map[string]signal.Ticker, len(f.steps[i]))
	for k, v := range f.steps[i] {
		out[k] = v
	}
	return out, time.Now(), nil
}

type fixedNews []signal.Article

func (n fixedNews) Collect(context.Context) []signal.Article { return n }

func btc(price float64) map[string]signal.Ticker {
	return map[string]signal.Ticker{"BTC": {Symbol: "BTC", Price: price, Change24h: 5, Volume24h: 1200, Currency: "KRW"}}
}

func TestBuyThenStopLossExit(t *testing.T) {
	cfg := config.Default()
	cfg.Market.Symbols = []string{"BTC"}
	cfg.Paper.FillsPath = filepath.Join(t.TempDir(), "fills.jsonl")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	feed := &scriptedFeed{steps: []map[string]signal.Ticker{btc(36_000_000), btc(32_400_000)}}
	news := fixedNews{{
		ID:          "btc-1",
		Title:       "Bitcoin surge hits record on partnership growth",
		Source:      "CoinDesk",
		Symbols:     []string{"BTC"},
		PublishedAt: time.Now().Add(-time.Hour),
	}}

	o, err := engine.Build(cfg, logger, engine.WithTickerSource(feed), engine.WithArticleSource(news))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	o.View(func(s *state.Snapshot) {
		if got := s.Sentiments["btc-1"].Score; got != 1 {
			t.Fatalf("expected rule based score 1, got %v", got)
		}
		if len(s.Decisions) != 1 || s.Decisions[0].Action != execution.Buy {
			t.Fatalf("expected one BUY, got %+v", s.Decisions)
		}
		pos, _ := s.Portfolio.Position("BTC")
		// composite 0.85, budget 1,000,000 * 0.2 * 0.85
		if !near(pos.Quantity*36_000_000, 170_000) || !near(s.Portfolio.Cash(), 830_000) {
			t.Fatalf("unexpected fill: qty=%v cash=%v", pos.Quantity, s.Portfolio.Cash())
		}
	})

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	o.View(func(s *state.Snapshot) {
		if len(s.Decisions) != 1 {
			t.Fatalf("expected buy retracted and one exit, got %+v", s.Decisions)
		}
		exit := s.Decisions[0]
		if exit.Action != execution.Sell || !strings.HasPrefix(exit.Reason, "Stop loss triggered at -10.00%") {
			t.Fatalf("unexpected exit %+v", exit)
		}
		pos, _ := s.Portfolio.Position("BTC")
		if pos.Quantity != 0 || pos.AvgPrice != 0 {
			t.Fatalf("position not closed: %+v", pos)
		}
		if !near(s.Portfolio.Cash(), 983_000) {
			t.Fatalf("cash after exit = %v", s.Portfolio.Cash())
		}
		if h := s.Portfolio.History(); len(h) != 2 || h[1].Action != execution.Sell {
			t.Fatalf("unexpected history %+v", h)
		}
		if s.Metadata[state.MetaCycle] != "2" {
			t.Fatalf("cycle metadata = %q", s.Metadata[state.MetaCycle])
		}
	})

	if err := o.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(buf.String(), "paper BUY filled") || !strings.Contains(buf.String(), "risk exit") {
		t.Fatalf("expected fill and exit logs, got %s", buf.String())
	}

	fills, err := paper.ReadTransactions(cfg.Paper.FillsPath)
	if err != nil {
		t.Fatalf("read fills: %v", err)
	}
	if len(fills) != 2 || fills[0].Action != execution.Buy || fills[1].Action != execution.Sell {
		t.Fatalf("unexpected fills %+v", fills)
	}
}

func near(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-6
}
