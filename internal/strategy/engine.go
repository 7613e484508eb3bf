package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/metrics"
	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

// Aggregator reduces per-article scores to per-symbol sentiment in first-seen order.
type Aggregator func(news []signal.Article, scores map[string]signal.Sentiment, now time.Time) []signal.SymbolSentiment

// Engine is the decision stage: it signals every ticker, ranks candidates and records
// BUY/SELL decisions for the top MaxTrades of them.
type Engine struct {
	strat     Strategy
	ranker    *Ranker
	aggregate Aggregator
	maxTrades int
	log       zerolog.Logger
	now       func() time.Time
}

// NewEngine wires a strategy and ranker. A non-positive maxTrades disables trading.
func NewEngine(strat Strategy, ranker *Ranker, aggregate Aggregator, maxTrades int, log zerolog.Logger) *Engine {
	return &Engine{
		strat:     strat,
		ranker:    ranker,
		aggregate: aggregate,
		maxTrades: maxTrades,
		log:       log,
		now:       time.Now,
	}
}

// Name identifies the stage in logs and metrics.
func (e *Engine) Name() string { return "strategy" }

// Run resets the pending decisions and rebuilds them from the snapshot.
func (e *Engine) Run(_ context.Context, s *state.Snapshot) error {
	s.ResetDecisions()
	if len(s.Market) == 0 {
		e.log.Debug().Msg("no market data, skipping decisions")
		return nil
	}
	now := e.now()

	var sentiments []signal.SymbolSentiment
	if e.aggregate != nil {
		sentiments = e.aggregate(s.News, s.Sentiments, now)
	}
	bySymbol := make(map[string]float64, len(sentiments))
	for _, ss := range sentiments {
		bySymbol[ss.Symbol] = ss.Score
	}

	signals := make(map[string]signal.Breakdown, len(s.Market))
	for sym, tk := range s.Market {
		signals[sym] = e.strat.Signal(tk, bySymbol[sym])
	}

	ranked := e.ranker.Rank(s, sentiments, signals)
	if len(ranked) > e.maxTrades {
		ranked = ranked[:max(0, e.maxTrades)]
	}
	for _, c := range ranked {
		tk, _ := s.Ticker(c.Symbol)
		b := signals[c.Symbol]
		action, confidence := e.strat.Decide(b)
		if action == execution.Hold {
			e.log.Debug().Str("sym", c.Symbol).Float64("composite", b.Composite).Msg("hold")
			continue
		}
		s.AddDecision(execution.Decision{
			Symbol:     c.Symbol,
			Action:     action,
			Confidence: confidence,
			Price:      tk.Price,
			Reason:     e.strat.Rationale(action, b),
			CreatedAt:  now.UTC(),
		})
		metrics.DecisionsTotal.WithLabelValues(c.Symbol, string(action)).Inc()
		e.log.Info().Str("sym", c.Symbol).Str("action", string(action)).Float64("confidence", confidence).Msg("decision")
	}
	return nil
}
