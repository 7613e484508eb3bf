package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/metrics"
	"cryptoagents-go/internal/paper"
	"cryptoagents-go/internal/sentiment"
	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

// TickerSource yields one market snapshot per call.
type TickerSource interface {
	Fetch(ctx context.Context) (map[string]signal.Ticker, time.Time, error)
}

// ArticleSource yields the latest articles. It degrades instead of failing.
type ArticleSource interface {
	Collect(ctx context.Context) []signal.Article
}

// MarketStage replaces the snapshot tickers. A fetch error aborts the cycle.
type MarketStage struct{ Source TickerSource }

func (m MarketStage) Name() string { return "market" }

func (m MarketStage) Run(ctx context.Context, s *state.Snapshot) error {
	tickers, ts, err := m.Source.Fetch(ctx)
	if err != nil {
		return err
	}
	s.SetMarket(tickers, ts)
	return nil
}

// NewsStage merges freshly collected articles into the snapshot.
type NewsStage struct {
	Source ArticleSource
	Log    zerolog.Logger
}

func (n NewsStage) Name() string { return "news" }

func (n NewsStage) Run(ctx context.Context, s *state.Snapshot) error {
	added := s.AddNews(n.Source.Collect(ctx))
	n.Log.Debug().Int("new_articles", added).Int("retained", len(s.News)).Msg("news merged")
	return nil
}

// SentimentStage scores every article that has no score yet. Articles the scorer rejects
// stay unscored and are retried next cycle.
type SentimentStage struct {
	Scorer sentiment.Scorer
	Log    zerolog.Logger
}

func (st SentimentStage) Name() string { return "sentiment" }

func (st SentimentStage) Run(ctx context.Context, s *state.Snapshot) error {
	for _, a := range s.Unscored() {
		if err := ctx.Err(); err != nil {
			return err
		}
		score, err := st.Scorer.Score(ctx, a)
		if err != nil {
			st.Log.Warn().Err(err).Str("article", a.ID).Str("scorer", st.Scorer.Name()).Msg("article not scored")
			continue
		}
		score.ArticleID = a.ID
		s.SetSentiment(score)
		metrics.ArticlesScoredTotal.WithLabelValues(string(score.Label)).Inc()
	}
	return nil
}

// PortfolioStage applies pending decisions to the ledger. The fills it produced are
// published only when the cycle commits.
type PortfolioStage struct {
	Manager *paper.Manager

	portfolio *paper.Portfolio
	market    map[string]signal.Ticker
	pending   []execution.Transaction
}

func (p *PortfolioStage) Name() string { return "portfolio" }

func (p *PortfolioStage) Run(_ context.Context, s *state.Snapshot) error {
	p.portfolio, p.market = s.Portfolio, s.Market
	p.pending = p.Manager.Execute(s.Portfolio, s.Decisions, s.Market)
	return nil
}

// Commit publishes the fills of the finished cycle.
func (p *PortfolioStage) Commit() {
	if p.portfolio != nil {
		p.Manager.Publish(p.portfolio, p.pending, p.market)
	}
	p.Discard()
}

// Discard drops fills that were rolled back with the portfolio.
func (p *PortfolioStage) Discard() {
	p.portfolio, p.market, p.pending = nil, nil, nil
}
