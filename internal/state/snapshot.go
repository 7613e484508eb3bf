// Package state holds the per-cycle working set handed from stage to stage.
package state

import (
	"sort"
	"time"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/paper"
	"cryptoagents-go/internal/signal"
)

// Metadata keys written by the orchestrator.
const (
	MetaMarketTimestamp = "market_timestamp"
	MetaCycle           = "cycle"
	MetaLastCycleAt     = "last_cycle_at"
)

// DefaultNewsRetention bounds how many articles a Snapshot keeps across cycles.
const DefaultNewsRetention = 200

// Snapshot is the mutable context of one decision cycle. The same value is reused across
// cycles so the Portfolio accumulates, while Decisions are rebuilt every pass. A Snapshot is
// not safe for concurrent use; the orchestrator serializes cycles.
type Snapshot struct {
	Market          map[string]signal.Ticker
	MarketTimestamp time.Time
	News            []signal.Article
	Sentiments      map[string]signal.Sentiment // keyed by article id
	Decisions       []execution.Decision
	Portfolio       *paper.Portfolio
	Metadata        map[string]string
	LastUpdated     time.Time

	NewsRetention int
}

// New creates an empty Snapshot around a fresh Portfolio denominated in baseCurrency.
func New(baseCurrency string) *Snapshot {
	return &Snapshot{
		Market:        make(map[string]signal.Ticker),
		Sentiments:    make(map[string]signal.Sentiment),
		Portfolio:     paper.NewPortfolio(baseCurrency),
		Metadata:      make(map[string]string),
		NewsRetention: DefaultNewsRetention,
	}
}

// SetMarket replaces the ticker map. Entries without a positive price are dropped.
func (s *Snapshot) SetMarket(tickers map[string]signal.Ticker, ts time.Time) {
	s.Market = make(map[string]signal.Ticker, len(tickers))
	for sym, tk := range tickers {
		if tk.Price <= 0 {
			continue
		}
		if tk.Symbol == "" {
			tk.Symbol = sym
		}
		s.Market[sym] = tk
	}
	s.MarketTimestamp = ts.UTC()
	s.Metadata[MetaMarketTimestamp] = s.MarketTimestamp.Format(time.RFC3339)
}

// Ticker returns the ticker for symbol when one with a positive price is known.
func (s *Snapshot) Ticker(symbol string) (signal.Ticker, bool) {
	tk, ok := s.Market[symbol]
	return tk, ok && tk.Price > 0
}

// MarketSymbols lists the symbols with tickers in ascending order.
func (s *Snapshot) MarketSymbols() []string {
	out := make([]string, 0, len(s.Market))
	for sym := range s.Market {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// AddNews appends articles not yet seen, keeping at most NewsRetention of the newest ones.
// It returns how many articles were new.
func (s *Snapshot) AddNews(articles []signal.Article) int {
	seen := make(map[string]struct{}, len(s.News))
	for _, a := range s.News {
		seen[a.ID] = struct{}{}
	}
	added := 0
	for _, a := range articles {
		if _, dup := seen[a.ID]; dup || a.ID == "" {
			continue
		}
		seen[a.ID] = struct{}{}
		s.News = append(s.News, a)
		added++
	}
	if limit := s.NewsRetention; limit > 0 && len(s.News) > limit {
		sort.SliceStable(s.News, func(i, j int) bool { return s.News[i].PublishedAt.After(s.News[j].PublishedAt) })
		for _, dropped := range s.News[limit:] {
			delete(s.Sentiments, dropped.ID)
		}
		s.News = s.News[:limit]
	}
	return added
}

// Unscored returns the articles that have no sentiment yet, in stored order.
func (s *Snapshot) Unscored() []signal.Article {
	var out []signal.Article
	for _, a := range s.News {
		if _, ok := s.Sentiments[a.ID]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// SetSentiment stores the score for one article, replacing any earlier one.
func (s *Snapshot) SetSentiment(score signal.Sentiment) {
	s.Sentiments[score.ArticleID] = score
}

// ResetDecisions clears the pending decision list.
func (s *Snapshot) ResetDecisions() { s.Decisions = s.Decisions[:0] }

// AddDecision appends a pending decision.
func (s *Snapshot) AddDecision(d execution.Decision) { s.Decisions = append(s.Decisions, d) }

// Touch records the refresh time.
func (s *Snapshot) Touch(now time.Time) { s.LastUpdated = now.UTC() }
