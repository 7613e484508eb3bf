package strategy

import (
	"math"
	"sort"

	"cryptoagents-go/internal/signal"
	"cryptoagents-go/internal/state"
)

// maxExposurePenalty caps how much an existing position can push a symbol down the ranking.
const maxExposurePenalty = 0.3

// RankOptions enables the extended ranking terms. The zero value ranks on composite only.
type RankOptions struct {
	VolumeWeight    float64
	ExposurePenalty bool
}

// Candidate is one ranked symbol and the key it was ordered by.
type Candidate struct {
	Symbol string
	Key    float64
}

// Ranker orders tradable symbols, most attractive first.
type Ranker struct {
	tracked []string
	opts    RankOptions
}

// NewRanker builds a Ranker over the configured tracked symbols, in configured order.
func NewRanker(tracked []string, opts RankOptions) *Ranker {
	return &Ranker{tracked: append([]string(nil), tracked...), opts: opts}
}

// Candidates lists tracked symbols with a ticker, then symbols discovered through sentiment.
// With nothing tracked, every market symbol is a candidate in ascending order. Symbols without
// a ticker are excluded since a decision needs a price.
func (r *Ranker) Candidates(s *state.Snapshot, sentiments []signal.SymbolSentiment) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(sym string) {
		if _, dup := seen[sym]; dup {
			return
		}
		if _, ok := s.Ticker(sym); !ok {
			return
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	if len(r.tracked) == 0 {
		for _, sym := range s.MarketSymbols() {
			add(sym)
		}
	}
	for _, sym := range r.tracked {
		add(sym)
	}
	for _, ss := range sentiments {
		add(ss.Symbol)
	}
	return out
}

// Rank scores every candidate and sorts descending. Ties keep candidate order.
func (r *Ranker) Rank(s *state.Snapshot, sentiments []signal.SymbolSentiment, signals map[string]signal.Breakdown) []Candidate {
	symbols := r.Candidates(s, sentiments)
	bySymbol := make(map[string]float64, len(sentiments))
	for _, ss := range sentiments {
		bySymbol[ss.Symbol] = ss.Score
	}

	var maxVolume float64
	for _, tk := range s.Market {
		maxVolume = math.Max(maxVolume, tk.Volume24h)
	}
	var total float64
	if r.opts.ExposurePenalty && s.Portfolio != nil {
		total = s.Portfolio.TotalValue(s.Market)
	}

	ranked := make([]Candidate, 0, len(symbols))
	for _, sym := range symbols {
		tk, _ := s.Ticker(sym)
		var key float64
		if b, ok := signals[sym]; ok {
			key = b.Composite
		} else {
			key = 0.6*bySymbol[sym] + 0.4*priceComponent(tk.Change24h)
		}
		if r.opts.VolumeWeight != 0 && maxVolume > 0 {
			key += r.opts.VolumeWeight * tk.Volume24h / maxVolume
		}
		if total > 0 {
			if pos, ok := s.Portfolio.Position(sym); ok && pos.Quantity > 0 {
				key -= math.Min(maxExposurePenalty, pos.Quantity*tk.Price/total)
			}
		}
		ranked = append(ranked, Candidate{Symbol: sym, Key: key})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Key > ranked[j].Key })
	return ranked
}
