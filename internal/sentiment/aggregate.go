package sentiment

import (
	"math"
	"strings"
	"time"

	"cryptoagents-go/internal/signal"
)

type accumulator struct {
	weighted float64
	weights  float64
	count    int
}

func aggregate(news []signal.Article, scores map[string]signal.Sentiment, weight func(signal.Article) float64) []signal.SymbolSentiment {
	acc := make(map[string]*accumulator)
	var order []string
	for _, a := range news {
		s, ok := scores[a.ID]
		if !ok || len(a.Symbols) == 0 {
			continue
		}
		w := weight(a)
		for _, sym := range a.Symbols {
			sym = strings.ToUpper(sym)
			entry := acc[sym]
			if entry == nil {
				entry = &accumulator{}
				acc[sym] = entry
				order = append(order, sym)
			}
			entry.weighted += w * s.Score
			entry.weights += w
			entry.count++
		}
	}
	out := make([]signal.SymbolSentiment, 0, len(order))
	for _, sym := range order {
		entry := acc[sym]
		var score float64
		if entry.weights > 0 {
			score = entry.weighted / entry.weights
		}
		out = append(out, signal.SymbolSentiment{Symbol: sym, Score: score, Articles: entry.count})
	}
	return out
}

// Mean averages the scores of every scored article per tagged symbol. Symbols appear in the
// order they are first seen in news.
func Mean(news []signal.Article, scores map[string]signal.Sentiment, _ time.Time) []signal.SymbolSentiment {
	return aggregate(news, scores, func(signal.Article) float64 { return 1 })
}

// Decayed returns a weighted mean where an article's weight halves every halfLife of age.
// A non-positive halfLife degrades to Mean.
func Decayed(halfLife time.Duration) func([]signal.Article, map[string]signal.Sentiment, time.Time) []signal.SymbolSentiment {
	if halfLife <= 0 {
		return Mean
	}
	return func(news []signal.Article, scores map[string]signal.Sentiment, now time.Time) []signal.SymbolSentiment {
		return aggregate(news, scores, func(a signal.Article) float64 {
			age := now.Sub(a.PublishedAt)
			if age < 0 || a.PublishedAt.IsZero() {
				age = 0
			}
			return math.Pow(0.5, float64(age)/float64(halfLife))
		})
	}
}
