package sentiment

import (
	"context"
	"fmt"
	"strings"

	"cryptoagents-go/internal/signal"
)

// Keywords are matched as lowercase substrings of title and summary.
type Keywords struct {
	Positive []string
	Negative []string
}

// DefaultKeywords is the stock vocabulary.
func DefaultKeywords() Keywords {
	return Keywords{
		Positive: []string{"surge", "bull", "record", "partnership", "growth", "launch", "support"},
		Negative: []string{"hack", "decline", "drop", "lawsuit", "ban", "scam", "loss"},
	}
}

var labelPhrases = map[signal.Label]string{
	signal.Positive: "Positive catalysts identified",
	signal.Negative: "Negative risk factors highlighted",
	signal.Neutral:  "Balanced signals detected",
}

// RuleBased scores articles by counting keyword hits. It never fails and needs no network.
type RuleBased struct {
	kw Keywords
}

// NewRuleBased builds a keyword scorer. Empty keyword sets fall back to the defaults.
func NewRuleBased(kw Keywords) *RuleBased {
	def := DefaultKeywords()
	if len(kw.Positive) == 0 {
		kw.Positive = def.Positive
	}
	if len(kw.Negative) == 0 {
		kw.Negative = def.Negative
	}
	return &RuleBased{kw: kw}
}

// Name returns the provider identifier.
func (r *RuleBased) Name() string { return "rule_based" }

// Score counts each keyword at most once: +1 positive, -1 negative, normalized by three.
func (r *RuleBased) Score(_ context.Context, a signal.Article) (signal.Sentiment, error) {
	text := strings.ToLower(a.Title + " " + a.Summary)
	hits := 0
	for _, w := range r.kw.Positive {
		if strings.Contains(text, strings.ToLower(w)) {
			hits++
		}
	}
	for _, w := range r.kw.Negative {
		if strings.Contains(text, strings.ToLower(w)) {
			hits--
		}
	}
	score := signal.Clamp(float64(hits)/3, -1, 1)
	label := signal.LabelFor(score)
	return signal.Sentiment{
		ArticleID: a.ID,
		Score:     score,
		Label:     label,
		Reason:    fmt.Sprintf("%s (score=%+.2f)", labelPhrases[label], score),
	}, nil
}
