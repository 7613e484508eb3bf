// Package signal standardizes payloads shared between data collection, strategy, and ledger layers.
package signal

import "time"

// Ticker models the 24h market snapshot for a single symbol.
// High, Low and Volume are zero when the venue did not report them.
type Ticker struct {
	Symbol    string
	Price     float64
	Change24h float64 // percent
	Volume24h float64
	High24h   float64
	Low24h    float64
	Currency  string
	Ts        time.Time
}

// HasRange reports whether both 24h extremes are known.
func (t Ticker) HasRange() bool { return t.High24h > 0 && t.Low24h > 0 }

// Article is a news item tagged with the symbols it mentions.
type Article struct {
	ID          string
	Title       string
	URL         string
	Summary     string
	Source      string
	PublishedAt time.Time
	Symbols     []string
}

// Label classifies a sentiment score.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// LabelThreshold separates neutral scores from directional ones.
const LabelThreshold = 0.15

// LabelFor derives a label from the score sign using LabelThreshold.
func LabelFor(score float64) Label {
	switch {
	case score > LabelThreshold:
		return Positive
	case score < -LabelThreshold:
		return Negative
	default:
		return Neutral
	}
}

// Sentiment is the score assigned to one article by an external scorer.
type Sentiment struct {
	ArticleID string
	Score     float64 // [-1, 1]
	Label     Label
	Reason    string
}

// Breakdown keeps every sub-score used to build a composite so rationales can explain it.
type Breakdown struct {
	Symbol            string
	Sentiment         float64
	PriceChange       float64
	Momentum          float64
	BreakoutBias      float64
	MeanReversionBias float64
	VolatilityRange   float64
	VolatilityPenalty float64
	VolatilityBias    float64
	VolumeStrength    float64
	Composite         float64
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SymbolSentiment is the aggregated sentiment of every scored article tagged with Symbol.
type SymbolSentiment struct {
	Symbol   string
	Score    float64
	Articles int
}
