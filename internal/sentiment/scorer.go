// Package sentiment scores news articles and folds the scores into per-symbol sentiment.
package sentiment

import (
	"context"
	"errors"

	"cryptoagents-go/internal/signal"
)

// ErrInvalidResponse marks a remote scorer reply that could not be turned into a score.
var ErrInvalidResponse = errors.New("sentiment: invalid scorer response")

// Scorer assigns a sentiment to one article.
type Scorer interface {
	Name() string
	Score(ctx context.Context, article signal.Article) (signal.Sentiment, error)
}
