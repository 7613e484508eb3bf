package sentiment

import (
	"context"
	"testing"

	"cryptoagents-go/internal/signal"
)

func TestRuleBasedScoring(t *testing.T) {
	scorer := NewRuleBased(Keywords{})
	cases := []struct {
		title, summary string
		score          float64
		label          signal.Label
		reason         string
	}{
		{"Bitcoin price surge hits record", "New partnership announced", 1, signal.Positive, "Positive catalysts identified (score=+1.00)"},
		{"Exchange hack", "Ethereum drop after lawsuit", -1, signal.Negative, "Negative risk factors highlighted (score=-1.00)"},
		{"Growth slows", "analysts see decline", 0, signal.Neutral, "Balanced signals detected (score=+0.00)"},
		{"Cardano LAUNCH", "", 1.0 / 3, signal.Positive, "Positive catalysts identified (score=+0.33)"},
	}
	for _, tc := range cases {
		got, err := scorer.Score(context.Background(), signal.Article{ID: "id", Title: tc.title, Summary: tc.summary})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := got.Score - tc.score; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("%q: expected score %.3f, got %.3f", tc.title, tc.score, got.Score)
		}
		if got.Label != tc.label || got.Reason != tc.reason || got.ArticleID != "id" {
			t.Fatalf("%q: unexpected result %+v", tc.title, got)
		}
	}
}

func TestRuleBasedCustomKeywords(t *testing.T) {
	scorer := NewRuleBased(Keywords{Positive: []string{"moon"}})
	got, _ := scorer.Score(context.Background(), signal.Article{Title: "to the MOON", Summary: "surge"})
	if got.Score <= 0.3 || got.Score >= 0.34 {
		t.Fatalf("only custom positive keyword should count, got %.3f", got.Score)
	}
}
