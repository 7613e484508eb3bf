package signal

import "testing"

func TestLabelFor(t *testing.T) {
	cases := map[float64]Label{
		0.5:   Positive,
		0.15:  Neutral,
		0:     Neutral,
		-0.15: Neutral,
		-0.2:  Negative,
	}
	for score, want := range cases {
		if got := LabelFor(score); got != want {
			t.Fatalf("LabelFor(%.2f) = %s, want %s", score, got, want)
		}
	}
}

func TestTickerHasRange(t *testing.T) {
	if (Ticker{High24h: 10}).HasRange() {
		t.Fatalf("expected missing low to report no range")
	}
	if !(Ticker{High24h: 10, Low24h: 8}).HasRange() {
		t.Fatalf("expected range")
	}
}
