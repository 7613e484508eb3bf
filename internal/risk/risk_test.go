package risk

import "testing"

func TestClamp(t *testing.T) {
	limits := Limits{MaxNotionalPerTrade: 50_000}
	if got := limits.Clamp(200_000); got != 50_000 {
		t.Fatalf("expected budget clamped to 50000, got %.2f", got)
	}
	if got := limits.Clamp(10_000); got != 10_000 {
		t.Fatalf("budget under cap must pass through, got %.2f", got)
	}
	if got := (Limits{}).Clamp(200_000); got != 200_000 {
		t.Fatalf("disabled cap must pass through, got %.2f", got)
	}
}
