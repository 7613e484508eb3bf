package risk

// Limits caps the notional of any single trade. A zero or negative cap disables it.
type Limits struct {
	MaxNotionalPerTrade float64
}

func (l Limits) enabled() bool { return l.MaxNotionalPerTrade > 0 }

// Clamp shrinks a buy budget to the cap.
func (l Limits) Clamp(budget float64) float64 {
	if l.enabled() && budget > l.MaxNotionalPerTrade {
		return l.MaxNotionalPerTrade
	}
	return budget
}
