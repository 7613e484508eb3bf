package main

import (
	"fmt"
	"io"

	"cryptoagents-go/internal/state"
)

// printPortfolio writes cash, every open position and the marked total.
func printPortfolio(w io.Writer, s *state.Snapshot) {
	snap := s.Portfolio.Snapshot(s.Market)
	base := snap.BaseCurrency
	fmt.Fprintln(w, "=== Portfolio ===")
	fmt.Fprintf(w, "Cash: %.2f %s\n", snap.Cash, base)
	for _, pos := range snap.Positions {
		if pos.Qty <= 0 {
			continue
		}
		value := "n/a"
		if pos.Priced {
			value = fmt.Sprintf("%.2f %s (unrealized %+.2f)", pos.MarketValue, base, pos.Unrealized)
		}
		fmt.Fprintf(w, "%-6s qty=%.6f avg=%.2f value=%s\n", pos.Symbol, pos.Qty, pos.AvgPrice, value)
	}
	fmt.Fprintf(w, "Total value: %.2f %s\n", snap.Equity, base)
}
