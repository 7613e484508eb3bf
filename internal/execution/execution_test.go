package execution

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestReportLogsTransaction(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	exec := NewExecutor(logger)
	exec.Report(Transaction{Symbol: "BTC", Action: Buy, Quantity: 0.01, Price: 36_000_000})

	out := buf.String()
	if !strings.Contains(out, "BTC") {
		t.Fatalf("log does not contain symbol: %s", out)
	}
	if !strings.Contains(out, "paper BUY filled") {
		t.Fatalf("log does not contain message: %s", out)
	}
}

func TestDecisionQuantity(t *testing.T) {
	d := Decision{Symbol: "ETH", Action: Sell}
	if d.HasQuantity() {
		t.Fatalf("expected no explicit quantity")
	}
	d.Quantity = Qty(1.5)
	if !d.HasQuantity() || *d.Quantity != 1.5 {
		t.Fatalf("expected explicit quantity 1.5")
	}
}
