package paper

import (
	"testing"

	"cryptoagents-go/internal/execution"
)

func TestLedgerRecordSnapshot(t *testing.T) {
	ledger := NewLedger(2)
	tx := execution.Transaction{Symbol: "BTC", Quantity: 1}
	ledger.Record(tx)

	snapshot := ledger.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(snapshot))
	}
	if snapshot[0].Symbol != tx.Symbol {
		t.Fatalf("unexpected transaction symbol")
	}

	clone := ledger.Clone()
	ledger.Record(tx)
	if clone.Len() != 1 || ledger.Len() != 2 {
		t.Fatalf("clone must be independent: clone=%d ledger=%d", clone.Len(), ledger.Len())
	}
}
