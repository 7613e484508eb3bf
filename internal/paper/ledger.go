package paper

import (
	"sync"

	"cryptoagents-go/internal/execution"
)

// TransactionRecorder captures applied transactions for later inspection.
type TransactionRecorder interface {
	Record(execution.Transaction)
}

// Ledger is the append-only in-memory transaction log.
type Ledger struct {
	mu  sync.Mutex
	txs []execution.Transaction
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{txs: make([]execution.Transaction, 0, capacity)}
}

// Record appends a transaction to the ledger.
func (l *Ledger) Record(tx execution.Transaction) {
	l.mu.Lock()
	l.txs = append(l.txs, tx)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded transactions.
func (l *Ledger) Snapshot() []execution.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Transaction, len(l.txs))
	copy(out, l.txs)
	return out
}

// Len returns the number of recorded transactions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

// Clone returns an independent ledger holding the same entries.
func (l *Ledger) Clone() *Ledger {
	txs := l.Snapshot()
	return &Ledger{txs: txs}
}
