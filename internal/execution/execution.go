// Package execution defines trade intents and the records produced when they are filled.
package execution

import (
	"time"

	"cryptoagents-go/internal/metrics"

	"github.com/rs/zerolog"
)

// Action enumerates what a decision asks the ledger to do.
type Action string

const (
	// Buy adds to a position.
	Buy Action = "BUY"
	// Sell reduces a position.
	Sell Action = "SELL"
	// Hold is computed but never recorded as a decision.
	Hold Action = "HOLD"
)

// Actions lists every action in display order.
var Actions = []Action{Buy, Sell, Hold}

// Decision is a transient trade intent produced once per cycle.
type Decision struct {
	Symbol     string
	Action     Action
	Confidence float64 // [0, 1]
	Price      float64
	Reason     string
	Quantity   *float64 // explicit size, nil lets the ledger size the trade
	CreatedAt  time.Time
}

// HasQuantity reports whether the decision pins an explicit size.
func (d Decision) HasQuantity() bool { return d.Quantity != nil }

// Qty returns a pointer suitable for Decision.Quantity.
func Qty(v float64) *float64 { return &v }

// Transaction is an immutable audit entry appended by the ledger.
type Transaction struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Action    Action    `json:"action"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// Executor reports applied transactions to logs and metrics.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Report logs an applied transaction. Paper trading never reaches a venue.
func (executor *Executor) Report(tx Transaction) {
	metrics.TransactionsTotal.WithLabelValues(tx.Symbol, string(tx.Action)).Inc()
	executor.log.Info().
		Str("sym", tx.Symbol).
		Str("side", string(tx.Action)).
		Float64("qty", tx.Quantity).
		Float64("px", tx.Price).
		Str("reason", tx.Reason).
		Msgf("paper %s filled", tx.Action)
}
