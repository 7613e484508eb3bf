// Package paper applies trade decisions to a virtual cash and position ledger.
package paper

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/metrics"
	"cryptoagents-go/internal/signal"
)

// RebalanceReason is the fixed rationale attached to automatic trims.
const RebalanceReason = "Rebalance: reduce overweight exposure"

// Config captures sizing knobs. Fractions are expressed in [0, 1].
type Config struct {
	InitialCash           float64
	TradeFraction         float64
	MinCashReserve        float64
	MinTradeValue         float64
	MaxPositionAllocation float64
	RebalanceBuffer       float64
}

// BudgetCap bounds the notional of a single buy.
type BudgetCap interface {
	Clamp(budget float64) float64
}

// Manager sizes decisions against a Portfolio and keeps it within allocation limits.
type Manager struct {
	cfg       Config
	log       zerolog.Logger
	budgetCap BudgetCap
	exec      *execution.Executor
	recorder  TransactionRecorder
	now       func() time.Time
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithBudgetCap applies an extra per-trade notional ceiling to buys.
func WithBudgetCap(c BudgetCap) Option {
	return func(m *Manager) { m.budgetCap = c }
}

// WithRecorder mirrors every applied transaction to r.
func WithRecorder(r TransactionRecorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithClock overrides the transaction timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a Manager, clamping fractions into safe bounds.
func NewManager(cfg Config, log zerolog.Logger, opts ...Option) *Manager {
	cfg.TradeFraction = signal.Clamp(cfg.TradeFraction, 0, 1)
	cfg.MinCashReserve = signal.Clamp(cfg.MinCashReserve, 0, 1)
	cfg.MinTradeValue = math.Max(0, cfg.MinTradeValue)
	cfg.InitialCash = math.Max(0, cfg.InitialCash)
	cfg.RebalanceBuffer = math.Max(0, cfg.RebalanceBuffer)
	m := &Manager{
		cfg:  cfg,
		log:  log,
		exec: execution.NewExecutor(log),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply executes decisions against p and publishes the resulting transactions at once.
func (m *Manager) Apply(p *Portfolio, decisions []execution.Decision, market map[string]signal.Ticker) []execution.Transaction {
	applied := m.Execute(p, decisions, market)
	m.Publish(p, applied, market)
	return applied
}

// Execute applies decisions in order to p, then trims overweight positions. Trades that
// violate a constraint are skipped. Only the portfolio changes; nothing reaches the
// recorder, logs or counters until Publish.
func (m *Manager) Execute(p *Portfolio, decisions []execution.Decision, market map[string]signal.Ticker) []execution.Transaction {
	m.ensureBalance(p)

	var applied []execution.Transaction
	for _, d := range decisions {
		tk, ok := market[d.Symbol]
		if !ok || tk.Price <= 0 {
			m.log.Debug().Str("sym", d.Symbol).Msg("skip decision: no market price")
			continue
		}
		var (
			tx     execution.Transaction
			filled bool
		)
		switch d.Action {
		case execution.Buy:
			tx, filled = m.buy(p, d, tk.Price, market)
		case execution.Sell:
			tx, filled = m.sell(p, d, tk.Price)
		}
		if filled {
			applied = append(applied, tx)
		}
	}
	return append(applied, m.Rebalance(p, market)...)
}

// Publish mirrors txs to the recorder and the fill log and refreshes the valuation gauges.
func (m *Manager) Publish(p *Portfolio, txs []execution.Transaction, market map[string]signal.Ticker) {
	for _, tx := range txs {
		if m.recorder != nil {
			m.recorder.Record(tx)
		}
		m.exec.Report(tx)
	}
	metrics.CashBalance.Set(p.Cash())
	metrics.PortfolioValue.Set(p.TotalValue(market))
}

func (m *Manager) ensureBalance(p *Portfolio) {
	base := p.BaseCurrency()
	p.EnsureBalance(base)
	if !p.seeded && p.Balance(base) <= 0 {
		p.SetBalance(base, m.cfg.InitialCash)
		m.log.Info().Str("currency", base).Float64("cash", m.cfg.InitialCash).Msg("seeded initial cash")
	}
	p.seeded = true
}

func (m *Manager) buy(p *Portfolio, d execution.Decision, price float64, market map[string]signal.Ticker) (execution.Transaction, bool) {
	cash := p.Cash()
	confidence := signal.Clamp(d.Confidence, 0, 1)
	reserve := cash * m.cfg.MinCashReserve
	investable := math.Max(0, cash-reserve)
	budget := math.Min(investable, cash*m.cfg.TradeFraction*confidence)

	pos, _ := p.Position(d.Symbol)
	if m.cfg.MaxPositionAllocation > 0 {
		total := p.TotalValue(market)
		if total <= 0 {
			total = cash
		}
		allowed := math.Max(0, total*m.cfg.MaxPositionAllocation-pos.Quantity*price)
		budget = math.Min(budget, allowed)
	}
	if m.budgetCap != nil {
		budget = m.budgetCap.Clamp(budget)
	}
	if d.HasQuantity() {
		budget = math.Min(budget, *d.Quantity*price)
	}
	if budget <= 0 || budget < m.cfg.MinTradeValue {
		m.log.Debug().Str("sym", d.Symbol).Float64("budget", budget).Msg("skip buy: below minimum trade value")
		return execution.Transaction{}, false
	}

	qty := budget / price
	p.position(d.Symbol).add(qty, price)
	p.adjustCash(-budget)
	return m.commit(p, d.Symbol, execution.Buy, qty, price, d.Reason), true
}

func (m *Manager) sell(p *Portfolio, d execution.Decision, price float64) (execution.Transaction, bool) {
	pos, ok := p.Position(d.Symbol)
	if !ok || pos.Quantity <= 0 {
		return execution.Transaction{}, false
	}
	var qty float64
	if d.HasQuantity() {
		qty = math.Min(pos.Quantity, math.Max(0, *d.Quantity))
	} else {
		qty = pos.Quantity * signal.Clamp(m.cfg.TradeFraction*signal.Clamp(d.Confidence, 0, 1), 0.1, 1.0)
	}
	if qty <= 0 {
		return execution.Transaction{}, false
	}
	if qty*price < m.cfg.MinTradeValue {
		if pos.Quantity*price < m.cfg.MinTradeValue {
			m.log.Debug().Str("sym", d.Symbol).Msg("skip sell: position below minimum trade value")
			return execution.Transaction{}, false
		}
		qty = pos.Quantity
	}
	p.position(d.Symbol).reduce(qty)
	p.adjustCash(qty * price)
	return m.commit(p, d.Symbol, execution.Sell, qty, price, d.Reason), true
}

// Rebalance trims every position worth more than its allocation ceiling plus buffer
// back to the ceiling. Total value is recomputed after each trim; earlier symbols are
// not revisited within the same pass.
func (m *Manager) Rebalance(p *Portfolio, market map[string]signal.Ticker) []execution.Transaction {
	if m.cfg.MaxPositionAllocation <= 0 {
		return nil
	}
	total := p.TotalValue(market)
	if total <= 0 {
		return nil
	}
	var applied []execution.Transaction
	for _, sym := range p.symbols() {
		pos := p.positions[sym]
		if pos.Quantity <= 0 {
			continue
		}
		tk, ok := market[sym]
		if !ok || tk.Price <= 0 {
			continue
		}
		value := pos.Quantity * tk.Price
		target := total * m.cfg.MaxPositionAllocation
		if value <= target*(1+m.cfg.RebalanceBuffer) {
			continue
		}
		qty := math.Min(pos.Quantity, (value-target)/tk.Price)
		if qty*tk.Price < m.cfg.MinTradeValue {
			continue
		}
		pos.reduce(qty)
		p.adjustCash(qty * tk.Price)
		applied = append(applied, m.commit(p, sym, execution.Sell, qty, tk.Price, RebalanceReason))
		total = p.TotalValue(market)
	}
	return applied
}

func (m *Manager) commit(p *Portfolio, symbol string, action execution.Action, qty, price float64, reason string) execution.Transaction {
	tx := execution.Transaction{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Action:    action,
		Quantity:  qty,
		Price:     price,
		Value:     qty * price,
		Timestamp: m.now().UTC(),
		Reason:    reason,
	}
	p.record(tx)
	return tx
}
