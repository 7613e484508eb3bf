package paper

import (
	"sort"

	"cryptoagents-go/internal/execution"
	"cryptoagents-go/internal/signal"
)

const epsilon = 1e-9

// Position is the holding of a single symbol. AvgPrice is the quantity weighted
// cost of all buys and resets to zero once the position is fully sold.
type Position struct {
	Symbol   string
	Quantity float64
	AvgPrice float64
}

func (p *Position) add(qty, price float64) {
	newQty := p.Quantity + qty
	if newQty > epsilon {
		p.AvgPrice = (p.AvgPrice*p.Quantity + price*qty) / newQty
	}
	p.Quantity = newQty
}

func (p *Position) reduce(qty float64) {
	p.Quantity -= qty
	if p.Quantity <= epsilon {
		p.Quantity = 0
		p.AvgPrice = 0
	}
}

// Portfolio tracks balances per currency, per-symbol positions, and the transaction history.
// It is owned by one cycle at a time; callers serialize access.
type Portfolio struct {
	baseCurrency string
	balances     map[string]float64
	positions    map[string]*Position
	history      *Ledger
	// seeded marks that initial cash was considered; Clone and Restore carry it.
	seeded bool
}

// PositionSnapshot exposes a read-only marked view of a single symbol position.
// Price and MarketValue are zero and Priced is false when no ticker is known.
type PositionSnapshot struct {
	Symbol      string
	Qty         float64
	AvgPrice    float64
	Price       float64
	MarketValue float64
	Unrealized  float64
	Priced      bool
}

// Snapshot represents the portfolio marked to market using the supplied tickers.
type Snapshot struct {
	BaseCurrency string
	Cash         float64
	Equity       float64
	Balances     map[string]float64
	Positions    []PositionSnapshot
}

// NewPortfolio constructs an empty portfolio denominated in baseCurrency.
func NewPortfolio(baseCurrency string) *Portfolio {
	return &Portfolio{
		baseCurrency: baseCurrency,
		balances:     make(map[string]float64),
		positions:    make(map[string]*Position),
		history:      NewLedger(64),
	}
}

// BaseCurrency returns the currency cash and valuation are denominated in.
func (p *Portfolio) BaseCurrency() string { return p.baseCurrency }

// EnsureBalance creates a zero entry for currency when absent.
func (p *Portfolio) EnsureBalance(currency string) {
	if _, ok := p.balances[currency]; !ok {
		p.balances[currency] = 0
	}
}

// Balance returns the amount held in currency.
func (p *Portfolio) Balance(currency string) float64 { return p.balances[currency] }

// Cash returns the base currency balance.
func (p *Portfolio) Cash() float64 { return p.balances[p.baseCurrency] }

// SetBalance overwrites the amount held in currency.
func (p *Portfolio) SetBalance(currency string, amount float64) { p.balances[currency] = amount }

func (p *Portfolio) adjustCash(delta float64) { p.balances[p.baseCurrency] += delta }

// Balances returns a copy of every balance entry.
func (p *Portfolio) Balances() map[string]float64 {
	out := make(map[string]float64, len(p.balances))
	for k, v := range p.balances {
		out[k] = v
	}
	return out
}

// Position returns a copy of the position for symbol.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	pos, ok := p.positions[symbol]
	if !ok {
		return Position{Symbol: symbol}, false
	}
	return *pos, true
}

// SetPosition seeds a position, e.g. when restoring a ledger from a prior run.
func (p *Portfolio) SetPosition(symbol string, qty, avgPrice float64) {
	if qty < 0 {
		qty = 0
	}
	if qty == 0 || avgPrice < 0 {
		avgPrice = 0
	}
	p.positions[symbol] = &Position{Symbol: symbol, Quantity: qty, AvgPrice: avgPrice}
}

func (p *Portfolio) position(symbol string) *Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol}
		p.positions[symbol] = pos
	}
	return pos
}

// Positions returns copies of all positions sorted by symbol, including zero quantity entries.
func (p *Portfolio) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, sym := range p.symbols() {
		out = append(out, *p.positions[sym])
	}
	return out
}

func (p *Portfolio) symbols() []string {
	syms := make([]string, 0, len(p.positions))
	for sym := range p.positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// TotalValue is base cash plus every position marked at its ticker price.
// Positions without a known price contribute nothing.
func (p *Portfolio) TotalValue(market map[string]signal.Ticker) float64 {
	total := p.Cash()
	for _, sym := range p.symbols() {
		pos := p.positions[sym]
		if pos.Quantity <= 0 {
			continue
		}
		if tk, ok := market[sym]; ok && tk.Price > 0 {
			total += pos.Quantity * tk.Price
		}
	}
	return total
}

// History returns a copy of the recorded transactions, oldest first.
func (p *Portfolio) History() []execution.Transaction { return p.history.Snapshot() }

func (p *Portfolio) record(tx execution.Transaction) { p.history.Record(tx) }

// Snapshot returns a copy of balances and positions marked using the supplied tickers.
func (p *Portfolio) Snapshot(market map[string]signal.Ticker) Snapshot {
	positions := make([]PositionSnapshot, 0, len(p.positions))
	for _, pos := range p.Positions() {
		ps := PositionSnapshot{Symbol: pos.Symbol, Qty: pos.Quantity, AvgPrice: pos.AvgPrice}
		if tk, ok := market[pos.Symbol]; ok && tk.Price > 0 {
			ps.Priced = true
			ps.Price = tk.Price
			ps.MarketValue = pos.Quantity * tk.Price
			ps.Unrealized = (tk.Price - pos.AvgPrice) * pos.Quantity
		}
		positions = append(positions, ps)
	}
	return Snapshot{
		BaseCurrency: p.baseCurrency,
		Cash:         p.Cash(),
		Equity:       p.TotalValue(market),
		Balances:     p.Balances(),
		Positions:    positions,
	}
}

// Clone deep copies balances, positions and history.
func (p *Portfolio) Clone() *Portfolio {
	out := &Portfolio{
		baseCurrency: p.baseCurrency,
		balances:     p.Balances(),
		positions:    make(map[string]*Position, len(p.positions)),
		history:      p.history.Clone(),
		seeded:       p.seeded,
	}
	for sym, pos := range p.positions {
		cp := *pos
		out.positions[sym] = &cp
	}
	return out
}

// Restore replaces the receiver's state with a previously cloned copy.
func (p *Portfolio) Restore(from *Portfolio) {
	if from == nil {
		return
	}
	c := from.Clone()
	p.baseCurrency = c.baseCurrency
	p.balances = c.balances
	p.positions = c.positions
	p.history = c.history
	p.seeded = c.seeded
}
