package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cycles_total", Help: "Decision cycles run, by outcome"},
		[]string{"status"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "cycle_duration_seconds", Help: "Wall time of one decision cycle", Buckets: prometheus.DefBuckets},
	)
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Trade decisions emitted by the strategy"},
		[]string{"symbol", "action"},
	)
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "transactions_total", Help: "Transactions applied to the paper ledger"},
		[]string{"symbol", "action"},
	)
	RiskTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_triggers_total", Help: "Stop loss / take profit overrides"},
		[]string{"symbol", "trigger"},
	)
	ArticlesScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "articles_scored_total", Help: "News articles scored, by label"},
		[]string{"label"},
	)
	CycleErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "cycle_errors_total", Help: "Stage failures that aborted a cycle"},
		[]string{"stage"},
	)
	MarketFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "market_fetches_total", Help: "Market data snapshot requests, by provider and outcome"},
		[]string{"provider", "status"},
	)
	PortfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "portfolio_value", Help: "Cash plus marked position value in the base currency"},
	)
	CashBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "cash_balance", Help: "Base currency cash"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleDuration,
		DecisionsTotal,
		TransactionsTotal,
		RiskTriggersTotal,
		ArticlesScoredTotal,
		CycleErrorsTotal,
		MarketFetchesTotal,
		PortfolioValue,
		CashBalance,
	)
}

// Serve binds addr and exposes /metrics on it. A bind failure is returned; later serve
// errors are logged.
func Serve(addr string, log zerolog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server stopped")
		}
	}()
	return srv, nil
}
