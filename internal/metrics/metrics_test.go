package metrics

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestCycleMetricsExposed(t *testing.T) {
	srv, err := Serve("127.0.0.1:0", zerolog.Nop())
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer srv.Close()

	before := testutil.ToFloat64(CycleErrorsTotal.WithLabelValues("market"))
	CycleErrorsTotal.WithLabelValues("market").Inc()
	if got := testutil.ToFloat64(CycleErrorsTotal.WithLabelValues("market")); got != before+1 {
		t.Fatalf("cycle_errors_total = %v, want %v", got, before+1)
	}
	CyclesTotal.WithLabelValues("ok").Inc()
	TransactionsTotal.WithLabelValues("BTC", "BUY").Inc()
	PortfolioValue.Set(1_000_000)

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`cycles_total{status="ok"}`,
		`cycle_errors_total{stage="market"}`,
		`transactions_total{action="BUY",symbol="BTC"}`,
		"portfolio_value 1e+06",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("scrape missing %q", want)
		}
	}
}

func TestServeReportsBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	if srv, err := Serve(ln.Addr().String(), zerolog.Nop()); err == nil {
		srv.Close()
		t.Fatalf("expected bind failure on %s", ln.Addr())
	}
}

func TestServeScrapesOverHTTP(t *testing.T) {
	srv, err := Serve("127.0.0.1:0", zerolog.Nop())
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
