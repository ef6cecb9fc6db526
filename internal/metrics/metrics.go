// Package metrics exposes prometheus instrumentation for the trading engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_total", Help: "Count of market bars ingested"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Combined signals produced"},
		[]string{"symbol", "kind"},
	)
	TradesOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_opened_total", Help: "Positions opened"},
		[]string{"symbol", "side"},
	)
	TradesClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_closed_total", Help: "Positions closed"},
		[]string{"symbol", "reason"},
	)
	RiskRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "risk_rejections_total", Help: "Trade attempts refused by a risk check"},
		[]string{"symbol", "stage"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "open_positions", Help: "Currently open positions"},
	)
)

func init() {
	prometheus.MustRegister(
		BarsTotal,
		SignalsTotal,
		TradesOpenedTotal,
		TradesClosedTotal,
		RiskRejectionsTotal,
		OrdersTotal,
		OpenPositions,
	)
}

// Serve starts the /metrics endpoint on addr.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
