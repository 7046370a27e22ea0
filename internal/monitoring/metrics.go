package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Total number of orders executed",
		},
		[]string{"symbol", "side"},
	)

	orderRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_order_rejections_total",
			Help: "Orders rejected by the risk manager or the broker",
		},
		[]string{"reason"},
	)

	// Account metrics
	currentEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtest_current_equity",
			Help: "Marked-to-market account equity",
		},
	)

	riskHalted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backtest_risk_halted",
			Help: "1 while the risk manager has halted trading, 0 otherwise",
		},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backtest_current_price",
			Help: "Latest observed price per symbol",
		},
		[]string{"symbol"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(orderRejections)
	prometheus.MustRegister(currentEquity)
	prometheus.MustRegister(riskHalted)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler serves the Prometheus metrics endpoint
type MetricsHandler struct{}

func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordTrade records an executed order
func RecordTrade(symbol, side string) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
}

// RecordRejection records a blocked or rejected order
func RecordRejection(reason string) {
	orderRejections.WithLabelValues(reason).Inc()
}

// UpdateEquity updates the account equity gauge
func UpdateEquity(equity float64) {
	currentEquity.Set(equity)
}

// SetHalted flips the trading-halt gauge
func SetHalted(halted bool) {
	if halted {
		riskHalted.Set(1)
	} else {
		riskHalted.Set(0)
	}
}

// UpdatePrice updates the latest price gauge
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
