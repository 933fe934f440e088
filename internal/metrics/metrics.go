// Package metrics exports ledger operation counters and balance/stock gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Recorder implements ledger.Observer on a dedicated registry.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	balance    prometheus.Gauge
	stock      prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockledger_operations_total",
			Help: "Ledger operations by name and outcome",
		}, []string{"operation", "result"}),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockledger_balance",
			Help: "Company balance after the last operation",
		}),
		stock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockledger_stock_units",
			Help: "Total units held in the warehouse",
		}),
	}
	r.registry.MustRegister(
		r.operations,
		r.balance,
		r.stock,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) Observe(operation string, ok bool, balance decimal.Decimal, stockLevel int64) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.Set(balance, stockLevel)
}

// Set primes the gauges, e.g. right after the ledger is loaded.
func (r *Recorder) Set(balance decimal.Decimal, stockLevel int64) {
	r.balance.Set(balance.InexactFloat64())
	r.stock.Set(float64(stockLevel))
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
