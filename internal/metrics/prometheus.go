package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/marketsim/internal/market"
	"github.com/GoSim-25-26J-441/marketsim/internal/simulate"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
)

// Instruments are the process-wide Prometheus metrics of the simulator.
// All of them live on their own registry.
type Instruments struct {
	registry *prometheus.Registry

	hours      *prometheus.CounterVec
	price      prometheus.Histogram
	quantity   prometheus.Histogram
	output     *prometheus.CounterVec
	runs       *prometheus.CounterVec
	activeRuns prometheus.Gauge
}

// NewInstruments registers the simulator metrics on a fresh registry.
func NewInstruments() *Instruments {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Instruments{
		registry: reg,
		hours: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketsim",
			Name:      "hours_cleared_total",
			Help:      "Simulated hours cleared, by equilibrium outcome.",
		}, []string{LabelOutcome}),
		price: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "marketsim",
			Name:      "clearing_price",
			Help:      "Hourly clearing price.",
			Buckets:   []float64{-100, -50, 0, 25, 50, 75, 100, 150, 200, 300},
		}),
		quantity: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "marketsim",
			Name:      "cleared_quantity",
			Help:      "Hourly cleared quantity.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 14),
		}),
		output: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketsim",
			Name:      "generation_total",
			Help:      "Cumulative dispatched generation, by technology.",
		}, []string{LabelTechnology}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketsim",
			Name:      "runs_total",
			Help:      "Finished runs, by final status.",
		}, []string{"status"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketsim",
			Name:      "active_runs",
			Help:      "Runs currently executing.",
		}),
	}
}

// Observe records one simulated hour. Instruments satisfy simulate.Observer.
func (i *Instruments) Observe(rec simulate.Record) {
	i.hours.WithLabelValues(rec.Outcome.String()).Inc()
	i.price.Observe(rec.Price)
	i.quantity.Observe(rec.Quantity)
	for _, tech := range market.Technologies {
		if v := rec.Output.Get(tech); v > 0 {
			i.output.WithLabelValues(tech).Add(v)
		}
	}
}

// RunStarted marks a run as executing.
func (i *Instruments) RunStarted() {
	i.activeRuns.Inc()
}

// RunFinished marks a run as done with its final status.
func (i *Instruments) RunFinished(status models.RunStatus) {
	i.activeRuns.Dec()
	i.runs.WithLabelValues(string(status)).Inc()
}

// Registry exposes the underlying registry.
func (i *Instruments) Registry() *prometheus.Registry {
	return i.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (i *Instruments) Handler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{})
}
