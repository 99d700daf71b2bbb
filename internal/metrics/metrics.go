// Package metrics exposes Prometheus instrumentation for the monitoring session.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rewired-gh/tickwatch/internal/models"
)

var regimes = []models.Regime{models.RegimeTrend, models.RegimeRange, models.RegimeHighVolatility}

// Metrics owns a private registry. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	Alerts        *prometheus.CounterVec
	SinkErrors    *prometheus.CounterVec
	Price         prometheus.Gauge
	ATR           prometheus.Gauge
	Regime        *prometheus.GaugeVec
	Running       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickwatch_cycles_total",
				Help: "Monitoring cycles by result",
			},
			[]string{"result"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tickwatch_cycle_duration_seconds",
				Help:    "Duration of one fetch and analysis cycle",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickwatch_alerts_total",
				Help: "Alerts emitted by rule",
			},
			[]string{"rule"},
		),
		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickwatch_sink_errors_total",
				Help: "Failed alert deliveries by sink",
			},
			[]string{"sink"},
		),
		Price: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickwatch_price",
			Help: "Last accepted tick price",
		}),
		ATR: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickwatch_atr",
			Help: "Average true range over the regime period",
		}),
		Regime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickwatch_regime",
				Help: "Current regime (1 for the active label, 0 otherwise)",
			},
			[]string{"regime"},
		),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickwatch_session_running",
			Help: "1 while the monitoring session is started",
		}),
	}

	m.registry.MustRegister(
		m.Cycles, m.CycleDuration, m.Alerts, m.SinkErrors,
		m.Price, m.ATR, m.Regime, m.Running,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records one cycle outcome: "ok", "fetch_error" or "invalid_tick".
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Cycles.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveState(price float64, state models.AnalysisState) {
	if m == nil {
		return
	}
	m.Price.Set(price)
	m.ATR.Set(state.ATR)
	for _, r := range regimes {
		v := 0.0
		if r == state.Regime {
			v = 1
		}
		m.Regime.WithLabelValues(string(r)).Set(v)
	}
}

func (m *Metrics) ObserveAlert(rule models.Rule) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(string(rule)).Inc()
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.Running.Set(1)
	} else {
		m.Running.Set(0)
	}
}
