package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//Metrics collects per round counters for the leg monitor
type Metrics struct {
	reg *prometheus.Registry

	rounds            prometheus.Counter
	samples           prometheus.Counter
	noopTicks         prometheus.Counter
	boundaries        prometheus.Counter
	firstSightings    prometheus.Counter
	forecastOutcomes  prometheus.Counter
	perVesselFailures prometheus.Counter
	roundDuration     prometheus.Histogram
	activeVessels     prometheus.Gauge
}

func MakeMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := Metrics{
		reg: reg,
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leg_monitor_rounds_total",
			Help: "Total polling rounds run.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leg_monitor_samples_total",
			Help: "Total position samples processed.",
		}),
		noopTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leg_monitor_noop_ticks_total",
			Help: "Ticks whose next state matched the stored state and produced no write.",
		}),
		boundaries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leg_monitor_leg_boundaries_total",
			Help: "Leg boundary events observed.",
		}),
		firstSightings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leg_monitor_first_sightings_total",
			Help: "Vessels seen for the first time.",
		}),
		forecastOutcomes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leg_monitor_forecast_outcomes_total",
			Help: "Forecast outcome records queued for persistence.",
		}),
		perVesselFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leg_monitor_vessel_failures_total",
			Help: "Ticks abandoned because one vessel's reduction failed.",
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leg_monitor_round_duration_seconds",
			Help:    "Wall time of one polling round.",
			Buckets: prometheus.DefBuckets,
		}),
		activeVessels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leg_monitor_active_vessels",
			Help: "Vessels with an active leg.",
		}),
	}
	reg.MustRegister(m.rounds, m.samples, m.noopTicks, m.boundaries, m.firstSightings,
		m.forecastOutcomes, m.perVesselFailures, m.roundDuration, m.activeVessels)
	return &m
}

//Handler returns the http handler serving these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

//observeRound records the per round aggregates
func (m *Metrics) observeRound(sampleCount int, activeVessels int, took time.Duration) {
	m.rounds.Inc()
	m.samples.Add(float64(sampleCount))
	m.activeVessels.Set(float64(activeVessels))
	m.roundDuration.Observe(took.Seconds())
}
