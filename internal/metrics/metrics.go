// Package metrics defines the Prometheus collectors exported by the agent and
// the dashboard. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rafabd1/climatesense/internal/types"
)

const namespace = "climatesense"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Agent metrics
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	riskLevel     *prometheus.GaugeVec
	alertsTotal   *prometheus.CounterVec
	externalCalls *prometheus.CounterVec

	// Dashboard metrics
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "agent_runs_total",
				Help:      "Total number of analysis runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "agent_run_duration_seconds",
				Help:      "Duration of analysis runs in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		riskLevel: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "risk_level",
				Help:      "Latest risk level per city (0=LOW, 1=MODERATE, 2=HIGH, 3=EXTREME)",
			},
			[]string{"city"},
		),
		alertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Total number of alert emails by result",
			},
			[]string{"result"},
		),
		externalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_calls_total",
				Help:      "Total number of calls to external services by result",
			},
			[]string{"service", "result"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of dashboard HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of dashboard HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// RecordRun records a finished analysis run.
func (m *Metrics) RecordRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) SetRiskLevel(city string, level types.RiskLevel) {
	if m == nil || level.Ordinal() < 0 {
		return
	}
	m.riskLevel.WithLabelValues(city).Set(float64(level.Ordinal()))
}

func (m *Metrics) RecordAlert(result string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(result).Inc()
}

// RecordExternalCall counts a call to service, labelled by whether it failed.
func (m *Metrics) RecordExternalCall(service string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.externalCalls.WithLabelValues(service, result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
	m.requestTotal.WithLabelValues(method, route, code).Inc()
}
