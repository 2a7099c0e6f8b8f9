package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "policyreason"

// metrics holds the server's Prometheus collectors.
type metrics struct {
	decisions       *prometheus.CounterVec
	confidence      prometheus.Histogram
	evaluateErrors  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ingested        *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decisions_total",
			Help:      "Eligibility decisions by outcome.",
		}, []string{"decision"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "decision_confidence",
			Help:      "Confidence score of returned decisions.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		}),
		evaluateErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evaluate_errors_total",
			Help:      "Failed evaluations by kind.",
		}, []string{"kind"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_total",
			Help:      "Ingest requests by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.decisions, m.confidence, m.evaluateErrors, m.requestDuration, m.ingested)
	return m
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
