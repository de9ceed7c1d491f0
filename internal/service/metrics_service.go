package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the issuance
// pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	certificates    *prometheus.CounterVec
	rosterRows      *prometheus.CounterVec
	documentRender  prometheus.Observer
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_verifications_total",
		Help: "Public verification attempts by mode and outcome",
	}, []string{"mode", "outcome"})

	certificates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_total",
		Help: "Certificate lifecycle events",
	}, []string{"event"})

	rosterRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_rows_total",
		Help: "OCR roster rows processed by result",
	}, []string{"result"})

	documentRender := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certificate_document_render_seconds",
		Help:    "Time spent rendering certificate PDF documents",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, verifications, certificates, rosterRows, documentRender, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		verifications:   verifications,
		certificates:    certificates,
		rosterRows:      rosterRows,
		documentRender:  documentRender,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordVerification counts one public lookup attempt.
func (m *MetricsService) RecordVerification(mode, outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(mode, outcome).Inc()
}

// RecordCertificateEvent counts a lifecycle event such as emitted or annulled.
func (m *MetricsService) RecordCertificateEvent(event string) {
	if m == nil {
		return
	}
	m.certificates.WithLabelValues(event).Inc()
}

// RecordRosterRow counts one processed roster row by result.
func (m *MetricsService) RecordRosterRow(result string) {
	if m == nil {
		return
	}
	m.rosterRows.WithLabelValues(result).Inc()
}

// ObserveDocumentRender tracks the PDF render duration.
func (m *MetricsService) ObserveDocumentRender(duration time.Duration) {
	if m == nil || m.documentRender == nil {
		return
	}
	m.documentRender.Observe(duration.Seconds())
}
