package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the attendance workflow.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	tokensIssued   *prometheus.CounterVec
	checkIns       prometheus.Counter
	checkOuts      prometheus.Counter
	reviews        prometheus.Counter
	pointsAwarded  prometheus.Counter
	notifsEnqueued prometheus.Counter
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

	tokensIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "check_tokens_issued_total",
		Help: "Check tokens issued, labelled by action",
	}, []string{"action"})

	checkIns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "check_ins_total",
		Help: "Successful student check-ins",
	})

	checkOuts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "check_outs_total",
		Help: "Successful student check-outs",
	})

	reviews := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reviews_total",
		Help: "Organizer reviews applied",
	})

	pointsAwarded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "points_awarded_total",
		Help: "Points credited through reviews",
	})

	notifsEnqueued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_enqueued_total",
		Help: "Notifications handed to the dispatch queue",
	})

	registry.MustRegister(requestDuration, requestTotal, tokensIssued,
		checkIns, checkOuts, reviews, pointsAwarded, notifsEnqueued)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		tokensIssued:    tokensIssued,
		checkIns:        checkIns,
		checkOuts:       checkOuts,
		reviews:         reviews,
		pointsAwarded:   pointsAwarded,
		notifsEnqueued:  notifsEnqueued,
	}
}

// Handler exposes the scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveRequest records one completed HTTP request.
func (m *MetricsService) ObserveRequest(method, path, status string, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, status).Inc()
}

// TokenIssued counts an issued check token.
func (m *MetricsService) TokenIssued(action string) {
	m.tokensIssued.WithLabelValues(action).Inc()
}

// CheckIn counts a successful check-in.
func (m *MetricsService) CheckIn() { m.checkIns.Inc() }

// CheckOut counts a successful check-out.
func (m *MetricsService) CheckOut() { m.checkOuts.Inc() }

// Review counts an applied review and the points it credited.
func (m *MetricsService) Review(points int) {
	m.reviews.Inc()
	if points > 0 {
		m.pointsAwarded.Add(float64(points))
	}
}

// NotificationEnqueued counts a dispatched notification.
func (m *MetricsService) NotificationEnqueued() { m.notifsEnqueued.Inc() }
