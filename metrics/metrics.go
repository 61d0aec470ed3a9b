// Package metrics exposes Prometheus instrumentation for the remote store, live
// subscriptions, notifications and the HTTP functions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RemoteOps counts remote store calls by operation and result ("ok", "error").
	RemoteOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_remote_ops_total",
		Help: "Total number of remote store operations",
	}, []string{"op", "result"})

	// RemoteLatency records remote store call latency in seconds.
	RemoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_remote_latency_seconds",
		Help:    "Remote store operation latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"op"})

	// Subscriptions tracks the number of open live subscriptions.
	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "courier_subscriptions",
		Help: "Current number of open remote subscriptions",
	})

	// Notifications counts scheduled notifications by channel and result
	// ("scheduled", "denied", "error").
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_notifications_total",
		Help: "Total number of notifications scheduled",
	}, []string{"channel", "result"})

	// Taps counts routed notification taps by screen.
	Taps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_notification_taps_total",
		Help: "Total number of notification taps routed to a screen",
	}, []string{"screen"})

	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"function", "method", "status"})
)

func init() {
	prometheus.MustRegister(
		RemoteOps,
		RemoteLatency,
		Subscriptions,
		Notifications,
		Taps,
		httpRequestsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument counts requests of an HTTP function by method and status.
func Instrument(function string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		httpRequestsTotal.WithLabelValues(function, r.Method, strconv.Itoa(rec.status)).Inc()
	}
}

func observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	RemoteOps.WithLabelValues(op, result).Inc()
	RemoteLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
