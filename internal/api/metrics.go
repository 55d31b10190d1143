package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/playback"
	"github.com/AaronLay10/ReelEngine/internal/version"
)

// Metrics holds the server's Prometheus collectors. Each Metrics owns its
// registry so tests can build as many servers as they like.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	inputs       *prometheus.CounterVec
	frames       *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. sessionCount reports the
// number of live sessions at scrape time.
func NewMetrics(sessionCount func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reel_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reel_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "path"},
		),
		inputs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reel_session_inputs_total",
				Help: "Playback inputs applied to sessions, by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reel_frames_total",
				Help: "Frames published to presentation layers, by phase",
			},
			[]string{"phase", "auto_advanced"},
		),
	}

	start := time.Now()
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.inputs,
		m.frames,
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reel_sessions_active",
			Help: "Number of live playback sessions",
		}, func() float64 { return float64(sessionCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reel_event_subscribers",
			Help: "Number of live event stream subscribers",
		}, func() float64 { return float64(events.SubscriberCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "reel_uptime_seconds",
			Help:        "Number of seconds since the server started",
			ConstLabels: prometheus.Labels{"version": version.Version},
		}, func() float64 { return time.Since(start).Seconds() }),
	)
	return m
}

// ObserveInput counts an input by outcome: ok, rejected (recoverable) or error.
func (m *Metrics) ObserveInput(sessionID string, in playback.Input, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case playback.IsRecoverable(err):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	m.inputs.WithLabelValues(string(in.Kind), outcome).Inc()
}

// ObserveFrame counts a published frame.
func (m *Metrics) ObserveFrame(sessionID string, f playback.Frame) {
	m.frames.WithLabelValues(string(f.Phase), strconv.FormatBool(f.AutoAdvanced)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the instrumentation.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records request counts and latency, labelled by route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
