// Package telemetry exposes negotiation metrics and the ops HTTP
// surface.
package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/procurehub/dealengine/internal/domain"
)

// Metrics is the negotiation metric set. One instance per process. All
// recording methods are safe on a nil receiver so hosts without a
// registry skip instrumentation.
type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionsTotal   *prometheus.CounterVec
	HardViolations  *prometheus.CounterVec
	RoundsPerDeal   prometheus.Histogram
	SavingsPct      prometheus.Histogram
	ActiveSessions  prometheus.Gauge
	SessionDuration prometheus.Histogram
}

// NewMetrics builds and registers the metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealengine",
			Name:      "sessions_started_total",
			Help:      "Sessions opened.",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealengine",
			Name:      "sessions_total",
			Help:      "Terminated sessions by outcome.",
		}, []string{"outcome"}),
		HardViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealengine",
			Name:      "hard_violations_total",
			Help:      "Hard violations recorded on offers, by rule-set source.",
		}, []string{"source"}),
		RoundsPerDeal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dealengine",
			Name:      "rounds_per_session",
			Help:      "Rounds executed before a session terminated.",
			Buckets:   prometheus.LinearBuckets(0, 2, 13),
		}),
		SavingsPct: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dealengine",
			Name:      "savings_pct",
			Help:      "Savings off list spend for accepted sessions.",
			Buckets:   prometheus.LinearBuckets(0, 0.02, 15),
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dealengine",
			Name:      "active_sessions",
			Help:      "Sessions currently negotiating.",
		}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dealengine",
			Name:      "session_duration_seconds",
			Help:      "Wall time from session start to termination.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.SessionsStarted, m.SessionsTotal, m.HardViolations,
		m.RoundsPerDeal, m.SavingsPct, m.ActiveSessions, m.SessionDuration)
	return m
}

// SessionStarted counts a session opening and claims an active slot.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// SessionFinished releases the active slot and, when the session reached
// a terminal outcome, records its disposition. listSpend is the full-list
// contract spend used to express savings as a fraction. Error-aborted
// sessions release the slot without counting an outcome.
func (m *Metrics) SessionFinished(state domain.SessionState, listSpend float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	if !state.Outcome.Terminal() {
		return
	}
	m.SessionsTotal.WithLabelValues(string(state.Outcome)).Inc()
	m.RoundsPerDeal.Observe(float64(state.Round))
	if !state.TerminatedAt.IsZero() && !state.StartedAt.IsZero() {
		m.SessionDuration.Observe(state.TerminatedAt.Sub(state.StartedAt).Seconds())
	}
	if state.Outcome == domain.OutcomeAccepted && listSpend > 0 {
		m.SavingsPct.Observe(state.SavingsAchieved / listSpend)
	}
}

// HardViolation counts one hard violation by rule-set source.
func (m *Metrics) HardViolation(source domain.ViolationSource) {
	if m == nil {
		return
	}
	m.HardViolations.WithLabelValues(string(source)).Inc()
}

// Server is the ops HTTP surface: health and Prometheus scrape.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

// NewServer builds the ops server on the given address.
func NewServer(addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: logger,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until the listener closes. Blocking.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
