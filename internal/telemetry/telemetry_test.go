package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procurehub/dealengine/internal/domain"
)

func TestSessionLifecycleMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionStarted()
	m.SessionStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveSessions))

	started := time.Now()
	m.SessionFinished(domain.SessionState{
		Outcome:         domain.OutcomeAccepted,
		Round:           4,
		SavingsAchieved: 16586.25,
		StartedAt:       started,
		TerminatedAt:    started.Add(2 * time.Second),
	}, 180000)
	m.SessionFinished(domain.SessionState{Outcome: domain.OutcomeStalemate, Round: 6}, 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("stalemate")))
}

func TestSessionFinished_AbortReleasesSlotWithoutOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SessionStarted()
	m.SessionFinished(domain.SessionState{Outcome: domain.OutcomeInProgress}, 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Zero(t, testutil.CollectAndCount(m.SessionsTotal))
}

func TestHardViolationCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.HardViolation(domain.SourceGuardrail)
	m.HardViolation(domain.SourceGuardrail)
	m.HardViolation(domain.SourcePolicy)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HardViolations.WithLabelValues("guardrail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HardViolations.WithLabelValues("policy")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.SessionFinished(domain.SessionState{Outcome: domain.OutcomeAccepted}, 1)
	m.HardViolation(domain.SourcePolicy)
}

func TestOpsEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SessionsTotal.WithLabelValues("accepted").Inc()

	srv := NewServer(":0", reg, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dealengine_sessions_total"))
}
