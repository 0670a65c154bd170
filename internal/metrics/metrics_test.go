package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposition(t *testing.T) {
	m := New()
	m.IncrementReleasesStarted()
	m.IncrementRunOutcome("COMPLETED")
	m.IncrementRunOutcome("ERROR")
	m.AddBranchesEvaluated(12)
	m.ObserveBatchLatency(42 * time.Second)
	m.ObserveStageLatency("create_vectors", 3*time.Second)
	m.AddTokens(1200, 340)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "compliance_releases_started_total 1")
	assert.Contains(t, body, `compliance_run_outcomes_total{status="COMPLETED"} 1`)
	assert.Contains(t, body, `compliance_run_outcomes_total{status="ERROR"} 1`)
	assert.Contains(t, body, "compliance_branches_evaluated_total 12")
	assert.Contains(t, body, "compliance_batch_duration_seconds_count 1")
	assert.Contains(t, body, `compliance_stage_duration_seconds_count{stage="create_vectors"} 1`)
	assert.Contains(t, body, `compliance_llm_tokens_total{direction="input"} 1200`)
	assert.Contains(t, body, `compliance_llm_tokens_total{direction="output"} 340`)
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.IncrementReleasesStarted()
	m.IncrementRunOutcome("COMPLETED")
	m.AddBranchesEvaluated(1)
	m.ObserveBatchLatency(time.Second)
	m.ObserveStageLatency("check_tree", time.Second)
	m.AddTokens(1, 1)
	assert.NotNil(t, m.Handler())
}

func TestSeparateRegistries(t *testing.T) {
	a := New()
	b := New()
	a.IncrementReleasesStarted()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "compliance_releases_started_total 0")
}
