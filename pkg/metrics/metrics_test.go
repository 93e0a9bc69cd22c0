package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_CountersAccumulate(t *testing.T) {
	s := NewSet()

	s.AlertsIngested.WithLabelValues("prometheus").Add(3)
	s.TicksTotal.WithLabelValues("completed").Inc()
	s.TicksTotal.WithLabelValues("skipped").Inc()
	s.DecisionsTotal.WithLabelValues("ESCALATE").Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(s.AlertsIngested.WithLabelValues("prometheus")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.TicksTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.DecisionsTotal.WithLabelValues("ESCALATE")))
}

func TestNewSet_IndependentRegistries(t *testing.T) {
	// Two sets must not trip duplicate-registration panics.
	require.NotPanics(t, func() {
		a := NewSet()
		b := NewSet()
		a.ClustersProcessed.Inc()
		assert.Zero(t, testutil.ToFloat64(b.ClustersProcessed))
	})
}

func TestSet_HandlerServesScrape(t *testing.T) {
	s := NewSet()
	s.TicksTotal.WithLabelValues("completed").Inc()
	s.DecisionConfidence.Observe(0.82)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "strands_controller_ticks_total")
	assert.Contains(t, string(body), "strands_decision_confidence")
}
