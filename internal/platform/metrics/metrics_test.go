package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObservePush("delivered", 120*time.Millisecond)
	m.ObservePush("delivered", 80*time.Millisecond)
	m.ObservePush("permanent", 10*time.Millisecond)
	m.SkippedPush("no_token")
	m.SosTransition("accept", "pending")
	m.HospitalRequest("approved")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pushSends.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushSends.WithLabelValues("permanent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pushSends.WithLabelValues("no_token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sosTransitions.WithLabelValues("accept", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestDecisions.WithLabelValues("approved")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePush("delivered", time.Second)
		m.SkippedPush("no_token")
		m.SosTransition("cancel", "cancelled")
		m.HospitalRequest("pending")
	})
	assert.NoError(t, m.Push(context.Background(), "http://localhost:1", "rescuectl"))
}

func TestMetrics_PushToGateway(t *testing.T) {
	var (
		gotPath string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(prometheus.NewRegistry())
	m.SosTransition("accept", "pending")

	require.NoError(t, m.Push(context.Background(), srv.URL, "rescuectl"))
	assert.True(t, strings.HasSuffix(gotPath, "/metrics/job/rescuectl"), gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestMetrics_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := New(prometheus.NewRegistry())
	err := m.Push(context.Background(), srv.URL, "rescuectl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push metrics")
}
