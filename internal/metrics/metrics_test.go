package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	r := NewRegistry()

	r.RecordFrame("ok")
	r.RecordFrame("ok")
	r.RecordFrame("stale")
	r.RecordFrame("no_time")
	r.RecordStale("BTC/USD")
	r.RecordHeartbeat()
	r.RecordLatency("BTC/USD", 134)
	r.RecordLatency("BTC/USD", 6020)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Frames.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Frames.WithLabelValues("stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Frames.WithLabelValues("no_time")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StaleFrames.WithLabelValues("BTC/USD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Heartbeats))
	assert.Equal(t, 1, testutil.CollectAndCount(r.WSLatency))
}

func TestConnectedGauge(t *testing.T) {
	r := NewRegistry()

	r.SetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Connected))
	r.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.Connected))
}

func TestIndependentRegistries(t *testing.T) {
	// Two registries must not collide; metrics live on private registries
	a := NewRegistry()
	b := NewRegistry()

	a.RecordHeartbeat()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Heartbeats))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Heartbeats))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RecordFrame("ok")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ftx_ws_frames_total")
	assert.Contains(t, body, `verdict="ok"`)
}

func TestServe(t *testing.T) {
	r := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	srvDone := make(chan error, 1)
	go func() {
		srvDone <- r.Serve(ctx, "127.0.0.1:0")
	}()
	cancel()

	err := <-srvDone
	assert.NoError(t, err, "Serve should return cleanly on context cancel")
}

func TestHealthz(t *testing.T) {
	r := NewRegistry()

	router := httptest.NewServer(r.router())
	defer router.Close()

	resp, err := http.Get(router.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))
}
