package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds the Prometheus metrics for the feed monitor. Metrics live on
// a private registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	// Per-message latency as measured against the feed's reported time
	WSLatency *prometheus.HistogramVec

	// Inbound frames by verdict (ok, stale, no_time)
	Frames *prometheus.CounterVec

	// Stale frames by market
	StaleFrames *prometheus.CounterVec

	// Keep-alive frames sent
	Heartbeats prometheus.Counter

	// 1 while the websocket connection is open
	Connected prometheus.Gauge
}

// NewRegistry creates and registers all monitor metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		WSLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftx_ws_latency_ms",
				Help:    "Feed message latency (receipt minus reported time) in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"market"},
		),

		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftx_ws_frames_total",
				Help: "Total inbound frames by staleness verdict",
			},
			[]string{"verdict"},
		),

		StaleFrames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftx_ws_stale_frames_total",
				Help: "Total frames at or over the staleness threshold by market",
			},
			[]string{"market"},
		),

		Heartbeats: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ftx_ws_heartbeats_total",
				Help: "Total keep-alive frames sent",
			},
		),

		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ftx_ws_connected",
				Help: "Whether the feed connection is currently open (0 or 1)",
			},
		),
	}

	r.reg.MustRegister(r.WSLatency, r.Frames, r.StaleFrames, r.Heartbeats, r.Connected)
	return r
}

// RecordLatency records one measured message latency.
func (r *Registry) RecordLatency(market string, latencyMs float64) {
	r.WSLatency.WithLabelValues(market).Observe(latencyMs)
}

// RecordFrame counts an inbound frame under its verdict.
func (r *Registry) RecordFrame(verdict string) {
	r.Frames.WithLabelValues(verdict).Inc()
}

// RecordStale counts a stale frame for a market.
func (r *Registry) RecordStale(market string) {
	r.StaleFrames.WithLabelValues(market).Inc()
}

// RecordHeartbeat counts one keep-alive frame sent.
func (r *Registry) RecordHeartbeat() {
	r.Heartbeats.Inc()
}

// SetConnected flips the connection gauge.
func (r *Registry) SetConnected(up bool) {
	if up {
		r.Connected.Set(1)
		return
	}
	r.Connected.Set(0)
}

// Handler exposes the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) router() *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", r.Handler())
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return router
}

// Serve runs the metrics endpoint on addr until the context is canceled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: r.router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
