// Package monitor wires the feed client, frame log, latency aggregator, and
// heartbeat into one long-running pipeline and owns its lifecycle.
package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/matthewdowney/ftx-socket-msgs/internal/config"
	"github.com/matthewdowney/ftx-socket-msgs/internal/feed"
	"github.com/matthewdowney/ftx-socket-msgs/internal/framelog"
	"github.com/matthewdowney/ftx-socket-msgs/internal/latency"
	"github.com/matthewdowney/ftx-socket-msgs/internal/metrics"
)

// Monitor owns the connection, the sample channel, and the frame log for one
// run. Build it with New and drive it with Run.
type Monitor struct {
	cfg     config.Config
	flog    *framelog.Writer
	metrics *metrics.Registry

	// stdin is swappable for tests
	stdin io.Reader
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithStdin replaces the operator input stream.
func WithStdin(r io.Reader) Option {
	return func(m *Monitor) { m.stdin = r }
}

// New builds a monitor. The frame log and metrics registry are owned by the
// caller's composition root but written to only through the monitor's
// pipeline while Run is active.
func New(cfg config.Config, flog *framelog.Writer, reg *metrics.Registry, opts ...Option) *Monitor {
	m := &Monitor{cfg: cfg, flog: flog, metrics: reg, stdin: os.Stdin}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run connects, subscribes, and pumps the pipeline until the operator sends a
// blank line on stdin, the context is canceled, or a fatal error occurs.
// Shutdown beyond the close attempt is best-effort.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.cfg.Validate(); err != nil {
		return err
	}

	sessionID := uuid.NewString()
	logger := log.With().Str("session", sessionID).Logger()

	if err := m.flog.Connect(m.cfg.FeedURL, sessionID); err != nil {
		return err
	}

	client, err := feed.Dial(ctx, m.cfg.FeedURL)
	if err != nil {
		return err
	}
	m.metrics.SetConnected(true)

	// on-open: record the handshake, then subscribe every requested market.
	// Any failure here is fatal; no partial-subscription continuation.
	if err := m.flog.Connected(); err != nil {
		return err
	}
	for _, market := range m.cfg.Markets {
		raw, err := client.Subscribe(market)
		if err != nil {
			return err
		}
		if err := m.flog.Out(raw); err != nil {
			return err
		}
		logger.Info().Str("market", market).Msg("Subscribed to orderbook")
	}

	samples := make(chan latency.Sample, m.cfg.SampleBuffer)
	agg := latency.NewAggregator(samples, m.cfg.FlushInterval(), m.cfg.StaleThresholdMs,
		latency.WithLogger(logger))

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fatal := make(chan error, 2)
	var wg sync.WaitGroup

	// Inbound delivery loop. A peer disconnect ends only this loop; the
	// aggregator keeps flushing empty windows until the operator exits.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		err := client.ReadLoop(loopCtx, m.handleFrame(samples), m.handleError, m.handleClose)
		m.metrics.SetConnected(false)
		if err != nil {
			fatal <- err
		}
	}()

	// The aggregator's normal exit is sample-channel close during shutdown:
	// it drains whatever the read loop produced, flushes once more, and
	// returns. aggCancel is only a backstop for early returns.
	aggCtx, aggCancel := context.WithCancel(context.Background())
	defer aggCancel()
	wg.Add(1)
	go func() {
		defer wg.Done()
		agg.Run(aggCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.heartbeat(loopCtx, client); err != nil {
			fatal <- err
		}
	}()

	quit := make(chan struct{})
	go m.watchStdin(quit)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Signal received, shutting down")
	case <-quit:
		logger.Info().Msg("Operator exit requested")
	case runErr = <-fatal:
		logger.Error().Err(runErr).Msg("Fatal pipeline error")
	}

	// Close forces the read loop off its receive. Only once it has exited is
	// the sample channel safe to close, which lets the aggregator drain and
	// return; cancel stops the heartbeat. With every producer stopped, EXIT
	// is the final record.
	if err := client.Close(websocket.CloseNormalClosure, "client exit"); err != nil {
		logger.Error().Err(err).Msg("Failed to close feed connection")
	}
	<-readDone
	close(samples)
	cancel()
	wg.Wait()

	if err := m.flog.Exit(); err != nil {
		logger.Error().Err(err).Msg("Failed to write exit record")
	}
	return runErr
}

// handleFrame is the on-message pipeline: decode, classify, log, then hand
// the sample to the aggregator. The log write happens before the channel
// send, so the frame log is always a superset of what the aggregator sees.
// A full channel blocks here on purpose: completeness over responsiveness.
func (m *Monitor) handleFrame(samples chan<- latency.Sample) feed.FrameHandler {
	return func(receipt time.Time, raw []byte) error {
		var msg feed.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("failed to decode frame: %w", err)
		}

		if !msg.Data.HasTime() {
			m.metrics.RecordFrame("no_time")
			return m.flog.InNoTime(raw)
		}

		reported := msg.Data.ReportedAt()
		latencyMs := latency.Measure(receipt, reported)

		status := framelog.StatusOK
		stale := latencyMs >= m.cfg.StaleThresholdMs
		if stale {
			status = framelog.StatusStale
		}

		if err := m.flog.In(status, latencyMs, raw); err != nil {
			return err
		}

		m.metrics.RecordLatency(msg.Market, float64(latencyMs))
		if stale {
			m.metrics.RecordFrame("stale")
			m.metrics.RecordStale(msg.Market)
		} else {
			m.metrics.RecordFrame("ok")
		}

		samples <- latency.Sample{Reported: reported, LatencyMs: latencyMs}
		return nil
	}
}

func (m *Monitor) handleError(text string) {
	if err := m.flog.Error(text); err != nil {
		log.Error().Err(err).Msg("Failed to write error record")
	}
}

func (m *Monitor) handleClose(code int, reason string) {
	if err := m.flog.Disconnected(code, reason); err != nil {
		log.Error().Err(err).Msg("Failed to write disconnect record")
	}
}

// heartbeat sends the keep-alive frame on a fixed period while the
// connection is open. A closed connection ends the task; a send or log
// failure is fatal to the run.
func (m *Monitor) heartbeat(ctx context.Context, client *feed.Client) error {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !client.IsConnected() {
				return nil
			}
			raw, err := client.Ping()
			if err != nil {
				if errors.Is(err, feed.ErrNotConnected) {
					return nil
				}
				return fmt.Errorf("heartbeat failed: %w", err)
			}
			if err := m.flog.Out(raw); err != nil {
				return err
			}
			m.metrics.RecordHeartbeat()
		}
	}
}

// watchStdin closes quit when the operator enters a blank line. On EOF the
// watcher stops without requesting exit: a run with a closed or piped stdin
// is controlled through the process signals handled by the caller's context.
func (m *Monitor) watchStdin(quit chan<- struct{}) {
	scanner := bufio.NewScanner(m.stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			close(quit)
			return
		}
	}
}
