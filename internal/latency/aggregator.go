package latency

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Aggregator consumes Samples from a channel and prints a summary every
// window. Flushing runs off its own timer, so a quiet market still reports
// "no messages" on schedule. The first deadline is aligned to a wall-clock
// multiple of the interval.
type Aggregator struct {
	samples   <-chan Sample
	interval  time.Duration
	staleMs   int64
	logger    zerolog.Logger
	onSummary func(Summary)
}

// Summary is the windowed result emitted on each flush.
type Summary struct {
	Samples     int
	Stale       int
	AvgSeconds  float64
	AvgExceeded bool
}

// window is the per-interval accumulation state, reset on every flush.
type window struct {
	sumSeconds float64
	count      int
	stale      int
	alerted    bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger replaces the console logger, mainly for tests.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithSummaryFunc registers a callback invoked with each flushed Summary.
func WithSummaryFunc(fn func(Summary)) Option {
	return func(a *Aggregator) { a.onSummary = fn }
}

// NewAggregator builds an aggregator over the sample channel. staleMs is the
// threshold at or above which a sample counts as stale.
func NewAggregator(samples <-chan Sample, interval time.Duration, staleMs int64, opts ...Option) *Aggregator {
	a := &Aggregator{
		samples:  samples,
		interval: interval,
		staleMs:  staleMs,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run consumes samples until the channel closes or the context is canceled.
// Channel close triggers one final flush so trailing samples are reported.
func (a *Aggregator) Run(ctx context.Context) {
	next := time.Now().Truncate(a.interval).Add(a.interval)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	var w window
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-a.samples:
			if !ok {
				a.flush(&w)
				return
			}
			a.observe(&w, s)
		case <-timer.C:
			a.flush(&w)
			next = next.Add(a.interval)
			for !next.After(time.Now()) {
				next = next.Add(a.interval)
			}
			timer.Reset(time.Until(next))
		}
	}
}

func (a *Aggregator) observe(w *window, s Sample) {
	w.sumSeconds += float64(s.LatencyMs) / 1000.0
	w.count++
	if s.LatencyMs >= a.staleMs {
		w.stale++
		if !w.alerted {
			w.alerted = true
			a.logger.Warn().
				Time("reported", s.Reported).
				Int64("latency_ms", s.LatencyMs).
				Msg("Stale message detected")
		}
	}
}

func (a *Aggregator) flush(w *window) {
	if w.count == 0 {
		a.logger.Info().Msg("No messages seen")
		if a.onSummary != nil {
			a.onSummary(Summary{})
		}
		*w = window{}
		return
	}

	avg := w.sumSeconds / float64(w.count)
	exceeded := avg*1000 >= float64(a.staleMs)

	ev := a.logger.Info()
	if exceeded {
		ev = a.logger.Warn()
	}
	ev.Float64("avg_latency_s", avg).
		Int("samples", w.count).
		Int("stale", w.stale).
		Msg("Latency summary")

	if a.onSummary != nil {
		a.onSummary(Summary{Samples: w.count, Stale: w.stale, AvgSeconds: avg, AvgExceeded: exceeded})
	}
	*w = window{}
}
