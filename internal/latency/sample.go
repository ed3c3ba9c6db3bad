// Package latency measures feed staleness: how far behind local receipt the
// feed's own reported timestamps run, and windowed summary statistics over
// those measurements.
package latency

import "time"

// Sample is one latency measurement, produced by the message handler for
// every inbound frame that carries a reported time.
type Sample struct {
	Reported  time.Time
	LatencyMs int64
}

// Measure returns receipt minus reported in milliseconds.
func Measure(receipt, reported time.Time) int64 {
	return receipt.Sub(reported).Milliseconds()
}
