// Package framelog maintains the durable append-only record of every frame
// the monitor sends or receives. Each record is a single line beginning with
// a tag (CONNECT, CONNECTED, OUT, IN, ERROR, DISCONNECTED, EXIT) followed by
// a microsecond-precision UTC timestamp and tag-specific fields.
package framelog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// Frame status values recorded on IN lines.
const (
	StatusOK    = "OK"
	StatusStale = "STALE"
)

// Writer appends tagged records to the log file. A mutex serializes writes so
// concurrent producers never interleave within a line; ordering across
// producers is whatever the lock hands out.
type Writer struct {
	mu sync.Mutex
	f  *os.File

	// now is swappable for tests
	now func() time.Time
}

// Open opens the log file for appending, creating it if needed.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame log: %w", err)
	}
	return &Writer{f: f, now: time.Now}, nil
}

func (w *Writer) write(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return fmt.Errorf("frame log is closed")
	}
	if _, err := w.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("frame log write failed: %w", err)
	}
	return nil
}

func (w *Writer) ts() string {
	return w.now().UTC().Format(timeLayout)
}

// Connect records the intent to dial the feed, with the per-run session id.
func (w *Writer) Connect(url, sessionID string) error {
	return w.write(fmt.Sprintf("CONNECT %s %s session=%s", w.ts(), url, sessionID))
}

// Connected records a completed websocket handshake.
func (w *Writer) Connected() error {
	return w.write(fmt.Sprintf("CONNECTED %s", w.ts()))
}

// Out records an outbound text frame with the exact bytes sent.
func (w *Writer) Out(raw []byte) error {
	return w.write(fmt.Sprintf("OUT %s %s", w.ts(), raw))
}

// InNoTime records an inbound frame that carried no reported time. The "?"
// marks the latency as unknown; no sample is derived from these frames.
func (w *Writer) InNoTime(raw []byte) error {
	return w.write(fmt.Sprintf("IN %s %s ? %s", w.ts(), StatusOK, raw))
}

// In records an inbound frame with its staleness verdict and measured latency.
func (w *Writer) In(status string, latencyMs int64, raw []byte) error {
	return w.write(fmt.Sprintf("IN %s %s %d %s", w.ts(), status, latencyMs, raw))
}

// Error records a transport-reported error.
func (w *Writer) Error(text string) error {
	return w.write(fmt.Sprintf("ERROR %s %s", w.ts(), text))
}

// Disconnected records a close event with its status code and reason.
func (w *Writer) Disconnected(code int, reason string) error {
	detail, err := json.Marshal(struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	}{code, reason})
	if err != nil {
		return fmt.Errorf("failed to marshal close record: %w", err)
	}
	return w.write(fmt.Sprintf("DISCONNECTED %s %s", w.ts(), detail))
}

// Exit records the operator-triggered shutdown.
func (w *Writer) Exit() error {
	return w.write(fmt.Sprintf("EXIT %s", w.ts()))
}

// Close releases the underlying file. Writes after Close fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
