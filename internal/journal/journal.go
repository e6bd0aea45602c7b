// Package journal keeps a JSONL history of device and session events.
package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var log = logging.L("journal")

// recentCap bounds the in-memory history served by Recent.
const recentCap = 200

// durableEvents are fsynced after writing.
var durableEvents = map[events.Type]bool{
	events.SessionChanged:         true,
	events.AutoReconnectTriggered: true,
}

// Entry is a single journal record.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	EventType string         `json:"eventType"`
	DeviceID  string         `json:"deviceId,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type syncer interface {
	Sync() error
}

// Journal appends one line per event to its writer.
type Journal struct {
	mu      sync.Mutex
	w       io.Writer
	recent  []Entry
	next    int
	full    bool
	dropped atomic.Int64
}

// Open creates a journal backed by a size-rotated file at path.
func Open(path string, maxSizeMB, maxBackups int) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	w, err := logging.NewRotatingWriter(path, maxSizeMB, maxBackups)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	log.Info("session journal started", "path", path)
	return New(w), nil
}

// New creates a journal writing to w.
func New(w io.Writer) *Journal {
	return &Journal{w: w, recent: make([]Entry, recentCap)}
}

// Attach subscribes the journal to every event on bus.
func (j *Journal) Attach(bus interface {
	Subscribe(events.Handler) func()
}) (detach func()) {
	return bus.Subscribe(j.Record)
}

// Record writes e. Failures are counted, never returned. Safe to call on a
// nil receiver.
func (j *Journal) Record(e events.Event) {
	if j == nil {
		return
	}

	ts := e.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	entry := Entry{
		Timestamp: ts.Format(time.RFC3339Nano),
		EventType: string(e.Type),
		DeviceID:  e.DeviceID,
		SessionID: e.SessionID,
		Details:   details(e),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error("failed to marshal journal entry", logging.KeyError, err, "eventType", entry.EventType)
		j.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	j.remember(entry)

	if _, err := j.w.Write(data); err != nil {
		log.Error("failed to write journal entry", logging.KeyError, err, "eventType", entry.EventType)
		j.dropped.Add(1)
		return
	}
	if durableEvents[e.Type] {
		if s, ok := j.w.(syncer); ok {
			if err := s.Sync(); err != nil {
				log.Warn("failed to fsync journal entry", logging.KeyError, err)
			}
		}
	}
}

func details(e events.Event) map[string]any {
	d := map[string]any{}
	switch e.Type {
	case events.SessionChanged:
		d["running"] = e.Running
	case events.AutoConnectTriggered, events.AutoReconnectTriggered:
		d["success"] = e.Success
	}
	if e.Message != "" {
		d["message"] = e.Message
	}
	if e.Device != nil && e.Device.Model != "" {
		d["model"] = e.Device.Model
	}
	if len(d) == 0 {
		return nil
	}
	return d
}

// remember requires j.mu.
func (j *Journal) remember(e Entry) {
	j.recent[j.next] = e
	j.next = (j.next + 1) % len(j.recent)
	if j.next == 0 {
		j.full = true
	}
}

// Recent returns up to n of the newest entries, oldest first.
func (j *Journal) Recent(n int) []Entry {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	size := j.next
	if j.full {
		size = len(j.recent)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Entry, 0, n)
	start := (j.next - n + len(j.recent)) % len(j.recent)
	for i := 0; i < n; i++ {
		out = append(out, j.recent[(start+i)%len(j.recent)])
	}
	return out
}

// DroppedCount returns the number of entries that failed to write, or -1
// for a nil journal.
func (j *Journal) DroppedCount() int64 {
	if j == nil {
		return -1
	}
	return j.dropped.Load()
}

// Close closes the underlying writer when it is closable. Safe to call on
// a nil receiver.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if c, ok := j.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
