package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
)

// scriptedLister returns each snapshot in turn, repeating the last one.
type scriptedLister struct {
	mu        sync.Mutex
	snapshots [][]adb.Device
	calls     int
	inFlight  int
	overlap   bool
	delay     time.Duration
}

func (l *scriptedLister) ListDevices(ctx context.Context) []adb.Device {
	l.mu.Lock()
	l.inFlight++
	if l.inFlight > 1 {
		l.overlap = true
	}
	i := min(l.calls, len(l.snapshots)-1)
	l.calls++
	snap := l.snapshots[i]
	delay := l.delay
	l.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	l.mu.Lock()
	l.inFlight--
	l.mu.Unlock()
	return snap
}

func (l *scriptedLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) ids(t events.Type) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e.DeviceID)
		}
	}
	return out
}

func wired(id string) adb.Device {
	return adb.Device{ID: id, Connection: adb.Wired, State: adb.Ready}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPollDiff(t *testing.T) {
	a := []adb.Device{wired("A"), wired("B"), wired("C")}
	b := []adb.Device{wired("B"), wired("D"), wired("E"), wired("C")}
	lister := &scriptedLister{snapshots: [][]adb.Device{a, b}}
	rec := &recorder{}
	m := New(Config{Lister: lister, Events: rec})

	m.poll(context.Background())
	if n := rec.count(events.DeviceConnected); n != 3 {
		t.Fatalf("first poll connects = %d, want 3", n)
	}

	rec.events = nil
	m.poll(context.Background())

	if got := rec.ids(events.DeviceConnected); len(got) != 2 || got[0] != "D" || got[1] != "E" {
		t.Fatalf("connected = %v, want [D E]", got)
	}
	if got := rec.ids(events.DeviceDisconnected); len(got) != 1 || got[0] != "A" {
		t.Fatalf("disconnected = %v, want [A]", got)
	}
	// connects are published before disconnects
	if rec.events[len(rec.events)-1].Type != events.DeviceDisconnected {
		t.Fatal("disconnect should be published last")
	}
	if cur := m.CurrentDevices(); len(cur) != 4 {
		t.Fatalf("CurrentDevices() = %v", cur)
	}
}

func TestPollIgnoresUnreadyAndWireless(t *testing.T) {
	snap := []adb.Device{
		wired("A"),
		{ID: "B", Connection: adb.Wired, State: adb.PendingAuthorization},
		{ID: "C", Connection: adb.Wired, State: adb.Unreachable},
		{ID: "10.0.0.2:5555", Connection: adb.Wireless, State: adb.Ready},
	}
	rec := &recorder{}
	m := New(Config{Lister: &scriptedLister{snapshots: [][]adb.Device{snap}}, Events: rec})

	m.poll(context.Background())
	if got := rec.ids(events.DeviceConnected); len(got) != 1 || got[0] != "A" {
		t.Fatalf("connected = %v, want [A]", got)
	}
}

func TestPollUnchangedPublishesNothing(t *testing.T) {
	snap := []adb.Device{wired("A")}
	rec := &recorder{}
	m := New(Config{Lister: &scriptedLister{snapshots: [][]adb.Device{snap}}, Events: rec})

	m.poll(context.Background())
	m.poll(context.Background())
	m.poll(context.Background())
	if len(rec.events) != 1 {
		t.Fatalf("events = %d, want 1", len(rec.events))
	}
}

func TestStopStartReannounces(t *testing.T) {
	lister := &scriptedLister{snapshots: [][]adb.Device{{wired("A"), wired("B")}}}
	rec := &recorder{}
	m := New(Config{Lister: lister, Events: rec, Interval: 5 * time.Millisecond})

	m.Start()
	m.Start()
	if !m.IsRunning() {
		t.Fatal("monitor should be running")
	}
	waitFor(t, "first announcement", func() bool { return rec.count(events.DeviceConnected) == 2 })
	waitFor(t, "a few polls", func() bool { return lister.callCount() >= 3 })
	if n := rec.count(events.DeviceConnected); n != 2 {
		t.Fatalf("steady state re-announced: %d connects", n)
	}

	m.Stop()
	m.Stop()
	if m.IsRunning() {
		t.Fatal("monitor should be stopped")
	}
	if cur := m.CurrentDevices(); len(cur) != 0 {
		t.Fatalf("snapshot not cleared: %v", cur)
	}

	m.Start()
	defer m.Stop()
	waitFor(t, "re-announcement", func() bool { return rec.count(events.DeviceConnected) == 4 })
	if n := rec.count(events.DeviceDisconnected); n != 0 {
		t.Fatalf("unexpected disconnects: %d", n)
	}
}

func TestPollsNeverOverlap(t *testing.T) {
	lister := &scriptedLister{
		snapshots: [][]adb.Device{{wired("A")}},
		delay:     15 * time.Millisecond,
	}
	m := New(Config{Lister: lister, Interval: time.Millisecond})

	m.Start()
	waitFor(t, "several polls", func() bool { return lister.callCount() >= 4 })
	m.Stop()

	lister.mu.Lock()
	defer lister.mu.Unlock()
	if lister.overlap {
		t.Fatal("polls overlapped")
	}
}
