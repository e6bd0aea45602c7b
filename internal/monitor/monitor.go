// Package monitor polls the device inventory and announces wired devices
// as they appear and disappear.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/health"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var log = logging.L("monitor")

// DefaultInterval is the pause between the end of one poll and the start
// of the next.
const DefaultInterval = 2 * time.Second

// Lister reads the current device inventory. Implementations must not
// fail; an unreadable inventory is an empty one.
type Lister interface {
	ListDevices(ctx context.Context) []adb.Device
}

// Config wires a Monitor.
type Config struct {
	Lister   Lister
	Events   events.Publisher
	Health   health.Reporter
	Interval time.Duration
}

// Monitor diffs consecutive snapshots of wired, ready devices.
type Monitor struct {
	lister   Lister
	bus      events.Publisher
	health   health.Reporter
	interval time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	previous []adb.Device
}

// New creates a stopped Monitor.
func New(cfg Config) *Monitor {
	m := &Monitor{
		lister:   cfg.Lister,
		bus:      cfg.Events,
		health:   cfg.Health,
		interval: cfg.Interval,
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	return m
}

// Start begins polling. The first poll runs immediately. Calling Start on
// a running monitor does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	log.Info("device monitor started", "interval", m.interval.String())
	m.report(health.Healthy, "polling")
	go m.run(ctx, done)
}

// Stop halts polling, waits for an in-flight poll to finish and forgets
// the last snapshot, so the next Start announces every present device
// again. It must not be called from an event handler. Calling Stop on a
// stopped monitor does nothing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done

	m.mu.Lock()
	m.previous = nil
	m.mu.Unlock()

	log.Info("device monitor stopped")
	m.report(health.Degraded, "stopped")
}

// IsRunning reports whether the poll loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// CurrentDevices returns a copy of the last snapshot.
func (m *Monitor) CurrentDevices() []adb.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]adb.Device, len(m.previous))
	copy(out, m.previous)
	return out
}

// run schedules each poll only after the previous one returns, so polls
// never overlap however slow adb is.
func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.poll(ctx)
			timer.Reset(m.interval)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	devices := m.lister.ListDevices(ctx)
	if ctx.Err() != nil {
		return
	}

	current := make([]adb.Device, 0, len(devices))
	for _, d := range devices {
		if d.WiredReady() {
			current = append(current, d)
		}
	}

	m.mu.Lock()
	previous := m.previous
	m.mu.Unlock()

	added, removed := diff(previous, current)

	for _, d := range added {
		log.Info("device connected", logging.KeyDeviceID, d.ID, "model", d.Model)
		m.publish(events.Event{Type: events.DeviceConnected, Device: &d, DeviceID: d.ID})
	}
	for _, d := range removed {
		log.Info("device disconnected", logging.KeyDeviceID, d.ID)
		m.publish(events.Event{Type: events.DeviceDisconnected, Device: &d, DeviceID: d.ID})
	}

	m.mu.Lock()
	m.previous = current
	m.mu.Unlock()
}

// diff returns devices in current but not previous (current order) and
// devices in previous but not current (previous order), matched by ID.
func diff(previous, current []adb.Device) (added, removed []adb.Device) {
	prev := make(map[string]struct{}, len(previous))
	for _, d := range previous {
		prev[d.ID] = struct{}{}
	}
	cur := make(map[string]struct{}, len(current))
	for _, d := range current {
		cur[d.ID] = struct{}{}
		if _, ok := prev[d.ID]; !ok {
			added = append(added, d)
		}
	}
	for _, d := range previous {
		if _, ok := cur[d.ID]; !ok {
			removed = append(removed, d)
		}
	}
	return added, removed
}

func (m *Monitor) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

func (m *Monitor) report(status health.Status, message string) {
	if m.health != nil {
		m.health.Update(health.ComponentMonitor, status, message)
	}
}
