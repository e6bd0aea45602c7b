// Package policy decides whether a newly connected device should get a
// mirroring session: a debounced reconnect of the last session, or an
// immediate auto-connect with the configured defaults.
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
)

var log = logging.L("policy")

// DefaultSettleDelay lets a device finish re-enumerating after a USB mode
// change before scrcpy is pointed at it.
const DefaultSettleDelay = 2 * time.Second

// SessionController is the part of mirror.Controller the engine drives.
type SessionController interface {
	LastSession() (mirror.LastSession, bool)
	Configured() bool
	Start(ctx context.Context, deviceID string, opts mirror.Options) mirror.Result
}

// Bus is the event bus the engine listens on and reports to.
type Bus interface {
	Subscribe(events.Handler) (unsubscribe func())
	Publish(events.Event)
}

// Settings are the user toggles consulted on every connect event.
type Settings struct {
	AutoConnect    bool
	AutoReconnect  bool
	DefaultOptions mirror.Options
}

// SettingsFunc returns the current settings. It is called per event so
// configuration reloads take effect without restarting the engine.
type SettingsFunc func() Settings

// Config wires an Engine.
type Config struct {
	Controller  SessionController
	Settings    SettingsFunc
	Events      Bus
	SettleDelay time.Duration
}

// Engine reacts to device-connected events.
type Engine struct {
	ctrl     SessionController
	settings SettingsFunc
	bus      Bus
	settle   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	unsubscribe func()

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	pendingID string
	closed    bool
}

// New creates an Engine and subscribes it to the bus.
func New(cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		ctrl:     cfg.Controller,
		settings: cfg.Settings,
		bus:      cfg.Events,
		settle:   cfg.SettleDelay,
		ctx:      ctx,
		cancel:   cancel,
	}
	if e.settle <= 0 {
		e.settle = DefaultSettleDelay
	}
	if e.settings == nil {
		e.settings = func() Settings { return Settings{} }
	}
	e.unsubscribe = e.bus.Subscribe(e.handle)
	return e
}

func (e *Engine) handle(ev events.Event) {
	if ev.Type != events.DeviceConnected || ev.DeviceID == "" {
		return
	}
	s := e.settings()
	configured := e.ctrl.Configured()
	last, hasLast := e.ctrl.LastSession()

	switch {
	case hasLast && s.AutoReconnect && configured && last.DeviceID == ev.DeviceID:
		e.scheduleReconnect(ev, last)
	case s.AutoConnect && configured:
		e.autoConnect(ev, s.DefaultOptions)
	default:
		log.Debug("no policy applies", logging.KeyDeviceID, ev.DeviceID,
			"autoConnect", s.AutoConnect, "autoReconnect", s.AutoReconnect,
			"configured", configured, "hasLastSession", hasLast)
	}
}

// scheduleReconnect replaces any pending reconnect with a fresh one. Only
// the most recent connect event within the settle window fires.
func (e *Engine) scheduleReconnect(ev events.Event, last mirror.LastSession) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
		log.Debug("superseded pending reconnect", logging.KeyDeviceID, e.pendingID)
	}
	e.gen++
	gen := e.gen
	e.pendingID = ev.DeviceID
	log.Info("device reconnected, restoring session", logging.KeyDeviceID, ev.DeviceID, "delay", e.settle.String())
	e.timer = time.AfterFunc(e.settle, func() { e.fireReconnect(gen, ev, last) })
}

// fireReconnect starts the retained session, unless it was superseded or
// forgotten while the timer was pending.
func (e *Engine) fireReconnect(gen uint64, ev events.Event, want mirror.LastSession) {
	e.mu.Lock()
	// A timer that already fired cannot be stopped; the generation tells
	// it whether it was superseded in the meantime.
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.pendingID = ""
	e.wg.Add(1)
	e.mu.Unlock()
	defer e.wg.Done()

	if last, ok := e.ctrl.LastSession(); !ok || last.SessionID != want.SessionID || last.DeviceID != want.DeviceID {
		log.Info("retained session changed during settle, skipping reconnect",
			logging.KeyDeviceID, ev.DeviceID, logging.KeySessionID, want.SessionID)
		return
	}

	res := e.ctrl.Start(e.ctx, ev.DeviceID, want.Options)
	if res.Success {
		log.Info("auto-reconnect succeeded", logging.KeyDeviceID, ev.DeviceID)
	} else {
		log.Warn("auto-reconnect failed", logging.KeyDeviceID, ev.DeviceID, "message", res.Message)
	}
	e.bus.Publish(events.Event{
		Type:     events.AutoReconnectTriggered,
		Device:   ev.Device,
		DeviceID: ev.DeviceID,
		Success:  res.Success,
		Message:  res.Message,
	})
}

// autoConnect starts a session right away. The start runs off the
// publisher's goroutine so device polling is not held up by the launch.
func (e *Engine) autoConnect(ev events.Event, opts mirror.Options) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	log.Info("new device, auto-connecting", logging.KeyDeviceID, ev.DeviceID)
	go func() {
		defer e.wg.Done()
		res := e.ctrl.Start(e.ctx, ev.DeviceID, opts)
		if !res.Success {
			log.Warn("auto-connect failed", logging.KeyDeviceID, ev.DeviceID, "message", res.Message)
		}
		e.bus.Publish(events.Event{
			Type:     events.AutoConnectTriggered,
			Device:   ev.Device,
			DeviceID: ev.DeviceID,
			Success:  res.Success,
			Message:  res.Message,
		})
	}()
}

// Pending returns the device a reconnect is scheduled for, if any.
func (e *Engine) Pending() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingID, e.pendingID != ""
}

// Cancel drops a pending reconnect without firing it.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	e.pendingID = ""
}

// Close unsubscribes, drops any pending reconnect and waits for starts
// already in progress.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.Cancel()
	e.unsubscribe()
	e.cancel()
	e.wg.Wait()
}
