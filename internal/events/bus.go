package events

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var log = logging.L("events")

// Type identifies what happened.
type Type string

const (
	DeviceConnected        Type = "device-connected"
	DeviceDisconnected     Type = "device-disconnected"
	AutoConnectTriggered   Type = "auto-connect-triggered"
	AutoReconnectTriggered Type = "auto-reconnect-triggered"
	SessionChanged         Type = "session-changed"
)

// Event is the single payload shape delivered to subscribers. Fields that
// do not apply to a Type are left zero.
type Event struct {
	Type      Type        `json:"type"`
	Device    *adb.Device `json:"device,omitempty"`
	DeviceID  string      `json:"deviceId,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Success   bool        `json:"success"`
	Running   bool        `json:"running"`
	Message   string      `json:"message,omitempty"`
	Time      time.Time   `json:"time"`
}

// Handler receives events. It runs on the publisher's goroutine and must
// not block for long.
type Handler func(Event)

// Publisher is the narrow view producers depend on.
type Publisher interface {
	Publish(Event)
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it. Calling
// the returned function more than once is harmless.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// SubscribeTypes registers h for the listed types only.
func (b *Bus) SubscribeTypes(h Handler, types ...Type) (unsubscribe func()) {
	want := make(map[Type]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	return b.Subscribe(func(e Event) {
		if want[e.Type] {
			h(e)
		}
	})
}

// Publish delivers e to every current subscriber before returning.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s.handler, e)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", "type", string(e.Type), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	h(e)
}
