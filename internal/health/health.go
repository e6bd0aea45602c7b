package health

import (
	"sort"
	"sync"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var log = logging.L("health")

// Component names reported by the panel.
const (
	ComponentADB     = "adb"
	ComponentScrcpy  = "scrcpy"
	ComponentMonitor = "monitor"
)

// Status represents the health status of a component.
type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
)

// Check is the latest health result for a named component.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reporter is implemented by Monitor; components depend on this instead of
// the concrete type so they can run without health tracking.
type Reporter interface {
	Update(name string, status Status, message string)
}

// Monitor tracks health checks for the external tools and the device poller.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewMonitor creates an empty health monitor.
func NewMonitor() *Monitor {
	return &Monitor{checks: make(map[string]Check)}
}

// Update records the status for a component. Transitions are logged once;
// repeated identical reports only refresh the timestamp.
func (m *Monitor) Update(name string, status Status, message string) {
	m.mu.Lock()
	prev, seen := m.checks[name]
	m.checks[name] = Check{
		Name:      name,
		Status:    status,
		Message:   message,
		UpdatedAt: time.Now(),
	}
	m.mu.Unlock()

	if seen && prev.Status == status {
		return
	}
	if status != Healthy {
		log.Warn("component health degraded", "name", name, "status", string(status), "message", message)
	} else if seen {
		log.Info("component recovered", "name", name)
	}
}

// Get returns the check for a component.
func (m *Monitor) Get(name string) (Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall returns the worst status across all checks, Healthy when empty.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	worst := Healthy
	for _, c := range m.checks {
		if rank(c.Status) > rank(worst) {
			worst = c.Status
		}
	}
	return worst
}

// All returns the checks sorted by name.
func (m *Monitor) All() []Check {
	m.mu.RLock()
	out := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		out = append(out, c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func rank(s Status) int {
	switch s {
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	default:
		return 0
	}
}
