package mirror

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/health"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var log = logging.L("mirror")

const (
	// DefaultGracePeriod is how long a fresh process must survive before
	// Start reports success.
	DefaultGracePeriod = 500 * time.Millisecond
	// DefaultKillDelay is the wait between graceful termination and a
	// forced kill.
	DefaultKillDelay = 2 * time.Second
)

// ErrNotConfigured is returned when no scrcpy binary can be resolved.
var ErrNotConfigured = errors.New("scrcpy path not configured")

const notConfiguredMessage = "Scrcpy path not configured. Please select scrcpy folder in Settings."

// Result is the outcome of a start or stop request.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Status is the controller's bookkeeping view of the live session.
type Status struct {
	Running   bool      `json:"running"`
	DeviceID  string    `json:"deviceId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

// LastSession identifies the most recent session eligible for reconnect.
type LastSession struct {
	DeviceID  string    `json:"deviceId"`
	Options   Options   `json:"options"`
	SessionID string    `json:"sessionId"`
	StartedAt time.Time `json:"startedAt"`
}

// PathFunc resolves the scrcpy binary. Empty means not configured.
type PathFunc func() string

// Config wires a Controller.
type Config struct {
	Path        PathFunc
	Launcher    Launcher
	Events      events.Publisher
	Health      health.Reporter
	GracePeriod time.Duration
	KillDelay   time.Duration
}

// session is one launched process and its bookkeeping.
type session struct {
	id        string
	deviceID  string
	opts      Options
	startedAt time.Time
	proc      Process
	stderr    *outputLog
	logger    *slog.Logger

	done    chan struct{}
	exitErr error

	// userStop is guarded by Controller.mu.
	userStop bool
}

func (s *session) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Controller owns at most one scrcpy subprocess at a time.
type Controller struct {
	path        PathFunc
	launcher    Launcher
	bus         events.Publisher
	health      health.Reporter
	gracePeriod time.Duration
	killDelay   time.Duration

	// opMu serialises Start and Stop.
	opMu sync.Mutex

	mu      sync.Mutex
	current *session
	last    *LastSession
	// exiting holds every launched session whose process has not yet
	// been reaped, including ones already detached from current.
	exiting map[*session]struct{}
}

// New creates a Controller.
func New(cfg Config) *Controller {
	c := &Controller{
		path:        cfg.Path,
		launcher:    cfg.Launcher,
		bus:         cfg.Events,
		health:      cfg.Health,
		gracePeriod: cfg.GracePeriod,
		killDelay:   cfg.KillDelay,
		exiting:     make(map[*session]struct{}),
	}
	if c.path == nil {
		c.path = func() string { return "" }
	}
	if c.launcher == nil {
		c.launcher = ExecLauncher{}
	}
	if c.gracePeriod <= 0 {
		c.gracePeriod = DefaultGracePeriod
	}
	if c.killDelay <= 0 {
		c.killDelay = DefaultKillDelay
	}
	return c
}

// Configured reports whether a scrcpy binary is resolvable.
func (c *Controller) Configured() bool {
	return c.path() != ""
}

// Start launches scrcpy for deviceID, replacing any running session.
func (c *Controller) Start(ctx context.Context, deviceID string, opts Options) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Status().Running {
		log.Info("stopping current session before start", logging.KeyDeviceID, deviceID)
		c.stop(false)
	}
	c.awaitTeardown()

	path := c.path()
	if path == "" {
		c.report(health.Unhealthy, ErrNotConfigured.Error())
		return Result{Message: notConfiguredMessage}
	}

	s := &session{
		id:        uuid.NewString(),
		deviceID:  deviceID,
		opts:      opts,
		startedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
	s.logger = logging.WithSession(log, deviceID, s.id)
	s.stderr = newOutputLog(s.logger, slog.LevelWarn, "stderr")
	stdout := newOutputLog(s.logger, slog.LevelDebug, "stdout")

	args := BuildArgs(deviceID, opts)
	s.logger.Info("starting scrcpy", "path", path, "args", strings.Join(args, " "))

	proc, err := c.launcher.Launch(LaunchSpec{
		Path:   path,
		Args:   args,
		Dir:    filepath.Dir(path),
		Hidden: opts.StartMinimized,
		Stdout: stdout,
		Stderr: s.stderr,
	})
	if err != nil {
		s.logger.Error("failed to start scrcpy", logging.KeyError, err)
		c.report(health.Degraded, err.Error())
		return Result{Message: "Failed to start scrcpy: " + err.Error()}
	}
	s.proc = proc

	c.mu.Lock()
	c.current = s
	c.exiting[s] = struct{}{}
	c.mu.Unlock()

	go c.reap(s, stdout)

	timer := time.NewTimer(c.gracePeriod)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("start cancelled during grace period", logging.KeyError, ctx.Err())
		c.stop(false)
		return Result{Message: "Start cancelled: " + ctx.Err().Error()}
	}

	if s.exited() {
		msg := exitDiagnostic(s.exitErr, s.stderr.Last())
		s.logger.Warn("scrcpy exited during grace period", "message", msg)
		c.report(health.Degraded, msg)
		return Result{Message: msg}
	}

	c.mu.Lock()
	c.last = &LastSession{
		DeviceID:  deviceID,
		Options:   opts,
		SessionID: s.id,
		StartedAt: s.startedAt,
	}
	c.mu.Unlock()

	s.logger.Info("scrcpy session started", "pid", proc.Pid())
	c.report(health.Healthy, "session running")
	c.publish(events.Event{
		Type:      events.SessionChanged,
		DeviceID:  deviceID,
		SessionID: s.id,
		Running:   true,
		Success:   true,
	})
	return Result{Success: true, Message: "Scrcpy started successfully"}
}

// Stop ends the running session. A user-initiated stop also forgets the
// last session so nothing reconnects to it.
func (c *Controller) Stop(userInitiated bool) Result {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stop(userInitiated)
}

// stop requires opMu.
func (c *Controller) stop(userInitiated bool) Result {
	c.mu.Lock()
	s := c.current
	if userInitiated {
		c.last = nil
	}
	if s == nil {
		c.mu.Unlock()
		return Result{Success: true, Message: "Scrcpy is not running"}
	}
	s.userStop = userInitiated
	c.current = nil
	c.mu.Unlock()

	s.logger.Info("stopping scrcpy", "userInitiated", userInitiated)
	if err := s.proc.Terminate(); err != nil {
		s.logger.Warn("graceful termination failed, killing", logging.KeyError, err)
		if kerr := s.proc.Kill(); kerr != nil {
			s.logger.Error("failed to kill scrcpy", logging.KeyError, kerr)
			return Result{Message: "Failed to stop scrcpy: " + kerr.Error()}
		}
	}
	time.AfterFunc(c.killDelay, func() {
		if s.exited() {
			return
		}
		s.logger.Warn("scrcpy ignored termination, killing")
		if err := s.proc.Kill(); err != nil {
			s.logger.Debug("forced kill failed", logging.KeyError, err)
		}
	})

	c.publish(events.Event{
		Type:      events.SessionChanged,
		DeviceID:  s.deviceID,
		SessionID: s.id,
		Running:   false,
		Success:   true,
		Message:   "stopped",
	})
	return Result{Success: true, Message: "Scrcpy stopped"}
}

// awaitTeardown blocks until every previously launched process has been
// reaped, bounded by the kill delay plus one second. Requires opMu.
func (c *Controller) awaitTeardown() {
	c.mu.Lock()
	pending := make([]*session, 0, len(c.exiting))
	for s := range c.exiting {
		pending = append(pending, s)
	}
	c.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	deadline := time.NewTimer(c.killDelay + time.Second)
	defer deadline.Stop()
	for _, s := range pending {
		select {
		case <-s.done:
		case <-deadline.C:
			log.Warn("previous scrcpy did not exit in time", logging.KeySessionID, s.id)
			return
		}
	}
}

// reap waits for the process and reconciles controller state on exit.
func (c *Controller) reap(s *session, stdout *outputLog) {
	err := s.proc.Wait()
	stdout.Flush()
	s.stderr.Flush()
	s.exitErr = err
	close(s.done)

	c.mu.Lock()
	delete(c.exiting, s)
	wasCurrent := c.current == s
	if wasCurrent {
		c.current = nil
	}
	owned := c.last != nil && c.last.SessionID == s.id
	if s.userStop && owned {
		c.last = nil
	}
	userStop := s.userStop
	retained := owned && !userStop
	c.mu.Unlock()

	attrs := []any{"userInitiated", userStop, "retainedForReconnect", retained}
	if err != nil {
		attrs = append(attrs, logging.KeyError, err)
	}
	s.logger.Info("scrcpy exited", attrs...)

	if wasCurrent {
		c.publish(events.Event{
			Type:      events.SessionChanged,
			DeviceID:  s.deviceID,
			SessionID: s.id,
			Running:   false,
			Message:   "exited",
		})
	}
}

// Status reports whether a session is live according to the controller's
// bookkeeping.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Status{}
	}
	return Status{
		Running:   true,
		DeviceID:  c.current.deviceID,
		SessionID: c.current.id,
		StartedAt: c.current.startedAt,
	}
}

// LastSession returns the session a reconnect would restore.
func (c *Controller) LastSession() (LastSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return LastSession{}, false
	}
	return *c.last, true
}

// ClearLastSession forgets the retained session.
func (c *Controller) ClearLastSession() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}

// Close stops any running session without discarding the retained one and
// waits for the process to go away.
func (c *Controller) Close() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stop(false)
	c.awaitTeardown()
}

func (c *Controller) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

func (c *Controller) report(status health.Status, message string) {
	if c.health != nil {
		c.health.Update(health.ComponentScrcpy, status, message)
	}
}
