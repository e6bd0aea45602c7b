package adb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/health"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/workerpool"
)

var log = logging.L("adb")

const (
	// DefaultCommandTimeout bounds every foreground adb invocation.
	DefaultCommandTimeout = 10 * time.Second

	// DefaultHousekeepingTimeout bounds background disconnects of stale entries.
	DefaultHousekeepingTimeout = 2 * time.Second

	// DefaultTCPPort is the port adb tcpip mode is switched to.
	DefaultTCPPort = 5555

	defaultWifiSettle = 2 * time.Second
)

// ErrNotConfigured is returned when no adb binary can be resolved.
var ErrNotConfigured = errors.New("adb: path not configured")

// PathFunc resolves the adb binary. An empty string means not configured.
type PathFunc func() string

// Submitter runs fire-and-forget work. *workerpool.Pool implements it.
type Submitter interface {
	Submit(name string, task workerpool.Task) bool
}

// Result is the outcome of a user-facing adb action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Config wires a Bridge to its collaborators. Only Path is required.
type Config struct {
	Path                PathFunc
	Runner              Runner
	Background          Submitter
	Health              health.Reporter
	CommandTimeout      time.Duration
	HousekeepingTimeout time.Duration
	WifiSettle          time.Duration
}

// Bridge runs adb and turns its text output into structured records.
// Every exported method absorbs tool failures into its return value.
type Bridge struct {
	path                PathFunc
	runner              Runner
	background          Submitter
	health              health.Reporter
	commandTimeout      time.Duration
	housekeepingTimeout time.Duration
	wifiSettle          time.Duration
}

// New creates a Bridge, filling unset fields with production defaults.
func New(cfg Config) *Bridge {
	b := &Bridge{
		path:                cfg.Path,
		runner:              cfg.Runner,
		background:          cfg.Background,
		health:              cfg.Health,
		commandTimeout:      cfg.CommandTimeout,
		housekeepingTimeout: cfg.HousekeepingTimeout,
		wifiSettle:          cfg.WifiSettle,
	}
	if b.path == nil {
		b.path = func() string { return "" }
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	if b.commandTimeout <= 0 {
		b.commandTimeout = DefaultCommandTimeout
	}
	if b.housekeepingTimeout <= 0 {
		b.housekeepingTimeout = DefaultHousekeepingTimeout
	}
	if b.wifiSettle <= 0 {
		b.wifiSettle = defaultWifiSettle
	}
	return b
}

// Configured reports whether an adb binary can be resolved.
func (b *Bridge) Configured() bool {
	return b.path() != ""
}

// ListDevices returns the attached devices. Any failure (adb missing,
// timeout, non-zero exit) yields an empty slice.
func (b *Bridge) ListDevices(ctx context.Context) []Device {
	out, err := b.run(ctx, b.commandTimeout, "devices", "-l")
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			log.Debug("adb path not configured")
			b.report(health.Unhealthy, "adb path not configured")
		} else if ctx.Err() == nil {
			log.Warn("listing devices failed", logging.KeyError, err)
			b.report(health.Degraded, err.Error())
		}
		return []Device{}
	}
	b.report(health.Healthy, "")

	devices, stale := ParseDevices(out)
	for _, id := range stale {
		b.dropStale(id)
	}
	if devices == nil {
		devices = []Device{}
	}
	return devices
}

// dropStale disconnects an unreachable wireless entry without waiting.
func (b *Bridge) dropStale(id string) {
	task := func() {
		ctx := context.Background()
		if _, err := b.run(ctx, b.housekeepingTimeout, "disconnect", id); err != nil {
			log.Debug("stale wireless disconnect failed", logging.KeyDeviceID, id, logging.KeyError, err)
			return
		}
		log.Info("dropped stale wireless device", logging.KeyDeviceID, id)
	}

	if b.background != nil {
		if b.background.Submit("adb-disconnect "+id, task) {
			return
		}
		log.Warn("background queue full, disconnecting stale device inline", logging.KeyDeviceID, id)
	}
	go task()
}

// StartServer starts the adb daemon. Failures are logged only.
func (b *Bridge) StartServer(ctx context.Context) {
	if _, err := b.run(ctx, b.commandTimeout, "start-server"); err != nil {
		log.Warn("failed to start adb server", logging.KeyError, err)
	}
}

// KillServer stops the adb daemon. Failures are logged only.
func (b *Bridge) KillServer(ctx context.Context) {
	if _, err := b.run(ctx, b.commandTimeout, "kill-server"); err != nil {
		log.Warn("failed to kill adb server", logging.KeyError, err)
	}
}

// shell runs `adb -s <id> shell <args...>`.
func (b *Bridge) shell(ctx context.Context, id string, args ...string) (string, error) {
	full := append([]string{"-s", id, "shell"}, args...)
	return b.run(ctx, b.commandTimeout, full...)
}

func (b *Bridge) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	path := b.path()
	if path == "" {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := b.runner.Run(ctx, path, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("adb %s: timed out after %s", strings.Join(args, " "), timeout)
		}
		return string(out), fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func (b *Bridge) report(status health.Status, message string) {
	if b.health != nil {
		b.health.Update(health.ComponentADB, status, message)
	}
}
