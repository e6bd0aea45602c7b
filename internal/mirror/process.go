package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// LaunchSpec describes one scrcpy invocation.
type LaunchSpec struct {
	Path   string
	Args   []string
	Dir    string
	Hidden bool
	Stdout io.Writer
	Stderr io.Writer
}

// Process is a running mirroring subprocess.
type Process interface {
	Pid() int
	// Terminate asks the process group to exit.
	Terminate() error
	// Kill forcibly ends the process group.
	Kill() error
	// Wait blocks until the process exits and its output is drained.
	Wait() error
}

// Launcher starts subprocesses. The production implementation is
// ExecLauncher; tests substitute fakes.
type Launcher interface {
	Launch(spec LaunchSpec) (Process, error)
}

// ExecLauncher starts scrcpy with os/exec in its own process group.
type ExecLauncher struct{}

// Launch implements Launcher. The process lifetime is not tied to any
// context; it ends through Terminate, Kill or on its own.
func (ExecLauncher) Launch(spec LaunchSpec) (Process, error) {
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr
	setProcessGroup(cmd, spec.Hidden)

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int         { return p.cmd.Process.Pid }
func (p *execProcess) Terminate() error { return terminateProcessGroup(p.cmd) }
func (p *execProcess) Kill() error      { return killProcessGroup(p.cmd) }
func (p *execProcess) Wait() error      { return p.cmd.Wait() }

// outputLog forwards subprocess output to a logger line by line and keeps
// the most recent non-empty line for failure diagnostics.
type outputLog struct {
	logger *slog.Logger
	level  slog.Level
	stream string

	mu      sync.Mutex
	partial []byte
	last    string
}

func newOutputLog(logger *slog.Logger, level slog.Level, stream string) *outputLog {
	return &outputLog{logger: logger, level: level, stream: stream}
}

func (w *outputLog) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.line(string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

// Flush emits any trailing output without a newline.
func (w *outputLog) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.line(string(w.partial))
		w.partial = nil
	}
}

// Last returns the most recent non-empty line.
func (w *outputLog) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *outputLog) line(s string) {
	s = strings.TrimRight(s, "\r ")
	if s == "" {
		return
	}
	w.last = s
	w.logger.Log(context.Background(), w.level, "scrcpy "+w.stream, "line", s)
}

// exitDiagnostic produces the message reported when scrcpy dies early.
func exitDiagnostic(err error, stderrTail string) string {
	switch {
	case stderrTail != "" && err != nil:
		return fmt.Sprintf("Scrcpy failed to start: %s (%v)", stderrTail, err)
	case stderrTail != "":
		return "Scrcpy failed to start: " + stderrTail
	case err != nil:
		return fmt.Sprintf("Scrcpy failed to start: %v", err)
	default:
		return "Scrcpy failed to start"
	}
}
