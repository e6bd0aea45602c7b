package adb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/health"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/workerpool"
)

// fakeRunner answers commands by their joined argument string and records
// every call.
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []string
	block     bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	r.mu.Lock()
	r.calls = append(r.calls, key)
	block := r.block
	out, hasOut := r.responses[key]
	err := r.failures[key]
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !hasOut {
		return nil, errors.New("unexpected command: " + key)
	}
	return []byte(out), nil
}

func (r *fakeRunner) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == key {
			n++
		}
	}
	return n
}

func newTestBridge(r *fakeRunner, pool *workerpool.Pool, hm *health.Monitor) *Bridge {
	cfg := Config{
		Path:       func() string { return "/opt/scrcpy/adb" },
		Runner:     r,
		WifiSettle: time.Millisecond,
	}
	if pool != nil {
		cfg.Background = pool
	}
	if hm != nil {
		cfg.Health = hm
	}
	return New(cfg)
}

func drain(t *testing.T, p *workerpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !p.Drain(ctx) {
		t.Fatal("background pool did not drain")
	}
}

func TestListDevicesReadyAndUnauthorized(t *testing.T) {
	r := newFakeRunner()
	r.responses["devices -l"] = "List of devices attached\n" +
		"ABC123         device usb:1-1 product:raven model:Pixel_6_Pro device:raven transport_id:3\n" +
		"XYZ999         unauthorized usb:1-2 transport_id:4\n\n"
	pool := workerpool.New(1, 8)
	b := newTestBridge(r, pool, nil)

	devices := b.ListDevices(context.Background())
	drain(t, pool)

	if len(devices) != 2 {
		t.Fatalf("len(devices) = %d, want 2: %+v", len(devices), devices)
	}
	if d := devices[0]; d.ID != "ABC123" || d.State != Ready || d.Connection != Wired || d.Model != "Pixel 6 Pro" {
		t.Fatalf("unexpected first device: %+v", d)
	}
	if d := devices[1]; d.ID != "XYZ999" || d.State != PendingAuthorization || d.Connection != Wired {
		t.Fatalf("unexpected second device: %+v", d)
	}
	for _, c := range r.calls {
		if strings.HasPrefix(c, "disconnect") {
			t.Fatalf("no disconnect expected, got call %q", c)
		}
	}
}

func TestListDevicesDropsStaleWirelessOnce(t *testing.T) {
	r := newFakeRunner()
	r.responses["devices -l"] = "List of devices attached\n" +
		"10.0.0.5:5555  offline product:x model:Galaxy transport_id:9\n" +
		"ABC123         device usb:1-1 model:Pixel_7\n"
	r.responses["disconnect 10.0.0.5:5555"] = "disconnected 10.0.0.5:5555\n"
	pool := workerpool.New(1, 8)
	b := newTestBridge(r, pool, nil)

	devices := b.ListDevices(context.Background())
	drain(t, pool)

	if len(devices) != 1 || devices[0].ID != "ABC123" {
		t.Fatalf("expected only ABC123, got %+v", devices)
	}
	if n := r.count("disconnect 10.0.0.5:5555"); n != 1 {
		t.Fatalf("disconnect issued %d times, want 1", n)
	}
}

// rejectingPool refuses every task, like a pool whose queue is full.
type rejectingPool struct {
	mu       sync.Mutex
	rejected []string
}

func (p *rejectingPool) Submit(name string, task workerpool.Task) bool {
	p.mu.Lock()
	p.rejected = append(p.rejected, name)
	p.mu.Unlock()
	return false
}

func TestListDevicesDropsStaleWhenQueueFull(t *testing.T) {
	r := newFakeRunner()
	r.responses["devices -l"] = "List of devices attached\n10.0.0.5:5555  offline transport_id:9\n"
	r.responses["disconnect 10.0.0.5:5555"] = "disconnected 10.0.0.5:5555\n"
	pool := &rejectingPool{}
	b := New(Config{
		Path:       func() string { return "/opt/scrcpy/adb" },
		Runner:     r,
		Background: pool,
	})

	if devices := b.ListDevices(context.Background()); len(devices) != 0 {
		t.Fatalf("expected no devices, got %+v", devices)
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.count("disconnect 10.0.0.5:5555") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stale device was never disconnected after the queue rejected the task")
		}
		time.Sleep(5 * time.Millisecond)
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if len(pool.rejected) != 1 {
		t.Fatalf("submitted %d tasks, want 1", len(pool.rejected))
	}
}

func TestListDevicesAbsorbsFailures(t *testing.T) {
	r := newFakeRunner()
	r.failures["devices -l"] = errors.New("exit 1: cannot connect to daemon")
	hm := health.NewMonitor()
	b := newTestBridge(r, nil, hm)

	devices := b.ListDevices(context.Background())
	if devices == nil || len(devices) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", devices)
	}
	if c, _ := hm.Get(health.ComponentADB); c.Status != health.Degraded {
		t.Fatalf("adb health = %s, want degraded", c.Status)
	}
}

func TestListDevicesNotConfigured(t *testing.T) {
	hm := health.NewMonitor()
	b := New(Config{Health: hm})

	if devices := b.ListDevices(context.Background()); len(devices) != 0 {
		t.Fatalf("expected no devices, got %+v", devices)
	}
	if b.Configured() {
		t.Fatal("bridge without path should not be configured")
	}
	if c, _ := hm.Get(health.ComponentADB); c.Status != health.Unhealthy {
		t.Fatalf("adb health = %s, want unhealthy", c.Status)
	}
}

func TestListDevicesTimeout(t *testing.T) {
	r := newFakeRunner()
	r.block = true
	b := New(Config{
		Path:           func() string { return "adb" },
		Runner:         r,
		CommandTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	if devices := b.ListDevices(context.Background()); len(devices) != 0 {
		t.Fatalf("expected empty result on timeout, got %+v", devices)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout not honoured, took %s", elapsed)
	}
}

func TestDeviceIP(t *testing.T) {
	r := newFakeRunner()
	r.responses["-s ABC123 shell ip route"] = "192.168.1.0/24 dev wlan0 proto kernel scope link src 192.168.1.42\n"
	b := newTestBridge(r, nil, nil)

	ip, ok := b.DeviceIP(context.Background(), "ABC123")
	if !ok || ip != "192.168.1.42" {
		t.Fatalf("DeviceIP = %q, %v", ip, ok)
	}

	if _, ok := b.DeviceIP(context.Background(), "OTHER"); ok {
		t.Fatal("expected failure for unanswered route query")
	}
}

func TestConnectWifi(t *testing.T) {
	r := newFakeRunner()
	r.responses["-s ABC123 tcpip 5555"] = "restarting in TCP mode port: 5555\n"
	r.responses["-s ABC123 shell ip route"] = "10.0.0.0/24 dev wlan0 src 10.0.0.7\n"
	r.responses["connect 10.0.0.7:5555"] = "connected to 10.0.0.7:5555\n"
	b := newTestBridge(r, nil, nil)

	res := b.ConnectWifi(context.Background(), "ABC123")
	if !res.Success || res.Message != "Connected to 10.0.0.7:5555" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestConnectWifiRefused(t *testing.T) {
	r := newFakeRunner()
	r.responses["-s ABC123 tcpip 5555"] = ""
	r.responses["-s ABC123 shell ip route"] = "src 10.0.0.7"
	r.responses["connect 10.0.0.7:5555"] = "cannot connect to 10.0.0.7:5555: Connection refused\n"
	b := newTestBridge(r, nil, nil)

	res := b.ConnectWifi(context.Background(), "ABC123")
	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if !strings.Contains(res.Message, "Connection refused") {
		t.Fatalf("expected adb message, got %q", res.Message)
	}
}

func TestDisconnect(t *testing.T) {
	r := newFakeRunner()
	r.responses["disconnect 10.0.0.7:5555"] = "disconnected\n"
	b := newTestBridge(r, nil, nil)

	if res := b.Disconnect(context.Background(), "ABC123"); res.Success {
		t.Fatal("wired device disconnect should fail")
	}
	if res := b.Disconnect(context.Background(), "10.0.0.7:5555"); !res.Success {
		t.Fatalf("wireless disconnect failed: %+v", res)
	}
}
