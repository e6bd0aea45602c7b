package adb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var routeSrcRegex = regexp.MustCompile(`src\s+(\d+\.\d+\.\d+\.\d+)`)

// ParseRouteIP extracts the first `src <ipv4>` address from `ip route` output.
func ParseRouteIP(output string) (string, bool) {
	m := routeSrcRegex.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DeviceIP returns the device's WLAN address as seen by its route table.
func (b *Bridge) DeviceIP(ctx context.Context, id string) (string, bool) {
	out, err := b.shell(ctx, id, "ip", "route")
	if err != nil {
		log.Debug("route lookup failed", logging.KeyDeviceID, id, logging.KeyError, err)
		return "", false
	}
	return ParseRouteIP(out)
}

// ConnectWifi switches a wired device to adb-over-TCP and connects to it by
// its WLAN address.
func (b *Bridge) ConnectWifi(ctx context.Context, id string) Result {
	if !b.Configured() {
		return Result{Message: "ADB path not configured. Please select scrcpy folder in Settings."}
	}

	port := strconv.Itoa(DefaultTCPPort)
	if _, err := b.run(ctx, b.commandTimeout, "-s", id, "tcpip", port); err != nil {
		return Result{Message: err.Error()}
	}

	// adbd restarts in TCP mode on the device; give it a moment.
	select {
	case <-time.After(b.wifiSettle):
	case <-ctx.Done():
		return Result{Message: ctx.Err().Error()}
	}

	ip, ok := b.DeviceIP(ctx, id)
	if !ok {
		return Result{Message: "Could not determine device IP address"}
	}

	addr := ip + ":" + port
	out, err := b.run(ctx, b.commandTimeout, "connect", addr)
	if err != nil {
		return Result{Message: err.Error()}
	}
	// "already connected" contains "connected" as well.
	if strings.Contains(out, "connected") && !strings.Contains(out, "cannot") && !strings.Contains(out, "failed") {
		log.Info("wireless connection established", logging.KeyDeviceID, id, "addr", addr)
		return Result{Success: true, Message: fmt.Sprintf("Connected to %s", addr)}
	}
	return Result{Message: strings.TrimSpace(out)}
}

// Disconnect drops a wireless device. Wired devices cannot be disconnected.
func (b *Bridge) Disconnect(ctx context.Context, id string) Result {
	if connectionOf(id) != Wireless {
		return Result{Message: "Cannot disconnect USB device"}
	}
	if _, err := b.run(ctx, b.commandTimeout, "disconnect", id); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return Result{Message: "ADB path not configured"}
		}
		return Result{Message: err.Error()}
	}
	return Result{Success: true, Message: fmt.Sprintf("Disconnected from %s", id)}
}
