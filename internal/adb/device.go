package adb

import (
	"strings"
)

// ConnectionKind tells how adb reaches a device.
type ConnectionKind string

const (
	Wired    ConnectionKind = "wired"
	Wireless ConnectionKind = "wireless"
)

// DeviceState is the authorization/reachability state reported by adb.
type DeviceState string

const (
	Ready                DeviceState = "ready"
	Unreachable          DeviceState = "unreachable"
	PendingAuthorization DeviceState = "pending-authorization"
)

// Device is one row of `adb devices -l`. It is rebuilt on every read; only
// ID is stable across polls.
type Device struct {
	ID          string         `json:"id"`
	Connection  ConnectionKind `json:"connection"`
	State       DeviceState    `json:"state"`
	Model       string         `json:"model,omitempty"`
	Product     string         `json:"product,omitempty"`
	TransportID string         `json:"transportId,omitempty"`
}

// DisplayName returns the model when adb reported one, the id otherwise.
func (d Device) DisplayName() string {
	if d.Model != "" {
		return d.Model
	}
	return d.ID
}

// WiredReady reports whether the device is wired and authorized, the only
// kind the monitor tracks.
func (d Device) WiredReady() bool {
	return d.Connection == Wired && d.State == Ready
}

const headerPrefix = "List of devices"

// ParseDevices parses `adb devices -l` output. Wireless entries that adb can
// no longer reach are returned in stale instead of devices; the caller is
// expected to disconnect them.
func ParseDevices(output string) (devices []Device, stale []string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, headerPrefix) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		d := Device{
			ID:         fields[0],
			Connection: connectionOf(fields[0]),
			State:      stateOf(fields[1]),
		}

		// A stale wireless entry almost always means the device changed address.
		if d.Connection == Wireless && d.State == Unreachable {
			stale = append(stale, d.ID)
			continue
		}

		for _, f := range fields[2:] {
			key, val, ok := strings.Cut(f, ":")
			if !ok || val == "" {
				continue
			}
			switch key {
			case "model":
				d.Model = strings.ReplaceAll(val, "_", " ")
			case "product":
				d.Product = val
			case "transport_id":
				d.TransportID = val
			}
		}

		devices = append(devices, d)
	}
	return devices, stale
}

func connectionOf(id string) ConnectionKind {
	if strings.Contains(id, ":") {
		return Wireless
	}
	return Wired
}

func stateOf(keyword string) DeviceState {
	switch keyword {
	case "device":
		return Ready
	case "unauthorized":
		return PendingAuthorization
	default:
		return Unreachable
	}
}
