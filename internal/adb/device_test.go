package adb

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseDevices(t *testing.T) {
	tests := []struct {
		name      string
		output    string
		wantIDs   []string
		wantStale []string
	}{
		{
			name:    "empty list",
			output:  "List of devices attached\n\n",
			wantIDs: nil,
		},
		{
			name: "daemon advisory lines",
			output: "* daemon not running; starting now at tcp:5037\n" +
				"* daemon started successfully\n" +
				"List of devices attached\n" +
				"R58M123 device usb:2-1 model:SM_G973F\n",
			wantIDs: []string{"R58M123"},
		},
		{
			name: "wireless ready is kept",
			output: "List of devices attached\n" +
				"192.168.0.10:5555 device product:p model:Pixel_8\n",
			wantIDs: []string{"192.168.0.10:5555"},
		},
		{
			name: "wireless offline is stale",
			output: "List of devices attached\n" +
				"192.168.0.10:5555 offline\n" +
				"192.168.0.11:5555 unauthorized\n",
			wantIDs:   []string{"192.168.0.11:5555"},
			wantStale: []string{"192.168.0.10:5555"},
		},
		{
			name: "wired offline is kept as unreachable",
			output: "List of devices attached\n" +
				"ABC123 offline\n" +
				"lonelytoken\n",
			wantIDs: []string{"ABC123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, stale := ParseDevices(tt.output)
			var ids []string
			for _, d := range devices {
				ids = append(ids, d.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if !reflect.DeepEqual(stale, tt.wantStale) {
				t.Fatalf("stale = %v, want %v", stale, tt.wantStale)
			}
		})
	}
}

func TestParseDevicesFields(t *testing.T) {
	devices, _ := ParseDevices("List of devices attached\n" +
		"ABC123 device usb:1-1 product:raven model:Pixel_6_Pro device:raven transport_id:3\n" +
		"DEF456 no permissions (user in plugdev group); see [http://developer.android.com/tools/device.html]\n")

	if len(devices) != 2 {
		t.Fatalf("len = %d, want 2", len(devices))
	}
	want := Device{
		ID:          "ABC123",
		Connection:  Wired,
		State:       Ready,
		Model:       "Pixel 6 Pro",
		Product:     "raven",
		TransportID: "3",
	}
	if devices[0] != want {
		t.Fatalf("device = %+v, want %+v", devices[0], want)
	}
	if devices[1].State != Unreachable {
		t.Fatalf("no-permissions device state = %s, want unreachable", devices[1].State)
	}
	if devices[1].DisplayName() != "DEF456" {
		t.Fatalf("DisplayName() = %q, want id fallback", devices[1].DisplayName())
	}
	if !devices[0].WiredReady() || devices[1].WiredReady() {
		t.Fatal("WiredReady mismatch")
	}
}

func TestParseRouteIP(t *testing.T) {
	ip, ok := ParseRouteIP("default via 10.0.0.1 dev wlan0\n10.0.0.0/24 dev wlan0 proto kernel scope link src 10.0.0.23 \n")
	if !ok || ip != "10.0.0.23" {
		t.Fatalf("ParseRouteIP = %q, %v", ip, ok)
	}
	if _, ok := ParseRouteIP("no route here"); ok {
		t.Fatal("expected no match")
	}
}

func TestSpecsFallbacks(t *testing.T) {
	r := newFakeRunner()
	r.responses["-s ABC123 shell wm size"] = "Physical size: 1440x3120\nOverride size: 1080x2340\n"
	r.failures["-s ABC123 shell wm density"] = errors.New("exit 1")
	r.responses["-s ABC123 shell getprop ro.product.model"] = "Pixel 7 Pro\n"
	r.responses["-s ABC123 shell getprop ro.build.version.release"] = "\n"
	r.responses["-s ABC123 shell getprop ro.build.version.sdk"] = "34\n"
	b := newTestBridge(r, nil, nil)

	s, ok := b.Specs(context.Background(), "ABC123")
	if !ok {
		t.Fatal("expected specs")
	}
	want := Specs{
		ScreenWidth:    1440,
		ScreenHeight:   3120,
		Density:        420,
		Model:          "Pixel 7 Pro",
		AndroidVersion: "Unknown",
		SDKVersion:     34,
	}
	if s != want {
		t.Fatalf("Specs = %+v, want %+v", s, want)
	}
}

func TestSpecsNotConfigured(t *testing.T) {
	if _, ok := New(Config{}).Specs(context.Background(), "ABC123"); ok {
		t.Fatal("expected ok=false without adb")
	}
}

func TestSuggestQuality(t *testing.T) {
	tests := []struct {
		specs Specs
		want  Suggested
	}{
		{Specs{ScreenWidth: 1440, ScreenHeight: 3120, SDKVersion: 34}, Suggested{1920, 16, 60, "h265", 128}},
		{Specs{ScreenWidth: 1080, ScreenHeight: 2400, SDKVersion: 23}, Suggested{1920, 12, 60, "h264", 128}},
		{Specs{ScreenWidth: 1080, ScreenHeight: 1920, SDKVersion: 30}, Suggested{1920, 12, 60, "h265", 128}},
		{Specs{ScreenWidth: 720, ScreenHeight: 1280, SDKVersion: 22}, Suggested{1280, 8, 60, "h264", 128}},
		{Specs{ScreenWidth: 480, ScreenHeight: 800, SDKVersion: 19}, Suggested{800, 4, 30, "h264", 128}},
	}
	for _, tt := range tests {
		if got := SuggestQuality(tt.specs); got != tt.want {
			t.Errorf("SuggestQuality(%+v) = %+v, want %+v", tt.specs, got, tt.want)
		}
	}
}
