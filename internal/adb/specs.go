package adb

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

// Fallbacks used when a property query fails or returns nothing usable.
const (
	defaultScreenWidth  = 1080
	defaultScreenHeight = 1920
	defaultDensity      = 420
	defaultSDK          = 30
	unknownValue        = "Unknown"
)

var (
	wmSizeRegex    = regexp.MustCompile(`Physical size:\s*(\d+)x(\d+)`)
	wmDensityRegex = regexp.MustCompile(`Physical density:\s*(\d+)`)
)

// Specs describes a device's display and software level.
type Specs struct {
	ScreenWidth    int    `json:"screenWidth"`
	ScreenHeight   int    `json:"screenHeight"`
	Density        int    `json:"density"`
	Model          string `json:"model"`
	AndroidVersion string `json:"androidVersion"`
	SDKVersion     int    `json:"sdkVersion"`
}

// Suggested is a quality profile derived from Specs.
type Suggested struct {
	MaxResolution int    `json:"maxResolution"`
	Bitrate       int    `json:"bitrate"`
	FPS           int    `json:"fps"`
	VideoCodec    string `json:"videoCodec"`
	AudioBitrate  int    `json:"audioBitrate"`
}

// Specs queries the device's screen and build properties. Each query falls
// back to its own default; ok is false only when adb is not configured.
func (b *Bridge) Specs(ctx context.Context, id string) (Specs, bool) {
	if !b.Configured() {
		return Specs{}, false
	}

	s := Specs{
		ScreenWidth:    defaultScreenWidth,
		ScreenHeight:   defaultScreenHeight,
		Density:        defaultDensity,
		Model:          unknownValue,
		AndroidVersion: unknownValue,
		SDKVersion:     defaultSDK,
	}

	if out, ok := b.query(ctx, id, "wm", "size"); ok {
		if w, h, ok := parseWmSize(out); ok {
			s.ScreenWidth, s.ScreenHeight = w, h
		}
	}
	if out, ok := b.query(ctx, id, "wm", "density"); ok {
		if m := wmDensityRegex.FindStringSubmatch(out); m != nil {
			s.Density, _ = strconv.Atoi(m[1])
		}
	}
	if out, ok := b.getprop(ctx, id, "ro.product.model"); ok {
		s.Model = out
	}
	if out, ok := b.getprop(ctx, id, "ro.build.version.release"); ok {
		s.AndroidVersion = out
	}
	if out, ok := b.getprop(ctx, id, "ro.build.version.sdk"); ok {
		if n, err := strconv.Atoi(out); err == nil && n > 0 {
			s.SDKVersion = n
		}
	}
	return s, true
}

func (b *Bridge) getprop(ctx context.Context, id, name string) (string, bool) {
	out, ok := b.query(ctx, id, "getprop", name)
	out = strings.TrimSpace(out)
	return out, ok && out != ""
}

func (b *Bridge) query(ctx context.Context, id string, args ...string) (string, bool) {
	out, err := b.shell(ctx, id, args...)
	if err != nil {
		log.Debug("property query failed", logging.KeyDeviceID, id, "query", strings.Join(args, " "), logging.KeyError, err)
		return "", false
	}
	return out, true
}

func parseWmSize(out string) (int, int, bool) {
	m := wmSizeRegex.FindStringSubmatch(out)
	if m == nil {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(m[1])
	h, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}

// SuggestQuality picks a mirroring profile that fits the device's panel.
func SuggestQuality(s Specs) Suggested {
	longest := max(s.ScreenWidth, s.ScreenHeight)

	sug := Suggested{AudioBitrate: 128, VideoCodec: "h264"}
	switch {
	case longest >= 2560:
		sug.MaxResolution, sug.Bitrate, sug.FPS = 1920, 16, 60
	case longest >= 1920:
		sug.MaxResolution, sug.Bitrate, sug.FPS = 1920, 12, 60
	case longest >= 1280:
		sug.MaxResolution, sug.Bitrate, sug.FPS = longest, 8, 60
	default:
		sug.MaxResolution, sug.Bitrate, sug.FPS = longest, 4, 30
	}

	// HEVC encoders are reliable from Android 7 (SDK 24).
	if s.SDKVersion >= 24 {
		sug.VideoCodec = "h265"
	}
	return sug
}
