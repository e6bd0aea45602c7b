package main

import (
	"testing"

	"github.com/spf13/pflag"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
)

func parseOptions(t *testing.T, base mirror.Options, args ...string) (mirror.Options, error) {
	t.Helper()
	f := newOptionFlags()
	if err := f.fs.Parse(args); err != nil {
		return mirror.Options{}, err
	}
	f.withDefaults(base)
	return f.resolve(mirror.NewPresetBook())
}

func TestOptionFlagsKeepConfiguredDefaults(t *testing.T) {
	base := mirror.DefaultOptions()
	base.Bitrate = 20
	base.AlwaysOnTop = true

	got, err := parseOptions(t, base, "--max-fps", "30")
	if err != nil {
		t.Fatal(err)
	}
	if got.Bitrate != 20 || !got.AlwaysOnTop || got.FPS != 30 {
		t.Fatalf("unexpected options: %+v", got)
	}
}

func TestOptionFlagsPresetThenExplicit(t *testing.T) {
	got, err := parseOptions(t, mirror.DefaultOptions(), "--preset", "low-latency", "--bitrate", "6")
	if err != nil {
		t.Fatal(err)
	}
	if got.MaxResolution != 1280 || got.Bitrate != 6 {
		t.Fatalf("explicit flag should win over preset: %+v", got)
	}

	if _, err := parseOptions(t, mirror.DefaultOptions(), "--preset", "nope"); err == nil {
		t.Fatal("expected unknown preset error")
	}
}

func TestOptionFlagsInterlocks(t *testing.T) {
	got, err := parseOptions(t, mirror.DefaultOptions(), "--audio-only")
	if err != nil {
		t.Fatal(err)
	}
	if got.VideoEnabled || !got.NoControl || !got.HideWindow {
		t.Fatalf("audio-only interlock not applied: %+v", got)
	}

	got, err = parseOptions(t, mirror.DefaultOptions(), "-n")
	if err != nil {
		t.Fatal(err)
	}
	if !got.NoControl {
		t.Fatal("--no-control not applied")
	}
}

func TestEnumFlagRejectsUnknownValues(t *testing.T) {
	if _, err := parseOptions(t, mirror.DefaultOptions(), "--video-codec", "vp9"); err == nil {
		t.Fatal("expected parse error")
	}
	got, err := parseOptions(t, mirror.DefaultOptions(), "--video-codec", "H265", "--keyboard", "uhid")
	if err != nil {
		t.Fatal(err)
	}
	if got.VideoCodec != mirror.CodecH265 || got.KeyboardMode != mirror.InputUHID {
		t.Fatalf("unexpected options: %+v", got)
	}
}

func TestOptionFlagsSharedWithCommand(t *testing.T) {
	f := newOptionFlags()
	cmdFlags := pflag.NewFlagSet("cmd", pflag.ContinueOnError)
	cmdFlags.AddFlagSet(f.fs)
	if err := cmdFlags.Parse([]string{"--fullscreen"}); err != nil {
		t.Fatal(err)
	}

	base := mirror.DefaultOptions()
	base.Bitrate = 3
	f.withDefaults(base)
	got, err := f.resolve(mirror.NewPresetBook())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Fullscreen || got.Bitrate != 3 {
		t.Fatalf("flags parsed through the command were lost: %+v", got)
	}
}
