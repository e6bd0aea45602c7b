package mirror

import (
	"reflect"
	"slices"
	"strings"
	"testing"
)

func TestBuildArgsDefaults(t *testing.T) {
	got := BuildArgs("ABC123", DefaultOptions())
	want := []string{
		"-s", "ABC123",
		"--max-size", "1920",
		"--video-bit-rate", "8M",
		"--max-fps", "60",
		"--video-codec", "h264",
		"--audio-codec", "opus",
		"--audio-bit-rate", "128K",
		"--stay-awake",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildArgs =\n%v\nwant\n%v", got, want)
	}
}

func TestBuildArgsIsDeterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.RenderDriver = RenderOpenGL
	opts.KeyboardMode = InputUHID
	opts.MouseMode = InputAOA
	opts.AlwaysOnTop = true

	first := BuildArgs("10.0.0.5:5555", opts)
	for i := 0; i < 20; i++ {
		if got := BuildArgs("10.0.0.5:5555", opts); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}

func TestBuildArgsNativeResolutionOmitsMaxSize(t *testing.T) {
	opts := DefaultOptions()
	opts.UseMaxResolution = true
	if args := BuildArgs("ABC123", opts); slices.Contains(args, "--max-size") {
		t.Fatalf("unexpected --max-size in %v", args)
	}
}

func TestBuildArgsNoVideo(t *testing.T) {
	videoFlags := []string{"--max-size", "--video-bit-rate", "--max-fps", "--video-codec", "--render-driver", "--window-borderless", "--fullscreen"}

	base := DefaultOptions()
	base.RenderDriver = RenderSoftware
	base.Borderless = true
	base.Fullscreen = true

	disabled := base
	disabled.VideoEnabled = false
	audioOnly := base
	audioOnly.AudioOnly = true

	for name, opts := range map[string]Options{"video disabled": disabled, "audio only": audioOnly} {
		t.Run(name, func(t *testing.T) {
			args := BuildArgs("ABC123", opts)
			if !slices.Contains(args, "--no-video") {
				t.Fatalf("missing --no-video in %v", args)
			}
			for _, f := range videoFlags {
				if slices.Contains(args, f) {
					t.Fatalf("video flag %s present in %v", f, args)
				}
			}
		})
	}
}

func TestBuildArgsBehaviourFlags(t *testing.T) {
	opts := DefaultOptions()
	opts.AudioEnabled = false
	opts.RenderDriver = RenderDirect3D
	opts.Borderless = true
	opts.Fullscreen = true
	opts.KeyboardMode = InputUHID
	opts.MouseMode = InputDisabled
	opts.NoControl = true
	opts.TurnScreenOff = true
	opts.AlwaysOnTop = true
	opts.HideWindow = true

	got := BuildArgs("ABC123", opts)
	want := []string{
		"-s", "ABC123",
		"--max-size", "1920",
		"--video-bit-rate", "8M",
		"--max-fps", "60",
		"--video-codec", "h264",
		"--render-driver", "direct3d",
		"--window-borderless",
		"--fullscreen",
		"--no-audio",
		"--keyboard=uhid",
		"--mouse=disabled",
		"--no-control",
		"--turn-screen-off",
		"--always-on-top",
		"--no-window",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("BuildArgs =\n%v\nwant\n%v", got, want)
	}
}

func TestBuildArgsStayAwakeNeedsControl(t *testing.T) {
	opts := DefaultOptions()
	opts.NoControl = true
	if args := BuildArgs("ABC123", opts); slices.Contains(args, "--stay-awake") {
		t.Fatalf("--stay-awake without control: %v", args)
	}
}

func TestCommandString(t *testing.T) {
	opts := DefaultOptions()
	got := CommandString("ABC123", opts)
	if !strings.HasPrefix(got, "scrcpy -s ABC123 --max-size 1920") {
		t.Fatalf("CommandString = %q", got)
	}
	if got != "scrcpy "+strings.Join(BuildArgs("ABC123", opts), " ") {
		t.Fatalf("CommandString disagrees with BuildArgs: %q", got)
	}
}
