package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
)

// enumValue is a pflag.Value restricted to a fixed set of strings.
type enumValue[T ~string] struct {
	target  *T
	allowed []T
}

func newEnumValue[T ~string](target *T, allowed ...T) *enumValue[T] {
	return &enumValue[T]{target: target, allowed: allowed}
}

func (e *enumValue[T]) String() string {
	if e.target == nil {
		return ""
	}
	return string(*e.target)
}

func (e *enumValue[T]) Set(s string) error {
	v := T(strings.ToLower(s))
	if !slices.Contains(e.allowed, v) {
		return fmt.Errorf("must be one of %s", e.Type())
	}
	*e.target = v
	return nil
}

func (e *enumValue[T]) Type() string {
	names := make([]string, len(e.allowed))
	for i, a := range e.allowed {
		names[i] = string(a)
	}
	return strings.Join(names, "|")
}

// optionFlags binds session options to a flag set. Values start from the
// configured defaults; apply resolves the interlocks for the flags the
// user actually set.
type optionFlags struct {
	opts      mirror.Options
	preset    string
	audioOnly bool
	noVideo   bool
	noControl bool
	fs        *pflag.FlagSet
}

func newOptionFlags() *optionFlags {
	f := &optionFlags{
		opts: mirror.DefaultOptions(),
		fs:   pflag.NewFlagSet("session", pflag.ContinueOnError),
	}
	o := &f.opts
	fs := f.fs

	fs.StringVar(&f.preset, "preset", "", "apply a named preset on top of the defaults")

	fs.BoolVar(&f.noVideo, "no-video", false, "disable video")
	fs.BoolVar(&o.UseMaxResolution, "native-resolution", o.UseMaxResolution, "mirror at the device's native resolution")
	fs.IntVarP(&o.MaxResolution, "max-size", "m", o.MaxResolution, "limit the longest side in pixels")
	fs.IntVarP(&o.Bitrate, "bitrate", "b", o.Bitrate, "video bitrate in Mbps")
	fs.IntVar(&o.FPS, "max-fps", o.FPS, "frame rate cap")
	fs.Var(newEnumValue(&o.VideoCodec, mirror.CodecH264, mirror.CodecH265), "video-codec", "video codec")
	fs.Var(newEnumValue(&o.RenderDriver, mirror.RenderAuto, mirror.RenderDirect3D, mirror.RenderOpenGL, mirror.RenderSoftware), "render-driver", "render driver")
	fs.BoolVar(&o.Borderless, "borderless", o.Borderless, "borderless window")
	fs.BoolVarP(&o.Fullscreen, "fullscreen", "f", o.Fullscreen, "start fullscreen")

	fs.BoolVar(&o.AudioEnabled, "audio", o.AudioEnabled, "forward device audio")
	fs.BoolVar(&f.audioOnly, "audio-only", false, "forward audio only; implies --no-video and --no-control")
	fs.Var(newEnumValue(&o.AudioCodec, mirror.AudioOpus, mirror.AudioAAC, mirror.AudioRaw), "audio-codec", "audio codec")
	fs.IntVar(&o.AudioBitrate, "audio-bitrate", o.AudioBitrate, "audio bitrate in Kbps")

	fs.BoolVar(&o.StartMinimized, "minimized", o.StartMinimized, "hide the scrcpy console window")
	fs.BoolVar(&o.HideWindow, "no-window", o.HideWindow, "run without a video window")
	fs.BoolVarP(&f.noControl, "no-control", "n", false, "disable input forwarding")
	inputModes := []mirror.InputMode{mirror.InputDefault, mirror.InputUHID, mirror.InputAOA, mirror.InputDisabled}
	fs.Var(newEnumValue(&o.KeyboardMode, inputModes...), "keyboard", "keyboard mode")
	fs.Var(newEnumValue(&o.MouseMode, inputModes...), "mouse", "mouse mode")
	fs.BoolVarP(&o.TurnScreenOff, "turn-screen-off", "S", o.TurnScreenOff, "turn the device screen off")
	fs.BoolVarP(&o.StayAwake, "stay-awake", "w", o.StayAwake, "keep the device awake while plugged in")
	fs.BoolVar(&o.AlwaysOnTop, "always-on-top", o.AlwaysOnTop, "keep the window above others")
	return f
}

// withDefaults replaces the starting values for flags the user did not
// set. Call after parsing.
func (f *optionFlags) withDefaults(base mirror.Options) {
	f.opts = f.overlay(base)
}

// overlay copies every flag the user set on top of base. Flags may be
// parsed through another FlagSet that shares them, so Changed is read
// from each flag rather than from f.fs's parse state.
func (f *optionFlags) overlay(base mirror.Options) mirror.Options {
	out := base
	f.fs.VisitAll(func(fl *pflag.Flag) {
		if fl.Changed {
			copyFlag(&out, f.opts, fl.Name)
		}
	})
	return out
}

// resolve returns the effective options: the preset, then the explicit
// flags with their interlocks.
func (f *optionFlags) resolve(book *mirror.PresetBook) (mirror.Options, error) {
	o := f.opts
	if f.preset != "" {
		var ok bool
		if o, ok = book.Apply(f.preset, o); !ok {
			return o, fmt.Errorf("unknown preset %q (available: %s)", f.preset, strings.Join(book.Names(), ", "))
		}
		// Explicit flags win over the preset.
		o = f.overlay(o)
	}
	if f.fs.Changed("no-video") {
		o = o.WithVideo(!f.noVideo)
	}
	if f.fs.Changed("no-control") {
		o = o.WithControl(!f.noControl)
	}
	if f.fs.Changed("audio-only") {
		o = o.WithAudioOnly(f.audioOnly)
	}
	if errs := o.Validate(); len(errs) > 0 {
		return o, fmt.Errorf("invalid options: %v", errs)
	}
	return o, nil
}

// copyFlag copies the option bound to the named flag from src into dst.
func copyFlag(dst *mirror.Options, src mirror.Options, name string) {
	switch name {
	case "native-resolution":
		dst.UseMaxResolution = src.UseMaxResolution
	case "max-size":
		dst.MaxResolution = src.MaxResolution
	case "bitrate":
		dst.Bitrate = src.Bitrate
	case "max-fps":
		dst.FPS = src.FPS
	case "video-codec":
		dst.VideoCodec = src.VideoCodec
	case "render-driver":
		dst.RenderDriver = src.RenderDriver
	case "borderless":
		dst.Borderless = src.Borderless
	case "fullscreen":
		dst.Fullscreen = src.Fullscreen
	case "audio":
		dst.AudioEnabled = src.AudioEnabled
	case "audio-codec":
		dst.AudioCodec = src.AudioCodec
	case "audio-bitrate":
		dst.AudioBitrate = src.AudioBitrate
	case "minimized":
		dst.StartMinimized = src.StartMinimized
	case "no-window":
		dst.HideWindow = src.HideWindow
	case "keyboard":
		dst.KeyboardMode = src.KeyboardMode
	case "mouse":
		dst.MouseMode = src.MouseMode
	case "turn-screen-off":
		dst.TurnScreenOff = src.TurnScreenOff
	case "stay-awake":
		dst.StayAwake = src.StayAwake
	case "always-on-top":
		dst.AlwaysOnTop = src.AlwaysOnTop
	}
}
