package mirror

import (
	"fmt"
	"slices"
)

// VideoCodec selects the encoder scrcpy asks the device for.
type VideoCodec string

const (
	CodecH264 VideoCodec = "h264"
	CodecH265 VideoCodec = "h265"
)

// RenderDriver selects the SDL renderer backend.
type RenderDriver string

const (
	RenderAuto     RenderDriver = "auto"
	RenderDirect3D RenderDriver = "direct3d"
	RenderOpenGL   RenderDriver = "opengl"
	RenderSoftware RenderDriver = "software"
)

// AudioCodec selects the audio encoder.
type AudioCodec string

const (
	AudioOpus AudioCodec = "opus"
	AudioAAC  AudioCodec = "aac"
	AudioRaw  AudioCodec = "raw"
)

// InputMode is the keyboard or mouse injection method.
type InputMode string

const (
	InputDefault  InputMode = "default"
	InputUHID     InputMode = "uhid"
	InputAOA      InputMode = "aoa"
	InputDisabled InputMode = "disabled"
)

// Options are the mirroring parameters for one session. The value is
// copied into the controller on Start and never mutated afterwards.
type Options struct {
	VideoEnabled     bool         `mapstructure:"video_enabled" yaml:"video_enabled" json:"videoEnabled"`
	UseMaxResolution bool         `mapstructure:"use_max_resolution" yaml:"use_max_resolution" json:"useMaxResolution"`
	MaxResolution    int          `mapstructure:"max_resolution" yaml:"max_resolution" json:"maxResolution"`
	Bitrate          int          `mapstructure:"bitrate" yaml:"bitrate" json:"bitrate"`
	FPS              int          `mapstructure:"fps" yaml:"fps" json:"fps"`
	VideoCodec       VideoCodec   `mapstructure:"video_codec" yaml:"video_codec" json:"videoCodec"`
	RenderDriver     RenderDriver `mapstructure:"render_driver" yaml:"render_driver" json:"renderDriver"`
	Borderless       bool         `mapstructure:"borderless" yaml:"borderless" json:"borderless"`
	Fullscreen       bool         `mapstructure:"fullscreen" yaml:"fullscreen" json:"fullscreen"`

	AudioEnabled bool       `mapstructure:"audio_enabled" yaml:"audio_enabled" json:"audioEnabled"`
	AudioOnly    bool       `mapstructure:"audio_only" yaml:"audio_only" json:"audioOnly"`
	AudioCodec   AudioCodec `mapstructure:"audio_codec" yaml:"audio_codec" json:"audioCodec"`
	AudioBitrate int        `mapstructure:"audio_bitrate" yaml:"audio_bitrate" json:"audioBitrate"`

	StartMinimized bool      `mapstructure:"start_minimized" yaml:"start_minimized" json:"startMinimized"`
	HideWindow     bool      `mapstructure:"hide_window" yaml:"hide_window" json:"hideWindow"`
	NoControl      bool      `mapstructure:"no_control" yaml:"no_control" json:"noControl"`
	ControlOnly    bool      `mapstructure:"control_only" yaml:"control_only" json:"controlOnly"`
	KeyboardMode   InputMode `mapstructure:"keyboard_mode" yaml:"keyboard_mode" json:"keyboardMode"`
	MouseMode      InputMode `mapstructure:"mouse_mode" yaml:"mouse_mode" json:"mouseMode"`
	TurnScreenOff  bool      `mapstructure:"turn_screen_off" yaml:"turn_screen_off" json:"turnScreenOff"`
	StayAwake      bool      `mapstructure:"stay_awake" yaml:"stay_awake" json:"stayAwake"`
	AlwaysOnTop    bool      `mapstructure:"always_on_top" yaml:"always_on_top" json:"alwaysOnTop"`
}

// DefaultOptions returns the out-of-the-box session settings.
func DefaultOptions() Options {
	return Options{
		VideoEnabled:  true,
		MaxResolution: 1920,
		Bitrate:       8,
		FPS:           60,
		VideoCodec:    CodecH264,
		RenderDriver:  RenderAuto,
		AudioEnabled:  true,
		AudioCodec:    AudioOpus,
		AudioBitrate:  128,
		KeyboardMode:  InputDefault,
		MouseMode:     InputDefault,
		StayAwake:     true,
	}
}

// WithVideo toggles video. Enabling video leaves audio-only mode.
func (o Options) WithVideo(on bool) Options {
	o.VideoEnabled = on
	if on {
		o.AudioOnly = false
	}
	return o
}

// WithAudioOnly toggles audio-only mode. Enabling it turns video off, hides
// the window, enables audio and stops forwarding input.
func (o Options) WithAudioOnly(on bool) Options {
	o.AudioOnly = on
	if on {
		o.VideoEnabled = false
		o.HideWindow = true
		o.AudioEnabled = true
		o.NoControl = true
	}
	return o
}

// WithControl toggles input forwarding. Enabling control shows the window.
func (o Options) WithControl(on bool) Options {
	o.NoControl = !on
	if on {
		o.HideWindow = false
	}
	return o
}

// Validate reports values scrcpy would reject. Zero-valued enums are
// accepted and treated as their defaults by BuildArgs.
func (o Options) Validate() []error {
	var errs []error
	if !o.UseMaxResolution && o.VideoEnabled && o.MaxResolution < 0 {
		errs = append(errs, fmt.Errorf("max_resolution must not be negative, got %d", o.MaxResolution))
	}
	if o.Bitrate < 0 {
		errs = append(errs, fmt.Errorf("bitrate must not be negative, got %d", o.Bitrate))
	}
	if o.FPS < 0 {
		errs = append(errs, fmt.Errorf("fps must not be negative, got %d", o.FPS))
	}
	if o.AudioBitrate < 0 {
		errs = append(errs, fmt.Errorf("audio_bitrate must not be negative, got %d", o.AudioBitrate))
	}
	if o.VideoCodec != "" && !slices.Contains([]VideoCodec{CodecH264, CodecH265}, o.VideoCodec) {
		errs = append(errs, fmt.Errorf("unknown video_codec %q", o.VideoCodec))
	}
	if o.RenderDriver != "" && !slices.Contains([]RenderDriver{RenderAuto, RenderDirect3D, RenderOpenGL, RenderSoftware}, o.RenderDriver) {
		errs = append(errs, fmt.Errorf("unknown render_driver %q", o.RenderDriver))
	}
	if o.AudioCodec != "" && !slices.Contains([]AudioCodec{AudioOpus, AudioAAC, AudioRaw}, o.AudioCodec) {
		errs = append(errs, fmt.Errorf("unknown audio_codec %q", o.AudioCodec))
	}
	modes := []InputMode{InputDefault, InputUHID, InputAOA, InputDisabled}
	if o.KeyboardMode != "" && !slices.Contains(modes, o.KeyboardMode) {
		errs = append(errs, fmt.Errorf("unknown keyboard_mode %q", o.KeyboardMode))
	}
	if o.MouseMode != "" && !slices.Contains(modes, o.MouseMode) {
		errs = append(errs, fmt.Errorf("unknown mouse_mode %q", o.MouseMode))
	}
	return errs
}
