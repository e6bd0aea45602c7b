package mirror

import (
	"cmp"
	"strconv"
	"strings"
)

// BuildArgs maps opts to the scrcpy command line for deviceID. It has no
// side effects; equal inputs always produce the same slice in the same
// order, which is what the command preview relies on.
func BuildArgs(deviceID string, opts Options) []string {
	args := []string{"-s", deviceID}

	if !opts.VideoEnabled || opts.AudioOnly {
		args = append(args, "--no-video")
	} else {
		if !opts.UseMaxResolution {
			args = append(args, "--max-size", strconv.Itoa(opts.MaxResolution))
		}
		args = append(args,
			"--video-bit-rate", strconv.Itoa(opts.Bitrate)+"M",
			"--max-fps", strconv.Itoa(opts.FPS),
			"--video-codec", string(cmp.Or(opts.VideoCodec, CodecH264)),
		)
		if d := cmp.Or(opts.RenderDriver, RenderAuto); d != RenderAuto {
			args = append(args, "--render-driver", string(d))
		}
		if opts.Borderless {
			args = append(args, "--window-borderless")
		}
		if opts.Fullscreen {
			args = append(args, "--fullscreen")
		}
	}

	if !opts.AudioEnabled {
		args = append(args, "--no-audio")
	} else {
		args = append(args,
			"--audio-codec", string(cmp.Or(opts.AudioCodec, AudioOpus)),
			"--audio-bit-rate", strconv.Itoa(opts.AudioBitrate)+"K",
		)
	}

	if m := cmp.Or(opts.KeyboardMode, InputDefault); m != InputDefault {
		args = append(args, "--keyboard="+string(m))
	}
	if m := cmp.Or(opts.MouseMode, InputDefault); m != InputDefault {
		args = append(args, "--mouse="+string(m))
	}

	if opts.NoControl {
		args = append(args, "--no-control")
	}
	if opts.TurnScreenOff {
		args = append(args, "--turn-screen-off")
	}
	// --stay-awake needs the control channel.
	if opts.StayAwake && !opts.NoControl {
		args = append(args, "--stay-awake")
	}
	if opts.AlwaysOnTop {
		args = append(args, "--always-on-top")
	}
	if opts.HideWindow {
		args = append(args, "--no-window")
	}
	return args
}

// CommandString renders the command a user could paste into a shell.
func CommandString(deviceID string, opts Options) string {
	return "scrcpy " + strings.Join(BuildArgs(deviceID, opts), " ")
}
