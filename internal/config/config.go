package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
)

var log = logging.L("config")

const (
	configName = "panel"
	envPrefix  = "SCRCPY_PANEL"
)

type Config struct {
	// ScrcpyDir is the folder holding the scrcpy and adb binaries.
	ScrcpyDir         string         `mapstructure:"scrcpy_path"`
	AutoConnect       bool           `mapstructure:"auto_connect"`
	AutoReconnect     bool           `mapstructure:"auto_reconnect"`
	DefaultOptions    mirror.Options `mapstructure:"default_options"`
	PresetsFile       string         `mapstructure:"presets_file"`
	ListenAddr        string         `mapstructure:"listen_addr"`
	PollIntervalMs    int            `mapstructure:"poll_interval_ms"`
	ReconnectDelayMs  int            `mapstructure:"reconnect_delay_ms"`
	LogLevel          string         `mapstructure:"log_level"`
	LogFormat         string         `mapstructure:"log_format"`
	LogFile           string         `mapstructure:"log_file"`
	JournalPath       string         `mapstructure:"journal_path"`
	JournalMaxSizeMB  int            `mapstructure:"journal_max_size_mb"`
	JournalMaxBackups int            `mapstructure:"journal_max_backups"`
}

func Default() *Config {
	return &Config{
		AutoReconnect:     true,
		DefaultOptions:    mirror.DefaultOptions(),
		ListenAddr:        "127.0.0.1:7420",
		PollIntervalMs:    2000,
		ReconnectDelayMs:  2000,
		LogLevel:          "info",
		LogFormat:         "text",
		JournalPath:       filepath.Join(Dir(), "journal.jsonl"),
		JournalMaxSizeMB:  10,
		JournalMaxBackups: 3,
	}
}

// PollInterval is the device monitor period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// ReconnectDelay is the settle delay before an auto-reconnect.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// Load reads cfgFile, or panel.yaml from the config directory and the
// working directory when cfgFile is empty. A missing file yields defaults.
// SCRCPY_PANEL_* environment variables override file values.
func Load(cfgFile string) (*Config, error) {
	v, err := read(cfgFile)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func newViper(cfgFile string) *viper.Viper {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// Env overrides only apply to keys viper already knows about.
	d := Default()
	v.SetDefault("scrcpy_path", d.ScrcpyDir)
	v.SetDefault("auto_connect", d.AutoConnect)
	v.SetDefault("auto_reconnect", d.AutoReconnect)
	v.SetDefault("presets_file", d.PresetsFile)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("poll_interval_ms", d.PollIntervalMs)
	v.SetDefault("reconnect_delay_ms", d.ReconnectDelayMs)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("journal_path", d.JournalPath)
	v.SetDefault("journal_max_size_mb", d.JournalMaxSizeMB)
	v.SetDefault("journal_max_backups", d.JournalMaxBackups)
	return v
}

func read(cfgFile string) (*viper.Viper, error) {
	v := newViper(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(cfgFile != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to the default location.
func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

// SaveTo writes cfg as YAML to cfgFile, or to panel.yaml in the config
// directory when cfgFile is empty.
func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("scrcpy_path", cfg.ScrcpyDir)
	v.Set("auto_connect", cfg.AutoConnect)
	v.Set("auto_reconnect", cfg.AutoReconnect)
	v.Set("default_options", optionsMap(cfg.DefaultOptions))
	v.Set("presets_file", cfg.PresetsFile)
	v.Set("listen_addr", cfg.ListenAddr)
	v.Set("poll_interval_ms", cfg.PollIntervalMs)
	v.Set("reconnect_delay_ms", cfg.ReconnectDelayMs)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_file", cfg.LogFile)
	v.Set("journal_path", cfg.JournalPath)
	v.Set("journal_max_size_mb", cfg.JournalMaxSizeMB)
	v.Set("journal_max_backups", cfg.JournalMaxBackups)

	cfgPath := cfgFile
	if cfgPath == "" {
		cfgPath = filepath.Join(Dir(), configName+".yaml")
	}
	if dir := filepath.Dir(cfgPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return err
	}
	return os.Chmod(cfgPath, 0o600)
}

func optionsMap(o mirror.Options) map[string]any {
	return map[string]any{
		"video_enabled":      o.VideoEnabled,
		"use_max_resolution": o.UseMaxResolution,
		"max_resolution":     o.MaxResolution,
		"bitrate":            o.Bitrate,
		"fps":                o.FPS,
		"video_codec":        string(o.VideoCodec),
		"render_driver":      string(o.RenderDriver),
		"borderless":         o.Borderless,
		"fullscreen":         o.Fullscreen,
		"audio_enabled":      o.AudioEnabled,
		"audio_only":         o.AudioOnly,
		"audio_codec":        string(o.AudioCodec),
		"audio_bitrate":      o.AudioBitrate,
		"start_minimized":    o.StartMinimized,
		"hide_window":        o.HideWindow,
		"no_control":         o.NoControl,
		"control_only":       o.ControlOnly,
		"keyboard_mode":      string(o.KeyboardMode),
		"mouse_mode":         string(o.MouseMode),
		"turn_screen_off":    o.TurnScreenOff,
		"stay_awake":         o.StayAwake,
		"always_on_top":      o.AlwaysOnTop,
	}
}

// Watch re-reads the config file whenever it changes on disk and passes
// the result to onChange. Changes that fail to decode are logged and
// skipped. The returned function stops further callbacks.
func Watch(cfgFile string, onChange func(*Config)) (stop func(), err error) {
	v, err := read(cfgFile)
	if err != nil {
		return nil, err
	}
	if v.ConfigFileUsed() == "" {
		return nil, errors.New("watch config: no config file found")
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}

	var stopped atomic.Bool
	v.OnConfigChange(func(e fsnotify.Event) {
		if stopped.Load() {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			log.Warn("ignoring config change", "file", e.Name, logging.KeyError, err)
			return
		}
		result := cfg.ValidateTiered()
		if result.HasFatals() {
			log.Warn("ignoring invalid config change", "file", e.Name, logging.KeyError, errors.Join(result.Fatals...))
			return
		}
		log.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
	return func() { stopped.Store(true) }, nil
}

// Dir returns the per-user configuration directory.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "scrcpy-panel")
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "scrcpy-panel")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "scrcpy-panel")
}

// ScrcpyPath resolves the scrcpy binary: the configured folder when set,
// otherwise $PATH. Empty means not found.
func (c *Config) ScrcpyPath() string {
	return resolveTool(c.ScrcpyDir, "scrcpy")
}

// AdbPath resolves the adb binary the same way as ScrcpyPath.
func (c *Config) AdbPath() string {
	return resolveTool(c.ScrcpyDir, "adb")
}

// Configured reports whether scrcpy can be found.
func (c *Config) Configured() bool {
	return c.ScrcpyPath() != ""
}

func resolveTool(dir, name string) string {
	exe := executableName(name)
	if dir != "" {
		p := filepath.Join(dir, exe)
		if isFile(p) {
			return p
		}
		return ""
	}
	if p, err := exec.LookPath(exe); err == nil {
		return p
	}
	return ""
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// FolderCheck is the outcome of ValidateToolFolder.
type FolderCheck struct {
	OK      bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ValidateToolFolder checks that dir holds both the scrcpy and adb
// binaries.
func ValidateToolFolder(dir string) FolderCheck {
	scrcpy, adb := executableName("scrcpy"), executableName("adb")
	hasScrcpy := isFile(filepath.Join(dir, scrcpy))
	hasAdb := isFile(filepath.Join(dir, adb))

	switch {
	case !hasScrcpy && !hasAdb:
		return FolderCheck{Message: fmt.Sprintf("Selected folder does not contain %s or %s", scrcpy, adb)}
	case !hasScrcpy:
		return FolderCheck{Message: fmt.Sprintf("Selected folder does not contain %s", scrcpy)}
	case !hasAdb:
		return FolderCheck{Message: fmt.Sprintf("Selected folder does not contain %s. Some features may not work.", adb)}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return FolderCheck{OK: true, Path: abs, Message: "Scrcpy folder configured successfully"}
}
