package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates problems that must stop startup from ones
// that were corrected in place.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether any fatal problem was found.
func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

// ValidateTiered checks c, clamping out-of-range numbers and resetting bad
// enum values to defaults. Those corrections are warnings; a listen
// address that cannot be parsed or default options scrcpy would reject are
// fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult
	d := Default()

	if c.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("listen_addr %q is not host:port: %w", c.ListenAddr, err))
		}
	}

	for _, err := range c.DefaultOptions.Validate() {
		r.Fatals = append(r.Fatals, fmt.Errorf("default_options: %w", err))
	}

	if c.ScrcpyDir != "" {
		if info, err := os.Stat(c.ScrcpyDir); err != nil || !info.IsDir() {
			r.Warnings = append(r.Warnings, fmt.Errorf("scrcpy_path %q is not a directory", c.ScrcpyDir))
		}
	}

	c.PollIntervalMs = clamp(&r, "poll_interval_ms", c.PollIntervalMs, 250, 60000)
	c.ReconnectDelayMs = clamp(&r, "reconnect_delay_ms", c.ReconnectDelayMs, 0, 30000)
	c.JournalMaxSizeMB = clamp(&r, "journal_max_size_mb", c.JournalMaxSizeMB, 1, 500)
	c.JournalMaxBackups = clamp(&r, "journal_max_backups", c.JournalMaxBackups, 0, 20)

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), using %s", c.LogLevel, d.LogLevel))
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), using %s", c.LogFormat, d.LogFormat))
		c.LogFormat = d.LogFormat
	}

	for _, err := range r.Warnings {
		log.Warn("config validation", "error", err)
	}
	return r
}

func clamp(r *ValidationResult, key string, v, lo, hi int) int {
	switch {
	case v < lo:
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d is below minimum %d, clamping", key, v, lo))
		return lo
	case v > hi:
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d exceeds maximum %d, clamping", key, v, hi))
		return hi
	}
	return v
}
