package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/config"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
)

var log = logging.L("main")

// logOutput is where logging.Init last pointed the logger.
var logOutput io.Writer = os.Stderr

var rootCmd = &cobra.Command{
	Use:   "scrcpy-panel",
	Short: "Control panel for scrcpy Android mirroring",
	Long: `scrcpy-panel - lists adb devices, runs one scrcpy session at a time and
reconnects it automatically when the device is plugged back in.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scrcpy-panel v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/scrcpy-panel/panel.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(specsCmd)
	rootCmd.AddCommand(wifiCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the config, then configures logging from
// it. Warnings are logged; fatals abort.
func loadConfig() (*config.Config, io.Closer, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	result := cfg.ValidateTiered()
	closer, err := initLogging(cfg)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range result.Warnings {
		log.Warn("config warning", logging.KeyError, w)
	}
	if result.HasFatals() {
		closer.Close()
		return nil, nil, fmt.Errorf("invalid config: %v", result.Fatals)
	}
	return cfg, closer, nil
}

// initLogging sends logs to stderr, and also to a rotating file when
// log_file is set.
func initLogging(cfg *config.Config) (io.Closer, error) {
	if cfg.LogFile == "" {
		logOutput = os.Stderr
		logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
		return nopCloser{}, nil
	}
	w, err := logging.NewRotatingWriter(cfg.LogFile, 10, 3)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logOutput = io.MultiWriter(os.Stderr, w)
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
	return w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newBridge builds a bridge for one-shot commands.
func newBridge(cfg *config.Config) *adb.Bridge {
	return adb.New(adb.Config{Path: cfg.AdbPath})
}
