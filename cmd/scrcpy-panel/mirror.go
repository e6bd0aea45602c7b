package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/config"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
)

var (
	mirrorFlags  = newOptionFlags()
	previewFlags = newOptionFlags()
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror <device-id>",
	Short: "Run a single scrcpy session in the foreground",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		opts, err := sessionOptions(cfg, mirrorFlags)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus := events.NewBus()
		exited := make(chan struct{})
		var once sync.Once
		bus.SubscribeTypes(func(e events.Event) {
			if !e.Running {
				once.Do(func() { close(exited) })
			}
		}, events.SessionChanged)

		ctrl := mirror.New(mirror.Config{Path: cfg.ScrcpyPath, Events: bus})
		res := ctrl.Start(ctx, args[0], opts)
		if !res.Success {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Println(okStyle.Render(res.Message))
		fmt.Println(mirror.CommandString(args[0], opts))

		select {
		case <-ctx.Done():
			fmt.Println("\nStopping scrcpy...")
			ctrl.Stop(true)
		case <-exited:
			log.Info("scrcpy session ended", logging.KeyDeviceID, args[0])
		}
		ctrl.Close()
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <device-id>",
	Short: "Print the scrcpy command a session would run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		opts, err := sessionOptions(cfg, previewFlags)
		if err != nil {
			return err
		}
		fmt.Println(mirror.CommandString(args[0], opts))
		return nil
	},
}

func init() {
	mirrorCmd.Flags().AddFlagSet(mirrorFlags.fs)
	previewCmd.Flags().AddFlagSet(previewFlags.fs)
}

// sessionOptions layers the parsed flags over the configured defaults.
func sessionOptions(cfg *config.Config, f *optionFlags) (mirror.Options, error) {
	book, err := loadPresets(cfg)
	if err != nil {
		return mirror.Options{}, err
	}
	f.withDefaults(cfg.DefaultOptions)
	return f.resolve(book)
}

func loadPresets(cfg *config.Config) (*mirror.PresetBook, error) {
	book := mirror.NewPresetBook()
	if cfg.PresetsFile == "" {
		return book, nil
	}
	if _, err := book.LoadFile(cfg.PresetsFile); err != nil {
		return nil, fmt.Errorf("load presets: %w", err)
	}
	return book, nil
}

