package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/api"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/config"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/health"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/journal"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/logging"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/mirror"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/monitor"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/policy"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/workerpool"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the panel: device monitor, auto-reconnect and the local API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPanel(cmd.Context())
	},
}

func runPanel(parent context.Context) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting scrcpy-panel", "version", version, "listen", cfg.ListenAddr)

	hm := health.NewMonitor()
	pool := workerpool.New(2, 32)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		pool.Shutdown(drainCtx)
	}()
	bus := events.NewBus()

	jr, err := journal.Open(cfg.JournalPath, cfg.JournalMaxSizeMB, cfg.JournalMaxBackups)
	if err != nil {
		log.Warn("session journal disabled", logging.KeyError, err)
	} else {
		defer func() {
			log.Info("session journal closed", "dropped", jr.DroppedCount())
			jr.Close()
		}()
		detach := jr.Attach(bus)
		defer detach()
	}

	bridge := adb.New(adb.Config{
		Path:       func() string { return current.Load().AdbPath() },
		Background: pool,
		Health:     hm,
	})
	ctrl := mirror.New(mirror.Config{
		Path:   func() string { return current.Load().ScrcpyPath() },
		Events: bus,
		Health: hm,
	})
	defer ctrl.Close()

	book, err := loadPresets(cfg)
	if err != nil {
		log.Warn("using built-in presets only", logging.KeyError, err)
		book = mirror.NewPresetBook()
	}

	engine := policy.New(policy.Config{
		Controller: ctrl,
		Events:     bus,
		Settings: func() policy.Settings {
			c := current.Load()
			return policy.Settings{
				AutoConnect:    c.AutoConnect,
				AutoReconnect:  c.AutoReconnect,
				DefaultOptions: c.DefaultOptions,
			}
		},
		SettleDelay: cfg.ReconnectDelay(),
	})
	defer engine.Close()

	mon := monitor.New(monitor.Config{
		Lister:   bridge,
		Events:   bus,
		Health:   hm,
		Interval: cfg.PollInterval(),
	})

	srv := api.New(api.Config{
		Inventory: bridge,
		Sessions:  ctrl,
		Monitor:   mon,
		Policy:    engine,
		Events:    bus,
		Health:    hm,
		Presets:   book,
		Journal:   jr,
		Defaults:  func() mirror.Options { return current.Load().DefaultOptions },
	})
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !cfg.Configured() {
		log.Warn("scrcpy folder not configured; run 'scrcpy-panel configure <folder>'")
		hm.Update(health.ComponentScrcpy, health.Unhealthy, "scrcpy path not configured")
	}

	stopWatch, err := config.Watch(cfgFile, func(next *config.Config) {
		prev := current.Swap(next)
		applyReload(prev, next, book)
	})
	if err != nil {
		log.Debug("config hot reload disabled", logging.KeyError, err)
	} else {
		defer stopWatch()
	}

	bridge.StartServer(ctx)
	mon.Start()
	defer mon.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// applyReload reacts to settings that need more than a pointer swap.
func applyReload(prev, next *config.Config, book *mirror.PresetBook) {
	if prev.LogLevel != next.LogLevel || prev.LogFormat != next.LogFormat {
		logging.Init(next.LogFormat, next.LogLevel, logOutput)
	}
	if next.PresetsFile != "" && next.PresetsFile != prev.PresetsFile {
		if n, err := book.LoadFile(next.PresetsFile); err != nil {
			log.Warn("failed to reload presets", "file", next.PresetsFile, logging.KeyError, err)
		} else {
			log.Info("presets reloaded", "count", n)
		}
	}
	if prev.ScrcpyDir != next.ScrcpyDir {
		log.Info("scrcpy folder changed", "dir", next.ScrcpyDir)
	}
	if prev.PollIntervalMs != next.PollIntervalMs || prev.ReconnectDelayMs != next.ReconnectDelayMs ||
		prev.ListenAddr != next.ListenAddr || prev.JournalPath != next.JournalPath {
		log.Info("some config changes take effect after restart")
	}
}
