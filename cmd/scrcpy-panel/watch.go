package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/config"
	"github.com/tishbian-meshach/scrcpy-control-panel/internal/events"
)

var watchAddr string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream events from a running panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := watchAddr
		if addr == "" {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			addr = cfg.ListenAddr
		}

		u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		conn, _, err := dialer.Dial(u.String(), nil)
		if err != nil {
			return fmt.Errorf("connect to %s: %w (is 'scrcpy-panel run' running?)", u.String(), err)
		}
		defer conn.Close()

		interrupted := make(chan struct{})
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
		go func() {
			<-sig
			close(interrupted)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-interrupted:
					return nil
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return fmt.Errorf("connection lost: %w", err)
			}
			var e events.Event
			if err := json.Unmarshal(data, &e); err != nil {
				continue
			}
			fmt.Println(formatEvent(e))
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "", "panel address (default is listen_addr from config)")
}

func formatEvent(e events.Event) string {
	ts := e.Time.Local().Format("15:04:05")
	switch e.Type {
	case events.DeviceConnected, events.DeviceDisconnected:
		name := e.DeviceID
		if e.Device != nil {
			name = e.Device.DisplayName() + " (" + e.Device.ID + ")"
		}
		style := okStyle
		if e.Type == events.DeviceDisconnected {
			style = warnStyle
		}
		return fmt.Sprintf("%s %s %s", ts, style.Render(string(e.Type)), name)
	case events.SessionChanged:
		state := warnStyle.Render("stopped")
		if e.Running {
			state = okStyle.Render("running")
		}
		return fmt.Sprintf("%s session %s %s %s", ts, state, e.DeviceID, e.Message)
	default:
		style := okStyle
		if !e.Success {
			style = errStyle
		}
		return fmt.Sprintf("%s %s %s %s", ts, style.Render(string(e.Type)), e.DeviceID, e.Message)
	}
}
