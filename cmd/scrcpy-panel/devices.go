package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/adb"
)

var jsonOutput bool

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List attached devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		bridge := newBridge(cfg)
		if !bridge.Configured() {
			return fmt.Errorf("adb not found; run 'scrcpy-panel configure <folder>' first")
		}
		devices := bridge.ListDevices(cmd.Context())
		if jsonOutput {
			return printJSON(devices)
		}
		if len(devices) == 0 {
			fmt.Println("No devices attached.")
			return nil
		}
		fmt.Println(deviceTable(devices))
		return nil
	},
}

var specsCmd = &cobra.Command{
	Use:   "specs <device-id>",
	Short: "Show a device's display specs and suggested quality",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		specs, ok := newBridge(cfg).Specs(cmd.Context(), args[0])
		if !ok {
			return fmt.Errorf("adb not found; run 'scrcpy-panel configure <folder>' first")
		}
		sug := adb.SuggestQuality(specs)
		if jsonOutput {
			return printJSON(map[string]any{"specs": specs, "suggested": sug})
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers("PROPERTY", "VALUE").
			Row("Model", specs.Model).
			Row("Android", fmt.Sprintf("%s (SDK %d)", specs.AndroidVersion, specs.SDKVersion)).
			Row("Screen", fmt.Sprintf("%dx%d", specs.ScreenWidth, specs.ScreenHeight)).
			Row("Density", strconv.Itoa(specs.Density)).
			Row("Suggested", fmt.Sprintf("%dpx, %dM, %d fps, %s", sug.MaxResolution, sug.Bitrate, sug.FPS, sug.VideoCodec))
		fmt.Println(t)
		return nil
	},
}

var wifiCmd = &cobra.Command{
	Use:   "wifi <device-id>",
	Short: "Switch a USB device to wireless adb and connect to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()
		return printResult(newBridge(cfg).ConnectWifi(cmd.Context(), args[0]))
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <ip:port>",
	Short: "Disconnect a wireless device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()
		return printResult(newBridge(cfg).Disconnect(cmd.Context(), args[0]))
	},
}

func init() {
	for _, c := range []*cobra.Command{devicesCmd, specsCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")
	}
}

func deviceTable(devices []adb.Device) *table.Table {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "MODEL", "CONNECTION", "STATE")
	for _, d := range devices {
		t.Row(d.ID, d.DisplayName(), string(d.Connection), string(d.State))
	}
	return t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 3 && row >= 0 && row < len(devices) {
			switch devices[row].State {
			case adb.Ready:
				return cellStyle.Inherit(okStyle)
			case adb.PendingAuthorization:
				return cellStyle.Inherit(warnStyle)
			default:
				return cellStyle.Inherit(errStyle)
			}
		}
		return cellStyle
	})
}

func printResult(res adb.Result) error {
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	fmt.Println(okStyle.Render(res.Message))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
