package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tishbian-meshach/scrcpy-control-panel/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure <folder>",
	Short: "Point the panel at the folder holding scrcpy and adb",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		check := config.ValidateToolFolder(args[0])
		if !check.OK {
			return fmt.Errorf("%s", check.Message)
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			cfg = config.Default()
		}
		cfg.ScrcpyDir = check.Path
		if err := config.SaveTo(cfg, cfgFile); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println(okStyle.Render(check.Message))
		fmt.Printf("scrcpy: %s\nadb:    %s\n", cfg.ScrcpyPath(), cfg.AdbPath())
		return nil
	},
}
