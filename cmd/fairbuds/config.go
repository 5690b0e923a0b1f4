package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/fairbuds/internal/config"
	"github.com/muurk/fairbuds/internal/ui"
)

var forceInit bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite without asking")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
	// A broken config file must not stop 'config init' from replacing it.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long: `Write a config file with the defaults, overridden by the --address,
--transport, --bridge and --log-level flags.`,
	Example: `  fairbuds config init --address AA:BB:CC:DD:EE:FF
  fairbuds config init --transport bridge --bridge ws://pi.local:8765/qxw`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	out := config.Default()
	flags := cmd.Flags()
	if flags.Changed("address") {
		out.Device.Address = address
	}
	if flags.Changed("bridge") {
		out.Device.BridgeURL = bridgeURL
		out.Device.Transport = config.TransportBridge
	}
	if flags.Changed("transport") {
		out.Device.Transport = transportName
	}
	if flags.Changed("log-level") {
		out.Logging.Level = logLevel
	}
	if err := out.Validate(); err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		if !ui.Confirm(os.Stdin, os.Stdout, "Overwrite config", []string{
			path + " already exists",
			"Its settings are replaced by the defaults and the given flags",
		}) {
			return nil
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.Save(out, path); err != nil {
		return err
	}
	fmt.Println(ui.NewSuccessResult("Config written",
		ui.Param{Key: "File", Value: path},
		ui.Param{Key: "Transport", Value: out.Device.Transport},
	).Render())
	return nil
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
