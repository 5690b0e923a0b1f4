// Fairbuds controls the equalizer of Fairphone Fairbuds over Bluetooth LE.
//
// It talks the vendor's QXW protocol either directly through a local
// adapter or through a fairbuds-bridge running on a machine next to the
// earbuds.
//
// Usage:
//
//	fairbuds [command] [flags]
//
// See 'fairbuds --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/fairbuds/internal/config"
	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	address       string
	transportName string
	bridgeURL     string
	configPath    string
	logLevel      string
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fairbuds",
	Short: "Fairbuds equalizer control",
	Long: `Control the equalizer of Fairphone Fairbuds over Bluetooth LE.

Select one of the built-in presets, write a custom 8-band EQ, load AutoEQ
parametric files, or watch battery levels. Commands connect, send and
disconnect; the earbuds keep the last EQ written.

Settings come from the config file (see 'fairbuds config init'), FAIRBUDS_*
environment variables and the flags below, in increasing priority.`,
	Version:           version.Get().Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "Earbuds Bluetooth address (empty = first device named Fairbuds)")
	rootCmd.PersistentFlags().StringVarP(&transportName, "transport", "t", "", "Link to the earbuds: ble or bridge")
	rootCmd.PersistentFlags().StringVar(&bridgeURL, "bridge", "", "Bridge URL, e.g. ws://pi.local:8765/qxw (empty = discover)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("address") {
		loaded.Device.Address = address
	}
	if flags.Changed("transport") {
		loaded.Device.Transport = transportName
	}
	if flags.Changed("bridge") {
		loaded.Device.BridgeURL = bridgeURL
		if !flags.Changed("transport") {
			loaded.Device.Transport = config.TransportBridge
		}
	}
	if flags.Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	file := loaded.Logging.File
	if err := logging.InitializeWithFile(loaded.Logging.Level, logging.FileConfig{
		Path:       file.Filename,
		MaxSizeMB:  file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAgeDays: file.MaxAgeDays,
		Compress:   file.Compress,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg = loaded
	return nil
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fairbuds %s\n", version.Full())
	},
}
