// Fairbuds-bridge relays QXW frames between websocket clients and a local
// Bluetooth LE adapter.
//
// Run it on a machine within Bluetooth range of the earbuds (a Raspberry Pi
// next to the desk works well) and point 'fairbuds --bridge' at it, or let
// the CLI find it over mDNS.
//
// Usage:
//
//	fairbuds-bridge serve [flags]
//
// See 'fairbuds-bridge serve --help' for available options.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/fairbuds/internal/bridge"
	"github.com/muurk/fairbuds/internal/config"
	"github.com/muurk/fairbuds/internal/discovery"
	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/transport/ble"
	"github.com/muurk/fairbuds/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fairbuds-bridge",
	Short: "Fairbuds BLE bridge",
	Long: `Relay QXW frames between one websocket client and the local Bluetooth
adapter, so the earbuds can be controlled from a machine without Bluetooth
or out of range.

Clients send JSON control messages to connect and disconnect the earbuds
and binary messages carrying raw QXW frames. Notifications from the earbuds
come back as binary messages.`,
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command flags
var (
	configPath string
	listen     string
	advertise  bool
	name       string
	captureDir string
	logLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge",
	Long: `Start the bridge and wait for a client.

Only one client holds the earbuds at a time; others are refused with HTTP
409 until it disconnects. Prometheus metrics are served on the same port.

To capture every relayed frame for protocol analysis, use --capture-dir
to name a directory where daily JSONL files are written.`,
	Example: `  # Serve on the default port and advertise over mDNS
  fairbuds-bridge serve

  # Custom port, no mDNS, debug logging
  fairbuds-bridge serve --listen :9000 --advertise=false --log-level debug

  # Capture frames for analysis
  fairbuds-bridge serve --capture-dir ./captures`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Config file (default: user config dir)")
	serveCmd.Flags().StringVar(&listen, "listen", "", "host:port to listen on (default from config, :8765)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", true, "Advertise the bridge over mDNS")
	serveCmd.Flags().StringVar(&name, "name", "", "mDNS instance name (default from config)")
	serveCmd.Flags().StringVar(&captureDir, "capture-dir", "", "Directory to write frame captures (disabled if not specified)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Bridge.Listen = listen
	}
	if flags.Changed("advertise") {
		cfg.Bridge.Advertise = advertise
	}
	if flags.Changed("name") {
		cfg.Bridge.Name = name
	}
	if flags.Changed("log-level") || cfg.Logging.Level == "" {
		cfg.Logging.Level = logLevel
	}

	// Validate capture directory if specified
	if captureDir != "" {
		info, err := os.Stat(captureDir)
		if os.IsNotExist(err) {
			return fmt.Errorf("capture directory does not exist: %s", captureDir)
		}
		if err != nil {
			return fmt.Errorf("cannot access capture directory: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("capture path is not a directory: %s", captureDir)
		}
	}

	file := cfg.Logging.File
	if err := logging.InitializeWithFile(cfg.Logging.Level, logging.FileConfig{
		Path:       file.Filename,
		MaxSizeMB:  file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAgeDays: file.MaxAgeDays,
		Compress:   file.Compress,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	link := ble.New()
	if cfg.Session.ScanTimeout > 0 {
		link.ScanTimeout = cfg.Session.ScanTimeout
	}

	bridgeConfig := &bridge.Config{
		Listen:     cfg.Bridge.Listen,
		CaptureDir: captureDir,
	}
	if cfg.Metrics.Enable {
		bridgeConfig.MetricsPath = cfg.Metrics.Path
	}
	srv := bridge.New(bridgeConfig, link, nil)

	addr, err := srv.Listen()
	if err != nil {
		return err
	}

	if cfg.Bridge.Advertise {
		port := 0
		if tcp, ok := addr.(*net.TCPAddr); ok {
			port = tcp.Port
		}
		ad, err := discovery.Advertise(cfg.Bridge.Name, port, map[string]string{
			discovery.TXTVersion: version.Get().Version,
		})
		if err != nil {
			// Serving still works with an explicit --bridge URL.
			logging.Warn("mDNS advertising failed", zap.Error(err))
		}
		defer ad.Shutdown()
	}

	fmt.Printf("fairbuds-bridge listening on ws://%s%s\n", addr, bridge.Path)
	return srv.Start(cmd.Context())
}

var maxFailures int

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file-or-directory>",
	Short: "Summarize frame captures",
	Long: `Read capture files written by 'serve --capture-dir' and report how many
frames parsed, which commands were sent, which events the earbuds answered
with, and every frame that failed to parse.`,
	Example: `  fairbuds-bridge analyze ./captures
  fairbuds-bridge analyze ./captures/capture-20260314.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := bridge.CaptureFiles(args[0])
		if err != nil {
			return err
		}

		stats := bridge.NewCaptureStats()
		for _, f := range files {
			if err := stats.AnalyzeFile(f); err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
		}
		stats.Report(os.Stdout, maxFailures)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&maxFailures, "max-failures", 10, "Parse failures to list")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fairbuds-bridge %s\n", version.Full())
	},
}
