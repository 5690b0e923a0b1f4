package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/fairbuds/internal/discovery"
	"github.com/muurk/fairbuds/internal/ui"
)

var bridgeScanTimeout time.Duration

func init() {
	rootCmd.AddCommand(bridgesCmd)
	bridgesCmd.Flags().DurationVar(&bridgeScanTimeout, "timeout", discovery.DefaultScanTimeout, "How long to browse")
}

var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "Find fairbuds-bridge instances on the network",
	Long: `Browse mDNS for bridges advertising ` + discovery.ServiceType + `.

Use a listed URL with --bridge, or set device.bridgeURL in the config file.`,
	Example: `  fairbuds bridges
  fairbuds bridges --timeout 10s`,
	Args: cobra.NoArgs,
	RunE: runBridges,
}

func runBridges(cmd *cobra.Command, args []string) error {
	fmt.Printf("Browsing for bridges (timeout: %s)...\n\n", bridgeScanTimeout)

	bridges, err := discovery.BrowseBridges(cmd.Context(), bridgeScanTimeout)
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}

	if len(bridges) == 0 {
		fmt.Println(ui.NewWarningResult("No bridges found").Render())
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Check 'fairbuds-bridge serve' is running with advertising enabled")
		fmt.Println("  - mDNS does not cross routers or most VPNs")
		fmt.Println("  - Try increasing --timeout")
		return nil
	}

	fmt.Printf("Found %d bridge(s):\n\n", len(bridges))
	for i, b := range bridges {
		fmt.Printf("%d. %s\n", i+1, b.Instance)
		fmt.Printf("   Host:    %s\n", b.Hostname)
		fmt.Printf("   Address: %s\n", b.String())
		fmt.Printf("   URL:     %s\n", b.URL())
		if v := b.GetMetadata(discovery.TXTVersion); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		fmt.Println()
	}

	fmt.Println("Use 'fairbuds --bridge <url> ...' to control earbuds through a bridge")
	return nil
}
