package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/fairbuds/internal/eq"
	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/ui"
)

// Largest real Q the single Q byte can carry.
const maxQ = 25.5

var gainsQ float64

func init() {
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(gainCmd)
	rootCmd.AddCommand(qCmd)
	rootCmd.AddCommand(gainsCmd)
	rootCmd.AddCommand(allQCmd)
	rootCmd.AddCommand(clearCmd)

	gainsCmd.Flags().Float64Var(&gainsQ, "q", 0, "Also set every band's Q (e.g. 0.7)")
}

var presetCmd = &cobra.Command{
	Use:   "preset <" + strings.Join(protocol.PresetKeys(), "|") + ">",
	Short: "Select a built-in preset",
	Long: `Select one of the four presets stored in the earbuds.

Custom EQ is only applied on top of Studio. Selecting studio therefore also
writes a flat custom table, as the vendor app does.`,
	Example: `  fairbuds preset studio
  fairbuds preset bass --address AA:BB:CC:DD:EE:FF`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: protocol.PresetKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := protocol.ParsePreset(args[0])
		if err != nil {
			return err
		}
		return runEQCommand(cmd.Context(), eqCommand{
			Title:     "Select preset",
			Command:   "fairbuds preset " + args[0],
			Step:      "Selecting " + p.Name(),
			Params:    []ui.Param{{Key: "Preset", Value: p.Name()}},
			ShowTable: p == protocol.PresetStudio,
			Run: func(ctx context.Context, c *eq.Controller) (string, error) {
				return "", c.SetPreset(ctx, p)
			},
		})
	},
}

var gainCmd = &cobra.Command{
	Use:   "gain <band> <dB>",
	Short: "Set one band's gain",
	Long: `Set the gain of one band (0-7) and write the full custom table.

The earbuds do not report their EQ, so the other bands are sent flat unless
set in the same command. Use 'gains' or 'load' to write a whole table.
Gains are clamped to -12..+13.5 dB.`,
	Example: `  fairbuds gain 0 4.5
  fairbuds gain 7 -3`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		band, err := parseBand(args[0])
		if err != nil {
			return err
		}
		db, note, err := parseGain(args[1])
		if err != nil {
			return err
		}
		return runEQCommand(cmd.Context(), eqCommand{
			Title:     "Set gain",
			Command:   fmt.Sprintf("fairbuds gain %s %s", args[0], args[1]),
			Step:      fmt.Sprintf("Writing band %d", band),
			Params:    []ui.Param{{Key: "Band", Value: bandLabel(band)}, {Key: "Gain", Value: fmt.Sprintf("%+.1f dB", db)}},
			ShowTable: true,
			Run: func(ctx context.Context, c *eq.Controller) (string, error) {
				return note, c.SetBandGain(ctx, band, db)
			},
		})
	},
}

var qCmd = &cobra.Command{
	Use:   "q <band> <q>",
	Short: "Set one band's Q",
	Long: `Set the Q (filter width) of one band, e.g. 0.7 for a broad bell.

Q travels as a single byte of Q*10, so 0.1 to 25.5 in steps of 0.1. Whether
the earbuds honour it is unverified.`,
	Example: `  fairbuds q 3 1.4`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		band, err := parseBand(args[0])
		if err != nil {
			return err
		}
		q, err := parseQ(args[1])
		if err != nil {
			return err
		}
		return runEQCommand(cmd.Context(), eqCommand{
			Title:     "Set Q",
			Command:   fmt.Sprintf("fairbuds q %s %s", args[0], args[1]),
			Step:      fmt.Sprintf("Writing band %d", band),
			Params:    []ui.Param{{Key: "Band", Value: bandLabel(band)}, {Key: "Q", Value: fmt.Sprintf("%.1f", protocol.DecodeQ(q))}},
			ShowTable: true,
			Run: func(ctx context.Context, c *eq.Controller) (string, error) {
				return "", c.SetBandQ(ctx, band, q)
			},
		})
	},
}

var gainsCmd = &cobra.Command{
	Use:   "gains <dB> <dB> <dB> <dB> <dB> <dB> <dB> <dB>",
	Short: "Set all eight gains at once",
	Long: `Write a full custom table from eight gains, lowest band first.

Use -- before the values when the first one is negative.`,
	Example: `  fairbuds gains 3 2 0 0 -1 0 2 4
  fairbuds gains --q 1.0 -- -2 0 1 0 0 0 0 2`,
	Args: cobra.ExactArgs(protocol.NumBands),
	RunE: func(cmd *cobra.Command, args []string) error {
		gains := make([]float64, len(args))
		var clamped []string
		for i, arg := range args {
			db, note, err := parseGain(arg)
			if err != nil {
				return fmt.Errorf("band %d: %w", i, err)
			}
			gains[i] = db
			if note != "" {
				clamped = append(clamped, fmt.Sprintf("band %d %s", i, note))
			}
		}

		setQ := cmd.Flags().Changed("q")
		var q byte
		if setQ {
			var err error
			if q, err = parseQ(strconv.FormatFloat(gainsQ, 'f', -1, 64)); err != nil {
				return err
			}
		}

		return runEQCommand(cmd.Context(), eqCommand{
			Title:     "Set gains",
			Command:   "fairbuds gains " + strings.Join(args, " "),
			Step:      "Writing bands",
			ShowTable: true,
			Run: func(ctx context.Context, c *eq.Controller) (string, error) {
				note := strings.Join(clamped, ", ")
				if setQ {
					return note, c.SetAllGainsQ(ctx, gains, q)
				}
				return note, c.SetAllGains(ctx, gains)
			},
		})
	},
}

var allQCmd = &cobra.Command{
	Use:     "all-q <q>",
	Short:   "Set the same Q on every band",
	Example: `  fairbuds all-q 0.7`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := parseQ(args[0])
		if err != nil {
			return err
		}
		return runEQCommand(cmd.Context(), eqCommand{
			Title:     "Set Q",
			Command:   "fairbuds all-q " + args[0],
			Step:      "Writing bands",
			Params:    []ui.Param{{Key: "Q", Value: fmt.Sprintf("%.1f", protocol.DecodeQ(q))}},
			ShowTable: true,
			Run: func(ctx context.Context, c *eq.Controller) (string, error) {
				return "", c.SetAllQ(ctx, q)
			},
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Write a flat custom table",
	Long:  `Set every band to 0 dB with the default Q of 0.7.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEQCommand(cmd.Context(), eqCommand{
			Title:     "Clear custom EQ",
			Command:   "fairbuds clear",
			Step:      "Writing flat table",
			ShowTable: true,
			Run: func(ctx context.Context, c *eq.Controller) (string, error) {
				return "", c.ClearCustomEQ(ctx)
			},
		})
	},
}

func parseBand(s string) (int, error) {
	band, err := strconv.Atoi(s)
	if err != nil || band < 0 || band >= protocol.NumBands {
		return 0, &protocol.ValidationError{
			Field:   "band",
			Value:   s,
			Message: fmt.Sprintf("must be 0-%d", protocol.NumBands-1),
		}
	}
	return band, nil
}

// parseGain reads a gain in dB and clamps it to the encodable range. note
// is set when the value was clamped.
func parseGain(s string) (db float64, note string, err error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "dB"), 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid gain %q: %w", s, err)
	}
	if math.IsNaN(v) {
		return 0, "", &protocol.ValidationError{Field: "gain", Value: s, Message: "must be a number"}
	}
	db, clamped := protocol.ClampGain(v)
	if clamped {
		note = fmt.Sprintf("clamped to %+.1f dB", db)
	}
	return db, note, nil
}

// parseQ reads a real Q and returns its wire byte.
func parseQ(s string) (byte, error) {
	q, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !(q >= 0.1 && q <= maxQ) {
		return 0, &protocol.ValidationError{
			Field:   "q",
			Value:   s,
			Message: fmt.Sprintf("must be 0.1-%.1f", maxQ),
		}
	}
	return protocol.EncodeQ(q), nil
}

func bandLabel(band int) string {
	return fmt.Sprintf("%d (%d Hz)", band, protocol.Frequencies[band])
}
