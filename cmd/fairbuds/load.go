package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/fairbuds/internal/autoeq"
	"github.com/muurk/fairbuds/internal/eq"
	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/ui"
)

var (
	compensate bool
	overrides  []string
	exportPath string
)

func init() {
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(builtinCmd)

	loadCmd.Flags().BoolVar(&compensate, "compensate", false, "Add the Main→Studio difference (for measurements taken on Main)")
	loadCmd.Flags().StringArrayVar(&overrides, "override", nil, "Replace one compensation entry, index:gain (1-based, repeatable)")

	builtinCmd.Flags().StringVar(&exportPath, "export", "", "Write the preset as an AutoEQ file instead of sending it")
}

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load an AutoEQ parametric EQ file",
	Long: `Load an AutoEQ ParametricEQ.txt file and write it as the custom EQ.

The file must hold exactly eight "Filter N: ON PK Fc ... Gain ... Q ..."
lines; filter N goes to band N-1. Centre frequencies are fixed on the
earbuds, so Fc is only checked. Nothing is sent if any line is malformed.
".txt" is appended when the name has no extension.

Custom EQ applies on top of Studio. Measurements published for the earbuds
were taken on Main; --compensate adds an approximate Main→Studio table so
the result sounds closer to the measured target.`,
	Example: `  fairbuds load ~/eq/dhrme
  fairbuds load rtings.txt --compensate
  fairbuds load rtings.txt --compensate --override 4:2.5`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	res, err := autoeq.ParseFile(args[0], protocol.NumBands)
	if err != nil {
		return err
	}

	bands := res.Bands
	params := []ui.Param{{Key: "File", Value: args[0]}}
	if compensate {
		parsed := make([]autoeq.Override, 0, len(overrides))
		for _, o := range overrides {
			ov, err := autoeq.ParseOverride(o)
			if err != nil {
				return err
			}
			parsed = append(parsed, ov)
		}
		bands = autoeq.CompensateMainToStudio(bands, parsed...)
		params = append(params, ui.Param{Key: "Compensation", Value: "Main → Studio"})
	} else if len(overrides) > 0 {
		return fmt.Errorf("--override needs --compensate")
	}

	for _, w := range res.Warnings {
		fmt.Fprintln(os.Stderr, ui.WarningTitleStyle.Render(ui.WarningMarker+" "+w))
	}

	return runEQCommand(cmd.Context(), eqCommand{
		Title:     "Load preset",
		Command:   "fairbuds " + strings.Join(os.Args[1:], " "),
		Step:      "Writing bands",
		Params:    params,
		ShowTable: true,
		Run: func(ctx context.Context, c *eq.Controller) (string, error) {
			return fmt.Sprintf("%d bands", len(bands)), c.ApplyBands(ctx, bands)
		},
	})
}

var builtinCmd = &cobra.Command{
	Use:   "builtin [name]",
	Short: "List or apply the built-in EQ presets",
	Long: `Without a name, list the built-in presets. With a name, write it as the
custom EQ.

Presets prefixed "app-" keep Q near 0.7 like the vendor app; the others use
per-band Q.`,
	Example: `  fairbuds builtin
  fairbuds builtin rtings_treble
  fairbuds builtin dhrme --export dhrme.txt`,
	Args: cobra.MaximumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return autoeq.BuiltinNames(), cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runBuiltin,
}

func runBuiltin(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		printBuiltins()
		return nil
	}

	p, ok := autoeq.Builtin(args[0])
	if !ok {
		return fmt.Errorf("unknown preset %q (available: %s)", args[0], strings.Join(autoeq.BuiltinNames(), ", "))
	}
	bands := p.BandConfigs()

	if exportPath != "" {
		return exportPreset(p, bands)
	}

	return runEQCommand(cmd.Context(), eqCommand{
		Title:     "Apply built-in preset",
		Command:   "fairbuds builtin " + p.Name,
		Step:      "Writing bands",
		Params:    []ui.Param{{Key: "Preset", Value: p.Name}, {Key: "Source", Value: string(p.Source)}},
		ShowTable: true,
		Run: func(ctx context.Context, c *eq.Controller) (string, error) {
			return fmt.Sprintf("%d bands", len(bands)), c.ApplyBands(ctx, bands)
		},
	})
}

func printBuiltins() {
	width := ui.GetTerminalWidth()
	fmt.Println(ui.NewHeader("Built-in presets", "fairbuds builtin").SetWidth(width).Render())
	fmt.Println()
	for _, p := range autoeq.Builtins() {
		line := fmt.Sprintf("  %-20s %s", p.Name, ui.StepNoteStyle.Render(string(p.Source)))
		if p.Recommended {
			line += "  " + ui.StepCompleteStyle.Render("recommended")
		}
		fmt.Println(line)
	}
	fmt.Println()
	fmt.Println(ui.StepPendingStyle.Render("  Apply one with 'fairbuds builtin <name>'"))
}

func exportPreset(p autoeq.Preset, bands []protocol.BandConfig) error {
	path := exportPath
	if !strings.HasSuffix(path, ".txt") {
		path += ".txt"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := autoeq.Format(f, bands); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Println(ui.NewSuccessResult("Preset exported",
		ui.Param{Key: "Preset", Value: p.Name},
		ui.Param{Key: "File", Value: path},
	).Render())
	return nil
}
