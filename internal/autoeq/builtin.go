package autoeq

import (
	"sort"

	"github.com/muurk/fairbuds/internal/protocol"
)

// Source tells where a built-in preset was designed to run.
type Source string

const (
	// SourceCustom presets use the full per-band Q range.
	SourceCustom Source = "custom"
	// SourceApp presets keep Q near 0.7, as the vendor app does.
	SourceApp Source = "app"
)

// Preset is a named built-in band table. Bands holds {gain dB, real Q}.
type Preset struct {
	Name        string
	Source      Source
	Recommended bool
	Bands       [protocol.NumBands][2]float64
}

// BandConfigs converts the preset to wire-ready bands.
func (p Preset) BandConfigs() []protocol.BandConfig {
	bands := make([]protocol.BandConfig, protocol.NumBands)
	for i, b := range p.Bands {
		bands[i] = protocol.BandConfig{Band: i, GainDB: b[0], Q: protocol.EncodeQ(b[1])}
	}
	return bands
}

// App presets share names with custom ones, so they are keyed "app-<name>".
var builtins = []Preset{
	{Name: "rtings_treble", Source: SourceCustom, Recommended: true, Bands: [protocol.NumBands][2]float64{
		{-2.3, 0.10}, {4.6, 5.32}, {6.4, 0.10}, {3.6, 24.95}, {-11.0, 0.10}, {1.8, 17.00}, {-9.1, 1.70}, {13.5, 0.10}}},
	{Name: "rtings_bass", Source: SourceCustom, Bands: [protocol.NumBands][2]float64{
		{10.0, 0.80}, {5.4, 1.77}, {-10.0, 0.17}, {5.7, 20.22}, {3.8, 0.19}, {-0.7, 17.99}, {-9.8, 1.45}, {4.8, 0.11}}},
	{Name: "dhrme", Source: SourceCustom, Bands: [protocol.NumBands][2]float64{
		{-2.8, 0.17}, {0.0, 7.38}, {2.6, 0.17}, {-8.8, 0.19}, {0.1, 8.94}, {8.1, 0.74}, {-3.1, 1.73}, {6.9, 0.63}}},
	{Name: "dhrme_anc", Source: SourceCustom, Bands: [protocol.NumBands][2]float64{
		{4.0, 1.33}, {1.9, 4.74}, {2.7, 0.27}, {-9.2, 0.11}, {-1.6, 23.97}, {13.4, 0.87}, {0.6, 12.00}, {7.9, 2.22}}},
	{Name: "main-ish", Source: SourceCustom, Bands: [protocol.NumBands][2]float64{
		{-1.0, 0.71}, {1.0, 0.71}, {2.0, 0.71}, {3.5, 0.71}, {1.0, 0.71}, {-3.0, 0.71}, {1.0, 0.71}, {1.0, 0.71}}},

	{Name: "app-rtings", Source: SourceApp, Bands: [protocol.NumBands][2]float64{
		{4.5, 0.71}, {1.8, 0.71}, {-10.0, 0.71}, {0.8, 0.71}, {-7.4, 0.71}, {10.0, 0.71}, {-8.7, 0.71}, {6.6, 0.71}}},
	{Name: "app-dhrme", Source: SourceApp, Bands: [protocol.NumBands][2]float64{
		{-0.9, 0.71}, {-0.9, 0.71}, {-5.0, 0.71}, {-1.6, 0.71}, {-4.3, 0.71}, {7.8, 0.71}, {-2.6, 0.71}, {9.5, 0.71}}},
	{Name: "app-dhrme_anc", Source: SourceApp, Bands: [protocol.NumBands][2]float64{
		{-2.5, 0.71}, {0.3, 0.71}, {-7.3, 0.71}, {-1.4, 0.71}, {-8.8, 0.71}, {9.8, 0.71}, {-4.7, 0.71}, {1.0, 0.71}}},
	{Name: "app-senorbackdoor", Source: SourceApp, Bands: [protocol.NumBands][2]float64{
		{8.0, 0.7}, {-2.0, 0.7}, {-5.0, 0.7}, {2.0, 0.7}, {-2.0, 0.7}, {8.0, 0.7}, {1.0, 0.7}, {11.0, 0.7}}},
}

// Builtin looks up a built-in preset by name.
func Builtin(name string) (Preset, bool) {
	for _, p := range builtins {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Builtins returns every built-in preset, custom ones first.
func Builtins() []Preset {
	out := make([]Preset, len(builtins))
	copy(out, builtins)
	return out
}

// BuiltinNames returns the built-in preset names sorted alphabetically.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for _, p := range builtins {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
