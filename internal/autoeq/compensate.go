package autoeq

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/muurk/fairbuds/internal/protocol"
)

// MainToStudio approximates the difference between the Main and Studio
// presets, per band. Measurements published for the earbuds were taken on
// Main, but only Studio accepts a custom EQ.
var MainToStudio = [protocol.NumBands]float64{-1, 1, 2, 3.5, 1, -3, 1, 1}

// Override replaces one entry of a compensation table. Index is 1-based, as
// in the filter numbering.
type Override struct {
	Index  int
	GainDB float64
}

// ParseOverride reads "index:gain", e.g. "3:2.5".
func ParseOverride(s string) (Override, error) {
	idx, gain, ok := strings.Cut(s, ":")
	if !ok {
		return Override{}, fmt.Errorf("override %q: want index:gain", s)
	}
	i, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil || i < 1 || i > protocol.NumBands {
		return Override{}, fmt.Errorf("override %q: index must be 1-%d", s, protocol.NumBands)
	}
	g, err := strconv.ParseFloat(strings.TrimSpace(gain), 64)
	if err != nil {
		return Override{}, fmt.Errorf("override %q: bad gain: %w", s, err)
	}
	return Override{Index: i, GainDB: g}, nil
}

// CompensateMainToStudio adds the MainToStudio table (with overrides
// applied) to each band's gain and clamps the result. bands is not
// modified.
func CompensateMainToStudio(bands []protocol.BandConfig, overrides ...Override) []protocol.BandConfig {
	table := MainToStudio
	for _, o := range overrides {
		if o.Index >= 1 && o.Index <= len(table) {
			table[o.Index-1] = o.GainDB
		}
	}

	out := make([]protocol.BandConfig, len(bands))
	for i, b := range bands {
		out[i] = b
		if b.Band < 0 || b.Band >= len(table) {
			continue
		}
		gain, _ := protocol.ClampGain(b.GainDB + table[b.Band])
		out[i].GainDB = roundTenth(gain)
	}
	return out
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
