// Package autoeq reads AutoEQ parametric EQ files and maps them onto the
// earbuds' fixed bands.
//
// Only the filter lines matter:
//
//	Preamp: -6.2 dB
//	Filter 1: ON PK Fc 60 Hz Gain -2.8 dB Q 0.17
//	Filter 2: ON PK Fc 100 Hz Gain 0.0 dB Q 7.38
//	...
//
// Filter i maps to band i-1 in file order. The earbuds can not move their
// centre frequencies, so Fc is only checked, never sent.
package autoeq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/protocol"
)

// Filter is one parsed filter line.
type Filter struct {
	Line   int
	FreqHz float64
	GainDB float64
	Q      float64
}

// Result is a parsed file ready for the controller.
type Result struct {
	Filters  []Filter
	Bands    []protocol.BandConfig
	Warnings []string
}

// LineError reports a filter line that could not be read.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

// Error implements the error interface
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// CountMismatchError reports a file whose filter count differs from the
// band count.
type CountMismatchError struct {
	Got  int
	Want int
}

// Error implements the error interface
func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("expected %d filters, found %d", e.Want, e.Got)
}

// IsCountMismatch checks if an error is a CountMismatchError
func IsCountMismatch(err error) bool {
	var ce *CountMismatchError
	return errors.As(err, &ce)
}

// IsLineError checks if an error contains a LineError
func IsLineError(err error) bool {
	var le *LineError
	return errors.As(err, &le)
}

// Field positions in "Filter N: ON PK Fc <f> Hz Gain <g> dB Q <q>".
const (
	fieldState = 2
	fieldType  = 3
	fieldFreq  = 5
	fieldGain  = 8
	fieldQ     = 11
	minFields  = 12
)

// Parse reads filter lines from r. Every malformed filter line is reported
// and the whole parse fails; nothing partial is returned.
func Parse(r io.Reader, numBands int) (*Result, error) {
	var (
		filters []Filter
		bad     []error
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Filter") {
			continue
		}

		f, err := parseFilterLine(lineNo, line)
		if err != nil {
			logging.Warn("Malformed filter line", zap.Error(err))
			bad = append(bad, err)
			continue
		}
		filters = append(filters, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read preset: %w", err)
	}

	if len(bad) > 0 {
		return nil, errors.Join(bad...)
	}
	if len(filters) != numBands {
		return nil, &CountMismatchError{Got: len(filters), Want: numBands}
	}

	res := &Result{Filters: filters}
	for i, f := range filters {
		gain, clamped := protocol.ClampGain(f.GainDB)
		if clamped {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("band %d: clamping %.1f dB to %.1f dB", i, f.GainDB, gain))
		}
		if numBands == protocol.NumBands && !nearFrequency(f.FreqHz, protocol.Frequencies[i]) {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("band %d: Fc %.0f Hz ignored, band is fixed at %d Hz", i, f.FreqHz, protocol.Frequencies[i]))
		}
		res.Bands = append(res.Bands, protocol.BandConfig{
			Band:   i,
			GainDB: gain,
			Q:      protocol.EncodeQ(f.Q),
		})
	}

	for _, w := range res.Warnings {
		logging.Warn("Preset warning", zap.String("warning", w))
	}
	return res, nil
}

func parseFilterLine(lineNo int, line string) (Filter, error) {
	parts := strings.Fields(line)
	if len(parts) < minFields {
		return Filter{}, &LineError{Line: lineNo, Text: line, Reason: "too few fields"}
	}
	if parts[fieldState] != "ON" || parts[fieldType] != "PK" {
		return Filter{}, &LineError{Line: lineNo, Text: line, Reason: "only enabled peaking (ON PK) filters are supported"}
	}

	freq, err := strconv.ParseFloat(parts[fieldFreq], 64)
	if err != nil {
		return Filter{}, &LineError{Line: lineNo, Text: line, Reason: "bad frequency"}
	}
	gain, err := strconv.ParseFloat(parts[fieldGain], 64)
	if err != nil || math.IsNaN(gain) || math.IsInf(gain, 0) {
		return Filter{}, &LineError{Line: lineNo, Text: line, Reason: "bad gain"}
	}
	q, err := strconv.ParseFloat(parts[fieldQ], 64)
	if err != nil || math.IsNaN(q) || q < 0 {
		return Filter{}, &LineError{Line: lineNo, Text: line, Reason: "bad Q"}
	}

	return Filter{Line: lineNo, FreqHz: freq, GainDB: gain, Q: q}, nil
}

// nearFrequency allows AutoEQ's rounding of centre frequencies (within 10%).
func nearFrequency(got float64, want int) bool {
	return math.Abs(got-float64(want)) <= float64(want)/10
}

// ParseFile opens path (".txt" is appended when missing) and parses it.
func ParseFile(path string, numBands int) (*Result, error) {
	if !strings.HasSuffix(path, ".txt") {
		path += ".txt"
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preset: %w", err)
	}
	defer func() { _ = f.Close() }()

	res, err := Parse(f, numBands)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Format writes bands back out as AutoEQ filter lines, using the fixed
// band frequencies.
func Format(w io.Writer, bands []protocol.BandConfig) error {
	for _, b := range bands {
		freq := 0
		if b.Band >= 0 && b.Band < len(protocol.Frequencies) {
			freq = protocol.Frequencies[b.Band]
		}
		if _, err := fmt.Fprintf(w, "Filter %d: ON PK Fc %d Hz Gain %.1f dB Q %.2f\n",
			b.Band+1, freq, b.GainDB, protocol.DecodeQ(b.Q)); err != nil {
			return err
		}
	}
	return nil
}
