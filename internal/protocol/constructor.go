package protocol

import (
	"fmt"
	"sort"
)

// BandConfig is one custom EQ band as sent on the wire.
type BandConfig struct {
	Band   int     // 0-based band index
	GainDB float64 // encoded with EncodeGain
	Q      byte    // raw Q byte, real Q = Q/10
}

func (b BandConfig) String() string {
	return fmt.Sprintf("band %d: %+.1f dB, Q=%d", b.Band, b.GainDB, b.Q)
}

// BuildSelectPreset builds a select-EQ request for one of the built-in
// presets.
//
// Payload Structure:
//
//	[0]  preset   1=Main 2=Bass 3=Flat 4=Studio
//
// Selecting Studio alone does not clear a previously written custom EQ;
// callers wanting the app's Studio behaviour also send ZeroBands.
func BuildSelectPreset(p Preset) (*Frame, error) {
	if !p.Valid() {
		return nil, &ValidationError{
			Field:   "preset",
			Value:   int(p),
			Message: "must be 1-4",
		}
	}
	return BuildFrame(CmdSelectEQ, TypeRequest, []byte{byte(p)})
}

// BuildCustomEQ builds a custom-EQ request from any non-empty set of
// distinct bands.
//
// Payload Structure (repeated per band, ascending band index):
//
//	[n+0]  band   0-based index
//	[n+1]  gain   EncodeGain(GainDB)
//	[n+2]  q      raw Q byte
//
// The input order does not matter. Use BuildFullCustomEQ when the device
// must receive its whole table.
func BuildCustomEQ(bands []BandConfig, numBands int) (*Frame, error) {
	sorted, err := validateBands(bands, numBands)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, 0, len(sorted)*3)
	for _, b := range sorted {
		payload = append(payload, byte(b.Band), EncodeGain(b.GainDB), b.Q)
	}
	return BuildFrame(CmdCustomEQ, TypeRequest, payload)
}

// BuildFullCustomEQ is BuildCustomEQ restricted to sets that cover every
// band exactly once.
func BuildFullCustomEQ(bands []BandConfig, numBands int) (*Frame, error) {
	if len(bands) != numBands {
		return nil, &ValidationError{
			Field:   "band count",
			Value:   len(bands),
			Message: fmt.Sprintf("full table needs exactly %d bands", numBands),
		}
	}
	return BuildCustomEQ(bands, numBands)
}

// BuildDeviceInfoRequest builds the request that makes the earbuds send a
// device info notification.
func BuildDeviceInfoRequest() *Frame {
	return &Frame{Command: CmdDeviceInfo, Type: TypeRequest, Payload: []byte{}}
}

// ZeroBands returns a flat table: every band at 0 dB with the default Q.
func ZeroBands(numBands int) []BandConfig {
	bands := make([]BandConfig, numBands)
	for i := range bands {
		bands[i] = BandConfig{Band: i, GainDB: 0, Q: DefaultQ}
	}
	return bands
}

func validateBands(bands []BandConfig, numBands int) ([]BandConfig, error) {
	if len(bands) == 0 {
		return nil, &ValidationError{Field: "band count", Value: 0, Message: "at least one band is required"}
	}
	if numBands <= 0 || numBands*3 > MaxPayloadSize {
		return nil, &ValidationError{Field: "band count", Value: numBands, Message: "unsupported band count"}
	}

	seen := make(map[int]bool, len(bands))
	for _, b := range bands {
		if b.Band < 0 || b.Band >= numBands {
			return nil, &ValidationError{
				Field:   "band",
				Value:   b.Band,
				Message: fmt.Sprintf("must be 0-%d", numBands-1),
			}
		}
		if seen[b.Band] {
			return nil, &ValidationError{Field: "band", Value: b.Band, Message: "given more than once"}
		}
		seen[b.Band] = true
	}

	sorted := make([]BandConfig, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Band < sorted[j].Band })
	return sorted, nil
}
