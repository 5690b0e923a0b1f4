package protocol

import "math"

// EncodeGain converts a gain in dB to its wire byte. Values outside
// -12..+13.5 dB clamp to 0 or 255.
func EncodeGain(db float64) byte {
	return clampByte(math.Round(db*GainScale) + GainOffset)
}

// DecodeGain converts a wire byte back to dB.
func DecodeGain(b byte) float64 {
	return float64(int(b)-GainOffset) / GainScale
}

// EncodeQ converts a real Q factor to its wire byte (0.1 steps).
func EncodeQ(q float64) byte {
	return clampByte(math.Round(q * QScale))
}

// DecodeQ converts a wire byte back to a real Q factor.
func DecodeQ(b byte) float64 {
	return float64(b) / QScale
}

// ClampGain limits db to the representable range and reports whether it
// had to change the value.
func ClampGain(db float64) (float64, bool) {
	switch {
	case db < GainMinDB:
		return GainMinDB, true
	case db > GainMaxDB:
		return GainMaxDB, true
	}
	return db, false
}

func clampByte(v float64) byte {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
