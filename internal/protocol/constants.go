package protocol

import (
	"fmt"
	"strings"
)

// Frame layout constants
const (
	HeaderSize     = 6   // prefix + command + type + length
	MaxPayloadSize = 255 // length is a single byte
	MaxFrameSize   = HeaderSize + MaxPayloadSize
)

// Prefix is the 3-byte "QXW" header that starts every frame.
var Prefix = [3]byte{0x51, 0x58, 0x57}

// Command codes (from the vendor app's command table)
const (
	CmdSelectEQ   = 0x10 // Select one of the built-in presets
	CmdCustomEQ   = 0x20 // Write custom EQ band triples
	CmdDeviceInfo = 0x27 // Battery / device info
)

// Command types
const (
	TypeRequest  = 0x01
	TypeResponse = 0x02 // Seen on device info replies from real earbuds
	TypeNotify   = 0x03
)

// Band and encoding constants
const (
	NumBands   = 8
	DefaultQ   = 7 // raw Q byte, real Q 0.7
	GainOffset = 120
	GainScale  = 10
	QScale     = 10

	GainMinDB = -12.0 // byte 0
	GainMaxDB = 13.5  // byte 255
)

// Frequencies lists the centre frequency of each band in Hz. Informational
// only, the device does not accept frequency changes.
var Frequencies = [NumBands]int{60, 100, 230, 500, 1100, 2400, 5400, 12000}

// GATT identifiers of the QXW service.
const (
	ServiceUUID    = "0000ff12-0000-1000-8000-00805f9b34fb"
	NotifyCharUUID = "0000ff13-0000-1000-8000-00805f9b34fb"
	WriteCharUUID  = "0000ff14-0000-1000-8000-00805f9b34fb"
)

// Preset identifies one of the device's built-in EQ presets.
type Preset byte

const (
	PresetMain   Preset = 1
	PresetBass   Preset = 2
	PresetFlat   Preset = 3
	PresetStudio Preset = 4 // selected together with a zeroed custom EQ
)

var presetNames = map[Preset]string{
	PresetMain:   "Main",
	PresetBass:   "Bass boost",
	PresetFlat:   "Flat",
	PresetStudio: "Studio",
}

var presetKeys = map[string]Preset{
	"main":   PresetMain,
	"bass":   PresetBass,
	"flat":   PresetFlat,
	"studio": PresetStudio,
}

// Valid reports whether p is one of the four known presets.
func (p Preset) Valid() bool {
	_, ok := presetNames[p]
	return ok
}

// Name returns the display name of the preset.
func (p Preset) Name() string {
	if name, ok := presetNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", byte(p))
}

func (p Preset) String() string {
	return p.Name()
}

// ParsePreset maps a preset key ("main", "bass", "flat", "studio") or its
// number ("1".."4") to a Preset.
func ParsePreset(s string) (Preset, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if p, ok := presetKeys[key]; ok {
		return p, nil
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '4' {
		return Preset(key[0] - '0'), nil
	}
	return 0, &ValidationError{
		Field:   "preset",
		Value:   s,
		Message: "must be one of main, bass, flat, studio",
	}
}

// PresetKeys returns the accepted preset keys in preset order.
func PresetKeys() []string {
	return []string{"main", "bass", "flat", "studio"}
}

// CommandName returns a human-readable name for a command byte.
func CommandName(cmd byte) string {
	switch cmd {
	case CmdSelectEQ:
		return "SelectEQ"
	case CmdCustomEQ:
		return "CustomEQ"
	case CmdDeviceInfo:
		return "DeviceInfo"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", cmd)
	}
}

// TypeName returns a human-readable name for a type byte.
func TypeName(typ byte) string {
	switch typ {
	case TypeRequest:
		return "request"
	case TypeResponse:
		return "response"
	case TypeNotify:
		return "notify"
	default:
		return fmt.Sprintf("unknown(0x%02x)", typ)
	}
}

func knownCommand(cmd byte) bool {
	return cmd == CmdSelectEQ || cmd == CmdCustomEQ || cmd == CmdDeviceInfo
}

func knownType(typ byte) bool {
	return typ == TypeRequest || typ == TypeResponse || typ == TypeNotify
}
