package protocol

import (
	"fmt"
)

// EventKind tags the events produced from inbound traffic.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventDeviceInfo
	EventAck
	EventLinkLost
)

// String returns a human-readable representation of the kind
func (k EventKind) String() string {
	switch k {
	case EventDeviceInfo:
		return "device_info"
	case EventAck:
		return "ack"
	case EventLinkLost:
		return "link_lost"
	default:
		return "unknown"
	}
}

// Event is a decoded inbound notification
type Event interface {
	Kind() EventKind
	String() string
}

// BatteryUnknown marks a battery level the decoder could not read.
const BatteryUnknown BatteryLevel = -1

// BatteryLevel is a charge percentage (0-100) or BatteryUnknown.
type BatteryLevel int

// Known reports whether the level was decoded.
func (b BatteryLevel) Known() bool {
	return b >= 0 && b <= 100
}

func (b BatteryLevel) String() string {
	if !b.Known() {
		return "?"
	}
	return fmt.Sprintf("%d%%", int(b))
}

// DeviceInfo is the best-effort content of a device info notification.
type DeviceInfo struct {
	BatteryLeft  BatteryLevel
	BatteryRight BatteryLevel
	Name         string
}

// DeviceInfoEvent carries decoded device info.
type DeviceInfoEvent struct {
	Info DeviceInfo
	Raw  []byte
}

func (e *DeviceInfoEvent) Kind() EventKind { return EventDeviceInfo }

func (e *DeviceInfoEvent) String() string {
	s := fmt.Sprintf("DeviceInfo{left=%s, right=%s", e.Info.BatteryLeft, e.Info.BatteryRight)
	if e.Info.Name != "" {
		s += fmt.Sprintf(", name=%q", e.Info.Name)
	}
	return s + "}"
}

// AckEvent is any recognised command/type pair that carries no data we
// decode. It does not confirm any particular send.
type AckEvent struct {
	Command byte
	Type    byte
	Payload []byte
}

func (e *AckEvent) Kind() EventKind { return EventAck }

func (e *AckEvent) String() string {
	return fmt.Sprintf("Ack{cmd=%s, type=%s, len=%d}", CommandName(e.Command), TypeName(e.Type), len(e.Payload))
}

// UnknownEvent wraps inbound bytes that did not match anything we know.
// Err is set when the bytes could not be framed at all.
type UnknownEvent struct {
	Raw []byte
	Err error
}

func (e *UnknownEvent) Kind() EventKind { return EventUnknown }

func (e *UnknownEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("Unknown{len=%d, err=%v, raw=% x}", len(e.Raw), e.Err, e.Raw)
	}
	return fmt.Sprintf("Unknown{len=%d, raw=% x}", len(e.Raw), e.Raw)
}

// DeviceInfoDecoder turns a device info payload into DeviceInfo. The layout
// is reverse-engineered, so implementations must never fail: anything they
// can not read is reported as unknown.
type DeviceInfoDecoder interface {
	DecodeDeviceInfo(payload []byte) DeviceInfo
}

// FairbudsInfoDecoder reads the layout observed on Fairbuds firmware:
//
//	[0]      unknown
//	[1]      battery left (%)
//	[2]      battery right (%)
//	[3]      unknown
//	[4+]     ... length-prefixed name somewhere near the end
//
// The name is found by scanning backwards for a length byte (1-31) followed
// by that many printable ASCII bytes.
type FairbudsInfoDecoder struct{}

const (
	infoBatteryLeft  = 1
	infoBatteryRight = 2
	infoNameStart    = 4
	infoMinLength    = 4
	maxNameLength    = 31
)

// DecodeDeviceInfo implements DeviceInfoDecoder
func (FairbudsInfoDecoder) DecodeDeviceInfo(payload []byte) DeviceInfo {
	info := DeviceInfo{BatteryLeft: BatteryUnknown, BatteryRight: BatteryUnknown}
	if len(payload) < infoMinLength {
		return info
	}

	info.BatteryLeft = batteryLevel(payload[infoBatteryLeft])
	info.BatteryRight = batteryLevel(payload[infoBatteryRight])
	info.Name = scanName(payload)
	return info
}

func batteryLevel(b byte) BatteryLevel {
	if b > 100 {
		return BatteryUnknown
	}
	return BatteryLevel(b)
}

func scanName(payload []byte) string {
	for i := len(payload) - 1; i >= infoNameStart; i-- {
		n := int(payload[i])
		if n == 0 || n > maxNameLength || i+1+n > len(payload) {
			continue
		}
		candidate := payload[i+1 : i+1+n]
		if printable(candidate) {
			return string(candidate)
		}
	}
	return ""
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Parser classifies inbound frames. The zero value uses FairbudsInfoDecoder.
type Parser struct {
	Decoder DeviceInfoDecoder
}

// Parse frames data and classifies it. Only framing errors are returned;
// anything past framing degrades to UnknownEvent.
func (p *Parser) Parse(data []byte) (Event, error) {
	frame, err := ParseFrame(data)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, len(data))
	copy(raw, data)

	if !knownCommand(frame.Command) || !knownType(frame.Type) {
		return &UnknownEvent{Raw: raw}, nil
	}

	if frame.Command == CmdDeviceInfo && (frame.Type == TypeNotify || frame.Type == TypeResponse) {
		return &DeviceInfoEvent{Info: p.decoder().DecodeDeviceInfo(frame.Payload), Raw: raw}, nil
	}

	return &AckEvent{Command: frame.Command, Type: frame.Type, Payload: frame.Payload}, nil
}

func (p *Parser) decoder() DeviceInfoDecoder {
	if p == nil || p.Decoder == nil {
		return FairbudsInfoDecoder{}
	}
	return p.Decoder
}

var defaultParser = &Parser{}

// ParseNotification parses data with the default Parser.
func ParseNotification(data []byte) (Event, error) {
	return defaultParser.Parse(data)
}
