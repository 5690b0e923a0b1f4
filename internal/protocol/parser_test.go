package protocol

import (
	"errors"
	"testing"
)

func deviceInfoPayload(left, right byte, name string) []byte {
	p := []byte{0x00, left, right, 0x00, 0x11, 0x22}
	p = append(p, byte(len(name)))
	return append(p, name...)
}

func mustFrame(t *testing.T, cmd, typ byte, payload []byte) []byte {
	t.Helper()
	f, err := BuildFrame(cmd, typ, payload)
	if err != nil {
		t.Fatalf("BuildFrame() error = %v", err)
	}
	return f.Bytes()
}

func TestParseNotificationDeviceInfo(t *testing.T) {
	for _, typ := range []byte{TypeNotify, TypeResponse} {
		data := mustFrame(t, CmdDeviceInfo, typ, deviceInfoPayload(85, 90, "Fairbuds"))

		ev, err := ParseNotification(data)
		if err != nil {
			t.Fatalf("ParseNotification() error = %v", err)
		}
		info, ok := ev.(*DeviceInfoEvent)
		if !ok {
			t.Fatalf("event = %T, want *DeviceInfoEvent", ev)
		}
		if info.Info.BatteryLeft != 85 || info.Info.BatteryRight != 90 {
			t.Errorf("battery = %v/%v, want 85/90", info.Info.BatteryLeft, info.Info.BatteryRight)
		}
		if info.Info.Name != "Fairbuds" {
			t.Errorf("name = %q, want %q", info.Info.Name, "Fairbuds")
		}
		if info.Kind() != EventDeviceInfo {
			t.Errorf("Kind() = %v", info.Kind())
		}
	}
}

func TestParseNotificationDeviceInfoFailsSoft(t *testing.T) {
	tests := []struct {
		name      string
		payload   []byte
		wantLeft  BatteryLevel
		wantRight BatteryLevel
		wantName  string
	}{
		{"empty", []byte{}, BatteryUnknown, BatteryUnknown, ""},
		{"too short", []byte{0x00, 0x50}, BatteryUnknown, BatteryUnknown, ""},
		{"battery out of range", []byte{0x00, 0xff, 0x40, 0x00}, BatteryUnknown, 64, ""},
		{"no printable name", []byte{0x00, 10, 20, 0x00, 0x02, 0x01, 0x02}, 10, 20, ""},
		{"name length past end", []byte{0x00, 10, 20, 0x00, 0x1e, 'a'}, 10, 20, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseNotification(mustFrame(t, CmdDeviceInfo, TypeNotify, tt.payload))
			if err != nil {
				t.Fatalf("ParseNotification() error = %v", err)
			}
			info, ok := ev.(*DeviceInfoEvent)
			if !ok {
				t.Fatalf("event = %T, want *DeviceInfoEvent", ev)
			}
			if info.Info.BatteryLeft != tt.wantLeft || info.Info.BatteryRight != tt.wantRight {
				t.Errorf("battery = %v/%v, want %v/%v",
					info.Info.BatteryLeft, info.Info.BatteryRight, tt.wantLeft, tt.wantRight)
			}
			if info.Info.Name != tt.wantName {
				t.Errorf("name = %q, want %q", info.Info.Name, tt.wantName)
			}
		})
	}
}

func TestParseNotificationAck(t *testing.T) {
	tests := []struct {
		cmd byte
		typ byte
	}{
		{CmdSelectEQ, TypeNotify},
		{CmdCustomEQ, TypeNotify},
		{CmdCustomEQ, TypeRequest},
		{CmdDeviceInfo, TypeRequest},
	}

	for _, tt := range tests {
		ev, err := ParseNotification(mustFrame(t, tt.cmd, tt.typ, []byte{0x01}))
		if err != nil {
			t.Fatalf("ParseNotification() error = %v", err)
		}
		ack, ok := ev.(*AckEvent)
		if !ok {
			t.Fatalf("cmd 0x%02x type 0x%02x: event = %T, want *AckEvent", tt.cmd, tt.typ, ev)
		}
		if ack.Command != tt.cmd {
			t.Errorf("Command = 0x%02x, want 0x%02x", ack.Command, tt.cmd)
		}
	}
}

func TestParseNotificationUnknown(t *testing.T) {
	tests := []struct {
		name string
		cmd  byte
		typ  byte
	}{
		{"unknown command", 0x42, TypeNotify},
		{"unknown type", CmdSelectEQ, 0x09},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := mustFrame(t, tt.cmd, tt.typ, []byte{0xaa})
			ev, err := ParseNotification(data)
			if err != nil {
				t.Fatalf("ParseNotification() error = %v", err)
			}
			unknown, ok := ev.(*UnknownEvent)
			if !ok {
				t.Fatalf("event = %T, want *UnknownEvent", ev)
			}
			if len(unknown.Raw) != len(data) {
				t.Errorf("Raw length = %d, want %d", len(unknown.Raw), len(data))
			}
		})
	}
}

func TestParseNotificationFrameErrors(t *testing.T) {
	_, err := ParseNotification([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	if !errors.Is(err, ErrBadPrefix) {
		t.Errorf("error = %v, want BadPrefix", err)
	}

	_, err = ParseNotification([]byte{0x51, 0x58, 0x57, 0x27, 0x03, 0x10, 0x00})
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("error = %v, want Truncated", err)
	}
}

type fixedDecoder struct{ info DeviceInfo }

func (d fixedDecoder) DecodeDeviceInfo([]byte) DeviceInfo { return d.info }

func TestParserCustomDecoder(t *testing.T) {
	p := &Parser{Decoder: fixedDecoder{info: DeviceInfo{BatteryLeft: 1, BatteryRight: 2, Name: "x"}}}

	ev, err := p.Parse(mustFrame(t, CmdDeviceInfo, TypeNotify, nil))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	info := ev.(*DeviceInfoEvent)
	if info.Info.Name != "x" || info.Info.BatteryLeft != 1 {
		t.Errorf("info = %+v, want decoder output", info.Info)
	}
}

func TestBatteryLevelString(t *testing.T) {
	if got := BatteryLevel(42).String(); got != "42%" {
		t.Errorf("String() = %q", got)
	}
	if got := BatteryUnknown.String(); got != "?" {
		t.Errorf("String() = %q", got)
	}
}
