package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/session"
)

func TestRenderStepLine(t *testing.T) {
	line := renderStepLine(2, 4, "Writing bands", StepComplete, "8 bands")
	for _, want := range []string{"[2/4]", "Writing bands", StepMarkerComplete, "(8 bands)"} {
		if !strings.Contains(line, want) {
			t.Errorf("step line %q missing %q", line, want)
		}
	}

	line = renderStepLine(1, 0, "Connecting", StepFailed, "")
	if strings.Contains(line, "[") {
		t.Errorf("step line without total should have no counter: %q", line)
	}
	if !strings.Contains(line, FailureMarker) {
		t.Errorf("failed step line missing failure marker: %q", line)
	}
}

func TestRunnerSuccess(t *testing.T) {
	var out bytes.Buffer
	runner := NewRunner(RunnerConfig{
		Title:      "Load preset",
		Command:    "fairbuds load dhrme.txt",
		Params:     []Param{{Key: "Device", Value: "AA:BB:CC:DD:EE:FF"}},
		TotalSteps: 2,
		Output:     &out,
	}).SetWidth(80)

	err := runner.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		if err := Step(onStep, 1, "Connecting", func() (string, error) { return "", nil }); err != nil {
			return nil, err
		}
		if err := Step(onStep, 2, "Writing bands", func() (string, error) { return "8 bands", nil }); err != nil {
			return nil, err
		}
		return []Param{{Key: "Bands", Value: "8"}}, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"LOAD PRESET", "AA:BB:CC:DD:EE:FF", "Connecting", "Writing bands", "(8 bands)", "SUCCESS", "Load preset complete", "Bands:", "Duration:"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunnerFailure(t *testing.T) {
	var out bytes.Buffer
	boom := errors.New("boom")
	runner := NewRunner(RunnerConfig{
		Title:           "Select preset",
		TotalSteps:      1,
		Troubleshooting: []string{"Are the earbuds out of the case?"},
		Output:          &out,
	}).SetWidth(80)

	err := runner.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		return nil, Step(onStep, 1, "Connecting", func() (string, error) { return "", boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}

	got := out.String()
	for _, want := range []string{"FAILED", "Select preset failed", "boom", "Troubleshooting:", "out of the case"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunnerQuiet(t *testing.T) {
	var out bytes.Buffer
	runner := NewRunner(RunnerConfig{Title: "Clear", TotalSteps: 1, Output: &out, Quiet: true}).SetWidth(80)

	_ = runner.Run(context.Background(), func(ctx context.Context, onStep StepCallback) ([]Param, error) {
		return nil, Step(onStep, 1, "Sending", func() (string, error) { return "", nil })
	})

	got := out.String()
	if strings.Contains(got, "CLEAR") || strings.Contains(got, "Sending") {
		t.Errorf("quiet output should only hold the result box:\n%s", got)
	}
	if !strings.Contains(got, "Clear complete") {
		t.Errorf("quiet output missing result:\n%s", got)
	}
}

func TestHeaderAndResult(t *testing.T) {
	header := NewHeader("Device info", "fairbuds info", Param{Key: "Transport", Value: "bridge"}).SetWidth(80).String()
	for _, want := range []string{"DEVICE INFO", "fairbuds info", "Transport:", "bridge"} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q:\n%s", want, header)
		}
	}

	warning := NewWarningResult("Gain clamped", Param{Key: "Band 3", Value: "+12.0 dB"}).SetWidth(80).String()
	for _, want := range []string{"WARNING", "Gain clamped", "Band 3:", "+12.0 dB"} {
		if !strings.Contains(warning, want) {
			t.Errorf("warning missing %q:\n%s", want, warning)
		}
	}
}

func TestFormatFrequency(t *testing.T) {
	tests := []struct {
		hz   int
		want string
	}{
		{60, "60 Hz"},
		{500, "500 Hz"},
		{1100, "1.1 kHz"},
		{2400, "2.4 kHz"},
		{12000, "12 kHz"},
	}
	for _, tt := range tests {
		if got := formatFrequency(tt.hz); got != tt.want {
			t.Errorf("formatFrequency(%d) = %q, want %q", tt.hz, got, tt.want)
		}
	}
}

func TestRenderEQ(t *testing.T) {
	gains := []float64{-2.8, 4.6, 0, 1, -12, 12, 0.5, -0.5}
	q := []byte{7, 7, 7, 7, 7, 7, 7, 7}

	out := RenderEQ(gains, q, 80)
	lines := strings.Split(out, "\n")
	if len(lines) != len(gains) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(gains), out)
	}
	for _, want := range []string{"60 Hz", "12 kHz", "-2.8 dB", "+4.6 dB", "Q 0.7"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderEQ missing %q:\n%s", want, out)
		}
	}

	// Extra bands past the known frequencies get a numeric label; Q is optional.
	out = RenderEQ([]float64{0, 0, 0, 0, 0, 0, 0, 0, 3}, nil, 80)
	if !strings.Contains(out, "band 8") {
		t.Errorf("RenderEQ missing fallback label:\n%s", out)
	}
	if strings.Contains(out, "Q ") {
		t.Errorf("RenderEQ without q should have no Q column:\n%s", out)
	}
}

func TestRenderDeviceInfo(t *testing.T) {
	out := RenderDeviceInfo(protocol.DeviceInfo{
		BatteryLeft:  80,
		BatteryRight: protocol.BatteryUnknown,
		Name:         "Fairbuds",
	}, 80)
	for _, want := range []string{"Fairbuds", "80%", "unknown"} {
		if !strings.Contains(out, want) {
			t.Errorf("RenderDeviceInfo missing %q:\n%s", want, out)
		}
	}

	out = RenderDeviceInfo(protocol.DeviceInfo{BatteryLeft: 10, BatteryRight: 20}, 80)
	if !strings.Contains(out, "(not reported)") {
		t.Errorf("RenderDeviceInfo without name:\n%s", out)
	}
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 34, 56, 0, time.UTC)

	tests := []struct {
		name  string
		event protocol.Event
		want  []string
	}{
		{
			name: "device info",
			event: &protocol.DeviceInfoEvent{Info: protocol.DeviceInfo{
				BatteryLeft: 80, BatteryRight: protocol.BatteryUnknown, Name: "Fairbuds",
			}},
			want: []string{"12:34:56", "device_info", "left 80%, right ?", `"Fairbuds"`},
		},
		{
			name:  "ack",
			event: &protocol.AckEvent{Command: protocol.CmdSelectEQ, Type: protocol.TypeResponse, Payload: []byte{0x01}},
			want:  []string{"ack", "01"},
		},
		{
			name:  "link lost",
			event: &session.LinkLostEvent{Err: errors.New("supervision timeout")},
			want:  []string{"link_lost", "supervision timeout"},
		},
		{
			name:  "unknown",
			event: &protocol.UnknownEvent{Raw: []byte{0xde, 0xad}},
			want:  []string{"unknown", "de ad"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatEvent(at, tt.event)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("FormatEvent() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestEventPrinter(t *testing.T) {
	var out bytes.Buffer
	p := NewEventPrinter(&out)
	p.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	p.HandleEvent(&protocol.UnknownEvent{Raw: []byte{0x01}})
	p.HandleEvent(&session.LinkLostEvent{})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "09:00:00") {
		t.Errorf("line %q missing timestamp", lines[0])
	}
	if !strings.Contains(lines[1], "link lost") {
		t.Errorf("line %q missing link lost", lines[1])
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"  YES  \n", true},
		{"yes", true},
		{"y\n", false},
		{"no\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := Confirm(strings.NewReader(tt.input), &out, "Overwrite config", []string{"The existing file is replaced"})
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Overwrite config") {
			t.Errorf("Confirm(%q) output missing title:\n%s", tt.input, out.String())
		}
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWatchModelTransitions(t *testing.T) {
	connect := func(context.Context) error { return nil }
	m := NewWatchModel(WatchConfig{
		Address:   "AA:BB:CC:DD:EE:FF",
		Connect:   connect,
		Reconnect: connect,
		Events:    make(chan protocol.Event),
	})
	if m.status != statusConnecting {
		t.Fatalf("initial status = %v, want connecting", m.status)
	}

	next, _ := m.Update(connectDoneMsg{})
	m = next.(WatchModel)
	if m.status != statusConnected {
		t.Fatalf("status after connect = %v, want connected", m.status)
	}

	next, _ = m.Update(eventMsg{ev: &protocol.DeviceInfoEvent{Info: protocol.DeviceInfo{BatteryLeft: 55, BatteryRight: 60}}})
	m = next.(WatchModel)
	if m.info == nil || m.info.BatteryLeft != 55 {
		t.Fatalf("device info not recorded: %+v", m.info)
	}

	next, _ = m.Update(eventMsg{ev: &session.LinkLostEvent{Err: errors.New("gone")}})
	m = next.(WatchModel)
	if m.status != statusLost {
		t.Fatalf("status after link loss = %v, want lost", m.status)
	}
	view := m.View()
	for _, want := range []string{"Link lost", "gone", "c reconnect", "55%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	next, cmd := m.Update(keyMsg("c"))
	m = next.(WatchModel)
	if m.status != statusConnecting || cmd == nil {
		t.Fatalf("reconnect key: status = %v, cmd nil = %v", m.status, cmd == nil)
	}

	next, _ = m.Update(connectDoneMsg{err: errors.New("no adapter")})
	m = next.(WatchModel)
	if m.status != statusFailed || !strings.Contains(m.View(), "no adapter") {
		t.Fatalf("failed connect not shown: status = %v", m.status)
	}
}

func TestWatchModelLogIsBounded(t *testing.T) {
	m := NewWatchModel(WatchConfig{Connect: func(context.Context) error { return nil }})
	for i := 0; i < watchLogLines+5; i++ {
		next, _ := m.Update(eventMsg{ev: &protocol.UnknownEvent{Raw: []byte{byte(i)}}})
		m = next.(WatchModel)
	}
	if len(m.log) != watchLogLines {
		t.Errorf("log length = %d, want %d", len(m.log), watchLogLines)
	}
}

func TestWatchModelQuit(t *testing.T) {
	m := NewWatchModel(WatchConfig{Connect: func(context.Context) error { return nil }})

	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}

	_, cmd = m.Update(eventsClosedMsg{})
	if cmd == nil {
		t.Fatal("closed events returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("closed events did not quit")
	}
}
