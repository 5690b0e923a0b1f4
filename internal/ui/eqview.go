package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/fairbuds/internal/protocol"
)

// RenderEQ draws one horizontal bar per band, centred on 0 dB:
//
//	   60 Hz   -2.8 dB   ▇▇▇│         Q 0.2
//	  100 Hz   +4.6 dB      │▇▇▇▇▇    Q 5.3
//
// q may be shorter than gains; missing entries are left blank.
func RenderEQ(gains []float64, q []byte, width int) string {
	width = clampWidth(width)

	// label(9) + value(8) + gaps + Q column(8)
	half := (width - 32) / 2
	if half < 6 {
		half = 6
	}
	scale := float64(half) / math.Max(-protocol.GainMinDB, protocol.GainMaxDB)

	lines := make([]string, 0, len(gains))
	for i, g := range gains {
		label := fmt.Sprintf("band %d", i)
		if i < len(protocol.Frequencies) {
			label = formatFrequency(protocol.Frequencies[i])
		}

		n := int(math.Round(math.Abs(g) * scale))
		if n > half {
			n = half
		}
		var left, right string
		if g < 0 {
			left = strings.Repeat(" ", half-n) + CutBarStyle.Render(strings.Repeat("▇", n))
			right = strings.Repeat(" ", half)
		} else {
			left = strings.Repeat(" ", half)
			right = BoostBarStyle.Render(strings.Repeat("▇", n)) + strings.Repeat(" ", half-n)
		}

		qText := ""
		if i < len(q) {
			qText = fmt.Sprintf("Q %.1f", protocol.DecodeQ(q[i]))
		}

		lines = append(lines, BandLabelStyle.Render(label)+
			GainValueStyle.Render(fmt.Sprintf("%+.1f dB", g))+"  "+
			left+AxisStyle.Render("│")+right+"  "+
			StepNoteStyle.Render(qText))
	}
	return strings.Join(lines, "\n")
}

func formatFrequency(hz int) string {
	if hz >= 1000 {
		khz := float64(hz) / 1000
		if khz == math.Trunc(khz) {
			return fmt.Sprintf("%.0f kHz", khz)
		}
		return fmt.Sprintf("%.1f kHz", khz)
	}
	return fmt.Sprintf("%d Hz", hz)
}

// RenderDeviceInfo shows name and both battery levels with bars.
func RenderDeviceInfo(info protocol.DeviceInfo, width int) string {
	width = clampWidth(width)
	barWidth := width - 30
	if barWidth > 40 {
		barWidth = 40
	}
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage())

	name := info.Name
	if name == "" {
		name = "(not reported)"
	}

	lines := []string{
		ResultKeyStyle.Render("Name:") + " " + ResultValueStyle.Render(name),
		renderBattery(bar, "Left:", info.BatteryLeft),
		renderBattery(bar, "Right:", info.BatteryRight),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderBattery(bar progress.Model, label string, level protocol.BatteryLevel) string {
	key := ResultKeyStyle.Render(label)
	if !level.Known() {
		return key + " " + StepPendingStyle.Render("unknown")
	}
	return key + " " + bar.ViewAs(float64(level)/100) + " " + ResultValueStyle.Render(level.String())
}
