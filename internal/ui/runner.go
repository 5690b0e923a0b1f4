package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending  StepStatus = iota // Not yet started
	StepRunning                    // Currently executing
	StepComplete                   // Successfully completed
	StepFailed                     // Failed
	StepSkipped                    // Skipped
)

// StepCallback reports progress of step number (1-based).
type StepCallback func(number int, name string, status StepStatus, message string)

// Operation is the work a Runner wraps. It returns details for the
// success box.
type Operation func(ctx context.Context, onStep StepCallback) ([]Param, error)

// RunnerConfig holds what the runner prints around an operation
type RunnerConfig struct {
	Title           string  // e.g., "Load preset"
	Command         string  // e.g., "fairbuds load dhrme.txt"
	Params          []Param // shown in the header
	TotalSteps      int
	Troubleshooting []string  // shown on failure
	Output          io.Writer // default: os.Stdout
	Quiet           bool      // print only the result box
}

// Runner prints header, step lines and a result box around one command.
type Runner struct {
	config RunnerConfig
	output io.Writer
	width  int
}

// NewRunner creates a runner for one command
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Runner{
		config: config,
		output: config.Output,
		width:  GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width
func (r *Runner) SetWidth(width int) *Runner {
	r.width = width
	return r
}

// Run executes op, printing progress as it reports steps. The operation's
// error is returned unchanged.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	start := time.Now()

	if !r.config.Quiet {
		header := NewHeader(r.config.Title, r.config.Command, r.config.Params...).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.output, header.Render())
		_, _ = fmt.Fprintln(r.output)
	}

	details, err := op(ctx, r.stepCallback())
	duration := time.Since(start).Round(time.Millisecond)

	_, _ = fmt.Fprintln(r.output)
	var result *Result
	if err != nil {
		result = NewFailureResult(r.config.Title+" failed", err, r.config.Troubleshooting)
	} else {
		result = NewSuccessResult(r.config.Title+" complete", details...)
		result.AddDetail("Duration", duration.String())
	}
	_, _ = fmt.Fprintln(r.output, result.SetWidth(r.width).Render())
	return err
}

func (r *Runner) stepCallback() StepCallback {
	return func(number int, name string, status StepStatus, message string) {
		if r.config.Quiet {
			return
		}
		line := renderStepLine(number, r.config.TotalSteps, name, status, message)
		switch status {
		case StepRunning:
			// Overwritten when the step finishes
			_, _ = fmt.Fprint(r.output, line+"\r")
		case StepComplete, StepFailed, StepSkipped:
			_, _ = fmt.Fprintln(r.output, line)
		}
	}
}

// renderStepLine renders "  [2/4] Writing bands            ✓  (8 bands)"
func renderStepLine(number, total int, name string, status StepStatus, message string) string {
	var (
		marker    string
		nameStyle lipgloss.Style
	)
	switch status {
	case StepComplete:
		marker, nameStyle = StepMarkerComplete, StepCompleteStyle
	case StepRunning:
		marker, nameStyle = StepMarkerRunning, StepRunningStyle
	case StepFailed:
		marker, nameStyle = FailureMarker, ErrorTitleStyle
	case StepSkipped:
		marker, nameStyle = StepMarkerSkipped, StepPendingStyle
	default:
		marker, nameStyle = StepMarkerPending, StepPendingStyle
	}

	var b strings.Builder
	if total > 0 {
		fmt.Fprintf(&b, "  [%d/%d] ", number, total)
	} else {
		b.WriteString("  ")
	}
	b.WriteString(nameStyle.Render(name))

	const nameColumn = 36
	padding := nameColumn - lipgloss.Width(name)
	if padding < 1 {
		padding = 1
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(nameStyle.Render(marker))

	if message != "" {
		b.WriteString("  ")
		b.WriteString(StepNoteStyle.Render("(" + message + ")"))
	}
	return b.String()
}

// Step runs fn as one reported step: running, then complete or failed.
func Step(onStep StepCallback, number int, name string, fn func() (string, error)) error {
	onStep(number, name, StepRunning, "")
	msg, err := fn()
	if err != nil {
		onStep(number, name, StepFailed, err.Error())
		return err
	}
	onStep(number, name, StepComplete, msg)
	return nil
}
