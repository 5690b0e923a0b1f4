package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/session"
	"github.com/muurk/fairbuds/internal/ui"
)

var (
	infoTimeout  time.Duration
	watchRefresh time.Duration
)

func init() {
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(watchCmd)

	infoCmd.Flags().DurationVar(&infoTimeout, "timeout", 5*time.Second, "How long to wait for the earbuds to answer")
	watchCmd.Flags().DurationVar(&watchRefresh, "refresh", ui.DefaultWatchRefresh, "Device info poll interval")
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show battery levels and device name",
	Long: `Request device info and wait for the answer.

Battery and name are decoded best-effort; fields the earbuds do not report
are shown as unknown.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:           "Device info",
		Command:         "fairbuds info",
		Params:          targetParams(),
		TotalSteps:      3,
		Troubleshooting: connectTroubleshooting,
	})

	var info protocol.DeviceInfo
	err := runner.Run(cmd.Context(), func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
		dev, err := newDevice(ctx)
		if err != nil {
			return nil, err
		}
		defer dev.Close()

		if err := ui.Step(onStep, 1, "Connecting", func() (string, error) {
			return dev.link, dev.controller.Connect(ctx)
		}); err != nil {
			return nil, err
		}
		if err := ui.Step(onStep, 2, "Requesting device info", func() (string, error) {
			return "", dev.controller.RequestDeviceInfo(ctx)
		}); err != nil {
			return nil, err
		}
		return nil, ui.Step(onStep, 3, "Waiting for answer", func() (string, error) {
			var err error
			info, err = waitForDeviceInfo(ctx, dev.session.Events(), infoTimeout)
			return "", err
		})
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(ui.RenderDeviceInfo(info, ui.GetTerminalWidth()))
	return nil
}

// waitForDeviceInfo returns the first device info event, failing on link
// loss or timeout.
func waitForDeviceInfo(ctx context.Context, events <-chan protocol.Event, timeout time.Duration) (protocol.DeviceInfo, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return protocol.DeviceInfo{}, errors.New("session closed")
			}
			switch e := ev.(type) {
			case *protocol.DeviceInfoEvent:
				return e.Info, nil
			case *session.LinkLostEvent:
				return protocol.DeviceInfo{}, fmt.Errorf("link lost while waiting: %w", e.Err)
			}
		case <-timer.C:
			return protocol.DeviceInfo{}, fmt.Errorf("no device info after %s", timeout)
		case <-ctx.Done():
			return protocol.DeviceInfo{}, ctx.Err()
		}
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch battery levels and notifications",
	Long: `Stay connected and show every notification the earbuds send, refreshing
device info periodically.

In a terminal this is an interactive view (r refresh, c reconnect after a
lost link, q quit). Otherwise one line per event is printed until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dev, err := newDevice(ctx)
	if err != nil {
		return err
	}
	defer dev.Close()

	if !ui.IsTerminal() {
		return watchPlain(ctx, dev)
	}

	model := ui.NewWatchModel(ui.WatchConfig{
		Address:     dev.session.Address(),
		Connect:     dev.controller.Connect,
		Reconnect:   dev.controller.Reconnect,
		RequestInfo: dev.controller.RequestDeviceInfo,
		Events:      dev.session.Events(),
		Refresh:     watchRefresh,
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func watchPlain(ctx context.Context, dev *device) error {
	dev.session.AddSink(ui.NewEventPrinter(os.Stdout))

	if err := dev.controller.Connect(ctx); err != nil {
		return err
	}
	return pollDeviceInfo(ctx, dev.session.Events(), dev.controller.RequestDeviceInfo, watchRefresh)
}

// pollDeviceInfo requests device info every interval until ctx ends. Events
// are printed by a sink, so the channel is only drained here.
func pollDeviceInfo(ctx context.Context, events <-chan protocol.Event, request func(context.Context) error, every time.Duration) error {
	poll := func() error {
		if err := request(ctx); err != nil && !session.IsNotConnected(err) {
			return err
		}
		return nil
	}
	if err := poll(); err != nil {
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-events:
			if !ok {
				return nil
			}
		case <-ticker.C:
			if err := poll(); err != nil {
				return err
			}
		}
	}
}
