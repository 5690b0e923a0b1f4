package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/fairbuds/internal/config"
	"github.com/muurk/fairbuds/internal/discovery"
	"github.com/muurk/fairbuds/internal/eq"
	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/session"
	"github.com/muurk/fairbuds/internal/transport"
	"github.com/muurk/fairbuds/internal/transport/ble"
	"github.com/muurk/fairbuds/internal/transport/wsbridge"
	"github.com/muurk/fairbuds/internal/ui"
)

// device is an open controller plus the session under it.
type device struct {
	session    *session.Session
	controller *eq.Controller
	link       string // human-readable transport description
}

// Close disconnects and releases the session.
func (d *device) Close() {
	d.controller.Disconnect()
	d.session.Close()
}

// newTransport builds the configured link. A bridge transport without a URL
// browses mDNS for the first bridge.
func newTransport(ctx context.Context) (transport.Transport, string, error) {
	switch cfg.Device.Transport {
	case config.TransportBridge:
		url := cfg.Device.BridgeURL
		if url == "" {
			b, err := discovery.FindBridge(ctx, "")
			if err != nil {
				return nil, "", fmt.Errorf("no bridge URL given and none discovered: %w", err)
			}
			url = b.URL()
			logging.Info("Discovered bridge", zap.String("instance", b.Instance), zap.String("url", url))
		}
		return wsbridge.New(url), "bridge " + url, nil
	default:
		t := ble.New()
		if cfg.Session.ScanTimeout > 0 {
			t.ScanTimeout = cfg.Session.ScanTimeout
		}
		return t, "ble", nil
	}
}

// newDevice creates, but does not connect, a controller for the configured
// earbuds.
func newDevice(ctx context.Context, opts ...session.Option) (*device, error) {
	link, desc, err := newTransport(ctx)
	if err != nil {
		return nil, err
	}

	opts = append([]session.Option{
		session.WithSettleDelay(cfg.Session.SettleDelay),
		session.WithCommandInterval(cfg.Session.CommandInterval),
		session.WithEventBuffer(cfg.Session.EventBuffer),
	}, opts...)

	sess := session.New(link, cfg.Device.Address, opts...)
	return &device{
		session:    sess,
		controller: eq.New(sess),
		link:       desc,
	}, nil
}

// targetParams describes the earbuds and link for a command header.
func targetParams() []ui.Param {
	addr := cfg.Device.Address
	if addr == "" {
		addr = "(first " + ble.NamePrefix + " found)"
	}
	params := []ui.Param{
		{Key: "Device", Value: addr},
		{Key: "Transport", Value: cfg.Device.Transport},
	}
	if cfg.Device.Transport == config.TransportBridge {
		url := cfg.Device.BridgeURL
		if url == "" {
			url = "(discover)"
		}
		params = append(params, ui.Param{Key: "Bridge", Value: url})
	}
	return params
}

var connectTroubleshooting = []string{
	"Take the earbuds out of the case so they advertise",
	"Disconnect them from the phone app; only one client can hold the link",
	"Check Bluetooth is enabled and the adapter is usable by this user",
	"Pass --address if several Fairbuds are in range",
	"Run with --log-level debug to see every frame",
}

// eqAction is the part of a command that runs on a connected controller.
// The returned string is shown next to the step.
type eqAction func(ctx context.Context, c *eq.Controller) (string, error)

// eqCommand describes one connect, act, disconnect command.
type eqCommand struct {
	Title     string
	Command   string
	Step      string
	Params    []ui.Param
	ShowTable bool // print the band table afterwards
	Run       eqAction
}

func runEQCommand(ctx context.Context, c eqCommand) error {
	runner := ui.NewRunner(ui.RunnerConfig{
		Title:           c.Title,
		Command:         c.Command,
		Params:          append(targetParams(), c.Params...),
		TotalSteps:      2,
		Troubleshooting: connectTroubleshooting,
	})

	var state eq.State
	err := runner.Run(ctx, func(ctx context.Context, onStep ui.StepCallback) ([]ui.Param, error) {
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

		if err := ui.Step(onStep, 2, c.Step, func() (string, error) {
			return c.Run(ctx, dev.controller)
		}); err != nil {
			return nil, err
		}

		state = dev.controller.State()
		return []ui.Param{{Key: "Session", Value: dev.session.ID()}}, nil
	})
	if err == nil && c.ShowTable {
		fmt.Println()
		fmt.Println(ui.RenderEQ(state.Gains, state.Q, ui.GetTerminalWidth()))
	}
	return err
}
