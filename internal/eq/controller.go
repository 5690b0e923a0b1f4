// Package eq is the stateful equalizer facade over a session.
//
// The QXW protocol has no read-back: the earbuds never report their band
// table. Controller therefore keeps an optimistic copy, applied before each
// write and kept even when the write fails or the link drops mid-send. After
// any error the copy may no longer match the device; reconnect and push a
// full table (ApplyBands, SetAllGains or ClearCustomEQ) to resynchronize.
package eq

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/session"
)

// Sender is the part of a session the controller needs.
type Sender interface {
	Connect(ctx context.Context) error
	Disconnect()
	Reconnect(ctx context.Context) error
	Send(ctx context.Context, frame *protocol.Frame) error
	State() session.State
}

// State is a snapshot of the controller's band table.
type State struct {
	Gains     []float64
	Q         []byte
	Connected bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithNumBands overrides the band count. Only useful for tests and future
// hardware; Fairbuds have 8.
func WithNumBands(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.numBands = n
		}
	}
}

// Controller validates EQ changes, tracks the band table and sends full
// tables through the session. Methods are safe for concurrent use and are
// applied in the order they acquire the controller; no call is retried.
type Controller struct {
	sender   Sender
	numBands int

	mu    sync.Mutex
	gains []float64
	q     []byte
}

// New creates a controller with a flat table (0 dB, default Q).
func New(sender Sender, opts ...Option) *Controller {
	c := &Controller{sender: sender, numBands: protocol.NumBands}
	for _, opt := range opts {
		opt(c)
	}
	c.resetLocked()
	return c
}

// NumBands returns the configured band count.
func (c *Controller) NumBands() int { return c.numBands }

func (c *Controller) resetLocked() {
	c.gains = make([]float64, c.numBands)
	c.q = make([]byte, c.numBands)
	for i := range c.q {
		c.q[i] = protocol.DefaultQ
	}
}

// State returns a copy of the band table and the link state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Gains:     append([]float64(nil), c.gains...),
		Q:         append([]byte(nil), c.q...),
		Connected: c.sender.State() == session.StateConnected,
	}
}

// Connect opens the session.
func (c *Controller) Connect(ctx context.Context) error {
	return c.sender.Connect(ctx)
}

// Disconnect closes the session. The band table is kept.
func (c *Controller) Disconnect() {
	c.sender.Disconnect()
}

// Reconnect reconnects the session and, on success, resets the band table
// to defaults since the device state is unknown after a new link.
func (c *Controller) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sender.Reconnect(ctx); err != nil {
		return err
	}
	c.resetLocked()
	return nil
}

func (c *Controller) checkBand(band int) error {
	if band < 0 || band >= c.numBands {
		return &protocol.ValidationError{
			Field:   "band",
			Value:   band,
			Message: fmt.Sprintf("must be 0-%d", c.numBands-1),
		}
	}
	return nil
}

func (c *Controller) tableLocked() []protocol.BandConfig {
	bands := make([]protocol.BandConfig, c.numBands)
	for i := range bands {
		bands[i] = protocol.BandConfig{Band: i, GainDB: c.gains[i], Q: c.q[i]}
	}
	return bands
}

// pushTableLocked sends the whole band table. The caller holds c.mu.
func (c *Controller) pushTableLocked(ctx context.Context) error {
	frame, err := protocol.BuildFullCustomEQ(c.tableLocked(), c.numBands)
	if err != nil {
		return err
	}
	return c.sender.Send(ctx, frame)
}

// SetBandGain sets one band's gain in dB and sends the full table.
func (c *Controller) SetBandGain(ctx context.Context, band int, db float64) error {
	if err := c.checkBand(band); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gains[band] = db
	logging.Debug("Set band gain", zap.Int("band", band), zap.Float64("db", db))
	return c.pushTableLocked(ctx)
}

// SetBandQ sets one band's raw Q byte and sends the full table.
func (c *Controller) SetBandQ(ctx context.Context, band int, q byte) error {
	if err := c.checkBand(band); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.q[band] = q
	logging.Debug("Set band Q", zap.Int("band", band), zap.Uint8("q", q))
	return c.pushTableLocked(ctx)
}

// SetAllQ sets the same raw Q byte on every band.
func (c *Controller) SetAllQ(ctx context.Context, q byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.q {
		c.q[i] = q
	}
	return c.pushTableLocked(ctx)
}

// SetAllGains replaces every band's gain. gains must have exactly one entry
// per band.
func (c *Controller) SetAllGains(ctx context.Context, gains []float64) error {
	return c.setAllGains(ctx, gains, nil)
}

// SetAllGainsQ is SetAllGains that also sets every band's Q.
func (c *Controller) SetAllGainsQ(ctx context.Context, gains []float64, q byte) error {
	return c.setAllGains(ctx, gains, &q)
}

func (c *Controller) setAllGains(ctx context.Context, gains []float64, q *byte) error {
	if len(gains) != c.numBands {
		return &protocol.ValidationError{
			Field:   "gain count",
			Value:   len(gains),
			Message: fmt.Sprintf("expected %d gains", c.numBands),
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.gains, gains)
	if q != nil {
		for i := range c.q {
			c.q[i] = *q
		}
	}
	return c.pushTableLocked(ctx)
}

// ApplyBands replaces the whole table from a list covering every band once,
// e.g. a loaded preset file.
func (c *Controller) ApplyBands(ctx context.Context, bands []protocol.BandConfig) error {
	frame, err := protocol.BuildFullCustomEQ(bands, c.numBands)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range bands {
		c.gains[b.Band] = b.GainDB
		c.q[b.Band] = b.Q
	}
	return c.sender.Send(ctx, frame)
}

// SetExtendedBands sends an arbitrary subset of bands as given, without
// materializing the rest of the table. The given bands are merged into the
// tracked state.
func (c *Controller) SetExtendedBands(ctx context.Context, bands []protocol.BandConfig) error {
	frame, err := protocol.BuildCustomEQ(bands, c.numBands)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range bands {
		c.gains[b.Band] = b.GainDB
		c.q[b.Band] = b.Q
	}
	logging.Debug("Set extended bands", zap.Int("count", len(bands)))
	return c.sender.Send(ctx, frame)
}

// SetPreset selects a built-in preset. Studio is a compound operation: it
// selects preset 4 and then writes a flat custom table over it, which is
// what the vendor app does.
func (c *Controller) SetPreset(ctx context.Context, p protocol.Preset) error {
	frame, err := protocol.BuildSelectPreset(p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sender.Send(ctx, frame); err != nil {
		return err
	}
	logging.Info("Preset selected", zap.String("preset", p.Name()))

	if p != protocol.PresetStudio {
		return nil
	}
	c.resetLocked()
	return c.pushTableLocked(ctx)
}

// ClearCustomEQ sets every band to 0 dB with the default Q.
func (c *Controller) ClearCustomEQ(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
	return c.pushTableLocked(ctx)
}

// RequestDeviceInfo asks the earbuds for battery and name. The answer
// arrives later as a protocol.DeviceInfoEvent on the session.
func (c *Controller) RequestDeviceInfo(ctx context.Context) error {
	return c.sender.Send(ctx, protocol.BuildDeviceInfoRequest())
}
