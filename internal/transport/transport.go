// Package transport defines the link a session uses to reach the earbuds.
//
// Implementations live in sub-packages: ble talks GATT to a local adapter,
// wsbridge relays through a fairbuds-bridge over a websocket, and
// transporttest is an in-memory fake for tests.
package transport

import (
	"context"
	"errors"
)

// NotifyHandler receives one inbound byte sequence. It is called from the
// transport's own goroutine and must not block.
type NotifyHandler func(data []byte)

// LinkLossHandler is called once when an established link drops without a
// local Disconnect.
type LinkLossHandler func(err error)

// Transport is a byte pipe to one device. A Transport serves a single
// connection at a time.
type Transport interface {
	// Connect opens the link to address and starts delivering
	// notifications to the subscribed handler.
	Connect(ctx context.Context, address string) error

	// Disconnect tears the link down. It is safe to call when not connected.
	Disconnect() error

	// Write sends one frame.
	Write(ctx context.Context, data []byte) error

	// Subscribe sets the handler for inbound data. nil unsubscribes.
	Subscribe(h NotifyHandler)

	// OnLinkLoss sets the handler for unexpected disconnects.
	OnLinkLoss(h LinkLossHandler)

	// Connected reports whether the link is currently up.
	Connected() bool
}

// Common transport errors
var (
	ErrNotConnected   = errors.New("transport not connected")
	ErrDeviceNotFound = errors.New("device not found")
	ErrServiceMissing = errors.New("QXW service or characteristic not found")
)
