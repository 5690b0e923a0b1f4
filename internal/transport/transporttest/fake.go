// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/muurk/fairbuds/internal/transport"
)

// Fake records writes and lets tests inject notifications and link loss.
type Fake struct {
	mu sync.Mutex

	// ConnectErr, WriteErr and DisconnectErr are returned by the matching
	// calls when set.
	ConnectErr    error
	WriteErr      error
	DisconnectErr error

	connected   bool
	address     string
	writes      [][]byte
	connects    int
	disconnects int
	handler     transport.NotifyHandler
	linkLoss    transport.LinkLossHandler
}

// NewFake returns a disconnected fake.
func NewFake() *Fake {
	return &Fake{}
}

// Connect implements transport.Transport
func (f *Fake) Connect(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	f.address = address
	return nil
}

// Disconnect implements transport.Transport
func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return f.DisconnectErr
}

// Write implements transport.Transport
func (f *Fake) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	if f.WriteErr != nil {
		return f.WriteErr
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.writes = append(f.writes, buf)
	return nil
}

// Subscribe implements transport.Transport
func (f *Fake) Subscribe(h transport.NotifyHandler) {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
}

// OnLinkLoss implements transport.Transport
func (f *Fake) OnLinkLoss(h transport.LinkLossHandler) {
	f.mu.Lock()
	f.linkLoss = h
	f.mu.Unlock()
}

// Connected implements transport.Transport
func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Notify delivers data to the subscribed handler as if the device sent it.
func (f *Fake) Notify(data []byte) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(data)
	}
}

// DropLink simulates the device going away.
func (f *Fake) DropLink(err error) {
	f.mu.Lock()
	f.connected = false
	h := f.linkLoss
	f.mu.Unlock()
	if h != nil {
		h(err)
	}
}

// Writes returns a copy of every successful write, in order.
func (f *Fake) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// Address returns the address given to the last successful Connect.
func (f *Fake) Address() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.address
}

// Connects returns how many times Connect was called.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many times Disconnect was called.
func (f *Fake) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// Subscribed reports whether a notify handler is set.
func (f *Fake) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

var _ transport.Transport = (*Fake)(nil)
