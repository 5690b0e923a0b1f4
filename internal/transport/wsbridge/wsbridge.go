// Package wsbridge implements transport.Transport by relaying through a
// fairbuds-bridge websocket.
package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/fairbuds/internal/bridge"
	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/transport"
)

const (
	writeWait = 10 * time.Second

	// How long Disconnect waits for the bridge to confirm.
	disconnectWait = 5 * time.Second

	busyRetries = 5
	busyBackoff = 200 * time.Millisecond
)

// ErrBridge wraps failures the bridge reports in an error control message.
var ErrBridge = errors.New("bridge error")

// Transport talks to the earbuds through a bridge at URL
// (ws://host:port/qxw).
type Transport struct {
	URL    string
	Dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closing   bool
	handler   transport.NotifyHandler
	linkLoss  transport.LinkLossHandler
	pending   chan bridge.ControlMessage // set while a request waits
	done      chan struct{}

	writeMu sync.Mutex
}

// New returns a transport for the bridge at url.
func New(url string) *Transport {
	return &Transport{
		URL:    url,
		Dialer: websocket.DefaultDialer,
	}
}

// Connect dials the bridge and asks it to connect to address.
func (t *Transport) Connect(ctx context.Context, address string) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	stale := t.conn != nil
	t.mu.Unlock()

	// A websocket can outlive the link it carried (link_lost).
	if stale {
		t.closeConn()
	}

	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	logging.LogConnection(t.URL, "bridge_dialed")

	t.mu.Lock()
	t.conn = conn
	t.closing = false
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()

	go t.readLoop(conn, done)

	reply, err := t.request(ctx, bridge.ControlMessage{Type: bridge.MsgConnect, Address: address})
	if err == nil && reply.Type != bridge.MsgConnected {
		err = fmt.Errorf("unexpected reply %q to connect", reply.Type)
	}
	if err != nil {
		t.closeConn()
		return err
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	logging.LogConnection(address, "connected_via_bridge")
	return nil
}

// dial opens the websocket. The bridge answers 409 while it still holds a
// previous client, which happens briefly after a reconnect.
func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	for attempt := 1; ; attempt++ {
		conn, resp, err := t.Dialer.DialContext(ctx, t.URL, nil)
		if err == nil {
			return conn, nil
		}
		busy := resp != nil && resp.StatusCode == http.StatusConflict
		if !busy || attempt == busyRetries {
			return nil, fmt.Errorf("failed to dial bridge %s: %w", t.URL, err)
		}
		select {
		case <-time.After(busyBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Disconnect asks the bridge to drop the link and closes the websocket.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	if t.conn == nil {
		t.mu.Unlock()
		return nil
	}
	wasConnected := t.connected
	t.connected = false
	t.mu.Unlock()

	if wasConnected {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectWait)
		if _, err := t.request(ctx, bridge.ControlMessage{Type: bridge.MsgDisconnect}); err != nil {
			logging.Warn("Bridge did not confirm disconnect", zap.Error(err))
		}
		cancel()
	}

	t.closeConn()
	return nil
}

// Write sends one frame as a binary message.
func (t *Transport) Write(ctx context.Context, data []byte) error {
	t.mu.Lock()
	conn, connected := t.conn, t.connected
	t.mu.Unlock()
	if !connected || conn == nil {
		return transport.ErrNotConnected
	}
	return t.writeMessage(ctx, conn, websocket.BinaryMessage, data)
}

// Subscribe implements transport.Transport
func (t *Transport) Subscribe(h transport.NotifyHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// OnLinkLoss implements transport.Transport
func (t *Transport) OnLinkLoss(h transport.LinkLossHandler) {
	t.mu.Lock()
	t.linkLoss = h
	t.mu.Unlock()
}

// Connected implements transport.Transport
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// request sends a control message and waits for the bridge's reply.
// Callers do not overlap: Connect and Disconnect are serialized by the
// session.
func (t *Transport) request(ctx context.Context, msg bridge.ControlMessage) (bridge.ControlMessage, error) {
	replies := make(chan bridge.ControlMessage, 1)

	t.mu.Lock()
	conn, done := t.conn, t.done
	if conn == nil {
		t.mu.Unlock()
		return bridge.ControlMessage{}, transport.ErrNotConnected
	}
	t.pending = replies
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.pending = nil
		t.mu.Unlock()
	}()

	data, err := bridge.EncodeControl(msg)
	if err != nil {
		return bridge.ControlMessage{}, err
	}
	if err := t.writeMessage(ctx, conn, websocket.TextMessage, data); err != nil {
		return bridge.ControlMessage{}, err
	}

	select {
	case reply := <-replies:
		if reply.Type == bridge.MsgError {
			return reply, fmt.Errorf("%w: %s", ErrBridge, reply.Error)
		}
		return reply, nil
	case <-done:
		return bridge.ControlMessage{}, fmt.Errorf("bridge closed the connection")
	case <-ctx.Done():
		return bridge.ControlMessage{}, ctx.Err()
	}
}

func (t *Transport) writeMessage(ctx context.Context, conn *websocket.Conn, msgType int, data []byte) error {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteMessage(msgType, data); err != nil {
		return fmt.Errorf("bridge write failed: %w", err)
	}
	logging.LogWebSocketMessage(t.URL, "sent", msgType, data)
	return nil
}

func (t *Transport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.onReadError(err)
			return
		}
		logging.LogWebSocketMessage(t.URL, "received", msgType, data)

		switch msgType {
		case websocket.BinaryMessage:
			t.mu.Lock()
			h := t.handler
			t.mu.Unlock()
			if h != nil {
				h(data)
			}
		case websocket.TextMessage:
			t.handleControl(data)
		}
	}
}

func (t *Transport) handleControl(data []byte) {
	msg, err := bridge.DecodeControl(data)
	if err != nil {
		logging.Warn("Ignoring malformed bridge message", zap.Error(err))
		return
	}

	if msg.Type == bridge.MsgLinkLost {
		t.mu.Lock()
		wasConnected := t.connected
		t.connected = false
		h := t.linkLoss
		t.mu.Unlock()
		if wasConnected && h != nil {
			h(fmt.Errorf("link lost at bridge: %s", msg.Error))
		}
		return
	}

	t.mu.Lock()
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()
	if pending != nil {
		pending <- msg
		return
	}
	logging.Warn("Unsolicited bridge message",
		zap.String("type", msg.Type),
		zap.String("error", msg.Error),
	)
}

func (t *Transport) onReadError(err error) {
	t.mu.Lock()
	closing := t.closing
	wasConnected := t.connected
	t.connected = false
	h := t.linkLoss
	t.mu.Unlock()

	if closing {
		return
	}
	logging.Warn("Bridge connection lost", zap.String("url", t.URL), zap.Error(err))
	if wasConnected && h != nil {
		h(err)
	}
}

func (t *Transport) closeConn() {
	t.mu.Lock()
	conn, done := t.conn, t.done
	t.closing = true
	t.connected = false
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return
	}

	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	t.writeMu.Unlock()
	_ = conn.Close()
	<-done
	logging.LogConnection(t.URL, "bridge_closed")
}

var _ transport.Transport = (*Transport)(nil)
