package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/metrics"
	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/transport"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Upper bound on a BLE connect requested by a client
	connectTimeout = 30 * time.Second

	// Messages from the device waiting to be written to the client
	relayBuffer = 64
)

// Frame directions used in metrics and captures.
const (
	DirectionToDevice   = "to_device"
	DirectionFromDevice = "from_device"
)

// Config holds the bridge configuration
type Config struct {
	Listen      string // host:port to listen on
	MetricsPath string // empty disables /metrics
	CaptureDir  string // directory for JSONL frame captures (empty = disabled)
}

// Server relays one websocket client to a local transport.
type Server struct {
	config   *Config
	link     transport.Transport
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	capture  *Capture

	httpServer *http.Server
	listener   net.Listener

	wg     sync.WaitGroup
	mu     sync.Mutex
	active *client
}

// client is the websocket peer currently owning the link.
type client struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	writeMu    sync.Mutex
	relay      chan outbound
}

type outbound struct {
	msgType int
	data    []byte
}

// New creates a bridge in front of link. A nil reg gets a registry with the
// runtime collectors.
func New(config *Config, link transport.Transport, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	s := &Server{
		config:   config,
		link:     link,
		registry: reg,
		metrics:  metrics.New(reg),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	if config.CaptureDir != "" {
		s.capture = NewCapture(config.CaptureDir)
	}
	return s
}

// Handler returns the bridge's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	if s.config.MetricsPath != "" {
		mux.Handle(s.config.MetricsPath, metrics.Handler(s.registry))
	}
	return mux
}

// Listen binds the configured address. Start calls it when needed; calling
// it first lets the caller learn the port before serving.
func (s *Server) Listen() (net.Addr, error) {
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	l, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = l
	return l.Addr(), nil
}

// Start serves until SIGINT/SIGTERM, ctx cancellation or a listener error.
func (s *Server) Start(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	logging.Info("Starting QXW bridge",
		zap.String("addr", addr.String()),
		zap.String("path", Path),
		zap.String("metrics", s.config.MetricsPath),
	)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping bridge...")
	case <-ctx.Done():
		logging.Info("Context cancelled, stopping bridge...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown closes the listener, the active client and the link.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logging.Error("Error closing HTTP server", zap.Error(err))
		}
	} else if s.listener != nil {
		_ = s.listener.Close()
	}

	// Hijacked websocket connections are not closed by http.Server.
	s.mu.Lock()
	if c := s.active; c != nil {
		logging.Info("Closing active client", zap.String("remote_addr", c.remoteAddr))
		_ = c.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All clients closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	if s.link.Connected() {
		if err := s.link.Disconnect(); err != nil {
			logging.Warn("Error disconnecting link", zap.Error(err))
		}
	}

	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of connected clients (0 or 1).
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return 1
	}
	return 0
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	busy := s.active != nil
	s.mu.Unlock()
	if busy {
		logging.Warn("Rejecting second bridge client", zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "bridge already has a client", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := &client{
		id:         uuid.NewString(),
		remoteAddr: r.RemoteAddr,
		conn:       conn,
		relay:      make(chan outbound, relayBuffer),
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "bridge busy"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	s.active = c
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.serveClient(c)
}

// serveClient runs the read loop for c and releases the link when c leaves.
func (s *Server) serveClient(c *client) {
	logging.LogConnection(c.remoteAddr, "bridge_client_connected")
	s.metrics.SetBridgeClients(1)

	stop := make(chan struct{})

	// Transport callbacks only queue; relayLoop does the writing.
	s.link.Subscribe(func(data []byte) {
		s.metrics.ObserveBridgeFrame(DirectionFromDevice)
		s.capture.Record(c.id, DirectionFromDevice, data)
		s.queue(c, stop, outbound{msgType: websocket.BinaryMessage, data: append([]byte(nil), data...)})
	})
	s.link.OnLinkLoss(func(err error) {
		msg := ControlMessage{Type: MsgLinkLost}
		if err != nil {
			msg.Error = err.Error()
		}
		data, encErr := EncodeControl(msg)
		if encErr != nil {
			logging.Error("Failed to encode control message", zap.Error(encErr))
			return
		}
		s.queue(c, stop, outbound{msgType: websocket.TextMessage, data: data})
	})

	go c.pingLoop(stop)
	go c.relayLoop(stop)

	defer func() {
		close(stop)
		s.link.Subscribe(nil)
		s.link.OnLinkLoss(nil)
		if s.link.Connected() {
			if err := s.link.Disconnect(); err != nil {
				logging.Warn("Error disconnecting link", zap.Error(err))
			}
		}
		_ = c.conn.Close()

		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		s.metrics.SetBridgeClients(0)
		logging.LogConnection(c.remoteAddr, "bridge_client_closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Client connection error",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(c.remoteAddr, "received", msgType, data)

		switch msgType {
		case websocket.TextMessage:
			s.handleControl(c, data)
		case websocket.BinaryMessage:
			s.handleFrame(c, data)
		}
	}
}

func (s *Server) handleControl(c *client, data []byte) {
	msg, err := DecodeControl(data)
	if err != nil {
		s.sendError(c, err)
		return
	}

	switch msg.Type {
	case MsgConnect:
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := s.link.Connect(ctx, msg.Address); err != nil {
			logging.Warn("Bridge connect failed",
				zap.String("address", msg.Address),
				zap.Error(err),
			)
			s.sendError(c, err)
			return
		}
		s.metrics.SetConnected(true)
		s.sendControl(c, ControlMessage{Type: MsgConnected, Address: msg.Address})

	case MsgDisconnect:
		if err := s.link.Disconnect(); err != nil {
			logging.Warn("Bridge disconnect failed", zap.Error(err))
		}
		s.metrics.SetConnected(false)
		s.sendControl(c, ControlMessage{Type: MsgDisconnected})

	default:
		s.sendError(c, fmt.Errorf("unsupported control message %q", msg.Type))
	}
}

func (s *Server) handleFrame(c *client, data []byte) {
	if _, err := protocol.ParseFrame(data); err != nil {
		s.sendError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	err := s.link.Write(ctx, data)
	s.metrics.ObserveSend(frameCommand(data), err)
	if err != nil {
		s.sendError(c, err)
		return
	}
	s.metrics.ObserveBridgeFrame(DirectionToDevice)
	s.capture.Record(c.id, DirectionToDevice, data)
	logging.LogFrame("tx", data)
}

func (s *Server) sendError(c *client, err error) {
	s.sendControl(c, ControlMessage{Type: MsgError, Error: err.Error()})
}

func (s *Server) sendControl(c *client, msg ControlMessage) {
	data, err := EncodeControl(msg)
	if err != nil {
		logging.Error("Failed to encode control message", zap.Error(err))
		return
	}
	if err := c.writeMessage(websocket.TextMessage, data); err != nil {
		logging.Warn("Failed to send control message",
			zap.String("client", c.id),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
	}
}

func (c *client) writeMessage(msgType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	logging.LogWebSocketMessage(c.remoteAddr, "sent", msgType, data)
	return c.conn.WriteMessage(msgType, data)
}

// queue hands a message to the client's relay loop without blocking. When
// the client falls behind the message is dropped.
func (s *Server) queue(c *client, stop <-chan struct{}, msg outbound) {
	select {
	case c.relay <- msg:
	case <-stop:
	default:
		s.metrics.ObserveDropped()
		logging.Warn("Relay buffer full, dropping message",
			zap.String("client", c.id),
			zap.Int("bytes", len(msg.data)),
		)
	}
}

func (c *client) relayLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case msg := <-c.relay:
			if err := c.writeMessage(msg.msgType, msg.data); err != nil {
				logging.Warn("Failed to relay message",
					zap.String("client", c.id),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *client) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func frameCommand(data []byte) string {
	if len(data) < protocol.HeaderSize {
		return "unknown"
	}
	return protocol.CommandName(data[3])
}
