// Package session owns the link to one pair of earbuds.
//
// A Session moves through Disconnected → Connecting → Connected and back.
// Frames are written one at a time in call order; inbound notifications are
// parsed on a dispatcher goroutine and published as protocol events, so a
// slow consumer never blocks a sender or the transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muurk/fairbuds/internal/logging"
	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/transport"
)

// State is the link state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable representation of the state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// EventSink receives every event in arrival order, on the dispatcher
// goroutine. Implementations must return quickly.
type EventSink interface {
	HandleEvent(ev protocol.Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ev protocol.Event)

// HandleEvent implements EventSink
func (f EventSinkFunc) HandleEvent(ev protocol.Event) { f(ev) }

// LinkLostEvent is published when the transport reports an unexpected
// disconnect.
type LinkLostEvent struct {
	Err error
}

func (e *LinkLostEvent) Kind() protocol.EventKind { return protocol.EventLinkLost }

func (e *LinkLostEvent) String() string {
	if e.Err == nil {
		return "LinkLost{}"
	}
	return fmt.Sprintf("LinkLost{err=%v}", e.Err)
}

type inbound struct {
	data []byte
	lost bool
	err  error
}

// Session is a connection to one device address.
type Session struct {
	id        string
	address   string
	transport transport.Transport
	config    Config
	limiter   *rate.Limiter

	opMu    sync.Mutex // serializes Connect/Disconnect/Reconnect
	writeMu sync.Mutex // single writer

	mu    sync.Mutex
	state State
	sinks []EventSink

	qmu    sync.Mutex
	queue  []inbound
	signal chan struct{}

	events    chan protocol.Event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a disconnected session for address and starts its
// dispatcher. Call Close when done.
func New(t transport.Transport, address string, opts ...Option) *Session {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	limit := rate.Inf
	if cfg.CommandInterval > 0 {
		limit = rate.Every(cfg.CommandInterval)
	}

	s := &Session{
		id:        uuid.NewString(),
		address:   address,
		transport: t,
		config:    cfg,
		limiter:   rate.NewLimiter(limit, 1),
		sinks:     append([]EventSink(nil), cfg.Sinks...),
		signal:    make(chan struct{}, 1),
		events:    make(chan protocol.Event, cfg.EventBuffer),
		done:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.dispatchLoop()

	return s
}

// ID returns the session's unique identifier, used in logs.
func (s *Session) ID() string { return s.id }

// Address returns the device address this session connects to.
func (s *Session) Address() string { return s.address }

// State returns the current link state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the event stream. It is closed by Close. Events are
// dropped, with a warning, when the buffer is full.
func (s *Session) Events() <-chan protocol.Event {
	return s.events
}

// AddSink registers an additional event sink.
func (s *Session) AddSink(sink EventSink) {
	if sink == nil {
		return
	}
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect opens the link. It is a no-op when already connected.
func (s *Session) Connect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if s.State() == StateConnected {
		return nil
	}

	s.setState(StateConnecting)
	s.transport.Subscribe(s.enqueue)
	s.transport.OnLinkLoss(s.onLinkLoss)

	logging.Info("Connecting",
		zap.String("session", s.id),
		zap.String("address", s.address),
	)

	if err := s.transport.Connect(ctx, s.address); err != nil {
		s.transport.Subscribe(nil)
		s.transport.OnLinkLoss(nil)
		s.setState(StateDisconnected)
		logging.Error("Connect failed",
			zap.String("session", s.id),
			zap.String("address", s.address),
			zap.Error(err),
		)
		return &ConnectionError{Address: s.address, Op: "connect", Err: err}
	}

	s.setState(StateConnected)
	s.config.Metrics.SetConnected(true)
	logging.LogConnection(s.address, "connected")
	return nil
}

// Disconnect closes the link. It never fails: teardown errors are logged
// and the session ends up Disconnected regardless.
func (s *Session) Disconnect() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.disconnectLocked()
}

func (s *Session) disconnectLocked() {
	wasConnected := s.State() != StateDisconnected
	s.setState(StateDisconnected)

	s.transport.Subscribe(nil)
	s.transport.OnLinkLoss(nil)

	// The link may already be gone, but the transport can still hold a
	// socket or goroutines until it is told to disconnect.
	err := s.transport.Disconnect()
	if err != nil {
		logging.Warn("Disconnect reported an error",
			zap.String("session", s.id),
			zap.String("address", s.address),
			zap.Error(err),
		)
	}
	if !wasConnected {
		return
	}
	s.config.Metrics.SetConnected(false)
	logging.LogConnection(s.address, "disconnected")
}

// Reconnect disconnects, waits for the settle delay and connects again.
func (s *Session) Reconnect(ctx context.Context) error {
	s.Disconnect()

	if s.config.SettleDelay > 0 {
		timer := time.NewTimer(s.config.SettleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return s.Connect(ctx)
}

// Send writes one frame. It requires the Connected state and does not wait
// for any reply.
func (s *Session) Send(ctx context.Context, frame *protocol.Frame) error {
	if frame == nil {
		return errors.New("nil frame")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.State() != StateConnected {
		return ErrNotConnected
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.State() != StateConnected {
		return ErrNotConnected
	}

	data := frame.Bytes()
	logging.LogFrame("tx", data)

	err := s.transport.Write(ctx, data)
	s.config.Metrics.ObserveSend(protocol.CommandName(frame.Command), err)
	if err != nil {
		logging.Error("Write failed",
			zap.String("session", s.id),
			zap.String("frame", frame.String()),
			zap.Error(err),
		)
		return &ConnectionError{Address: s.address, Op: "write", Err: err}
	}

	logging.Debug("Sent frame",
		zap.String("session", s.id),
		zap.String("frame", frame.String()),
	)
	return nil
}

// Close disconnects, stops the dispatcher and closes the Events channel.
func (s *Session) Close() {
	s.Disconnect()
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		close(s.events)
	})
}

func (s *Session) onLinkLoss(err error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.config.Metrics.ObserveLinkLoss()
	s.config.Metrics.SetConnected(false)
	logging.Warn("Link lost",
		zap.String("session", s.id),
		zap.String("address", s.address),
		zap.Error(err),
	)
	s.push(inbound{lost: true, err: err})
}

// enqueue is the transport's notify handler. It only queues.
func (s *Session) enqueue(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.push(inbound{data: buf})
}

func (s *Session) push(item inbound) {
	select {
	case <-s.done:
		return
	default:
	}

	s.qmu.Lock()
	s.queue = append(s.queue, item)
	s.qmu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Session) next() (inbound, bool) {
	for {
		s.qmu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue[0] = inbound{}
			s.queue = s.queue[1:]
			s.qmu.Unlock()
			return item, true
		}
		s.qmu.Unlock()

		select {
		case <-s.signal:
		case <-s.done:
			return inbound{}, false
		}
	}
}

func (s *Session) dispatchLoop() {
	defer s.wg.Done()
	for {
		item, ok := s.next()
		if !ok {
			return
		}
		s.dispatch(item)
	}
}

func (s *Session) dispatch(item inbound) {
	var ev protocol.Event
	if item.lost {
		ev = &LinkLostEvent{Err: item.err}
	} else {
		logging.LogFrame("rx", item.data)
		parsed, err := s.config.Parser.Parse(item.data)
		if err != nil {
			logging.Warn("Unparseable notification",
				zap.String("session", s.id),
				zap.Binary("raw", item.data),
				zap.Error(err),
			)
			ev = &protocol.UnknownEvent{Raw: item.data, Err: err}
		} else {
			ev = parsed
		}
	}

	s.config.Metrics.ObserveEvent(ev.Kind().String())

	s.mu.Lock()
	sinks := make([]EventSink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.HandleEvent(ev)
	}

	select {
	case s.events <- ev:
	default:
		s.config.Metrics.ObserveDropped()
		logging.Warn("Event buffer full, dropping event",
			zap.String("session", s.id),
			zap.String("event", ev.String()),
		)
	}
}
