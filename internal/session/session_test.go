package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fairbuds/internal/metrics"
	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/transport/transporttest"
)

const testAddress = "AA:BB:CC:DD:EE:FF"

func newTestSession(t *testing.T, opts ...Option) (*Session, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.NewFake()
	opts = append([]Option{WithCommandInterval(0), WithSettleDelay(time.Millisecond)}, opts...)
	s := New(fake, testAddress, opts...)
	t.Cleanup(s.Close)
	return s, fake
}

func nextEvent(t *testing.T, s *Session) protocol.Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	s, fake := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Connect(ctx))

	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 1, fake.Connects())
	assert.Equal(t, testAddress, fake.Address())
	assert.True(t, fake.Subscribed())
}

func TestConnectFailure(t *testing.T) {
	s, fake := newTestSession(t)
	fake.ConnectErr = errors.New("device unreachable")

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, fake.ConnectErr)
	assert.Equal(t, StateDisconnected, s.State())
	assert.False(t, fake.Subscribed())
}

func TestSendRequiresConnected(t *testing.T) {
	s, fake := newTestSession(t)

	err := s.Send(context.Background(), protocol.BuildDeviceInfoRequest())
	assert.True(t, IsNotConnected(err))
	assert.Empty(t, fake.Writes())
}

func TestSendWritesFrameBytes(t *testing.T) {
	s, fake := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))

	frame, err := protocol.BuildSelectPreset(protocol.PresetFlat)
	require.NoError(t, err)
	require.NoError(t, s.Send(ctx, frame))

	writes := fake.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0x51, 0x58, 0x57, 0x10, 0x01, 0x01, 0x03}, writes[0])
}

func TestSendWriteFailure(t *testing.T) {
	m := metrics.New(nil)
	s, fake := newTestSession(t, WithMetrics(m))
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	fake.WriteErr = errors.New("gatt busy")

	err := s.Send(ctx, protocol.BuildDeviceInfoRequest())
	require.Error(t, err)
	var ce *ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "write", ce.Op)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendErrors))
}

func TestSendsPreserveCallOrder(t *testing.T) {
	s, fake := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))

	for p := protocol.PresetMain; p <= protocol.PresetStudio; p++ {
		frame, err := protocol.BuildSelectPreset(p)
		require.NoError(t, err)
		require.NoError(t, s.Send(ctx, frame))
	}

	writes := fake.Writes()
	require.Len(t, writes, 4)
	for i, w := range writes {
		assert.Equal(t, byte(i+1), w[6])
	}
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	s, fake := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))

	frame, err := protocol.BuildFullCustomEQ(protocol.ZeroBands(protocol.NumBands), protocol.NumBands)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Send(ctx, frame))
		}()
	}
	wg.Wait()

	writes := fake.Writes()
	require.Len(t, writes, 20)
	for _, w := range writes {
		assert.Equal(t, frame.Bytes(), w)
	}
}

func TestSendIsPaced(t *testing.T) {
	s, _ := newTestSession(t, WithCommandInterval(50*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Send(ctx, protocol.BuildDeviceInfoRequest()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestNotificationsArePublished(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []protocol.EventKind
	)
	sink := EventSinkFunc(func(ev protocol.Event) {
		mu.Lock()
		seen = append(seen, ev.Kind())
		mu.Unlock()
	})

	s, fake := newTestSession(t, WithSink(sink))
	require.NoError(t, s.Connect(context.Background()))

	info, err := protocol.BuildFrame(protocol.CmdDeviceInfo, protocol.TypeNotify,
		[]byte{0x00, 80, 75, 0x00, 0x04, 'B', 'u', 'd', 's'})
	require.NoError(t, err)
	ack, err := protocol.BuildFrame(protocol.CmdCustomEQ, protocol.TypeNotify, []byte{0x01})
	require.NoError(t, err)

	fake.Notify(info.Bytes())
	fake.Notify(ack.Bytes())
	fake.Notify([]byte{0xde, 0xad, 0xbe, 0xef})

	ev := nextEvent(t, s)
	di, ok := ev.(*protocol.DeviceInfoEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, protocol.BatteryLevel(80), di.Info.BatteryLeft)
	assert.Equal(t, "Buds", di.Info.Name)

	ev = nextEvent(t, s)
	a, ok := ev.(*protocol.AckEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, byte(protocol.CmdCustomEQ), a.Command)

	ev = nextEvent(t, s)
	u, ok := ev.(*protocol.UnknownEvent)
	require.True(t, ok, "got %T", ev)
	assert.ErrorIs(t, u.Err, protocol.ErrBadPrefix)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []protocol.EventKind{protocol.EventDeviceInfo, protocol.EventAck, protocol.EventUnknown}, seen)
}

func TestSlowConsumerDoesNotBlockTransport(t *testing.T) {
	s, fake := newTestSession(t, WithEventBuffer(1))
	require.NoError(t, s.Connect(context.Background()))

	ack, err := protocol.BuildFrame(protocol.CmdSelectEQ, protocol.TypeNotify, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			fake.Notify(ack.Bytes())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notify handler blocked")
	}
}

func TestDisconnectSwallowsTeardownError(t *testing.T) {
	s, fake := newTestSession(t)
	require.NoError(t, s.Connect(context.Background()))
	fake.DisconnectErr = errors.New("already gone")

	s.Disconnect()

	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 1, fake.Disconnects())
	assert.False(t, fake.Subscribed())
}

func TestLinkLoss(t *testing.T) {
	m := metrics.New(nil)
	s, fake := newTestSession(t, WithMetrics(m))
	require.NoError(t, s.Connect(context.Background()))

	fake.DropLink(errors.New("out of range"))

	ev := nextEvent(t, s)
	_, ok := ev.(*LinkLostEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LinkLoss))

	err := s.Send(context.Background(), protocol.BuildDeviceInfoRequest())
	assert.True(t, IsNotConnected(err))
}

func TestDisconnectAfterLinkLossReleasesTransport(t *testing.T) {
	s, fake := newTestSession(t)
	require.NoError(t, s.Connect(context.Background()))

	fake.DropLink(errors.New("out of range"))
	_, ok := nextEvent(t, s).(*LinkLostEvent)
	require.True(t, ok)

	s.Disconnect()
	assert.Equal(t, 1, fake.Disconnects())
	assert.False(t, fake.Subscribed())
}

func TestDisconnectDuringPacingWait(t *testing.T) {
	s, fake := newTestSession(t, WithCommandInterval(300*time.Millisecond))
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Send(ctx, protocol.BuildDeviceInfoRequest()))

	go func() {
		time.Sleep(50 * time.Millisecond)
		s.Disconnect()
	}()

	err := s.Send(ctx, protocol.BuildDeviceInfoRequest())
	assert.True(t, IsNotConnected(err), "got %v", err)
	assert.False(t, IsConnectionError(err))
	assert.Len(t, fake.Writes(), 1)
}

func TestReconnect(t *testing.T) {
	s, fake := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))

	require.NoError(t, s.Reconnect(ctx))

	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 2, fake.Connects())
	assert.Equal(t, 1, fake.Disconnects())
}

func TestReconnectCancelledDuringSettle(t *testing.T) {
	s, fake := newTestSession(t, WithSettleDelay(time.Hour))
	require.NoError(t, s.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Reconnect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 1, fake.Connects())
}

func TestCloseClosesEvents(t *testing.T) {
	fake := transporttest.NewFake()
	s := New(fake, testAddress)
	s.Close()
	s.Close()

	_, ok := <-s.Events()
	assert.False(t, ok)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}

func TestSessionIDsAreUnique(t *testing.T) {
	a, _ := newTestSession(t)
	b, _ := newTestSession(t)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
