package eq

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/session"
	"github.com/muurk/fairbuds/internal/transport/transporttest"
)

func newConnected(t *testing.T) (*Controller, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.NewFake()
	sess := session.New(fake, "AA:BB:CC:DD:EE:FF",
		session.WithCommandInterval(0),
		session.WithSettleDelay(time.Millisecond),
	)
	t.Cleanup(sess.Close)

	c := New(sess)
	require.NoError(t, c.Connect(context.Background()))
	return c, fake
}

func header(cmd, length byte) []byte {
	return []byte{0x51, 0x58, 0x57, cmd, 0x01, length}
}

func TestSetBandGainSendsFullTable(t *testing.T) {
	c, fake := newConnected(t)

	require.NoError(t, c.SetBandGain(context.Background(), 0, -2.8))

	writes := fake.Writes()
	require.Len(t, writes, 1)
	w := writes[0]
	assert.Equal(t, header(protocol.CmdCustomEQ, 24), w[:6])
	assert.Len(t, w[6:], 3*protocol.NumBands)
	assert.Equal(t, []byte{0x00, 92, protocol.DefaultQ}, w[6:9])
	assert.Equal(t, []byte{0x01, 120, protocol.DefaultQ}, w[9:12])

	st := c.State()
	assert.Equal(t, -2.8, st.Gains[0])
	assert.True(t, st.Connected)
}

func TestSetBandGainInvalidBand(t *testing.T) {
	c, fake := newConnected(t)

	err := c.SetBandGain(context.Background(), 99, 0)
	assert.True(t, protocol.IsValidationError(err))
	assert.Empty(t, fake.Writes())

	err = c.SetBandQ(context.Background(), -1, 7)
	assert.True(t, protocol.IsValidationError(err))
	assert.Empty(t, fake.Writes())
}

func TestSetBandQ(t *testing.T) {
	c, fake := newConnected(t)

	require.NoError(t, c.SetBandQ(context.Background(), 3, 20))

	w := fake.Writes()[0]
	assert.Equal(t, []byte{0x03, 120, 20}, w[6+9:6+12])
	assert.Equal(t, byte(20), c.State().Q[3])
}

func TestSetAllGains(t *testing.T) {
	c, fake := newConnected(t)
	gains := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	require.NoError(t, c.SetAllGainsQ(context.Background(), gains, 10))

	w := fake.Writes()[0]
	for i := 0; i < protocol.NumBands; i++ {
		off := 6 + i*3
		assert.Equal(t, byte(i), w[off])
		assert.Equal(t, protocol.EncodeGain(gains[i]), w[off+1])
		assert.Equal(t, byte(10), w[off+2])
	}
	assert.Equal(t, gains, c.State().Gains)
}

func TestSetAllGainsWrongCount(t *testing.T) {
	c, fake := newConnected(t)

	err := c.SetAllGains(context.Background(), []float64{1, 2, 3})
	assert.True(t, protocol.IsValidationError(err))
	assert.Empty(t, fake.Writes())
	assert.Equal(t, make([]float64, protocol.NumBands), c.State().Gains)
}

func TestSetAllQ(t *testing.T) {
	c, _ := newConnected(t)

	require.NoError(t, c.SetAllQ(context.Background(), 3))
	assert.Equal(t, bytes.Repeat([]byte{3}, protocol.NumBands), c.State().Q)
}

func TestSetExtendedBandsSendsOnlyGivenBands(t *testing.T) {
	c, fake := newConnected(t)

	err := c.SetExtendedBands(context.Background(), []protocol.BandConfig{
		{Band: 5, GainDB: 3, Q: 9},
		{Band: 1, GainDB: -1, Q: 4},
	})
	require.NoError(t, err)

	w := fake.Writes()[0]
	assert.Equal(t, header(protocol.CmdCustomEQ, 6), w[:6])
	assert.Equal(t, []byte{1, 110, 4, 5, 150, 9}, w[6:])

	st := c.State()
	assert.Equal(t, 3.0, st.Gains[5])
	assert.Equal(t, byte(4), st.Q[1])
}

func TestStudioPresetSendsTwoFrames(t *testing.T) {
	c, fake := newConnected(t)
	require.NoError(t, c.SetBandGain(context.Background(), 2, 6))

	require.NoError(t, c.SetPreset(context.Background(), protocol.PresetStudio))

	writes := fake.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, append(header(protocol.CmdSelectEQ, 1), 0x04), writes[1])

	want := header(protocol.CmdCustomEQ, 24)
	for i := 0; i < protocol.NumBands; i++ {
		want = append(want, byte(i), 120, protocol.DefaultQ)
	}
	assert.Equal(t, want, writes[2])
	assert.Equal(t, make([]float64, protocol.NumBands), c.State().Gains)
}

func TestNonStudioPresetSendsOneFrame(t *testing.T) {
	c, fake := newConnected(t)

	require.NoError(t, c.SetPreset(context.Background(), protocol.PresetBass))
	assert.Len(t, fake.Writes(), 1)

	err := c.SetPreset(context.Background(), protocol.Preset(9))
	assert.True(t, protocol.IsValidationError(err))
	assert.Len(t, fake.Writes(), 1)
}

func TestClearCustomEQ(t *testing.T) {
	c, fake := newConnected(t)
	ctx := context.Background()
	require.NoError(t, c.SetAllGainsQ(ctx, []float64{1, 1, 1, 1, 1, 1, 1, 1}, 30))

	require.NoError(t, c.ClearCustomEQ(ctx))

	st := c.State()
	assert.Equal(t, make([]float64, protocol.NumBands), st.Gains)
	assert.Equal(t, bytes.Repeat([]byte{protocol.DefaultQ}, protocol.NumBands), st.Q)
	assert.Len(t, fake.Writes(), 2)
}

func TestRequestDeviceInfo(t *testing.T) {
	c, fake := newConnected(t)

	require.NoError(t, c.RequestDeviceInfo(context.Background()))
	assert.Equal(t, header(protocol.CmdDeviceInfo, 0), fake.Writes()[0])
}

func TestNotConnectedKeepsOptimisticState(t *testing.T) {
	fake := transporttest.NewFake()
	sess := session.New(fake, "AA:BB:CC:DD:EE:FF", session.WithCommandInterval(0))
	t.Cleanup(sess.Close)
	c := New(sess)

	err := c.SetBandGain(context.Background(), 4, 5)
	assert.True(t, session.IsNotConnected(err))
	assert.Equal(t, 5.0, c.State().Gains[4])
	assert.False(t, c.State().Connected)
}

func TestWriteFailureIsNotRetried(t *testing.T) {
	c, fake := newConnected(t)
	fake.WriteErr = errors.New("gatt busy")

	err := c.SetBandGain(context.Background(), 0, 1)
	assert.True(t, session.IsConnectionError(err))
	assert.Empty(t, fake.Writes())
}

func TestReconnectResetsState(t *testing.T) {
	c, fake := newConnected(t)
	ctx := context.Background()
	require.NoError(t, c.SetBandGain(ctx, 1, 4))

	require.NoError(t, c.Reconnect(ctx))

	assert.Equal(t, make([]float64, protocol.NumBands), c.State().Gains)
	assert.Equal(t, 2, fake.Connects())
}

func TestApplyBands(t *testing.T) {
	c, fake := newConnected(t)
	bands := protocol.ZeroBands(protocol.NumBands)
	bands[7].GainDB = 13.5

	require.NoError(t, c.ApplyBands(context.Background(), bands))
	assert.Equal(t, byte(255), fake.Writes()[0][6+7*3+1])

	err := c.ApplyBands(context.Background(), bands[:7])
	assert.True(t, protocol.IsValidationError(err))
	assert.Len(t, fake.Writes(), 1)
}
