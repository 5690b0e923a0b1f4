package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(nil)

	m.FramesSent.WithLabelValues("CustomEQ").Inc()
	m.FramesSent.WithLabelValues("CustomEQ").Inc()
	m.Events.WithLabelValues("ack").Inc()
	m.Connected.Set(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("CustomEQ")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("ack")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.LinkLoss.Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "fairbuds_link_loss_total 1"))
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSend("SelectEQ", nil)
		m.ObserveEvent("ack")
		m.ObserveDropped()
		m.ObserveLinkLoss()
		m.SetConnected(true)
		m.ObserveBridgeFrame("to_device")
		m.SetBridgeClients(1)
	})
}

func TestObserveSendError(t *testing.T) {
	m := New(nil)
	m.ObserveSend("CustomEQ", assert.AnError)
	m.ObserveSend("CustomEQ", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("CustomEQ")))
}
