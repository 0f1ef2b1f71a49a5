package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordCall("audio", "missed")
		m.RecordDelivery("incoming-call", false)
		m.WebSocketConnected()
		m.RecordCallDuration("video", time.Second)
	})
}

func TestRecordCallsAndDeliveries(t *testing.T) {
	m := NewMetrics("signaling-test", prometheus.NewRegistry())

	m.RecordCall("video", "ringing")
	m.RecordCall("video", "ringing")
	m.RecordCall("audio", "missed")
	m.RecordDelivery("call-ended", true)
	m.RecordDelivery("call-ended", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.callsTotal.WithLabelValues("video", "ringing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsTotal.WithLabelValues("audio", "missed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveriesTotal.WithLabelValues("call-ended", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveriesTotal.WithLabelValues("call-ended", "offline")))
}

func TestWebSocketGauge(t *testing.T) {
	m := NewMetrics("signaling-test", prometheus.NewRegistry())

	m.WebSocketConnected()
	m.WebSocketConnected()
	m.WebSocketDisconnected()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.websocketConnections))
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("a", prometheus.NewRegistry())
		NewMetrics("b", prometheus.NewRegistry())
	})
}
