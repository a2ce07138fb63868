package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordTick(2, 0.2, true, []bool{true, false})
	m.RecordSkippedTick("capture")
	m.RecordDetection(10*time.Millisecond, errors.New("boom"))
	m.RecordCommand("sent")
	m.RecordCommand("sent")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.people))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mode))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.zoneState.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skippedTicks.WithLabelValues("capture")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detectionErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("sent")))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTick(1, 0.1, false, []bool{true})
		m.RecordSkippedTick("capture")
		m.RecordDetection(time.Millisecond, nil)
		m.RecordCommand("failed")
		assert.Nil(t, m.Registry())
	})
}
