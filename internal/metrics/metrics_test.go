package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewScheduler(reg)
	require.NoError(t, err)

	s.ObserveWork("fir", 128, 32)
	s.ObserveWork("fir", 64, 16)
	s.ObserveWork("sink", 0, 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(s.workCalls.WithLabelValues("fir")))
	assert.Equal(t, 192.0, testutil.ToFloat64(s.consumed.WithLabelValues("fir")))
	assert.Equal(t, 48.0, testutil.ToFloat64(s.produced.WithLabelValues("fir")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.workCalls.WithLabelValues("sink")))

	s.ProbeDropped("probe", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(s.probeDropped.WithLabelValues("probe")))

	s.CaptureOverrun("audio_source", 64)
	s.CaptureOverrun("audio_source", 0)
	s.CaptureOverrun("audio_source", 32)
	assert.Equal(t, 96.0, testutil.ToFloat64(s.overruns.WithLabelValues("audio_source")))

	s.BlockStarted()
	s.BlockStarted()
	s.BlockFinished()
	assert.Equal(t, 1.0, testutil.ToFloat64(s.running))

	n, err := testutil.GatherAndCount(reg, "flowgraph_work_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSchedulerDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewScheduler(reg)
	require.NoError(t, err)
	_, err = NewScheduler(reg)
	assert.Error(t, err)
}

func TestNilSchedulerIsNoop(t *testing.T) {
	var s *Scheduler
	assert.NotPanics(t, func() {
		s.ObserveWork("x", 1, 1)
		s.ProbeDropped("x", 1)
		s.CaptureOverrun("x", 1)
		s.BlockStarted()
		s.BlockFinished()
	})
}
