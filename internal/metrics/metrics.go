// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scheduler holds the per-block counters updated by the flowgraph workers.
// A nil *Scheduler is valid and records nothing.
type Scheduler struct {
	workCalls    *prometheus.CounterVec
	consumed     *prometheus.CounterVec
	produced     *prometheus.CounterVec
	probeDropped *prometheus.CounterVec
	overruns     *prometheus.CounterVec
	running      prometheus.Gauge
}

// NewScheduler creates the collectors and registers them on reg.
func NewScheduler(reg prometheus.Registerer) (*Scheduler, error) {
	s := &Scheduler{
		workCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_work_calls_total",
			Help: "Number of Work invocations per block.",
		}, []string{"block"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_items_consumed_total",
			Help: "Samples consumed per block, summed over input ports.",
		}, []string{"block"}),
		produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_items_produced_total",
			Help: "Samples produced per block, summed over output ports.",
		}, []string{"block"}),
		probeDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_probe_dropped_total",
			Help: "Samples a probe dropped because its subscriber fell behind.",
		}, []string{"block"}),
		overruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_capture_overruns_total",
			Help: "Samples a capture source lost because the graph fell behind the device.",
		}, []string{"block"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowgraph_blocks_running",
			Help: "Number of block workers currently running.",
		}),
	}
	for _, c := range []prometheus.Collector{s.workCalls, s.consumed, s.produced, s.probeDropped, s.overruns, s.running} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ObserveWork records one Work call.
func (s *Scheduler) ObserveWork(block string, consumed, produced int) {
	if s == nil {
		return
	}
	s.workCalls.WithLabelValues(block).Inc()
	if consumed > 0 {
		s.consumed.WithLabelValues(block).Add(float64(consumed))
	}
	if produced > 0 {
		s.produced.WithLabelValues(block).Add(float64(produced))
	}
}

// ProbeDropped counts samples discarded by a side-channel probe.
func (s *Scheduler) ProbeDropped(block string, n int) {
	if s == nil || n <= 0 {
		return
	}
	s.probeDropped.WithLabelValues(block).Add(float64(n))
}

// CaptureOverrun counts samples lost at a capture source.
func (s *Scheduler) CaptureOverrun(block string, n int) {
	if s == nil || n <= 0 {
		return
	}
	s.overruns.WithLabelValues(block).Add(float64(n))
}

func (s *Scheduler) BlockStarted() {
	if s != nil {
		s.running.Inc()
	}
}

func (s *Scheduler) BlockFinished() {
	if s != nil {
		s.running.Dec()
	}
}

// Serve exposes the gatherer on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
