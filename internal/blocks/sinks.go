package blocks

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/charmbracelet/log"

	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/ringbuffer"
)

// NullSink consumes and discards everything.
type NullSink struct {
	named
	kind flowgraph.Kind
}

func NewNullSink(kind flowgraph.Kind) *NullSink {
	return &NullSink{named: named{name: "null_sink"}, kind: kind}
}

func (s *NullSink) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{s.kind}}
}

func (s *NullSink) Work(w *flowgraph.Work) error {
	w.Consume(0, w.In[0].Len())
	return nil
}

// VectorSink collects its input in memory. Data is safe to call while the
// graph runs.
type VectorSink[T flowgraph.Sample] struct {
	named
	mu   sync.Mutex
	data []T
}

func NewVectorSink[T flowgraph.Sample]() *VectorSink[T] {
	return &VectorSink[T]{named: named{name: "vector_sink"}}
}

func (s *VectorSink[T]) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{flowgraph.KindOf[T]()}}
}

func (s *VectorSink[T]) Work(w *flowgraph.Work) error {
	in := flowgraph.As[T](w.In[0])
	s.mu.Lock()
	s.data = append(s.data, in...)
	s.mu.Unlock()
	w.Consume(0, len(in))
	return nil
}

// Data returns a copy of everything received so far.
func (s *VectorSink[T]) Data() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.data...)
}

// Probe tees a stream into a ring buffer for a subscriber outside the graph,
// such as an audio player or a display. It never applies backpressure: when
// the subscriber falls behind, the samples that do not fit are dropped and
// reported through OnDrop. The buffer is closed when the probe finishes.
type Probe[T flowgraph.Sample] struct {
	named
	rb *ringbuffer.RingBuffer[T]

	// OnDrop, if set, is called from the worker with the number of samples
	// dropped in one Work call.
	OnDrop func(n int)

	mu      sync.Mutex
	dropped int64
}

func NewProbe[T flowgraph.Sample](capacity int) *Probe[T] {
	return &Probe[T]{named: named{name: "probe"}, rb: ringbuffer.New[T](capacity)}
}

func (p *Probe[T]) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{flowgraph.KindOf[T]()}}
}

// Buffer is the subscriber side. Read returns nil once the probe has
// stopped and the buffer is drained.
func (p *Probe[T]) Buffer() *ringbuffer.RingBuffer[T] { return p.rb }

// Dropped returns the total number of samples dropped.
func (p *Probe[T]) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *Probe[T]) Work(w *flowgraph.Work) error {
	in := flowgraph.As[T](w.In[0])
	n, err := p.rb.TryWrite(in)
	if err != nil {
		return err
	}
	if lost := len(in) - n; lost > 0 {
		p.mu.Lock()
		p.dropped += int64(lost)
		p.mu.Unlock()
		if p.OnDrop != nil {
			p.OnDrop(lost)
		}
	}
	w.Consume(0, len(in))
	return nil
}

func (p *Probe[T]) Stop() error {
	p.rb.Close()
	return nil
}

// Reporter logs the amplitude and phase of each complex sample it receives,
// typically one Goertzel result per analysis window.
type Reporter struct {
	named
	logger *log.Logger
	mu     sync.Mutex
	last   complex64
	count  int
}

func NewReporter(logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Reporter{named: named{name: "reporter"}, logger: logger}
}

func (r *Reporter) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{flowgraph.KindComplex}}
}

func (r *Reporter) Work(w *flowgraph.Work) error {
	in := w.In[0].Complex()
	for _, x := range in {
		c := complex128(x)
		r.logger.Info("tone", "amplitude", cmplx.Abs(c), "phase_deg", cmplx.Phase(c)*180/math.Pi)
	}
	if len(in) > 0 {
		r.mu.Lock()
		r.last = in[len(in)-1]
		r.count += len(in)
		r.mu.Unlock()
	}
	w.Consume(0, len(in))
	return nil
}

// Last returns the most recent value and how many have been reported.
func (r *Reporter) Last() (complex64, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.count
}
