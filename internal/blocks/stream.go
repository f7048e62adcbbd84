package blocks

import (
	"errors"
	"fmt"
	"time"

	"go-flowgraph/internal/flowgraph"
)

// Mux interleaves its inputs: counts[0] samples from input 0, then counts[1]
// from input 1, and so on, cycling forever. It ends when the input it is
// waiting on has ended.
type Mux struct {
	named
	kind   flowgraph.Kind
	counts []int
	cur    int // input being drained
	taken  int // samples taken from cur in this cycle
}

func NewMux(kind flowgraph.Kind, counts []int) *Mux {
	return &Mux{named: named{name: "stream_mux"}, kind: kind, counts: counts}
}

func (m *Mux) Signature() flowgraph.Signature {
	total := 0
	for _, c := range m.counts {
		total += max(c, 0)
	}
	decim := 1
	if len(m.counts) > 0 && m.counts[0] > 0 {
		decim = m.counts[0]
	}
	return flowgraph.Signature{
		Inputs:        flowgraph.Repeat(m.kind, len(m.counts)),
		Outputs:       []flowgraph.Kind{m.kind},
		Interpolation: total,
		Decimation:    decim,
	}
}

func (m *Mux) Validate() error {
	if len(m.counts) == 0 {
		return errors.New("no inputs")
	}
	total := 0
	for i, c := range m.counts {
		if c < 0 {
			return fmt.Errorf("count %d for input %d is negative", c, i)
		}
		total += c
	}
	if total == 0 {
		return errors.New("all counts are zero")
	}
	return nil
}

func (m *Mux) Work(w *flowgraph.Work) error {
	out := w.Out[0]
	produced := 0
	for produced < out.Len() {
		if m.taken == m.counts[m.cur] {
			m.cur = (m.cur + 1) % len(m.counts)
			m.taken = 0
			continue
		}
		in := w.In[m.cur]
		avail := in.Len() - w.Consumed(m.cur)
		if avail == 0 {
			if w.InputDone(m.cur) {
				w.Finish()
			}
			break
		}
		n := min(m.counts[m.cur]-m.taken, avail, out.Len()-produced)
		start := w.Consumed(m.cur)
		flowgraph.Copy(out.Slice(produced, produced+n), in.Slice(start, start+n))
		w.Consume(m.cur, n)
		m.taken += n
		produced += n
	}
	w.Produce(0, produced)
	return nil
}

// Head passes the first N samples and then ends its stream.
type Head struct {
	named
	kind   flowgraph.Kind
	limit  int
	passed int
}

func NewHead(kind flowgraph.Kind, n int) *Head {
	return &Head{named: named{name: "head"}, kind: kind, limit: n}
}

func (h *Head) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{h.kind}, Outputs: []flowgraph.Kind{h.kind}}
}

func (h *Head) Validate() error {
	if h.limit < 0 {
		return fmt.Errorf("limit %d is negative", h.limit)
	}
	return nil
}

// Passed returns the number of samples let through so far.
func (h *Head) Passed() int { return h.passed }

func (h *Head) Work(w *flowgraph.Work) error {
	n := min(common(w), h.limit-h.passed)
	flowgraph.Copy(w.Out[0].Slice(0, n), w.In[0].Slice(0, n))
	h.passed += n
	w.Consume(0, n)
	w.Produce(0, n)
	if h.passed >= h.limit {
		w.Finish()
	}
	return nil
}

// Throttle paces a stream to a sample rate in wall-clock time. It never
// sleeps in Work; it asks the scheduler to call again when the next sample
// is due. Once a stop is requested it lets buffered samples through at full
// speed.
type Throttle struct {
	named
	kind   flowgraph.Kind
	rate   float64
	now    func() time.Time
	start  time.Time
	passed int64
}

func NewThrottle(kind flowgraph.Kind, sampleRate float64) *Throttle {
	return &Throttle{named: named{name: "throttle"}, kind: kind, rate: sampleRate, now: time.Now}
}

func (t *Throttle) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{t.kind}, Outputs: []flowgraph.Kind{t.kind}}
}

func (t *Throttle) Validate() error {
	if t.rate <= 0 {
		return fmt.Errorf("rate %g must be positive", t.rate)
	}
	return nil
}

func (t *Throttle) Work(w *flowgraph.Work) error {
	n := common(w)
	if n == 0 {
		return nil
	}
	now := t.now()
	if t.start.IsZero() {
		t.start = now
	}
	if !w.Stopping() {
		due := int64(now.Sub(t.start).Seconds()*t.rate) + 1
		allowed := due - t.passed
		if allowed <= 0 {
			next := t.start.Add(time.Duration(float64(t.passed) / t.rate * float64(time.Second)))
			w.RetryAfter(min(max(next.Sub(now), time.Millisecond), 100*time.Millisecond))
			return nil
		}
		n = int(min(int64(n), allowed))
	}
	flowgraph.Copy(w.Out[0].Slice(0, n), w.In[0].Slice(0, n))
	t.passed += int64(n)
	w.Consume(0, n)
	w.Produce(0, n)
	return nil
}
