package flowgraph

import "time"

// Block is a processing stage. Work is called by the scheduler with the
// samples currently available on each input and the space currently free on
// each output; it must not block.
type Block interface {
	Name() string
	Signature() Signature
	Work(w *Work) error
}

// Validator is implemented by blocks that can check their configuration.
// Start fails with a ConfigError if any block reports an error.
type Validator interface {
	Validate() error
}

// Starter is implemented by blocks that acquire resources when the graph
// starts (files, devices).
type Starter interface {
	Start() error
}

// Stopper is implemented by blocks that release resources once their worker
// has finished.
type Stopper interface {
	Stop() error
}

// Signature declares a block's ports and how its output rate relates to its
// input rate.
type Signature struct {
	Inputs  []Kind
	Outputs []Kind

	// SampleRate is the absolute output rate of a source. Zero means the
	// rate is derived from input 0.
	SampleRate float64

	// Output rate = input rate · Interpolation / Decimation. Zero means 1.
	Interpolation int
	Decimation    int

	// MatchedRates requires every input to run at the same sample rate.
	MatchedRates bool
}

// Repeat returns n copies of k, handy for N-ary signatures.
func Repeat(k Kind, n int) []Kind {
	out := make([]Kind, n)
	for i := range out {
		out[i] = k
	}
	return out
}

func (s Signature) ratio() float64 {
	interp, decim := s.Interpolation, s.Decimation
	if interp <= 0 {
		interp = 1
	}
	if decim <= 0 {
		decim = 1
	}
	return float64(interp) / float64(decim)
}

// Work is the window handed to Block.Work. Blocks read In, write into Out and
// report how much they used with Consume and Produce.
type Work struct {
	In  []Items
	Out []Items

	consumed  []int
	produced  []int
	inputDone []bool

	finished   bool
	stopping   bool
	retryAfter time.Duration
}

// NewWork builds a standalone window, mostly for exercising a block outside
// a graph. done marks inputs whose upstream has ended.
func NewWork(in, out []Items, done ...bool) *Work {
	w := &Work{
		In:        in,
		Out:       out,
		consumed:  make([]int, len(in)),
		produced:  make([]int, len(out)),
		inputDone: make([]bool, len(in)),
	}
	copy(w.inputDone, done)
	return w
}

// Consume marks n samples of input port as used.
func (w *Work) Consume(port, n int) { w.consumed[port] += n }

// ConsumeEach marks n samples of every input as used.
func (w *Work) ConsumeEach(n int) {
	for i := range w.consumed {
		w.consumed[i] += n
	}
}

// Produce marks n samples of output port as written.
func (w *Work) Produce(port, n int) { w.produced[port] += n }

// ProduceEach marks n samples of every output as written.
func (w *Work) ProduceEach(n int) {
	for i := range w.produced {
		w.produced[i] += n
	}
}

// Consumed returns the samples consumed so far on port.
func (w *Work) Consumed(port int) int { return w.consumed[port] }

// Produced returns the samples produced so far on port.
func (w *Work) Produced(port int) int { return w.produced[port] }

// InputDone reports that In[port] holds everything that will ever arrive on
// that port.
func (w *Work) InputDone(port int) bool { return w.inputDone[port] }

// Exhausted reports that port has ended and every offered sample has been
// consumed.
func (w *Work) Exhausted(port int) bool {
	return w.inputDone[port] && w.consumed[port] >= w.In[port].Len()
}

// Finish tells the scheduler the block will produce nothing more.
func (w *Work) Finish() { w.finished = true }

// Finished reports whether Finish was called.
func (w *Work) Finished() bool { return w.finished }

// Stopping reports that a stop was requested. Sources should Finish.
func (w *Work) Stopping() bool { return w.stopping }

// RetryAfter asks to be polled again after d even if no edge changes. Used
// by blocks that wait on time or on an external producer.
func (w *Work) RetryAfter(d time.Duration) { w.retryAfter = d }

func (w *Work) reset() {
	clear(w.consumed)
	clear(w.produced)
	w.finished = false
	w.retryAfter = 0
}
