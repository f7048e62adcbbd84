package blocks

import (
	"errors"
	"fmt"
	"strings"

	"go-flowgraph/internal/dsp"
	"go-flowgraph/internal/flowgraph"
)

// FIRFilter applies a decimating FIR filter to a float or complex stream.
type FIRFilter[T dsp.Sample] struct {
	named
	ntaps int
	f     *dsp.FIRFilter[T]
}

func NewFIRFilter[T dsp.Sample](taps []T, decimation int) *FIRFilter[T] {
	return &FIRFilter[T]{
		named: named{name: "fir_filter"},
		ntaps: len(taps),
		f:     dsp.NewFIRFilter(taps, decimation),
	}
}

func (b *FIRFilter[T]) Signature() flowgraph.Signature {
	k := flowgraph.KindOf[T]()
	return flowgraph.Signature{
		Inputs:     []flowgraph.Kind{k},
		Outputs:    []flowgraph.Kind{k},
		Decimation: b.f.Decimation(),
	}
}

func (b *FIRFilter[T]) Validate() error {
	if b.ntaps == 0 {
		return fmt.Errorf("%w: no taps", dsp.ErrInvalidFilter)
	}
	return nil
}

func (b *FIRFilter[T]) Work(w *flowgraph.Work) error {
	in := flowgraph.As[T](w.In[0])
	out := flowgraph.As[T](w.Out[0])
	consumed, produced := decimate(b.f, in, out, func(x T) T { return x })
	w.Consume(0, consumed)
	w.Produce(0, produced)
	return nil
}

// decimate pushes pre(x) through f while out has room for the next emitted
// sample.
func decimate[T dsp.Sample](f *dsp.FIRFilter[T], in, out []T, pre func(T) T) (consumed, produced int) {
	for _, x := range in {
		if f.WillEmit() && produced == len(out) {
			break
		}
		if y, ok := f.Filter(pre(x)); ok {
			out[produced] = y
			produced++
		}
		consumed++
	}
	return consumed, produced
}

// StabilityPolicy decides what the IIR block does with coefficients whose
// poles lie outside the unit circle.
type StabilityPolicy int

const (
	// PassThrough runs any coefficients; overflow propagates as ±Inf/NaN.
	PassThrough StabilityPolicy = iota
	// Reject fails Start with a configuration error.
	Reject
)

func (p StabilityPolicy) String() string {
	if p == Reject {
		return "reject"
	}
	return "pass"
}

// ParseStabilityPolicy accepts "pass" or "reject".
func ParseStabilityPolicy(s string) (StabilityPolicy, error) {
	switch strings.ToLower(s) {
	case "", "pass", "passthrough":
		return PassThrough, nil
	case "reject":
		return Reject, nil
	}
	return 0, fmt.Errorf("unknown stability policy %q", s)
}

// IIRFilter applies a direct-form IIR filter to a float stream.
type IIRFilter struct {
	named
	policy StabilityPolicy
	f      *dsp.IIRFilter
}

func NewIIRFilter(spec dsp.IIRSpec, policy StabilityPolicy) *IIRFilter {
	return &IIRFilter{
		named:  named{name: "iir_filter"},
		policy: policy,
		f:      dsp.NewIIRFilter(spec),
	}
}

func (b *IIRFilter) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:  []flowgraph.Kind{flowgraph.KindFloat},
		Outputs: []flowgraph.Kind{flowgraph.KindFloat},
	}
}

func (b *IIRFilter) Validate() error {
	spec := b.f.Spec()
	if len(spec.B) == 0 || len(spec.A) == 0 {
		return fmt.Errorf("%w: empty coefficient vector", dsp.ErrInvalidFilter)
	}
	if b.policy == Reject && !spec.Stable() {
		return fmt.Errorf("%w: poles outside the unit circle", dsp.ErrInvalidFilter)
	}
	return nil
}

func (b *IIRFilter) Work(w *flowgraph.Work) error {
	n := common(w)
	out := w.Out[0].Float()
	for i, x := range w.In[0].Float()[:n] {
		out[i] = float32(b.f.Filter(float64(x)))
	}
	w.Consume(0, n)
	w.Produce(0, n)
	return nil
}

// FreqXlatingFIR mixes its complex input down by Center Hz, low-pass filters
// it with the given taps and decimates, all in one block. The output equals
// running a mixer, an FIR filter and a keep-one-in-D stage separately.
type FreqXlatingFIR struct {
	named
	center     float64
	sampleRate float64
	ntaps      int
	nco        *dsp.NCO
	f          *dsp.FIRFilter[complex64]
}

func NewFreqXlatingFIR(decimation int, taps []float64, center, sampleRate float64) *FreqXlatingFIR {
	b := &FreqXlatingFIR{
		named:      named{name: "freq_xlating_fir_filter"},
		center:     center,
		sampleRate: sampleRate,
		ntaps:      len(taps),
		f:          dsp.NewFIRFilter(dsp.ComplexTaps(taps), decimation),
	}
	if sampleRate > 0 {
		b.nco = dsp.NewNCO(-center, sampleRate)
	}
	return b
}

func (b *FreqXlatingFIR) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:     []flowgraph.Kind{flowgraph.KindComplex},
		Outputs:    []flowgraph.Kind{flowgraph.KindComplex},
		Decimation: b.f.Decimation(),
	}
}

func (b *FreqXlatingFIR) Validate() error {
	if b.sampleRate <= 0 {
		return fmt.Errorf("sample rate %g must be positive", b.sampleRate)
	}
	if b.ntaps == 0 {
		return fmt.Errorf("%w: no taps", dsp.ErrInvalidFilter)
	}
	if b.center >= b.sampleRate/2 || b.center <= -b.sampleRate/2 {
		return errors.New("center frequency must lie within ±fs/2")
	}
	return nil
}

func (b *FreqXlatingFIR) Work(w *flowgraph.Work) error {
	mix := func(x complex64) complex64 { return x * b.nco.Complex(1, 0) }
	consumed, produced := decimate(b.f, w.In[0].Complex(), w.Out[0].Complex(), mix)
	w.Consume(0, consumed)
	w.Produce(0, produced)
	return nil
}
