package blocks

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"go-flowgraph/internal/dsp"
	"go-flowgraph/internal/flowgraph"
)

// Waveform selects what SignalSource emits.
type Waveform int

const (
	Sine Waveform = iota
	Cosine
	Constant
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Cosine:
		return "cosine"
	case Constant:
		return "constant"
	}
	return fmt.Sprintf("Waveform(%d)", int(w))
}

// ParseWaveform accepts "sine", "cosine" or "constant".
func ParseWaveform(s string) (Waveform, error) {
	switch strings.ToLower(s) {
	case "sine", "sin":
		return Sine, nil
	case "cosine", "cos":
		return Cosine, nil
	case "constant", "const":
		return Constant, nil
	}
	return 0, fmt.Errorf("unknown waveform %q", s)
}

// SignalConfig parameterises a SignalSource.
type SignalConfig struct {
	SampleRate float64
	Waveform   Waveform
	Frequency  float64
	Amplitude  float64
	Phase      float64 // initial phase offset, radians
	Offset     float64 // DC offset added to the real part
}

// SignalSource is a sinusoid or constant generator driven by an NCO. Real
// output is amp·sin(θ) or amp·cos(θ); complex cosine is amp·e^{jθ} and
// complex sine is amp·e^{j(θ−π/2)}, where θ = phase + Phase.
type SignalSource struct {
	named
	kind flowgraph.Kind
	cfg  SignalConfig
	nco  *dsp.NCO
}

// NewSignalSource creates a float or complex signal source.
func NewSignalSource(kind flowgraph.Kind, cfg SignalConfig) *SignalSource {
	return &SignalSource{
		named: named{name: "sig_source_" + kind.String()},
		kind:  kind,
		cfg:   cfg,
		nco:   dsp.NewNCO(cfg.Frequency, cfg.SampleRate),
	}
}

func (s *SignalSource) Signature() flowgraph.Signature {
	return flowgraph.Signature{Outputs: []flowgraph.Kind{s.kind}, SampleRate: s.cfg.SampleRate}
}

func (s *SignalSource) Validate() error {
	if s.cfg.SampleRate <= 0 {
		return fmt.Errorf("sample rate %g must be positive", s.cfg.SampleRate)
	}
	if s.kind != flowgraph.KindFloat && s.kind != flowgraph.KindComplex {
		return fmt.Errorf("unsupported output kind %v", s.kind)
	}
	if s.cfg.Waveform < Sine || s.cfg.Waveform > Constant {
		return fmt.Errorf("unknown waveform %v", s.cfg.Waveform)
	}
	return nil
}

func (s *SignalSource) Work(w *flowgraph.Work) error {
	amp, dc := s.cfg.Amplitude, s.cfg.Offset
	switch s.kind {
	case flowgraph.KindFloat:
		out := w.Out[0].Float()
		for i := range out {
			theta := s.nco.Step() + s.cfg.Phase
			switch s.cfg.Waveform {
			case Sine:
				out[i] = float32(amp*math.Sin(theta) + dc)
			case Cosine:
				out[i] = float32(amp*math.Cos(theta) + dc)
			default:
				out[i] = float32(amp + dc)
			}
		}
		w.Produce(0, len(out))
	case flowgraph.KindComplex:
		out := w.Out[0].Complex()
		for i := range out {
			theta := s.nco.Step() + s.cfg.Phase
			var v complex128
			switch s.cfg.Waveform {
			case Sine:
				sn, cs := math.Sincos(theta)
				v = complex(amp*sn, -amp*cs)
			case Cosine:
				sn, cs := math.Sincos(theta)
				v = complex(amp*cs, amp*sn)
			default:
				v = complex(amp, 0)
			}
			out[i] = complex64(v + complex(dc, 0))
		}
		w.Produce(0, len(out))
	}
	return nil
}

// UniformSource emits i.i.d. bytes uniformly drawn from [Min, Max). The
// generator is seeded explicitly and owned by the block.
type UniformSource struct {
	named
	min, max   int
	seed       uint64
	sampleRate float64
	rng        *rand.Rand
}

// NewUniformSource creates a source of integers in [lo, hi), e.g. random bits
// with lo=0, hi=2.
func NewUniformSource(lo, hi int, seed uint64, sampleRate float64) *UniformSource {
	return &UniformSource{
		named:      named{name: "random_uniform_source"},
		min:        lo,
		max:        hi,
		seed:       seed,
		sampleRate: sampleRate,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (u *UniformSource) Signature() flowgraph.Signature {
	return flowgraph.Signature{Outputs: []flowgraph.Kind{flowgraph.KindByte}, SampleRate: u.sampleRate}
}

func (u *UniformSource) Validate() error {
	if u.min < 0 || u.max > 256 || u.min >= u.max {
		return fmt.Errorf("range [%d, %d) must be non-empty and within [0, 256)", u.min, u.max)
	}
	return nil
}

func (u *UniformSource) Work(w *flowgraph.Work) error {
	out := w.Out[0].Bytes()
	span := u.max - u.min
	for i := range out {
		out[i] = byte(u.min + u.rng.IntN(span))
	}
	w.Produce(0, len(out))
	return nil
}

// VectorSource plays back an in-memory slice, once or repeatedly.
type VectorSource[T flowgraph.Sample] struct {
	named
	data       []T
	repeat     bool
	sampleRate float64
	pos        int
}

func NewVectorSource[T flowgraph.Sample](data []T, repeat bool, sampleRate float64) *VectorSource[T] {
	return &VectorSource[T]{
		named:      named{name: "vector_source"},
		data:       data,
		repeat:     repeat,
		sampleRate: sampleRate,
	}
}

func (v *VectorSource[T]) Signature() flowgraph.Signature {
	return flowgraph.Signature{Outputs: []flowgraph.Kind{flowgraph.KindOf[T]()}, SampleRate: v.sampleRate}
}

func (v *VectorSource[T]) Validate() error {
	if v.repeat && len(v.data) == 0 {
		return errors.New("cannot repeat an empty vector")
	}
	return nil
}

func (v *VectorSource[T]) Work(w *flowgraph.Work) error {
	out := flowgraph.As[T](w.Out[0])
	n := 0
	for n < len(out) {
		if v.pos == len(v.data) {
			if !v.repeat {
				break
			}
			v.pos = 0
		}
		c := copy(out[n:], v.data[v.pos:])
		v.pos += c
		n += c
	}
	w.Produce(0, n)
	if !v.repeat && v.pos == len(v.data) {
		w.Finish()
	}
	return nil
}
