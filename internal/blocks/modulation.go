package blocks

import (
	"go-flowgraph/internal/dsp"
	"go-flowgraph/internal/flowgraph"
)

// CPMMod turns a symbol byte stream into continuous-phase complex baseband,
// SamplesPerSymbol output samples per input byte.
type CPMMod struct {
	named
	mod     *dsp.CPMModulator
	buf     []complex64
	pending []complex64
}

// NewCPMMod creates an LREC CPM modulator with modulation index h and pulse
// length l symbols.
func NewCPMMod(h float64, samplesPerSymbol, l int) (*CPMMod, error) {
	mod, err := dsp.NewCPMModulator(h, samplesPerSymbol, l)
	if err != nil {
		return nil, err
	}
	return &CPMMod{
		named: named{name: "cpmmod"},
		mod:   mod,
		buf:   make([]complex64, samplesPerSymbol),
	}, nil
}

// NewMSKMod is NewCPMMod with h = 0.5 and L = 1.
func NewMSKMod(samplesPerSymbol int) (*CPMMod, error) {
	return NewCPMMod(0.5, samplesPerSymbol, 1)
}

func (m *CPMMod) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:        []flowgraph.Kind{flowgraph.KindByte},
		Outputs:       []flowgraph.Kind{flowgraph.KindComplex},
		Interpolation: m.mod.SamplesPerSymbol(),
	}
}

func (m *CPMMod) Work(w *flowgraph.Work) error {
	in := w.In[0].Bytes()
	out := w.Out[0].Complex()
	sps := m.mod.SamplesPerSymbol()

	p := copy(out, m.pending)
	m.pending = m.pending[p:]
	i := 0
	for i < len(in) && len(m.pending) == 0 && p < len(out) {
		if len(out)-p >= sps {
			p += m.mod.ModulateBit(in[i], out[p:p+sps])
		} else {
			// Only part of the symbol fits; hold the rest for the next call.
			n := m.mod.ModulateBit(in[i], m.buf)
			c := copy(out[p:], m.buf[:n])
			m.pending = m.buf[c:n]
			p += c
		}
		i++
	}
	w.Consume(0, i)
	w.Produce(0, p)
	return nil
}

// QuadDemod outputs gain·arg(x[i]·conj(x[i−1])).
type QuadDemod struct {
	named
	d *dsp.QuadDemod
}

func NewQuadDemod(gain float32) *QuadDemod {
	return &QuadDemod{named: named{name: "quadrature_demod"}, d: dsp.NewQuadDemod(gain)}
}

func (q *QuadDemod) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:  []flowgraph.Kind{flowgraph.KindComplex},
		Outputs: []flowgraph.Kind{flowgraph.KindFloat},
	}
}

func (q *QuadDemod) Work(w *flowgraph.Work) error {
	n := common(w)
	out := w.Out[0].Float()
	for i, x := range w.In[0].Complex()[:n] {
		out[i] = q.d.Demod(x)
	}
	w.Consume(0, n)
	w.Produce(0, n)
	return nil
}

// Goertzel emits one complex value per window of N real samples: 2y/N, whose
// magnitude estimates the tone amplitude and whose argument is the phase.
type Goertzel struct {
	named
	g *dsp.Goertzel
}

func NewGoertzel(sampleRate float64, n int, frequency float64) (*Goertzel, error) {
	g, err := dsp.NewGoertzel(sampleRate, n, frequency)
	if err != nil {
		return nil, err
	}
	return &Goertzel{named: named{name: "goertzel"}, g: g}, nil
}

func (b *Goertzel) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:     []flowgraph.Kind{flowgraph.KindFloat},
		Outputs:    []flowgraph.Kind{flowgraph.KindComplex},
		Decimation: b.g.Len(),
	}
}

func (b *Goertzel) Work(w *flowgraph.Work) error {
	out := w.Out[0].Complex()
	consumed, produced := 0, 0
	for _, x := range w.In[0].Float() {
		if b.g.WillComplete() && produced == len(out) {
			break
		}
		if r, ok := b.g.Push(float64(x)); ok {
			out[produced] = r.Normalized()
			produced++
		}
		consumed++
	}
	w.Consume(0, consumed)
	w.Produce(0, produced)
	return nil
}
