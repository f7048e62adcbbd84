package blocks

import (
	"math"

	"go-flowgraph/internal/flowgraph"
)

// ByteToFloat converts unsigned bytes to float32.
type ByteToFloat struct{ named }

func NewByteToFloat() *ByteToFloat { return &ByteToFloat{named{name: "uchar_to_float"}} }

func (*ByteToFloat) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:  []flowgraph.Kind{flowgraph.KindByte},
		Outputs: []flowgraph.Kind{flowgraph.KindFloat},
	}
}

func (*ByteToFloat) Work(w *flowgraph.Work) error {
	n := common(w)
	out := w.Out[0].Float()
	for i, b := range w.In[0].Bytes()[:n] {
		out[i] = float32(b)
	}
	w.Consume(0, n)
	w.Produce(0, n)
	return nil
}

// FloatToByte rounds to the nearest int8, clamped to [−128, 127], and emits
// its two's-complement byte. It turns a ±1 float stream into symbols for
// the CPM modulator.
type FloatToByte struct{ named }

func NewFloatToByte() *FloatToByte { return &FloatToByte{named{name: "float_to_char"}} }

func (*FloatToByte) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:  []flowgraph.Kind{flowgraph.KindFloat},
		Outputs: []flowgraph.Kind{flowgraph.KindByte},
	}
}

func (*FloatToByte) Work(w *flowgraph.Work) error {
	n := common(w)
	out := w.Out[0].Bytes()
	for i, x := range w.In[0].Float()[:n] {
		v := math.Round(float64(x))
		v = math.Max(-128, math.Min(127, v))
		if math.IsNaN(v) {
			v = 0
		}
		out[i] = byte(int8(v))
	}
	w.Consume(0, n)
	w.Produce(0, n)
	return nil
}

// FloatToComplex builds complex samples from a real input and an optional
// imaginary input. Without the second input the imaginary part is zero.
type FloatToComplex struct {
	named
	imag bool
}

func NewFloatToComplex(withImag bool) *FloatToComplex {
	return &FloatToComplex{named: named{name: "float_to_complex"}, imag: withImag}
}

func (f *FloatToComplex) Signature() flowgraph.Signature {
	in := []flowgraph.Kind{flowgraph.KindFloat}
	if f.imag {
		in = append(in, flowgraph.KindFloat)
	}
	return flowgraph.Signature{Inputs: in, Outputs: []flowgraph.Kind{flowgraph.KindComplex}, MatchedRates: true}
}

func (f *FloatToComplex) Work(w *flowgraph.Work) error {
	n := common(w)
	if n == 0 {
		if anyExhausted(w) {
			w.Finish()
		}
		return nil
	}
	out := w.Out[0].Complex()
	re := w.In[0].Float()
	if f.imag {
		im := w.In[1].Float()
		for i := range n {
			out[i] = complex(re[i], im[i])
		}
	} else {
		for i := range n {
			out[i] = complex(re[i], 0)
		}
	}
	w.ConsumeEach(n)
	w.Produce(0, n)
	return nil
}

// ComplexToFloat splits complex samples into real (port 0) and imaginary
// (port 1) streams. Either output may be left unconnected.
type ComplexToFloat struct{ named }

func NewComplexToFloat() *ComplexToFloat { return &ComplexToFloat{named{name: "complex_to_float"}} }

func (*ComplexToFloat) Signature() flowgraph.Signature {
	return flowgraph.Signature{
		Inputs:  []flowgraph.Kind{flowgraph.KindComplex},
		Outputs: flowgraph.Repeat(flowgraph.KindFloat, 2),
	}
}

func (*ComplexToFloat) Work(w *flowgraph.Work) error {
	n := common(w)
	re, im := w.Out[0].Float(), w.Out[1].Float()
	for i, x := range w.In[0].Complex()[:n] {
		re[i] = real(x)
		im[i] = imag(x)
	}
	w.Consume(0, n)
	w.ProduceEach(n)
	return nil
}
