package blocks

import (
	"fmt"

	"go-flowgraph/internal/dsp"
	"go-flowgraph/internal/flowgraph"
)

type op int

const (
	opAdd op = iota
	opSub
	opMul
)

// Combiner applies an element-wise operation across N inputs of the same
// kind and sample rate. For output i the inputs are folded left to right:
// in0[i] ∘ in1[i] ∘ … ∘ in(N−1)[i].
type Combiner[T dsp.Sample] struct {
	named
	op op
	n  int
}

// NewAdd returns out[i] = Σ in_k[i].
func NewAdd[T dsp.Sample](n int) *Combiner[T] {
	return &Combiner[T]{named: named{name: "add"}, op: opAdd, n: n}
}

// NewSubtract returns out[i] = in0[i] − in1[i] − … − in(N−1)[i].
func NewSubtract[T dsp.Sample](n int) *Combiner[T] {
	return &Combiner[T]{named: named{name: "sub"}, op: opSub, n: n}
}

// NewMultiply returns out[i] = Π in_k[i]. With a complex NCO on one input it
// is the mixer.
func NewMultiply[T dsp.Sample](n int) *Combiner[T] {
	return &Combiner[T]{named: named{name: "multiply"}, op: opMul, n: n}
}

func (c *Combiner[T]) Signature() flowgraph.Signature {
	k := flowgraph.KindOf[T]()
	return flowgraph.Signature{
		Inputs:       flowgraph.Repeat(k, c.n),
		Outputs:      []flowgraph.Kind{k},
		MatchedRates: true,
	}
}

func (c *Combiner[T]) Validate() error {
	if c.n < 1 {
		return fmt.Errorf("need at least one input, got %d", c.n)
	}
	return nil
}

func (c *Combiner[T]) Work(w *flowgraph.Work) error {
	n := common(w)
	if n == 0 {
		if anyExhausted(w) {
			w.Finish()
		}
		return nil
	}
	out := flowgraph.As[T](w.Out[0])[:n]
	copy(out, flowgraph.As[T](w.In[0]))
	for k := 1; k < len(w.In); k++ {
		in := flowgraph.As[T](w.In[k])
		switch c.op {
		case opAdd:
			for i := range out {
				out[i] += in[i]
			}
		case opSub:
			for i := range out {
				out[i] -= in[i]
			}
		case opMul:
			for i := range out {
				out[i] *= in[i]
			}
		}
	}
	w.ConsumeEach(n)
	w.Produce(0, n)
	return nil
}

// Const applies a constant to every sample: add_const or multiply_const.
type Const[T dsp.Sample] struct {
	named
	op op
	k  T
}

func NewAddConst[T dsp.Sample](k T) *Const[T] {
	return &Const[T]{named: named{name: "add_const"}, op: opAdd, k: k}
}

func NewMultiplyConst[T dsp.Sample](k T) *Const[T] {
	return &Const[T]{named: named{name: "multiply_const"}, op: opMul, k: k}
}

func (c *Const[T]) Signature() flowgraph.Signature {
	k := flowgraph.KindOf[T]()
	return flowgraph.Signature{Inputs: []flowgraph.Kind{k}, Outputs: []flowgraph.Kind{k}}
}

func (c *Const[T]) Work(w *flowgraph.Work) error {
	n := common(w)
	in := flowgraph.As[T](w.In[0])[:n]
	out := flowgraph.As[T](w.Out[0])
	if c.op == opAdd {
		for i, x := range in {
			out[i] = x + c.k
		}
	} else {
		for i, x := range in {
			out[i] = x * c.k
		}
	}
	w.Consume(0, n)
	w.Produce(0, n)
	return nil
}
