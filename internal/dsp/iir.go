package dsp

import (
	"fmt"
	"math"
)

// IIRSpec holds direct-form feedforward (B) and feedback (A) coefficients.
// A[0] is always 1 once the spec has been built by NewIIRSpec.
type IIRSpec struct {
	B []float64
	A []float64
}

// NewIIRSpec validates caller supplied coefficients, typically designed
// offline, and normalises them so that A[0] == 1.
func NewIIRSpec(b, a []float64) (IIRSpec, error) {
	if len(b) == 0 {
		return IIRSpec{}, fmt.Errorf("%w: feedforward coefficients are empty", ErrInvalidFilter)
	}
	if len(a) == 0 {
		return IIRSpec{}, fmt.Errorf("%w: feedback coefficients are empty", ErrInvalidFilter)
	}
	if a[0] == 0 {
		return IIRSpec{}, fmt.Errorf("%w: feedback coefficient a[0] must be non-zero", ErrInvalidFilter)
	}
	for i, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return IIRSpec{}, fmt.Errorf("%w: b[%d] is not finite", ErrInvalidFilter, i)
		}
	}
	for i, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return IIRSpec{}, fmt.Errorf("%w: a[%d] is not finite", ErrInvalidFilter, i)
		}
	}

	spec := IIRSpec{B: make([]float64, len(b)), A: make([]float64, len(a))}
	a0 := a[0]
	for i, v := range b {
		spec.B[i] = v / a0
	}
	for i, v := range a {
		spec.A[i] = v / a0
	}
	spec.A[0] = 1
	return spec, nil
}

// Order is the filter order, the longer of the two delay lines.
func (s IIRSpec) Order() int {
	return max(len(s.B), len(s.A)) - 1
}

// Stable reports whether every pole lies strictly inside the unit circle,
// using the Schur-Cohn step-down recursion on the feedback polynomial.
func (s IIRSpec) Stable() bool {
	p := len(s.A) - 1
	if p <= 0 {
		return true
	}
	a := make([]float64, len(s.A))
	copy(a, s.A)
	for m := p; m >= 1; m-- {
		k := a[m]
		if math.Abs(k) >= 1 {
			return false
		}
		d := 1 - k*k
		next := make([]float64, m)
		for i := 0; i < m; i++ {
			next[i] = (a[i] - k*a[m-i]) / d
		}
		a = next
	}
	return true
}

// IIRFilter applies an IIRSpec in direct form I:
//
//	y[n] = Σ b[k]·x[n−k] − Σ_{k≥1} a[k]·y[n−k]
//
// Arithmetic is carried in float64. Unstable coefficient sets are not
// detected here; overflow propagates as ±Inf/NaN rather than panicking.
type IIRFilter struct {
	spec IIRSpec
	x    []float64 // x[n-1], x[n-2], ...
	y    []float64 // y[n-1], y[n-2], ...
}

// NewIIRFilter creates a filter with zeroed history.
func NewIIRFilter(spec IIRSpec) *IIRFilter {
	return &IIRFilter{
		spec: spec,
		x:    make([]float64, max(len(spec.B)-1, 0)),
		y:    make([]float64, max(len(spec.A)-1, 0)),
	}
}

// Spec returns the coefficients in use.
func (f *IIRFilter) Spec() IIRSpec {
	return f.spec
}

// Filter applies the filter to a single sample.
func (f *IIRFilter) Filter(x float64) float64 {
	b, a := f.spec.B, f.spec.A

	acc := b[0] * x
	for k := 1; k < len(b); k++ {
		acc += b[k] * f.x[k-1]
	}
	for k := 1; k < len(a); k++ {
		acc -= a[k] * f.y[k-1]
	}

	if len(f.x) > 0 {
		copy(f.x[1:], f.x[:len(f.x)-1])
		f.x[0] = x
	}
	if len(f.y) > 0 {
		copy(f.y[1:], f.y[:len(f.y)-1])
		f.y[0] = acc
	}
	return acc
}

// Process filters a block of samples.
func (f *IIRFilter) Process(input []float32) []float32 {
	out := make([]float32, len(input))
	for i, x := range input {
		out[i] = float32(f.Filter(float64(x)))
	}
	return out
}

// Reset zeroes the delay lines.
func (f *IIRFilter) Reset() {
	clear(f.x)
	clear(f.y)
}

// BinomialNumerator returns feedforward coefficients K·C(n,k) for the
// feedback polynomial a of order n: every zero at z = −1, as in a
// Butterworth low-pass, with K chosen for unity gain at DC.
func BinomialNumerator(a []float64) []float64 {
	if len(a) == 0 {
		return nil
	}
	n := len(a) - 1
	var sum float64
	for _, v := range a {
		sum += v
	}
	k := sum / a[0] / math.Ldexp(1, n)
	b := make([]float64, n+1)
	c := 1.0
	for i := range b {
		b[i] = k * c
		c = c * float64(n-i) / float64(i+1)
	}
	return b
}
