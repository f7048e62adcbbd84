package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Goertzel evaluates a single DFT bin over consecutive windows of N samples:
//
//	s[n] = x[n] + 2cos(ω)·s[n−1] − s[n−2],  ω = 2πf/fs
//	y    = s[N−1] − e^{−jω}·s[N−2]
//
// State resets at each window boundary.
type Goertzel struct {
	n      int
	omega  float64
	coeff  float64
	s1, s2 float64
	count  int
}

// Result is the outcome of one analysis window.
type Result struct {
	Y     complex128
	N     int
	Omega float64
}

// NewGoertzel creates a detector for frequency over windows of n samples.
func NewGoertzel(sampleRate float64, n int, frequency float64) (*Goertzel, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("goertzel: sample rate %g must be positive", sampleRate)
	}
	if n < 2 {
		return nil, fmt.Errorf("goertzel: window length %d must be at least 2", n)
	}
	omega := tau * frequency / sampleRate
	return &Goertzel{
		n:     n,
		omega: omega,
		coeff: 2 * math.Cos(omega),
	}, nil
}

// Len returns the window length N.
func (g *Goertzel) Len() int {
	return g.n
}

// WillComplete reports whether the next Push ends a window.
func (g *Goertzel) WillComplete() bool {
	return g.count == g.n-1
}

// Push feeds one sample. When it completes a window the result is returned
// with ok set and the recurrence restarts.
func (g *Goertzel) Push(x float64) (r Result, ok bool) {
	s0 := x + g.coeff*g.s1 - g.s2
	g.s2 = g.s1
	g.s1 = s0
	g.count++
	if g.count < g.n {
		return r, false
	}
	r = Result{
		Y:     complex(g.s1, 0) - cmplx.Exp(complex(0, -g.omega))*complex(g.s2, 0),
		N:     g.n,
		Omega: g.omega,
	}
	g.Reset()
	return r, true
}

// Reset discards any partial window.
func (g *Goertzel) Reset() {
	g.s1, g.s2 = 0, 0
	g.count = 0
}

// Amplitude estimates the amplitude of a sinusoid at the target frequency.
func (r Result) Amplitude() float64 {
	return 2 * cmplx.Abs(r.Y) / float64(r.N)
}

// Phase returns arg(y) in radians.
func (r Result) Phase() float64 {
	return cmplx.Phase(r.Y)
}

// DFT rotates y by e^{−jω(N−1)} so it equals the direct DFT coefficient
// Σ x[n]·e^{−jωn}.
func (r Result) DFT() complex128 {
	return r.Y * cmplx.Exp(complex(0, -r.Omega*float64(r.N-1)))
}

// Normalized returns 2y/N: its magnitude is the amplitude estimate and its
// argument the phase.
func (r Result) Normalized() complex64 {
	return complex64(r.Y * complex(2/float64(r.N), 0))
}
