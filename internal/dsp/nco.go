package dsp

import "math"

const tau = math.Pi * 2

// NCO is a phase accumulator advancing by 2π·frequency/sampleRate per sample.
// The phase is kept wrapped to [-π, π).
type NCO struct {
	phase float64
	inc   float64
}

// NewNCO creates an oscillator starting at phase 0.
func NewNCO(frequency, sampleRate float64) *NCO {
	o := &NCO{}
	o.SetFrequency(frequency, sampleRate)
	return o
}

// SetFrequency changes the per-sample phase increment.
func (o *NCO) SetFrequency(frequency, sampleRate float64) {
	o.inc = tau * frequency / sampleRate
}

// Increment returns the phase advance per sample in radians.
func (o *NCO) Increment() float64 {
	return o.inc
}

// Phase returns the phase of the next sample.
func (o *NCO) Phase() float64 {
	return o.phase
}

// Step returns the current phase and advances the accumulator.
func (o *NCO) Step() float64 {
	p := o.phase
	o.phase = wrapPhase(o.phase + o.inc)
	return p
}

// Complex returns amplitude·e^{j(phase+offset)} and advances.
func (o *NCO) Complex(amplitude, offset float64) complex64 {
	s, c := math.Sincos(o.Step() + offset)
	return complex(float32(amplitude*c), float32(amplitude*s))
}

func wrapPhase(p float64) float64 {
	if p >= math.Pi || p < -math.Pi {
		p = math.Mod(p+math.Pi, tau)
		if p < 0 {
			p += tau
		}
		p -= math.Pi
	}
	return p
}
