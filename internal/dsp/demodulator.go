package dsp

import "math/cmplx"

// QuadDemod implements a polar discriminator: the output is the phase
// difference between consecutive complex samples, scaled by gain.
type QuadDemod struct {
	gain float32
	prev complex64
}

// NewQuadDemod creates a new quadrature demodulator.
func NewQuadDemod(gain float32) *QuadDemod {
	return &QuadDemod{gain: gain}
}

// Demod returns gain·arg(x·conj(prev)) and remembers x.
func (d *QuadDemod) Demod(x complex64) float32 {
	p := x * complex(real(d.prev), -imag(d.prev))
	d.prev = x
	return d.gain * float32(cmplx.Phase(complex128(p)))
}

// Process demodulates a block of complex IQ samples. The first output sample
// is the phase difference against the state left by the previous block.
func (d *QuadDemod) Process(samples []complex64) []float32 {
	if len(samples) == 0 {
		return nil
	}
	output := make([]float32, len(samples))
	for i, current := range samples {
		output[i] = d.Demod(current)
	}
	return output
}
