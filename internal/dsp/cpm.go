package dsp

import (
	"fmt"
	"math"
)

// CPMModulator produces continuous-phase modulation with a rectangular
// frequency pulse spanning L symbols (LREC). With h = 0.5 and L = 1 this is
// minimum-shift keying.
//
// Each output sample advances the phase by π·h·(sum of the last L symbols)/(L·sps),
// so the phase trajectory is continuous across symbol boundaries.
type CPMModulator struct {
	h      float64
	sps    int
	memory []float64 // last L symbols, newest first
	sum    float64
	phase  float64
}

// NewCPMModulator validates the parameters and returns a modulator with zero
// initial phase and zero symbol memory.
func NewCPMModulator(h float64, samplesPerSymbol, l int) (*CPMModulator, error) {
	if h <= 0 || math.IsNaN(h) || math.IsInf(h, 0) {
		return nil, fmt.Errorf("cpm: modulation index %g must be positive", h)
	}
	if samplesPerSymbol < 1 {
		return nil, fmt.Errorf("cpm: samples per symbol %d must be at least 1", samplesPerSymbol)
	}
	if l < 1 {
		return nil, fmt.Errorf("cpm: pulse length L=%d must be at least 1", l)
	}
	return &CPMModulator{
		h:      h,
		sps:    samplesPerSymbol,
		memory: make([]float64, l),
	}, nil
}

// NewMSKModulator is CPM with h = 0.5, L = 1.
func NewMSKModulator(samplesPerSymbol int) (*CPMModulator, error) {
	return NewCPMModulator(0.5, samplesPerSymbol, 1)
}

// SamplesPerSymbol returns the oversampling factor.
func (m *CPMModulator) SamplesPerSymbol() int {
	return m.sps
}

// Phase returns the unwrapped phase reached after the last emitted sample.
func (m *CPMModulator) Phase() float64 {
	return m.phase
}

// Symbol maps an input byte to a bipolar symbol. Read as int8, zero and
// negative values give −1 and positive values +1, so both {0,1} bits and
// {−1,+1} chars are accepted.
func Symbol(bit byte) float64 {
	if int8(bit) <= 0 {
		return -1
	}
	return 1
}

// ModulateBit writes SamplesPerSymbol() complex baseband samples for one bit
// into dst and returns the number written.
func (m *CPMModulator) ModulateBit(bit byte, dst []complex64) int {
	l := len(m.memory)
	m.sum -= m.memory[l-1]
	copy(m.memory[1:], m.memory[:l-1])
	m.memory[0] = Symbol(bit)
	m.sum += m.memory[0]

	inc := math.Pi * m.h * m.sum / float64(l*m.sps)
	n := min(m.sps, len(dst))
	for i := 0; i < n; i++ {
		m.phase += inc
		s, c := math.Sincos(m.phase)
		dst[i] = complex(float32(c), float32(s))
	}
	// Keep the accumulator bounded without changing the emitted waveform.
	if m.phase > 64*math.Pi || m.phase < -64*math.Pi {
		m.phase = math.Mod(m.phase, tau)
	}
	return n
}

// Modulate maps a whole bit slice to baseband.
func (m *CPMModulator) Modulate(bits []byte) []complex64 {
	out := make([]complex64, len(bits)*m.sps)
	for i, b := range bits {
		m.ModulateBit(b, out[i*m.sps:])
	}
	return out
}
