package dsp

// DeemphasisSpec returns the single-pole low-pass used for FM de-emphasis as
// IIR coefficients.
// sampleRate is the audio sample rate.
// tau is the time constant (e.g., 50e-6 for Europe, 75e-6 for US).
func DeemphasisSpec(sampleRate float64, tau float64) IIRSpec {
	dt := 1.0 / sampleRate
	alpha := dt / (tau + dt)
	return IIRSpec{
		B: []float64{alpha},
		A: []float64{1, alpha - 1},
	}
}

// NewDeemphasis creates a de-emphasis filter.
func NewDeemphasis(sampleRate int, tau float64) *IIRFilter {
	return NewIIRFilter(DeemphasisSpec(float64(sampleRate), tau))
}
