package dsp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFilter is wrapped by every filter design or validation failure.
var ErrInvalidFilter = errors.New("invalid filter specification")

// TapCount estimates the number of taps needed for the given transition
// width: ntaps = attenuation·fs / (22·transition), rounded up to odd so the
// filter has a centre tap.
func TapCount(sampleRate, transition float64, w Window) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("%w: sample rate %g must be positive", ErrInvalidFilter, sampleRate)
	}
	if transition <= 0 {
		return 0, fmt.Errorf("%w: transition width %g must be positive", ErrInvalidFilter, transition)
	}
	ntaps := int(w.MaxAttenuation() * sampleRate / (22 * transition))
	if ntaps < 1 {
		ntaps = 1
	}
	if ntaps%2 == 0 {
		ntaps++
	}
	return ntaps, nil
}

// DesignLowPass creates a low-pass FIR filter using the windowed-sinc method.
// The taps are normalised so the DC gain equals gain.
func DesignLowPass(gain, sampleRate, cutoff, transition float64, w Window) ([]float64, error) {
	if cutoff <= 0 || cutoff > sampleRate/2 {
		return nil, fmt.Errorf("%w: cutoff %g outside (0, %g]", ErrInvalidFilter, cutoff, sampleRate/2)
	}
	ntaps, err := TapCount(sampleRate, transition, w)
	if err != nil {
		return nil, err
	}

	taps := make([]float64, ntaps)
	win := w.Coefficients(ntaps)
	m := (ntaps - 1) / 2
	fwT0 := 2 * math.Pi * cutoff / sampleRate

	for n := -m; n <= m; n++ {
		if n == 0 {
			taps[m] = fwT0 / math.Pi * win[m]
		} else {
			taps[n+m] = math.Sin(float64(n)*fwT0) / (float64(n) * math.Pi) * win[n+m]
		}
	}

	// Normalize
	fmax := taps[m]
	for n := 1; n <= m; n++ {
		fmax += 2 * taps[n+m]
	}
	scale := gain / fmax
	for i := range taps {
		taps[i] *= scale
	}
	return taps, nil
}

// Float32Taps converts designed taps to the float32 sample domain.
func Float32Taps(taps []float64) []float32 {
	out := make([]float32, len(taps))
	for i, t := range taps {
		out[i] = float32(t)
	}
	return out
}

// ComplexTaps converts real taps to complex taps with zero imaginary part.
func ComplexTaps(taps []float64) []complex64 {
	out := make([]complex64, len(taps))
	for i, t := range taps {
		out[i] = complex(float32(t), 0)
	}
	return out
}
