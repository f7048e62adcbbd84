package dsp

import (
	"fmt"
	"math"
	"strings"
)

// Window selects the tapering function applied to an ideal impulse response.
type Window int

const (
	WindowHamming Window = iota
	WindowHann
	WindowBlackman
	WindowRectangular
)

func (w Window) String() string {
	switch w {
	case WindowHamming:
		return "hamming"
	case WindowHann:
		return "hann"
	case WindowBlackman:
		return "blackman"
	case WindowRectangular:
		return "rectangular"
	}
	return fmt.Sprintf("Window(%d)", int(w))
}

// ParseWindow maps a window name (as used in config files) to a Window.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hamming":
		return WindowHamming, nil
	case "hann", "hanning":
		return WindowHann, nil
	case "blackman":
		return WindowBlackman, nil
	case "rectangular", "rect", "boxcar":
		return WindowRectangular, nil
	}
	return 0, fmt.Errorf("%w: unknown window %q", ErrInvalidFilter, s)
}

// MaxAttenuation is the stopband attenuation in dB the window achieves. It
// drives the tap count estimate in TapCount.
func (w Window) MaxAttenuation() float64 {
	switch w {
	case WindowHamming:
		return 53
	case WindowHann:
		return 44
	case WindowBlackman:
		return 74
	default:
		return 21
	}
}

// Coefficients returns the n window weights.
func (w Window) Coefficients(n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = 1
		return out
	}
	m := float64(n - 1)
	for i := range out {
		x := 2 * math.Pi * float64(i) / m
		switch w {
		case WindowHamming:
			out[i] = 0.54 - 0.46*math.Cos(x)
		case WindowHann:
			out[i] = 0.5 - 0.5*math.Cos(x)
		case WindowBlackman:
			out[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		default:
			out[i] = 1
		}
	}
	return out
}

// UnmarshalText lets a Window be decoded straight from YAML or flags.
func (w *Window) UnmarshalText(text []byte) error {
	v, err := ParseWindow(string(text))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (w Window) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}
