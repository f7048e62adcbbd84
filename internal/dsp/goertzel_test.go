package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
	"pgregory.net/rapid"
)

func TestGoertzel_MatchesDFT(t *testing.T) {
	const (
		fs = 8000.0
		n  = 400
		f  = 1000.0 // bin 50
	)
	fft := fourier.NewFFT(n)

	rapid.Check(t, func(t *rapid.T) {
		x := rapid.SliceOfN(rapid.Float64Range(-1, 1), n, n).Draw(t, "x")
		g, err := NewGoertzel(fs, n, f)
		if err != nil {
			t.Fatalf("goertzel: %v", err)
		}
		var r Result
		var ok bool
		for _, v := range x {
			r, ok = g.Push(v)
		}
		require.True(t, ok)

		want := fft.Coefficients(nil, x)[50]
		got := r.DFT()
		if cmplx.Abs(got-want) > 1e-9*n {
			t.Fatalf("goertzel %v, dft %v", got, want)
		}
		assert.InDelta(t, cmplx.Abs(want), cmplx.Abs(r.Y), 1e-9*n)
	})
}

func TestGoertzel_AmplitudeConverges(t *testing.T) {
	const (
		fs = 44000.0
		f  = 1234.5 // deliberately between bins
		a  = 0.7
	)
	// Leakage from the negative-frequency image is bounded by a/(N·sin ω).
	bound := a / math.Sin(2*math.Pi*f/fs)
	var e float64
	for _, n := range []int{100, 1000, 10000, 100000} {
		g, err := NewGoertzel(fs, n, f)
		require.NoError(t, err)
		var r Result
		for i := 0; i < n; i++ {
			r, _ = g.Push(a * math.Sin(2*math.Pi*f*float64(i)/fs))
		}
		e = math.Abs(r.Amplitude() - a)
		assert.LessOrEqual(t, e, 1.01*bound/float64(n)+1e-9, "window %d", n)
	}
	assert.Less(t, e, 1e-4)
}

func TestGoertzel_ExactBinAmplitudeAndPhase(t *testing.T) {
	const (
		fs = 6000.0
		n  = 600
		f  = 100.0
	)
	g, err := NewGoertzel(fs, n, f)
	require.NoError(t, err)

	// Two windows: the second must not be polluted by the first.
	var results []Result
	for i := 0; i < 2*n; i++ {
		if r, ok := g.Push(2 * math.Cos(2*math.Pi*f*float64(i)/fs+math.Pi/3)); ok {
			results = append(results, r)
		}
	}
	require.Len(t, results, 2)
	for _, r := range results {
		assert.InDelta(t, 2.0, r.Amplitude(), 1e-9)
		assert.InDelta(t, math.Pi/3, cmplx.Phase(r.DFT()), 1e-9)
		assert.InDelta(t, 2.0, cmplx.Abs(complex128(r.Normalized())), 1e-6)
	}
}

func TestGoertzel_Invalid(t *testing.T) {
	_, err := NewGoertzel(0, 10, 100)
	assert.Error(t, err)
	_, err = NewGoertzel(8000, 1, 100)
	assert.Error(t, err)
}
