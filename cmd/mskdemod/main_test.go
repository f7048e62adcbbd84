package main

import (
	"bytes"
	"context"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-flowgraph/internal/audio"
	"go-flowgraph/internal/blocks"
	"go-flowgraph/internal/cli"
	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/stream"
)

// tone returns seconds of amp·cos(2πf·t) at rate.
func tone(rate, f, amp, seconds float64) []float32 {
	out := make([]float32, int(rate*seconds))
	for i := range out {
		out[i] = float32(amp * math.Cos(2*math.Pi*f*float64(i)/rate))
	}
	return out
}

func writeWAV(t *testing.T, path string, data []float32, rate int) {
	t.Helper()
	g := flowgraph.New("write")
	src := g.Add(blocks.NewVectorSource(data, false, float64(rate)))
	sink := g.Add(audio.NewWAVSink(path, rate))
	require.NoError(t, g.Connect(src, 0, sink, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, g.Run(ctx))
}

func testEnv(t *testing.T, stderr io.Writer) *cli.Env {
	t.Helper()
	common := cli.Common{LogLevel: "info"}
	env, err := common.Setup("mskdemod", stderr)
	require.NoError(t, err)
	return env
}

func TestBuild_ReportsSquaredBasebandTone(t *testing.T) {
	// 859 Hz lands at +50 Hz after translation by 809 Hz; squaring moves it
	// to 100 Hz with amplitude (0.8/2)².
	var logs bytes.Buffer
	env := testEnv(t, &logs)
	src := blocks.NewVectorSource(tone(48000, 859, 0.8, 2), false, 48000)

	p, err := build(env, src, 48000, options{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, p.g.Run(ctx))

	last, windows := p.reporter.Last()
	assert.Equal(t, 2, windows)
	assert.InDelta(t, 0.16, cmplx.Abs(complex128(last)), 0.01)
	assert.Contains(t, logs.String(), "tone")
}

func TestRun_WAVWithOutput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "msk.wav")
	writeWAV(t, in, tone(48000, 909, 0.5, 2), 48000)
	out := filepath.Join(dir, "demod.dat")

	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"--out", out, in}, &stderr), stderr.String())
	assert.Contains(t, stderr.String(), "windows=2")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	h, samples, err := stream.ReadFile(f)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, h.SampleRate)
	require.Len(t, samples, 12000)

	// A +100 Hz baseband tone turns at 2π·100/6000 rad per sample.
	want := 2 * math.Pi * 100 / 6000
	for _, x := range samples[6000:6100] {
		assert.InDelta(t, want, float64(x), 5e-3)
	}
}

func TestRun_RepeatWithDuration(t *testing.T) {
	in := filepath.Join(t.TempDir(), "short.wav")
	writeWAV(t, in, tone(48000, 909, 0.5, 0.1), 48000)

	var stderr bytes.Buffer
	start := time.Now()
	require.Equal(t, 0, run(context.Background(), []string{"--repeat", "--duration", "200ms", in}, &stderr), stderr.String())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_Errors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"a.wav", "b.wav"},
		{"--device", "hw:1,0", "a.wav"},
		{"--duration", "-1s", "a.wav"},
		{"-x", "a.wav"},
	} {
		var stderr bytes.Buffer
		assert.Equal(t, 1, run(context.Background(), args, &stderr), "args %v", args)
		assert.Contains(t, stderr.String(), "Usage: mskdemod", "args %v", args)
	}

	var stderr bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.wav")}, &stderr))
	assert.NotContains(t, stderr.String(), "Usage:")
}

func TestRun_DeemphasisKeepsSteadyRate(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "msk.wav")
	writeWAV(t, in, tone(48000, 909, 0.5, 1), 48000)
	cfg := filepath.Join(dir, "demod.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("demod:\n  deemphasis_tau: 0.001\n"), 0o600))
	out := filepath.Join(dir, "demod.dat")

	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"-c", cfg, "-o", out, in}, &stderr), stderr.String())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	_, samples, err := stream.ReadFile(f)
	require.NoError(t, err)
	require.Len(t, samples, 6000)
	// The single-pole smoother settles to unity gain.
	want := 2 * math.Pi * 100 / 6000
	assert.InDelta(t, want, float64(samples[5999]), 5e-3)
}
