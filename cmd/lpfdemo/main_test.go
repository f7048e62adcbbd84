package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-flowgraph/internal/stream"
)

func readStreams(t *testing.T, path string) (stream.HeaderRecord, [][]float32) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	h, samples, err := stream.ReadFile(f)
	require.NoError(t, err)
	streams, err := stream.Deinterleave(samples, h.MuxFormat)
	require.NoError(t, err)
	return h, streams
}

func TestRun_FIR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fir_lpf_signal.dat")
	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{path}, &stderr), stderr.String())

	h, streams := readStreams(t, path)
	assert.Equal(t, 44000.0, h.SampleRate)
	assert.Equal(t, []int{1, 1}, h.MuxFormat)
	require.Len(t, streams, 2)
	require.Len(t, streams[0], 1760)
	require.Len(t, streams[1], 1760)

	raw5k, ok := toneAmplitude(streams[0], h.SampleRate, 5000)
	require.True(t, ok)
	filtered5k, _ := toneAmplitude(streams[1], h.SampleRate, 5000)
	assert.InDelta(t, 0.5, raw5k, 1e-3)
	assert.Less(t, filtered5k, raw5k/5)

	filtered200, _ := toneAmplitude(streams[1], h.SampleRate, 200)
	assert.Greater(t, filtered200, 0.8)
	assert.Contains(t, stderr.String(), "level")
}

func TestRun_IIRWritesBothStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iir.dat")
	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"--filter", "iir", path}, &stderr), stderr.String())

	_, streams := readStreams(t, path)
	require.Len(t, streams, 2)
	assert.Len(t, streams[0], 1760)
	assert.Len(t, streams[1], 1760)
	assert.Contains(t, stderr.String(), "IIR filter")
}

func TestRun_NoFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signal.dat")
	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"-f", "none", path}, &stderr), stderr.String())

	h, streams := readStreams(t, path)
	assert.Empty(t, h.MuxFormat)
	require.Len(t, streams, 1)
	assert.Len(t, streams[0], 1760)
}

func TestRun_ConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lpf.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("signal:\n  duration_ms: 10\n"), 0o600))
	path := filepath.Join(dir, "out.dat")
	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"--config", cfgPath, path}, &stderr), stderr.String())

	_, streams := readStreams(t, path)
	assert.Len(t, streams[0], 440)
}

func TestRun_Errors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"a.dat", "b.dat"},
		{"--filter", "bessel", "a.dat"},
		{"--no-such-flag", "a.dat"},
	} {
		var stderr bytes.Buffer
		assert.Equal(t, 1, run(context.Background(), args, &stderr), "args %v", args)
		assert.Contains(t, stderr.String(), "Usage: lpfdemo")
	}

	var stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "out.dat")
	assert.Equal(t, 1, run(context.Background(), []string{missing}, &stderr))
	assert.NotContains(t, stderr.String(), "Usage:")
}
