package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-flowgraph/internal/audio"
	"go-flowgraph/internal/blocks"
	"go-flowgraph/internal/flowgraph"
)

func readWAV(t *testing.T, path string) (int, []float32) {
	t.Helper()
	src, err := audio.OpenWAVSource(path, false)
	require.NoError(t, err)
	g := flowgraph.New("read")
	sid := g.Add(src)
	sink := blocks.NewVectorSink[float32]()
	vid := g.Add(sink)
	require.NoError(t, g.Connect(sid, 0, vid, 0))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, g.Run(ctx))
	return src.SampleRate(), sink.Data()
}

func TestRun_WritesMSK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "msk.wav")
	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"--seed", "7", "1", path}, &stderr), stderr.String())

	rate, data := readWAV(t, path)
	assert.Equal(t, 6400, rate)
	require.Len(t, data, 6400)
	var peak float32
	for _, x := range data {
		peak = max(peak, x, -x)
	}
	assert.LessOrEqual(t, peak, float32(1))
	assert.Greater(t, peak, float32(0.9))
	assert.Contains(t, stderr.String(), "clipped=0")

	// Same seed, same file.
	again := filepath.Join(dir, "again.wav")
	require.Equal(t, 0, run(context.Background(), []string{"--seed", "7", "1", again}, &stderr))
	_, data2 := readWAV(t, again)
	assert.Equal(t, data, data2)
}

func TestRun_FractionalDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	var stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"0.25", path}, &stderr), stderr.String())
	_, data := readWAV(t, path)
	assert.Len(t, data, 1600)
}

func TestRun_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"5"},
		{"five", "out.wav"},
		{"-1", "out.wav"},
		{"1", "out.wav", "extra"},
	} {
		var stderr bytes.Buffer
		assert.Equal(t, 1, run(context.Background(), args, &stderr), "args %v", args)
		assert.Contains(t, stderr.String(), "Usage: mskwavgen", "args %v", args)
	}
}
