package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_StopsAfterDuration(t *testing.T) {
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"--duration", "150ms", "--rate", "8000", "--log-level", "debug"}, &stderr)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), "flowgraph finished")
}

func TestRun_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"extra"},
		{"--duration", "0s"},
		{"--no-such-flag"},
		{"--log-level", "loud"},
	} {
		var stderr bytes.Buffer
		assert.Equal(t, 1, run(context.Background(), args, &stderr), "args %v", args)
		assert.Contains(t, stderr.String(), "Usage: flowcheck", "args %v", args)
	}
}

func TestRun_UnknownFlagIsReported(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), []string{"--no-such-flag"}, &stderr))
	assert.Contains(t, stderr.String(), "unknown flag: --no-such-flag")
	assert.Contains(t, stderr.String(), "--duration")
}

func TestRun_Help(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 0, run(context.Background(), []string{"--help"}, &stderr))
	assert.Contains(t, stderr.String(), "--duration")
}

func TestRun_CancelledContextStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stderr bytes.Buffer
	assert.Equal(t, 0, run(ctx, []string{"--duration", "1h"}, &stderr), stderr.String())
}
