package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommon_Flags(t *testing.T) {
	fs := pflag.NewFlagSet("x", pflag.ContinueOnError)
	var c Common
	c.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"-c", "a.yaml", "--log-level", "debug", "--metrics-addr", ":9100"}))
	assert.Equal(t, Common{ConfigPath: "a.yaml", LogLevel: "debug", MetricsAddr: ":9100"}, c)
}

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	env, err := (&Common{LogLevel: "warn"}).Setup("tool", &buf)
	require.NoError(t, err)
	assert.Equal(t, log.WarnLevel, env.Logger.GetLevel())
	assert.Nil(t, env.Metrics)
	assert.Len(t, env.GraphOptions(), 4)

	env.Logger.Info("hidden")
	env.Logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "tool")

	_, err = (&Common{LogLevel: "chatty"}).Setup("tool", &buf)
	assert.ErrorIs(t, err, ErrUsage)
}

func TestSetup_ConfigAndMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  addr: \":9200\"\nmsk:\n  seed: 3\n"), 0o600))

	env, err := (&Common{ConfigPath: path, LogLevel: "info"}).Setup("tool", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), env.Config.MSK.Seed)
	assert.Equal(t, ":9200", env.Config.Metrics.Addr)
	assert.NotNil(t, env.Metrics)

	env, err = (&Common{ConfigPath: path, LogLevel: "info", MetricsAddr: ":9300"}).Setup("tool", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, ":9300", env.Config.Metrics.Addr)

	_, err = (&Common{ConfigPath: filepath.Join(t.TempDir(), "none.yaml"), LogLevel: "info"}).Setup("tool", &bytes.Buffer{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExit(t *testing.T) {
	var stderr bytes.Buffer
	usageCalled := false
	usage := func() { usageCalled = true }

	assert.Equal(t, 0, Exit(nil, nil, &stderr, usage))
	assert.Equal(t, 1, Exit(Usagef("bad %d", 3), nil, &stderr, usage))
	assert.True(t, usageCalled)
	assert.Contains(t, stderr.String(), "usage: bad 3")

	usageCalled = false
	stderr.Reset()
	logger := log.New(&stderr)
	assert.Equal(t, 1, Exit(errors.New("disk full"), logger, &stderr, usage))
	assert.False(t, usageCalled)
	assert.Contains(t, stderr.String(), "disk full")

	stderr.Reset()
	assert.Equal(t, 1, Exit(errors.New("early"), nil, &stderr, usage))
	assert.Contains(t, stderr.String(), "error: early")
}
