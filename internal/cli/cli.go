// Package cli holds the flags and setup shared by the command-line tools.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"go-flowgraph/internal/config"
	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/metrics"
)

// ErrUsage marks an argument error. Tools print their usage and exit 1.
var ErrUsage = errors.New("usage")

// Common are the flags every tool accepts.
type Common struct {
	ConfigPath  string
	LogLevel    string
	MetricsAddr string
}

func (c *Common) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ConfigPath, "config", "c", "", "YAML configuration file.")
	fs.StringVar(&c.LogLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100.")
}

// Env is what a tool has to hand once its flags are parsed.
type Env struct {
	Config  *config.Config
	Logger  *log.Logger
	Metrics *metrics.Scheduler

	registry *prometheus.Registry
}

// Setup builds the logger, loads the configuration and, when an address is
// configured, registers the scheduler metrics.
func (c *Common) Setup(name string, stderr io.Writer) (*Env, error) {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	logger := log.NewWithOptions(stderr, log.Options{
		Level:           level,
		Prefix:          name,
		ReportTimestamp: true,
	})

	cfg := config.New()
	if c.ConfigPath != "" {
		if cfg, err = config.Load(c.ConfigPath); err != nil {
			return nil, err
		}
	}
	if c.MetricsAddr != "" {
		cfg.Metrics.Addr = c.MetricsAddr
	}

	env := &Env{Config: cfg, Logger: logger}
	if cfg.Metrics.Addr != "" {
		env.registry = prometheus.NewRegistry()
		if env.Metrics, err = metrics.NewScheduler(env.registry); err != nil {
			return nil, err
		}
	}
	return env, nil
}

// GraphOptions wires the configuration, logger and metrics into a graph.
func (e *Env) GraphOptions() []flowgraph.Option {
	return append(e.Config.GraphOptions(),
		flowgraph.WithLogger(e.Logger),
		flowgraph.WithMetrics(e.Metrics),
	)
}

// ServeMetrics serves /metrics until ctx is done. It does nothing when no
// address is configured.
func (e *Env) ServeMetrics(ctx context.Context) {
	if e.registry == nil {
		return
	}
	addr := e.Config.Metrics.Addr
	e.Logger.Info("serving metrics", "addr", addr)
	go func() {
		if err := metrics.Serve(ctx, addr, e.registry); err != nil {
			e.Logger.Error("metrics server failed", "err", err)
		}
	}()
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Exit maps an error from a tool's run function to an exit status, printing
// usage for argument errors.
func Exit(err error, logger *log.Logger, stderr io.Writer, usage func()) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		fmt.Fprintln(stderr, err)
		usage()
		return 1
	case logger != nil:
		logger.Error("failed", "err", err)
	default:
		fmt.Fprintln(stderr, "error:", err)
	}
	return 1
}

// Usagef returns an ErrUsage with a message.
func Usagef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}
