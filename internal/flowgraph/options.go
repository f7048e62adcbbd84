package flowgraph

import (
	"io"

	"github.com/charmbracelet/log"

	"go-flowgraph/internal/metrics"
)

const (
	DefaultEdgeCapacity = 8192
	DefaultMaxItems     = 4096
)

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used by the scheduler. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithMetrics records per-block work statistics.
func WithMetrics(m *metrics.Scheduler) Option {
	return func(g *Graph) { g.metrics = m }
}

// WithEdgeCapacity sets the number of samples each edge can hold.
func WithEdgeCapacity(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.edgeCapacity = n
		}
	}
}

// WithMaxItems bounds the window offered to a single Work call.
func WithMaxItems(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxItems = n
		}
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
