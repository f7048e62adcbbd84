package flowgraph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRunning is returned when the topology is changed after Start, or
	// when Start is called twice.
	ErrRunning = errors.New("graph is running")

	ErrNotStarted = errors.New("graph was not started")
)

// TopologyError reports an invalid connection or port layout.
type TopologyError struct {
	Op     string
	Reason string
	Err    error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("flowgraph: %s: %s", e.Op, e.Reason)
}

func (e *TopologyError) Unwrap() error { return e.Err }

func topologyErr(op, format string, args ...any) *TopologyError {
	return &TopologyError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// RateMismatchError reports inputs of a matched-rate block that disagree.
type RateMismatchError struct {
	Block string
	Rates []float64
}

func (e *RateMismatchError) Error() string {
	rates := make([]string, len(e.Rates))
	for i, r := range e.Rates {
		rates[i] = fmt.Sprintf("%g", r)
	}
	return fmt.Sprintf("flowgraph: %s: input sample rates differ: [%s]", e.Block, strings.Join(rates, ", "))
}

// CycleError is returned by Start when the graph contains a cycle.
type CycleError struct {
	Blocks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("flowgraph: cycle through %s", strings.Join(e.Blocks, ", "))
}

// ConfigError wraps a block's validation failure.
type ConfigError struct {
	Block string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("flowgraph: %s: invalid configuration: %v", e.Block, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
