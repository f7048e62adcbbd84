// Package blocks holds the sources, sinks and transforms that make up the
// flowgraphs.
package blocks

import (
	"go-flowgraph/internal/flowgraph"
)

// named gives blocks a default name that callers can override.
type named struct {
	name string
}

func (n *named) Name() string { return n.name }

// SetName overrides the block name used in logs and metrics.
func (n *named) SetName(name string) { n.name = name }

// anyExhausted reports whether some input has ended with nothing left, which
// means a block that needs every input can never produce again.
func anyExhausted(w *flowgraph.Work) bool {
	for i := range w.In {
		if w.Exhausted(i) {
			return true
		}
	}
	return false
}

// common returns the number of samples available on every input and
// writable on every output.
func common(w *flowgraph.Work) int {
	n := -1
	for _, it := range w.In {
		if n < 0 || it.Len() < n {
			n = it.Len()
		}
	}
	for _, it := range w.Out {
		if n < 0 || it.Len() < n {
			n = it.Len()
		}
	}
	return max(n, 0)
}
