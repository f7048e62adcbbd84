// Package flowgraph runs a directed graph of DSP blocks connected by bounded
// sample queues. Each block gets its own worker; edges provide backpressure
// and ordering.
package flowgraph

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"go-flowgraph/internal/metrics"
)

// BlockID is a stable handle to a block owned by a Graph.
type BlockID int

// InvalidBlock is returned by Add once the graph is running.
const InvalidBlock BlockID = -1

// State is the lifecycle stage of a graph.
type State int32

const (
	Built State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type node struct {
	id    BlockID
	name  string
	block Block
	sig   Signature

	inputs  []*Edge   // exactly one producer per input port
	outputs [][]*Edge // an output port may feed several consumers

	wake chan struct{}
}

func (n *node) notify() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Graph owns a set of blocks and the edges between them.
type Graph struct {
	name         string
	logger       *log.Logger
	metrics      *metrics.Scheduler
	edgeCapacity int
	maxItems     int

	mu    sync.Mutex
	nodes []*node
	edges []*Edge

	state    atomic.Int32
	stopping atomic.Bool
	done     chan struct{}
	err      error
	release  func() bool
}

// New returns an empty graph.
func New(name string, opts ...Option) *Graph {
	g := &Graph{
		name:         name,
		logger:       discardLogger(),
		edgeCapacity: DefaultEdgeCapacity,
		maxItems:     DefaultMaxItems,
	}
	for _, o := range opts {
		o(g)
	}
	g.logger = g.logger.With("graph", name)
	return g
}

func (g *Graph) Name() string { return g.name }

// State returns the current lifecycle stage.
func (g *Graph) State() State { return State(g.state.Load()) }

// Add takes ownership of b and returns its handle. Blocks cannot be added to
// a running graph; InvalidBlock is returned instead and any Connect using it
// fails.
func (g *Graph) Add(b Block) BlockID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State() != Built {
		return InvalidBlock
	}
	sig := b.Signature()
	n := &node{
		id:      BlockID(len(g.nodes)),
		name:    b.Name(),
		block:   b,
		sig:     sig,
		inputs:  make([]*Edge, len(sig.Inputs)),
		outputs: make([][]*Edge, len(sig.Outputs)),
		wake:    make(chan struct{}, 1),
	}
	g.nodes = append(g.nodes, n)
	return n.id
}

// Block returns the block behind id, or nil.
func (g *Graph) Block(id BlockID) Block {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := g.lookup(id); n != nil {
		return n.block
	}
	return nil
}

func (g *Graph) lookup(id BlockID) *node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Connect links output port srcPort of src to input port dstPort of dst.
func (g *Graph) Connect(src BlockID, srcPort int, dst BlockID, dstPort int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	const op = "connect"
	if g.State() != Built {
		return &TopologyError{Op: op, Reason: ErrRunning.Error(), Err: ErrRunning}
	}
	s, d := g.lookup(src), g.lookup(dst)
	if s == nil {
		return topologyErr(op, "unknown block %d", src)
	}
	if d == nil {
		return topologyErr(op, "unknown block %d", dst)
	}
	if srcPort < 0 || srcPort >= len(s.sig.Outputs) {
		return topologyErr(op, "%s has no output port %d (has %d)", s.name, srcPort, len(s.sig.Outputs))
	}
	if dstPort < 0 || dstPort >= len(d.sig.Inputs) {
		return topologyErr(op, "%s has no input port %d (has %d)", d.name, dstPort, len(d.sig.Inputs))
	}
	if sk, dk := s.sig.Outputs[srcPort], d.sig.Inputs[dstPort]; sk != dk {
		return topologyErr(op, "%s:%d carries %v but %s:%d expects %v", s.name, srcPort, sk, d.name, dstPort, dk)
	}
	if prev := d.inputs[dstPort]; prev != nil {
		return topologyErr(op, "%s input %d is already driven by %s", d.name, dstPort, g.nodes[prev.Src].name)
	}

	if d.sig.MatchedRates {
		if r, ok := g.outputRate(s, nil); ok {
			rates := []float64{r}
			mismatch := false
			for _, e := range d.inputs {
				if e == nil {
					continue
				}
				if other, ok := g.outputRate(g.nodes[e.Src], nil); ok {
					rates = append(rates, other)
					mismatch = mismatch || !sameRate(r, other)
				}
			}
			if mismatch {
				return &RateMismatchError{Block: d.name, Rates: rates}
			}
		}
	}

	e := newEdge(s, srcPort, d, dstPort, g.edgeCapacity)
	s.outputs[srcPort] = append(s.outputs[srcPort], e)
	d.inputs[dstPort] = e
	g.edges = append(g.edges, e)
	return nil
}

// OutputRate returns the sample rate of id's outputs, derived from the
// nearest upstream source. ok is false when no source is reachable.
func (g *Graph) OutputRate(id BlockID) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.lookup(id)
	if n == nil {
		return 0, false
	}
	return g.outputRate(n, nil)
}

func (g *Graph) outputRate(n *node, seen map[BlockID]bool) (float64, bool) {
	if n.sig.SampleRate > 0 {
		return n.sig.SampleRate, true
	}
	if len(n.inputs) == 0 || n.inputs[0] == nil {
		return 0, false
	}
	if seen == nil {
		seen = make(map[BlockID]bool)
	}
	if seen[n.id] {
		return 0, false
	}
	seen[n.id] = true
	r, ok := g.outputRate(g.nodes[n.inputs[0].Src], seen)
	if !ok {
		return 0, false
	}
	return r * n.sig.ratio(), true
}

func sameRate(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// validate runs the checks Start performs before launching any worker.
func (g *Graph) validate() error {
	for _, n := range g.nodes {
		for i, e := range n.inputs {
			if e == nil {
				return topologyErr("start", "%s input %d is not connected", n.name, i)
			}
		}
	}

	if cyc := g.cycle(); len(cyc) > 0 {
		return &CycleError{Blocks: cyc}
	}

	for _, n := range g.nodes {
		if !n.sig.MatchedRates || len(n.inputs) < 2 {
			continue
		}
		var rates []float64
		mismatch := false
		for _, e := range n.inputs {
			r, ok := g.outputRate(g.nodes[e.Src], nil)
			if !ok {
				continue
			}
			if len(rates) > 0 && !sameRate(rates[0], r) {
				mismatch = true
			}
			rates = append(rates, r)
		}
		if mismatch {
			return &RateMismatchError{Block: n.name, Rates: rates}
		}
	}

	for _, n := range g.nodes {
		if v, ok := n.block.(Validator); ok {
			if err := v.Validate(); err != nil {
				return &ConfigError{Block: n.name, Err: err}
			}
		}
	}
	return nil
}

// cycle returns the names of blocks left over by Kahn's algorithm, which are
// exactly those on or downstream of a cycle.
func (g *Graph) cycle() []string {
	indeg := make([]int, len(g.nodes))
	for _, e := range g.edges {
		indeg[e.Dst]++
	}
	queue := make([]BlockID, 0, len(g.nodes))
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, BlockID(id))
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, port := range g.nodes[id].outputs {
			for _, e := range port {
				indeg[e.Dst]--
				if indeg[e.Dst] == 0 {
					queue = append(queue, e.Dst)
				}
			}
		}
	}
	if visited == len(g.nodes) {
		return nil
	}
	var names []string
	for id, d := range indeg {
		if d > 0 {
			names = append(names, g.nodes[id].name)
		}
	}
	return names
}

// Start validates the graph and launches one worker per block. Cancelling
// ctx has the same effect as Stop.
func (g *Graph) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State() != Built {
		return ErrRunning
	}
	if err := g.validate(); err != nil {
		return err
	}

	g.done = make(chan struct{})
	g.state.Store(int32(Running))
	g.logger.Debug("starting", "blocks", len(g.nodes), "edges", len(g.edges))

	eg, egctx := errgroup.WithContext(context.Background())
	for _, n := range g.nodes {
		eg.Go(func() error { return g.work(egctx, n) })
	}
	g.release = context.AfterFunc(ctx, g.Stop)

	go func() {
		err := eg.Wait()
		g.release()
		g.err = err
		g.state.Store(int32(Stopped))
		if err != nil {
			g.logger.Error("graph aborted", "err", err)
		} else {
			g.logger.Debug("graph finished")
		}
		close(g.done)
	}()
	return nil
}

// Stop asks sources to finish. Samples already in flight are still
// delivered; Wait returns once every block has drained.
func (g *Graph) Stop() {
	if !g.state.CompareAndSwap(int32(Running), int32(Stopping)) {
		return
	}
	g.logger.Info("stop requested")
	g.stopping.Store(true)
	g.mu.Lock()
	nodes := g.nodes
	g.mu.Unlock()
	for _, n := range nodes {
		n.notify()
	}
}

// Wait blocks until the graph has stopped and returns the first block error,
// if any. Stop and natural end of stream both yield nil.
func (g *Graph) Wait() error {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done == nil {
		return ErrNotStarted
	}
	<-done
	return g.err
}

// Run starts the graph and waits for it to finish.
func (g *Graph) Run(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	return g.Wait()
}
