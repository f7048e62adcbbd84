package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// work is the worker loop of a single block. It offers the block whatever
// its inputs hold and its outputs can take, and sleeps on the node's wake
// channel when neither side can move.
func (g *Graph) work(ctx context.Context, n *node) (err error) {
	logger := g.logger.With("block", n.name)
	g.metrics.BlockStarted()
	defer g.metrics.BlockFinished()

	defer func() {
		g.retire(n)
		if s, ok := n.block.(Stopper); ok {
			if serr := s.Stop(); serr != nil && err == nil {
				err = fmt.Errorf("%s: stop: %w", n.name, serr)
			}
		}
		switch {
		case err == nil:
			logger.Debug("block finished")
		case !errors.Is(err, context.Canceled):
			logger.Error("block failed", "err", err)
		}
	}()

	if s, ok := n.block.(Starter); ok {
		if err := s.Start(); err != nil {
			return fmt.Errorf("%s: start: %w", n.name, err)
		}
	}
	logger.Debug("block started")

	w := &Work{
		In:        make([]Items, len(n.inputs)),
		Out:       make([]Items, len(n.outputs)),
		consumed:  make([]int, len(n.inputs)),
		produced:  make([]int, len(n.outputs)),
		inputDone: make([]bool, len(n.inputs)),
	}
	outBufs := make([]Items, len(n.outputs))
	for p, k := range n.sig.Outputs {
		outBufs[p] = NewItems(k, g.maxItems)
	}
	space := make([]int, len(n.outputs))
	wasDone := make([]bool, len(n.inputs))
	source := len(n.inputs) == 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		stopping := g.stopping.Load()
		if source && stopping {
			return nil
		}

		live, blocked := g.outputSpace(n, space)
		if !live {
			logger.Debug("all consumers gone")
			return nil
		}
		if blocked {
			if err := n.sleep(ctx, 0); err != nil {
				return err
			}
			continue
		}

		offered, allDone, newlyDone := g.offer(n, w, wasDone)
		if !source && !offered && !allDone && !newlyDone {
			if err := n.sleep(ctx, 0); err != nil {
				return err
			}
			continue
		}

		w.reset()
		w.stopping = stopping
		for p := range w.Out {
			w.Out[p] = outBufs[p].Slice(0, space[p])
		}
		if err := n.block.Work(w); err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}

		consumed, produced, err := g.commit(n, w)
		if err != nil {
			return err
		}
		g.metrics.ObserveWork(n.name, consumed, produced)

		if w.finished {
			return nil
		}
		if consumed == 0 && produced == 0 {
			if !source && allDone {
				return nil
			}
			if err := n.sleep(ctx, w.retryAfter); err != nil {
				return err
			}
			continue
		}
		if w.retryAfter > 0 {
			if err := n.sleep(ctx, w.retryAfter); err != nil {
				return err
			}
		}
	}
}

// outputSpace fills space with the free room on each output port: the
// minimum over the port's live edges, capped at maxItems. live is false when
// the block has outputs and none of them has a consumer left.
func (g *Graph) outputSpace(n *node, space []int) (live, blocked bool) {
	live = len(n.outputs) == 0
	for p, edges := range n.outputs {
		s := g.maxItems
		for _, e := range edges {
			if e.Detached() {
				continue
			}
			live = true
			s = min(s, e.buf.free())
		}
		space[p] = s
		if s == 0 {
			blocked = true
		}
	}
	return live, blocked
}

// offer peeks every input into w.In. An input is done once its producer has
// closed the edge and everything left in it is being offered.
func (g *Graph) offer(n *node, w *Work, wasDone []bool) (offered, allDone, newlyDone bool) {
	allDone = true
	for i, e := range n.inputs {
		closed := e.buf.closed()
		avail := e.buf.len()
		it := e.buf.peek(min(avail, g.maxItems))
		w.In[i] = it
		done := closed && it.Len() == avail
		w.inputDone[i] = done
		if done && !wasDone[i] {
			newlyDone = true
		}
		wasDone[i] = done
		offered = offered || it.Len() > 0
		allDone = allDone && done
	}
	return offered, allDone, newlyDone
}

// commit checks what the block reported against what it was offered, then
// advances the edges.
func (g *Graph) commit(n *node, w *Work) (consumed, produced int, err error) {
	for i, c := range w.consumed {
		if c < 0 || c > w.In[i].Len() {
			return 0, 0, fmt.Errorf("%s: consumed %d samples on input %d but only %d were offered", n.name, c, i, w.In[i].Len())
		}
	}
	for p, c := range w.produced {
		if c < 0 || c > w.Out[p].Len() {
			return 0, 0, fmt.Errorf("%s: produced %d samples on output %d but only %d fit", n.name, c, p, w.Out[p].Len())
		}
	}
	for i, c := range w.consumed {
		n.inputs[i].pop(c)
		consumed += c
	}
	for p, c := range w.produced {
		if c == 0 {
			continue
		}
		data := w.Out[p].Slice(0, c)
		for _, e := range n.outputs[p] {
			e.push(data)
		}
		produced += c
	}
	return consumed, produced, nil
}

// retire closes the block's outputs so consumers see end of stream, and
// detaches its inputs so producers stop waiting on it.
func (g *Graph) retire(n *node) {
	for _, edges := range n.outputs {
		for _, e := range edges {
			e.closeWriter()
		}
	}
	for _, e := range n.inputs {
		if e != nil {
			e.detach()
		}
	}
}

// sleep waits for an edge event, or for d when d > 0.
func (n *node) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-n.wake:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-n.wake:
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
