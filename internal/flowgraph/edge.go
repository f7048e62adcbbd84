package flowgraph

import (
	"sync/atomic"

	"go-flowgraph/internal/ringbuffer"
)

// Edge is the bounded FIFO between one producer output port and one consumer
// input port. It has exactly one writer and one reader.
type Edge struct {
	Src     BlockID
	SrcPort int
	Dst     BlockID
	DstPort int

	kind     Kind
	buf      edgeBuffer
	detached atomic.Bool

	producer *node
	consumer *node
}

type edgeBuffer interface {
	peek(n int) Items
	discard(n int)
	write(it Items) int
	len() int
	free() int
	capacity() int
	close()
	closed() bool
}

type typedBuffer[T Sample] struct {
	rb      *ringbuffer.RingBuffer[T]
	scratch []T
}

func newEdgeBuffer(k Kind, capacity int) edgeBuffer {
	switch k {
	case KindFloat:
		return &typedBuffer[float32]{rb: ringbuffer.New[float32](capacity)}
	case KindComplex:
		return &typedBuffer[complex64]{rb: ringbuffer.New[complex64](capacity)}
	default:
		return &typedBuffer[byte]{rb: ringbuffer.New[byte](capacity)}
	}
}

func (b *typedBuffer[T]) peek(n int) Items {
	if cap(b.scratch) < n {
		b.scratch = make([]T, n)
	}
	got := b.rb.Peek(b.scratch[:n])
	return MakeItems(b.scratch[:got])
}

func (b *typedBuffer[T]) discard(n int) { b.rb.Discard(n) }

func (b *typedBuffer[T]) write(it Items) int {
	n, _ := b.rb.TryWrite(As[T](it))
	return n
}

func (b *typedBuffer[T]) len() int      { return b.rb.AvailableRead() }
func (b *typedBuffer[T]) free() int     { return b.rb.AvailableWrite() }
func (b *typedBuffer[T]) capacity() int { return b.rb.Cap() }
func (b *typedBuffer[T]) close()        { b.rb.Close() }
func (b *typedBuffer[T]) closed() bool  { return b.rb.Closed() }

func newEdge(src *node, srcPort int, dst *node, dstPort int, capacity int) *Edge {
	k := src.sig.Outputs[srcPort]
	return &Edge{
		Src:      src.id,
		SrcPort:  srcPort,
		Dst:      dst.id,
		DstPort:  dstPort,
		kind:     k,
		buf:      newEdgeBuffer(k, capacity),
		producer: src,
		consumer: dst,
	}
}

// Kind returns the sample kind carried.
func (e *Edge) Kind() Kind { return e.kind }

// Len returns the number of buffered samples.
func (e *Edge) Len() int { return e.buf.len() }

// Cap returns the edge capacity.
func (e *Edge) Cap() int { return e.buf.capacity() }

// Detached reports that the consumer has finished and no longer reads.
func (e *Edge) Detached() bool { return e.detached.Load() }

// push is called only by the producer's worker.
func (e *Edge) push(it Items) {
	if e.detached.Load() || it.Len() == 0 {
		return
	}
	e.buf.write(it)
	e.consumer.notify()
}

// pop is called only by the consumer's worker.
func (e *Edge) pop(n int) {
	if n == 0 {
		return
	}
	e.buf.discard(n)
	e.producer.notify()
}

// closeWriter marks end of stream from the producer.
func (e *Edge) closeWriter() {
	e.buf.close()
	e.consumer.notify()
}

// detach marks that the consumer has gone; the producer stops counting this
// edge for backpressure.
func (e *Edge) detach() {
	e.detached.Store(true)
	e.buf.discard(e.buf.len())
	e.producer.notify()
}
