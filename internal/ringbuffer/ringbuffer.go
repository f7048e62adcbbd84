package ringbuffer

import (
	"errors"
	"sync"
)

// ErrClosed is returned when writing to a buffer that has been closed.
var ErrClosed = errors.New("ringbuffer: write to closed buffer")

// RingBuffer is a concurrent-safe bounded FIFO of samples.
//
// One slot is always left empty so that readIndex == writeIndex means empty;
// the backing array is therefore one element larger than the capacity.
type RingBuffer[T any] struct {
	buf        []T
	size       int
	readIndex  int
	writeIndex int
	closed     bool
	mu         sync.Mutex
	cond       *sync.Cond
}

// New creates a new RingBuffer able to hold capacity samples.
func New[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	rb := &RingBuffer[T]{
		buf:  make([]T, capacity+1),
		size: capacity + 1,
	}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Cap returns the number of samples the buffer can hold.
func (rb *RingBuffer[T]) Cap() int {
	return rb.size - 1
}

func (rb *RingBuffer[T]) availableWrite() int {
	if rb.writeIndex >= rb.readIndex {
		return rb.size - (rb.writeIndex - rb.readIndex) - 1
	}
	return rb.readIndex - rb.writeIndex - 1
}

func (rb *RingBuffer[T]) availableRead() int {
	if rb.writeIndex >= rb.readIndex {
		return rb.writeIndex - rb.readIndex
	}
	return rb.size - rb.readIndex + rb.writeIndex
}

// AvailableWrite returns the number of samples that can be written without blocking.
func (rb *RingBuffer[T]) AvailableWrite() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableWrite()
}

// AvailableRead returns the number of samples available for reading.
func (rb *RingBuffer[T]) AvailableRead() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableRead()
}

// Close marks the buffer as closed, indicating no more writes will occur.
// It broadcasts to all waiting readers to wake them up.
func (rb *RingBuffer[T]) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (rb *RingBuffer[T]) Closed() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.closed
}

// Write adds data to the buffer, blocking until space is available.
func (rb *RingBuffer[T]) Write(data []T) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for i := 0; i < len(data); {
		for !rb.closed && rb.availableWrite() == 0 {
			rb.cond.Wait()
		}
		if rb.closed {
			return ErrClosed
		}
		i += rb.put(data[i:])
		rb.cond.Broadcast()
	}
	return nil
}

// TryWrite copies as much of data as fits without blocking and returns the
// number of samples written.
func (rb *RingBuffer[T]) TryWrite(data []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return 0, ErrClosed
	}
	written := 0
	for written < len(data) && rb.availableWrite() > 0 {
		written += rb.put(data[written:])
	}
	if written > 0 {
		rb.cond.Broadcast()
	}
	return written, nil
}

// put copies in one contiguous chunk and returns how many samples went in.
// Callers hold the lock and have checked availableWrite() > 0.
func (rb *RingBuffer[T]) put(data []T) int {
	free := rb.availableWrite()
	if len(data) > free {
		data = data[:free]
	}
	var written int
	if rb.writeIndex >= rb.readIndex {
		end := rb.size
		if rb.readIndex == 0 {
			end = rb.size - 1
		}
		written = copy(rb.buf[rb.writeIndex:end], data)
	} else {
		written = copy(rb.buf[rb.writeIndex:rb.readIndex-1], data)
	}
	rb.writeIndex = (rb.writeIndex + written) % rb.size
	return written
}

// Read retrieves n samples from the buffer, blocking until they are available.
// If the buffer is closed and no more data is available, it returns nil.
func (rb *RingBuffer[T]) Read(n int) []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	// Once closed, the reader proceeds to read whatever is left.
	for !rb.closed && rb.availableRead() < n {
		rb.cond.Wait()
	}

	readSize := min(n, rb.availableRead())
	if readSize == 0 {
		return nil
	}

	data := make([]T, readSize)
	rb.copyOut(data)
	rb.readIndex = (rb.readIndex + readSize) % rb.size
	rb.cond.Broadcast()
	return data
}

// Peek copies up to len(dst) samples into dst without consuming them.
func (rb *RingBuffer[T]) Peek(dst []T) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(dst), rb.availableRead())
	rb.copyOut(dst[:n])
	return n
}

// Discard drops up to n samples from the head of the buffer and returns the
// number dropped.
func (rb *RingBuffer[T]) Discard(n int) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n = min(n, rb.availableRead())
	if n <= 0 {
		return 0
	}
	rb.readIndex = (rb.readIndex + n) % rb.size
	rb.cond.Broadcast()
	return n
}

// TryRead consumes up to len(dst) samples without blocking.
func (rb *RingBuffer[T]) TryRead(dst []T) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(dst), rb.availableRead())
	if n == 0 {
		return 0
	}
	rb.copyOut(dst[:n])
	rb.readIndex = (rb.readIndex + n) % rb.size
	rb.cond.Broadcast()
	return n
}

func (rb *RingBuffer[T]) copyOut(dst []T) {
	n := len(dst)
	if rb.readIndex+n <= rb.size {
		copy(dst, rb.buf[rb.readIndex:rb.readIndex+n])
		return
	}
	part1 := rb.size - rb.readIndex
	copy(dst, rb.buf[rb.readIndex:])
	copy(dst[part1:], rb.buf[:n-part1])
}
