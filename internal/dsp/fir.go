package dsp

// Sample is a real or complex stream element.
type Sample interface {
	float32 | complex64
}

// FIRFilter implements a stateful Finite Impulse Response filter with an
// optional integer decimation factor.
//
// y[n] = Σ taps[k]·x[n−k]. With decimation D only y[0], y[D], y[2D], ... are
// emitted; that is the same stream as filtering at the full rate and then
// keeping every D-th sample.
type FIRFilter[T Sample] struct {
	taps  []T
	decim int
	// history holds each sample twice so that history[pos:pos+len(taps)] is
	// always a contiguous newest-to-oldest window.
	history []T
	pos     int
	phase   int
}

// NewFIRFilter creates a new FIR filter with the given taps. A decimation
// below 1 is treated as 1.
func NewFIRFilter[T Sample](taps []T, decimation int) *FIRFilter[T] {
	if len(taps) == 0 {
		taps = []T{1}
	}
	if decimation < 1 {
		decimation = 1
	}
	t := make([]T, len(taps))
	copy(t, taps)
	return &FIRFilter[T]{
		taps:    t,
		decim:   decimation,
		history: make([]T, 2*len(taps)),
	}
}

// Taps returns the filter's coefficients.
func (f *FIRFilter[T]) Taps() []T {
	return f.taps
}

// Decimation returns the decimation factor.
func (f *FIRFilter[T]) Decimation() int {
	return f.decim
}

// Filter pushes one sample into the delay line. ok is true when this input
// position produces an emitted output sample.
func (f *FIRFilter[T]) Filter(x T) (y T, ok bool) {
	n := len(f.taps)
	f.pos--
	if f.pos < 0 {
		f.pos = n - 1
	}
	f.history[f.pos] = x
	f.history[f.pos+n] = x

	emit := f.phase == 0
	f.phase++
	if f.phase == f.decim {
		f.phase = 0
	}
	if !emit {
		return y, false
	}

	window := f.history[f.pos : f.pos+n]
	var acc T
	for k, tap := range f.taps {
		acc += tap * window[k]
	}
	return acc, true
}

// WillEmit reports whether the next pushed sample produces an output.
func (f *FIRFilter[T]) WillEmit() bool {
	return f.phase == 0
}

// Process filters a block of input samples and updates the filter's internal
// state. Chunked and whole-buffer processing give identical results.
func (f *FIRFilter[T]) Process(input []T) []T {
	output := make([]T, 0, len(input)/f.decim+1)
	for _, x := range input {
		if y, ok := f.Filter(x); ok {
			output = append(output, y)
		}
	}
	return output
}

// Reset clears the delay line and decimation phase.
func (f *FIRFilter[T]) Reset() {
	clear(f.history)
	f.pos = 0
	f.phase = 0
}
