package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// PayloadWriter appends float32 samples in little-endian byte order.
type PayloadWriter struct {
	w       *bufio.Writer
	scratch []byte
	written int64
}

// NewPayloadWriter buffers writes to w. Call Flush when done.
func NewPayloadWriter(w io.Writer) *PayloadWriter {
	return &PayloadWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

// WriteFloats appends samples.
func (p *PayloadWriter) WriteFloats(samples []float32) error {
	if need := 4 * len(samples); cap(p.scratch) < need {
		p.scratch = make([]byte, need)
	}
	buf := p.scratch[:4*len(samples)]
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	n, err := p.w.Write(buf)
	p.written += int64(n / 4)
	return err
}

// Samples returns the number of samples written so far.
func (p *PayloadWriter) Samples() int64 { return p.written }

// Flush writes any buffered data to the underlying writer.
func (p *PayloadWriter) Flush() error { return p.w.Flush() }

// ReadPayload reads little-endian float32 samples until EOF.
func ReadPayload(r io.Reader) ([]float32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out, nil
}

// ReadFile parses a whole persisted stream.
func ReadFile(r io.Reader) (HeaderRecord, []float32, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return h, nil, err
	}
	samples, err := ReadPayload(br)
	return h, samples, err
}

// Deinterleave splits a multiplexed payload back into its streams by
// repeatedly taking muxFormat[k] samples for stream k. A trailing partial
// cycle is distributed the same way.
func Deinterleave(samples []float32, muxFormat []int) ([][]float32, error) {
	if len(muxFormat) == 0 {
		return [][]float32{samples}, nil
	}
	cycle := 0
	for _, c := range muxFormat {
		if c <= 0 {
			return nil, errors.New("mux counts must be positive")
		}
		cycle += c
	}
	out := make([][]float32, len(muxFormat))
	for k, c := range muxFormat {
		out[k] = make([]float32, 0, len(samples)/cycle*c+c)
	}
	for i := 0; i < len(samples); {
		for k, c := range muxFormat {
			n := min(c, len(samples)-i)
			out[k] = append(out[k], samples[i:i+n]...)
			i += n
		}
	}
	return out, nil
}

// ExpandPath formats strftime patterns (%Y, %m, ...) in an output file name.
// Names without '%' are returned unchanged.
func ExpandPath(pattern string, t time.Time) (string, error) {
	if !strings.Contains(pattern, "%") {
		return pattern, nil
	}
	return strftime.Format(pattern, t)
}
