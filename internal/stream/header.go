// Package stream reads and writes the persisted sample format: a short
// key=value text header followed by raw little-endian float32 samples.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedHeader is returned by ReadHeader for input that is not a
// stream header.
var ErrMalformedHeader = errors.New("malformed stream header")

// HeaderRecord describes a persisted stream.
type HeaderRecord struct {
	SampleRate float64
	DataType   string // only "float" is written
	DataSize   int    // bytes per element

	// MuxFormat holds the per-stream interleave counts. It is empty for a
	// single, non-multiplexed stream.
	MuxFormat []int

	Timestamp time.Time
}

// NewHeader returns the header of a float32 stream created now.
func NewHeader(sampleRate float64, muxFormat ...int) HeaderRecord {
	return HeaderRecord{
		SampleRate: sampleRate,
		DataType:   "float",
		DataSize:   4,
		MuxFormat:  muxFormat,
		Timestamp:  time.Now(),
	}
}

// NumStreams is the number of interleaved streams, 1 when not multiplexed.
func (h HeaderRecord) NumStreams() int {
	if len(h.MuxFormat) == 0 {
		return 1
	}
	return len(h.MuxFormat)
}

// Validate checks the fields WriteHeader relies on.
func (h HeaderRecord) Validate() error {
	if h.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %g must be positive", ErrMalformedHeader, h.SampleRate)
	}
	if h.DataSize <= 0 {
		return fmt.Errorf("%w: data size %d must be positive", ErrMalformedHeader, h.DataSize)
	}
	for i, c := range h.MuxFormat {
		if c <= 0 {
			return fmt.Errorf("%w: mux count %d for stream %d must be positive", ErrMalformedHeader, c, i)
		}
	}
	return nil
}

// WriteHeader writes h in its line-oriented text form.
func WriteHeader(w io.Writer, h HeaderRecord) error {
	if err := h.Validate(); err != nil {
		return err
	}
	dataType := h.DataType
	if dataType == "" {
		dataType = "float"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "fs=%s\n", strconv.FormatFloat(h.SampleRate, 'g', -1, 64))
	fmt.Fprintf(&b, "datatype=%s\n", dataType)
	fmt.Fprintf(&b, "datasize=%d\n", h.DataSize)
	if len(h.MuxFormat) > 0 {
		counts := make([]string, len(h.MuxFormat))
		for i, c := range h.MuxFormat {
			counts[i] = strconv.Itoa(c)
		}
		fmt.Fprintf(&b, "num_streams=%d\n", len(h.MuxFormat))
		fmt.Fprintf(&b, "mux_format=%s\n", strings.Join(counts, ","))
	}
	fmt.Fprintf(&b, "timestamp=%d\n", h.Timestamp.Unix())

	_, err := io.WriteString(w, b.String())
	return err
}

// ReadHeader parses a header up to and including its timestamp line, leaving
// r positioned at the first payload byte.
func ReadHeader(r *bufio.Reader) (HeaderRecord, error) {
	var h HeaderRecord
	numStreams := 0
	seen := make(map[string]bool)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return h, fmt.Errorf("%w: missing timestamp line", ErrMalformedHeader)
			}
			return h, err
		}
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r\n"), "=")
		if !ok {
			return h, fmt.Errorf("%w: line %q", ErrMalformedHeader, line)
		}
		seen[key] = true

		switch key {
		case "fs":
			h.SampleRate, err = strconv.ParseFloat(value, 64)
		case "datatype":
			h.DataType = value
		case "datasize":
			h.DataSize, err = strconv.Atoi(value)
		case "num_streams":
			numStreams, err = strconv.Atoi(value)
		case "mux_format":
			for _, f := range strings.Split(value, ",") {
				var c int
				if c, err = strconv.Atoi(strings.TrimSpace(f)); err != nil {
					break
				}
				h.MuxFormat = append(h.MuxFormat, c)
			}
		case "timestamp":
			var sec int64
			if sec, err = strconv.ParseInt(value, 10, 64); err == nil {
				h.Timestamp = time.Unix(sec, 0)
			}
		default:
			return h, fmt.Errorf("%w: unknown key %q", ErrMalformedHeader, key)
		}
		if err != nil {
			return h, fmt.Errorf("%w: %s: %v", ErrMalformedHeader, key, err)
		}
		if key == "timestamp" {
			break
		}
	}

	for _, k := range []string{"fs", "datatype", "datasize"} {
		if !seen[k] {
			return h, fmt.Errorf("%w: missing %s", ErrMalformedHeader, k)
		}
	}
	if seen["num_streams"] && numStreams != len(h.MuxFormat) {
		return h, fmt.Errorf("%w: num_streams=%d but mux_format has %d entries", ErrMalformedHeader, numStreams, len(h.MuxFormat))
	}
	return h, h.Validate()
}
