package blocks

import (
	"errors"
	"fmt"
	"os"

	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/stream"
)

// FileSink writes a header record followed by the float samples it receives.
// If any write fails the file is removed when the sink stops, so a failed
// run never leaves a correctly headered but truncated stream behind.
type FileSink struct {
	named
	path   string
	header stream.HeaderRecord

	f      *os.File
	pw     *stream.PayloadWriter
	failed bool
}

func NewFileSink(path string, header stream.HeaderRecord) *FileSink {
	return &FileSink{named: named{name: "file_sink"}, path: path, header: header}
}

func (s *FileSink) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{flowgraph.KindFloat}}
}

func (s *FileSink) Validate() error {
	if s.path == "" {
		return errors.New("no output path")
	}
	return s.header.Validate()
}

func (s *FileSink) Start() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.f = f
	if err := stream.WriteHeader(f, s.header); err != nil {
		s.failed = true
		return fmt.Errorf("writing header: %w", err)
	}
	s.pw = stream.NewPayloadWriter(f)
	return nil
}

func (s *FileSink) Work(w *flowgraph.Work) error {
	in := w.In[0].Float()
	if err := s.pw.WriteFloats(in); err != nil {
		s.failed = true
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	w.Consume(0, len(in))
	return nil
}

// Samples returns how many samples have been written.
func (s *FileSink) Samples() int64 {
	if s.pw == nil {
		return 0
	}
	return s.pw.Samples()
}

func (s *FileSink) Stop() error {
	if s.f == nil {
		return nil
	}
	var err error
	if s.pw != nil && !s.failed {
		if err = s.pw.Flush(); err != nil {
			s.failed = true
		}
	}
	if cerr := s.f.Close(); cerr != nil && err == nil {
		err = cerr
		s.failed = true
	}
	if s.failed {
		_ = os.Remove(s.path)
	}
	s.f = nil
	return err
}
