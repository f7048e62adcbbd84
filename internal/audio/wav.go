package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"go-flowgraph/internal/flowgraph"
)

// WAVSink writes a float stream to a mono 16-bit PCM WAV file. Samples are
// expected in [-1, 1]; anything outside is clipped and counted.
type WAVSink struct {
	name       string
	path       string
	sampleRate int

	f       *os.File
	enc     *wav.Encoder
	buf     goaudio.IntBuffer
	clipped int64
	written int64
	failed  bool
}

func NewWAVSink(path string, sampleRate int) *WAVSink {
	return &WAVSink{name: "wav_sink", path: path, sampleRate: sampleRate}
}

func (s *WAVSink) Name() string { return s.name }

func (s *WAVSink) Signature() flowgraph.Signature {
	return flowgraph.Signature{Inputs: []flowgraph.Kind{flowgraph.KindFloat}}
}

func (s *WAVSink) Validate() error {
	if s.path == "" {
		return errors.New("no output path")
	}
	if s.sampleRate <= 0 {
		return fmt.Errorf("sample rate %d must be positive", s.sampleRate)
	}
	return nil
}

func (s *WAVSink) Start() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.f = f
	s.enc = wav.NewEncoder(f, s.sampleRate, 16, 1, 1)
	s.buf = goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: s.sampleRate},
		SourceBitDepth: 16,
	}
	return nil
}

func (s *WAVSink) Work(w *flowgraph.Work) error {
	in := w.In[0].Float()
	s.buf.Data = s.buf.Data[:0]
	for _, x := range in {
		v, c := toPCM16(float64(x))
		if c {
			s.clipped++
		}
		s.buf.Data = append(s.buf.Data, int(v))
	}
	if err := s.enc.Write(&s.buf); err != nil {
		s.failed = true
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.written += int64(len(in))
	w.Consume(0, len(in))
	return nil
}

// Stats returns how many samples were written and how many of them clipped.
func (s *WAVSink) Stats() (written, clipped int64) { return s.written, s.clipped }

// Stop finalises the RIFF header. A file whose writes failed is removed.
func (s *WAVSink) Stop() error {
	if s.f == nil {
		return nil
	}
	var err error
	if !s.failed {
		if err = s.enc.Close(); err != nil {
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

// WAVSource reads channel 0 of a PCM WAV file as floats in [-1, 1). The file
// is opened when the source is created so its sample rate is known before
// the graph is built.
type WAVSource struct {
	name   string
	path   string
	repeat bool

	f        *os.File
	dec      *wav.Decoder
	rate     int
	channels int
	scale    float32
	buf      goaudio.IntBuffer
	emitted  int64
}

// OpenWAVSource opens path and positions it at the first PCM frame. With
// repeat the file is played in a loop.
func OpenWAVSource(path string, repeat bool) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	format := dec.Format()
	if format == nil || format.NumChannels < 1 || dec.BitDepth == 0 {
		f.Close()
		return nil, fmt.Errorf("%s: unsupported WAV format", path)
	}
	return &WAVSource{
		name:     "wav_source",
		path:     path,
		repeat:   repeat,
		f:        f,
		dec:      dec,
		rate:     format.SampleRate,
		channels: format.NumChannels,
		scale:    float32(int64(1) << (dec.BitDepth - 1)),
		buf:      goaudio.IntBuffer{Format: format},
	}, nil
}

func (s *WAVSource) Name() string { return s.name }

// SampleRate is the rate declared in the file header.
func (s *WAVSource) SampleRate() int { return s.rate }

func (s *WAVSource) Signature() flowgraph.Signature {
	return flowgraph.Signature{Outputs: []flowgraph.Kind{flowgraph.KindFloat}, SampleRate: float64(s.rate)}
}

func (s *WAVSource) Work(w *flowgraph.Work) error {
	out := w.Out[0].Float()
	need := len(out) * s.channels
	if cap(s.buf.Data) < need {
		s.buf.Data = make([]int, need)
	}
	s.buf.Data = s.buf.Data[:need]

	n, err := s.read()
	if err != nil {
		return err
	}
	if n == 0 && s.repeat && s.emitted > 0 {
		if err := s.dec.Rewind(); err != nil {
			return fmt.Errorf("rewinding %s: %w", s.path, err)
		}
		if n, err = s.read(); err != nil {
			return err
		}
	}
	if n == 0 {
		w.Finish()
		return nil
	}
	frames := n / s.channels
	for i := range frames {
		out[i] = float32(s.buf.Data[i*s.channels]) / s.scale
	}
	s.emitted += int64(frames)
	w.Produce(0, frames)
	return nil
}

// read fills s.buf. The decoder may report the end of the data as io.EOF or
// as a zero count; both come back as 0, nil.
func (s *WAVSource) read() (int, error) {
	n, err := s.dec.PCMBuffer(&s.buf)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return n, nil
}

func (s *WAVSource) Stop() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
