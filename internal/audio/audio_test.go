package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-flowgraph/internal/blocks"
	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/ringbuffer"
)

func run(t *testing.T, g *flowgraph.Graph) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return g.Run(ctx)
}

func TestToPCM16(t *testing.T) {
	tests := []struct {
		in      float64
		want    int16
		clipped bool
	}{
		{0, 0, false},
		{1, 32767, false},
		{-1, -32767, false},
		{0.5, 16384, false},
		{1.5, 32767, true},
		{-2, -32768, true},
		{math.NaN(), 0, true},
	}
	for _, tt := range tests {
		v, c := toPCM16(tt.in)
		assert.Equal(t, tt.want, v, "in=%v", tt.in)
		assert.Equal(t, tt.clipped, c, "in=%v", tt.in)
	}
}

func TestWritePCM16(t *testing.T) {
	var buf bytes.Buffer
	clipped, err := writePCM16(&buf, []float32{0.25, -0.25, 3}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, clipped)
	// 0.5·32767 rounds to 16384 = 0x4000; -16384 = 0xC000.
	assert.Equal(t, []byte{0x00, 0x40, 0x00, 0xC0, 0xFF, 0x7F}, buf.Bytes())
}

type nopWriteCloser struct {
	io.Writer
	closed bool
}

func (n *nopWriteCloser) Close() error {
	n.closed = true
	return nil
}

func TestPump_DrainsUntilClosed(t *testing.T) {
	rb := ringbuffer.New[float32](64)
	in := make([]float32, 50)
	for i := range in {
		in[i] = float32(i) / 100
	}
	require.NoError(t, rb.Write(in))
	rb.Close()

	var buf bytes.Buffer
	w := &nopWriteCloser{Writer: &buf}
	stats, err := pump(rb, w, 1, 16, log.New(io.Discard))
	require.NoError(t, err)
	assert.True(t, w.closed)
	assert.Equal(t, int64(50), stats.Samples)
	assert.Zero(t, stats.Clipped)
	assert.Equal(t, 100, buf.Len())
}

func TestWAV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := make([]float32, 3000)
	for i := range in {
		in[i] = float32(0.8 * math.Sin(2*math.Pi*440*float64(i)/8000))
	}

	g := flowgraph.New("write")
	src := g.Add(blocks.NewVectorSource(in, false, 8000))
	sink := NewWAVSink(path, 8000)
	snk := g.Add(sink)
	require.NoError(t, g.Connect(src, 0, snk, 0))
	require.NoError(t, run(t, g))
	written, clipped := sink.Stats()
	assert.Equal(t, int64(len(in)), written)
	assert.Zero(t, clipped)

	wsrc, err := OpenWAVSource(path, false)
	require.NoError(t, err)
	assert.Equal(t, 8000, wsrc.SampleRate())

	g = flowgraph.New("read")
	rid := g.Add(wsrc)
	vs := blocks.NewVectorSink[float32]()
	vid := g.Add(vs)
	require.NoError(t, g.Connect(rid, 0, vid, 0))
	require.NoError(t, run(t, g))

	got := vs.Data()
	require.Len(t, got, len(in))
	for i := range in {
		assert.InDelta(t, in[i], got[i], 1e-4, "sample %d", i)
	}
}

func TestWAVSource_Repeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.wav")
	g := flowgraph.New("write")
	src := g.Add(blocks.NewVectorSource([]float32{0.5, -0.5, 0.25}, false, 1000))
	snk := g.Add(NewWAVSink(path, 1000))
	require.NoError(t, g.Connect(src, 0, snk, 0))
	require.NoError(t, run(t, g))

	wsrc, err := OpenWAVSource(path, true)
	require.NoError(t, err)
	g = flowgraph.New("loop")
	rid := g.Add(wsrc)
	hid := g.Add(blocks.NewHead(flowgraph.KindFloat, 10))
	vs := blocks.NewVectorSink[float32]()
	vid := g.Add(vs)
	require.NoError(t, g.Connect(rid, 0, hid, 0))
	require.NoError(t, g.Connect(hid, 0, vid, 0))
	require.NoError(t, run(t, g))

	got := vs.Data()
	require.Len(t, got, 10)
	for i, x := range got {
		want := []float32{0.5, -0.5, 0.25}[i%3]
		assert.InDelta(t, want, x, 1e-4, "sample %d", i)
	}
}

func TestOpenWAVSource_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF"), 0o644))
	_, err := OpenWAVSource(path, false)
	assert.Error(t, err)

	_, err = OpenWAVSource(filepath.Join(t.TempDir(), "missing.wav"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWAVSink_RemovesFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	s := NewWAVSink(filepath.Join(dir, "out.wav"), 8000)
	require.NoError(t, s.Validate())
	require.NoError(t, s.Start())
	s.failed = true
	require.NoError(t, s.Stop())
	_, err := os.Stat(filepath.Join(dir, "out.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.Error(t, NewWAVSink("", 8000).Validate())
	assert.Error(t, NewWAVSink("x.wav", 0).Validate())
}

// fakeStream produces an increasing ramp, one buffer per Read.
type fakeStream struct {
	buf     []float32
	next    float32
	reads   int
	failAt  int // Read returns an error on this call; 0 never
	stopped atomic.Bool
	mu      sync.Mutex
	closed  bool
}

var errDevice = errors.New("device unplugged")

func (f *fakeStream) Start() error { return nil }

func (f *fakeStream) Read() error {
	if f.stopped.Load() {
		return errors.New("stream stopped")
	}
	f.reads++
	if f.failAt > 0 && f.reads >= f.failAt {
		return errDevice
	}
	for i := range f.buf {
		f.buf[i] = f.next
		f.next++
	}
	time.Sleep(time.Millisecond)
	return nil
}

func (f *fakeStream) Stop() error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newFakeCapture(fs *fakeStream) *CaptureSource {
	c := NewCaptureSource("", 8000, 64)
	c.open = func(_ string, _ float64, buf []float32) (inputStream, error) {
		fs.buf = buf
		return fs, nil
	}
	return c
}

func TestCaptureSource_Streams(t *testing.T) {
	fs := &fakeStream{}
	c := newFakeCapture(fs)

	g := flowgraph.New("capture")
	cid := g.Add(c)
	hid := g.Add(blocks.NewHead(flowgraph.KindFloat, 1000))
	vs := blocks.NewVectorSink[float32]()
	vid := g.Add(vs)
	require.NoError(t, g.Connect(cid, 0, hid, 0))
	require.NoError(t, g.Connect(hid, 0, vid, 0))
	require.NoError(t, run(t, g))

	got := vs.Data()
	require.Len(t, got, 1000)
	for i := 1; i < len(got); i++ {
		require.Greater(t, got[i], got[i-1], "sample %d", i)
	}
	fs.mu.Lock()
	assert.True(t, fs.closed)
	fs.mu.Unlock()
}

func TestCaptureSource_DeviceErrorAbortsGraph(t *testing.T) {
	fs := &fakeStream{failAt: 4}
	c := newFakeCapture(fs)

	g := flowgraph.New("capture")
	cid := g.Add(c)
	nid := g.Add(blocks.NewNullSink(flowgraph.KindFloat))
	require.NoError(t, g.Connect(cid, 0, nid, 0))
	err := run(t, g)
	require.ErrorIs(t, err, errDevice)
	assert.Contains(t, err.Error(), "audio_source")
}

func TestCaptureSource_CountsOverruns(t *testing.T) {
	fs := &fakeStream{}
	c := newFakeCapture(fs)
	var reported atomic.Int64
	c.OnOverrun = func(n int) { reported.Add(int64(n)) }

	// Nothing drains the capture buffer, so it fills and reads start losing samples.
	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return c.Overruns() > 0 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop())

	assert.Equal(t, c.Overruns(), reported.Load())
}

func TestCaptureSource_Validate(t *testing.T) {
	assert.Error(t, NewCaptureSource("", 0, 64).Validate())
	assert.Error(t, NewCaptureSource("", 8000, 0).Validate())
	assert.NoError(t, NewCaptureSource("", 8000, 64).Validate())
}
