package audio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/ringbuffer"
)

// inputStream is the part of a PortAudio stream the capture loop uses. Read
// fills the buffer handed to OpenStream.
type inputStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// opener opens a mono input stream that reads into buf.
type opener func(device string, sampleRate float64, buf []float32) (inputStream, error)

// CaptureSource records mono audio from a sound card. A background goroutine
// reads PortAudio buffers into a ring buffer; Work only drains what is there
// and asks to be called again when nothing is. A device error ends the
// stream and is returned from the next Work call.
type CaptureSource struct {
	name       string
	device     string
	sampleRate float64
	frames     int
	open       opener

	rb     *ringbuffer.RingBuffer[float32]
	stream inputStream
	quit   chan struct{}
	wg     sync.WaitGroup

	// OnOverrun, if set, is called from the capture goroutine with the number
	// of samples lost in one device read.
	OnOverrun func(n int)

	mu       sync.Mutex
	err      error
	overruns int64
}

// NewCaptureSource captures from device, which is a device index, a name
// prefix, or empty for the default input. framesPerBuffer sets the
// PortAudio buffer size.
func NewCaptureSource(device string, sampleRate float64, framesPerBuffer int) *CaptureSource {
	return &CaptureSource{
		name:       "audio_source",
		device:     device,
		sampleRate: sampleRate,
		frames:     framesPerBuffer,
		open:       openPortAudio,
	}
}

func (c *CaptureSource) Name() string { return c.name }

func (c *CaptureSource) Signature() flowgraph.Signature {
	return flowgraph.Signature{Outputs: []flowgraph.Kind{flowgraph.KindFloat}, SampleRate: c.sampleRate}
}

func (c *CaptureSource) Validate() error {
	if c.sampleRate <= 0 {
		return fmt.Errorf("sample rate %g must be positive", c.sampleRate)
	}
	if c.frames <= 0 {
		return fmt.Errorf("frames per buffer %d must be positive", c.frames)
	}
	return nil
}

func (c *CaptureSource) Start() error {
	buf := make([]float32, c.frames)
	s, err := c.open(c.device, c.sampleRate, buf)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		s.Close()
		return fmt.Errorf("starting capture: %w", err)
	}
	c.stream = s
	// Half a second of slack between the device and the graph.
	c.rb = ringbuffer.New[float32](max(c.frames*4, int(c.sampleRate/2)))
	c.quit = make(chan struct{})
	c.wg.Add(1)
	go c.loop(buf)
	return nil
}

func (c *CaptureSource) loop(buf []float32) {
	defer c.wg.Done()
	defer c.rb.Close()
	for {
		select {
		case <-c.quit:
			return
		default:
		}
		if err := c.stream.Read(); err != nil {
			select {
			case <-c.quit:
			default:
				c.mu.Lock()
				c.err = fmt.Errorf("reading from sound card: %w", err)
				c.mu.Unlock()
			}
			return
		}
		n, _ := c.rb.TryWrite(buf)
		if lost := len(buf) - n; lost > 0 {
			c.mu.Lock()
			c.overruns += int64(lost)
			c.mu.Unlock()
			if c.OnOverrun != nil {
				c.OnOverrun(lost)
			}
		}
	}
}

func (c *CaptureSource) Work(w *flowgraph.Work) error {
	out := w.Out[0].Float()
	n := c.rb.TryRead(out)
	if n > 0 {
		w.Produce(0, n)
		return nil
	}
	if c.rb.Closed() && c.rb.AvailableRead() == 0 {
		c.mu.Lock()
		err := c.err
		c.mu.Unlock()
		if err != nil {
			return err
		}
		w.Finish()
		return nil
	}
	w.RetryAfter(time.Duration(float64(c.frames) / c.sampleRate / 2 * float64(time.Second)))
	return nil
}

// Overruns returns the number of samples lost because the graph fell behind
// the device.
func (c *CaptureSource) Overruns() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overruns
}

func (c *CaptureSource) Stop() error {
	if c.stream == nil {
		return nil
	}
	close(c.quit)
	err := c.stream.Stop()
	c.wg.Wait()
	if cerr := c.stream.Close(); err == nil {
		err = cerr
	}
	c.stream = nil
	return err
}

// portAudioStream terminates the PortAudio library when the stream closes.
type portAudioStream struct {
	*portaudio.Stream
}

func (s portAudioStream) Close() error {
	err := s.Stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

func openPortAudio(device string, sampleRate float64, buf []float32) (inputStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialising portaudio: %w", err)
	}
	info, err := findDevice(device)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	p := portaudio.HighLatencyParameters(info, nil)
	p.Input.Channels = 1
	p.Output.Channels = 0
	p.SampleRate = sampleRate
	p.FramesPerBuffer = len(buf)
	s, err := portaudio.OpenStream(p, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening %s: %w", info.Name, err)
	}
	return portAudioStream{s}, nil
}

func findDevice(device string) (*portaudio.DeviceInfo, error) {
	if device == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if idx, err := strconv.Atoi(device); err == nil {
		if idx < 0 || idx >= len(devices) {
			return nil, fmt.Errorf("device index %d out of range (%d devices)", idx, len(devices))
		}
		return devices[idx], nil
	}
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.HasPrefix(d.Name, device) {
			return d, nil
		}
	}
	return nil, errors.New("no input device matches " + strconv.Quote(device))
}

// ListDevices returns the names of the available input devices.
func ListDevices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var names []string
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			names = append(names, fmt.Sprintf("%d: %s", i, d.Name))
		}
	}
	return names, nil
}
