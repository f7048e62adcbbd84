package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"go-flowgraph/internal/ringbuffer"
)

// PlayerConfig controls a Player.
type PlayerConfig struct {
	SampleRate int
	Gain       float64 // applied before conversion to 16-bit PCM
	ChunkSize  int     // samples handed to the audio device per write
	Logger     *log.Logger
}

// Player plays a float stream, typically a Probe's buffer, on the default
// output device. Samples are scaled by Gain, clipped to 16 bits and piped to
// an oto player.
type Player struct {
	cfg    PlayerConfig
	player *oto.Player
	writer *io.PipeWriter
	done   chan struct{}

	mu    sync.Mutex
	stats PumpStats
	err   error
}

// PumpStats counts what the player has written.
type PumpStats struct {
	Samples int64
	Clipped int64
}

// NewPlayer opens the audio device. oto allows one context per process, so
// only one Player may exist at a time.
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d must be positive", cfg.SampleRate)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1024
	}
	if cfg.Gain == 0 {
		cfg.Gain = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audio output: %w", err)
	}
	<-ready

	reader, writer := io.Pipe()
	return &Player{
		cfg:    cfg,
		player: ctx.NewPlayer(reader),
		writer: writer,
		done:   make(chan struct{}),
	}, nil
}

// Play starts playback of everything read from rb until rb is closed and
// drained.
func (p *Player) Play(rb *ringbuffer.RingBuffer[float32]) {
	go func() {
		defer close(p.done)
		stats, err := pump(rb, p.writer, p.cfg.Gain, p.cfg.ChunkSize, p.cfg.Logger)
		p.mu.Lock()
		p.stats, p.err = stats, err
		p.mu.Unlock()
	}()
	p.player.Play()
}

// Wait blocks until the stream has been written and the device has played
// it out, or ctx is done.
func (p *Player) Wait(ctx context.Context) error {
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for p.player.IsPlaying() {
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stats returns the totals of the finished pump.
func (p *Player) Stats() PumpStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Player) Close() error {
	p.writer.Close()
	return p.player.Close()
}

// pump moves samples from rb to w as 16-bit PCM until rb is closed and empty,
// then closes w.
func pump(rb *ringbuffer.RingBuffer[float32], w io.WriteCloser, gain float64, chunk int, logger *log.Logger) (PumpStats, error) {
	defer w.Close()
	var stats PumpStats
	scratch := make([]byte, 0, 2*chunk)
	var blocks int64
	for {
		samples := rb.Read(chunk)
		if samples == nil {
			logger.Debug("playback stream ended", "samples", stats.Samples, "clipped", stats.Clipped)
			return stats, nil
		}
		clipped, err := writePCM16(w, samples, gain, scratch)
		stats.Samples += int64(len(samples))
		stats.Clipped += int64(clipped)
		if err != nil {
			return stats, fmt.Errorf("writing audio: %w", err)
		}
		blocks++
		if blocks%100 == 0 && stats.Clipped > 0 {
			logger.Warn("clipping", "clipped", stats.Clipped, "samples", stats.Samples)
		}
	}
}
