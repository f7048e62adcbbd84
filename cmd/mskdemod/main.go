// Command mskdemod translates an MSK signal on an audio carrier to baseband
// and reports the amplitude and phase of a tone in the squared baseband
// signal once per analysis window. The input is a WAV file or a sound card.
// The quadrature-demodulated stream can be played back or saved.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"go-flowgraph/internal/audio"
	"go-flowgraph/internal/blocks"
	"go-flowgraph/internal/cli"
	"go-flowgraph/internal/dsp"
	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/stream"
)

type options struct {
	device   string
	repeat   bool
	duration time.Duration
	play     bool
	out      string
}

func main() {
	ctx, cancel := cli.SignalContext()
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("mskdemod", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common cli.Common
	common.AddFlags(fs)
	var opts options
	fs.StringVarP(&opts.device, "device", "D", "", "Capture from this sound card instead of a WAV file.")
	fs.BoolVarP(&opts.repeat, "repeat", "r", false, "Loop the WAV file.")
	fs.DurationVarP(&opts.duration, "duration", "d", 0, "Stop after this long; 0 runs to the end of the input.")
	fs.BoolVarP(&opts.play, "play", "p", false, "Play the demodulated signal.")
	fs.StringVarP(&opts.out, "out", "o", "", "Write the demodulated signal to this stream file.")
	usage := func() {
		fmt.Fprintln(stderr, "Usage: mskdemod [flags] <input.wav>")
		fmt.Fprintln(stderr, "       mskdemod [flags] --device <name>")
		fs.PrintDefaults()
	}
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return cli.Exit(cli.Usagef("%v", err), nil, stderr, usage)
	}
	var input string
	switch {
	case opts.device != "" && fs.NArg() == 0:
	case opts.device == "" && fs.NArg() == 1:
		input = fs.Arg(0)
	default:
		return cli.Exit(cli.Usagef("expected either a WAV file or --device"), nil, stderr, usage)
	}
	if opts.duration < 0 {
		return cli.Exit(cli.Usagef("negative duration"), nil, stderr, usage)
	}

	env, err := common.Setup("mskdemod", stderr)
	if err != nil {
		return cli.Exit(err, nil, stderr, usage)
	}
	return cli.Exit(demod(ctx, env, input, opts), env.Logger, stderr, usage)
}

// link connects output 0 of src to input port of dst.
type link struct {
	src, dst flowgraph.BlockID
	port     int
}

// pipeline is the demodulator graph and the pieces the caller drives.
type pipeline struct {
	g        *flowgraph.Graph
	reporter *blocks.Reporter
	probe    *blocks.Probe[float32]
	outRate  float64
}

func demod(ctx context.Context, env *cli.Env, input string, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	env.ServeMetrics(ctx)

	var src flowgraph.Block
	var rate float64
	if input != "" {
		env.Logger.Info("opening file", "path", input)
		ws, err := audio.OpenWAVSource(input, opts.repeat)
		if err != nil {
			return err
		}
		src, rate = ws, float64(ws.SampleRate())
	} else {
		rate = env.Config.Demod.SampleRate
		cs := audio.NewCaptureSource(opts.device, rate, env.Config.Audio.FramesPerBuffer)
		cs.OnOverrun = func(n int) { env.Metrics.CaptureOverrun(cs.Name(), n) }
		src = cs
	}

	abandon := func() {
		if s, ok := src.(flowgraph.Stopper); ok {
			_ = s.Stop()
		}
	}
	p, err := build(env, src, rate, opts)
	if err != nil {
		abandon()
		return err
	}

	var player *audio.Player
	if p.probe != nil {
		env.Logger.Info("setting up audio")
		player, err = audio.NewPlayer(audio.PlayerConfig{
			SampleRate: int(p.outRate),
			Gain:       env.Config.Audio.PlaybackGain,
			Logger:     env.Logger,
		})
		if err != nil {
			abandon()
			return err
		}
		defer player.Close()
		player.Play(p.probe.Buffer())
	}

	if err := p.g.Start(ctx); err != nil {
		abandon()
		return err
	}
	if opts.duration > 0 {
		timer := time.AfterFunc(opts.duration, p.g.Stop)
		defer timer.Stop()
	}
	if err := p.g.Wait(); err != nil {
		return err
	}

	if player != nil {
		if err := player.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		st := player.Stats()
		env.Logger.Info("playback finished", "samples", st.Samples, "clipped", st.Clipped, "dropped", p.probe.Dropped())
	}
	if cs, ok := src.(*audio.CaptureSource); ok {
		if lost := cs.Overruns(); lost > 0 {
			env.Logger.Warn("capture overruns", "lost", lost)
		}
	}
	_, windows := p.reporter.Last()
	env.Logger.Info("done", "windows", windows)
	return nil
}

// build wires
//
//	src → float→complex → translate/filter/decimate ─┬→ square → re → goertzel → reporter
//	                                                └→ quadrature demod → [de-emphasis] → probe / file
//
// The demodulator branch is only built when something consumes it.
func build(env *cli.Env, src flowgraph.Block, rate float64, opts options) (*pipeline, error) {
	d := env.Config.Demod
	taps, err := dsp.DesignLowPass(1, rate, d.Cutoff, d.Transition, d.Window)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("FIR filter", "order", len(taps)-1)
	outRate := rate / float64(d.Decimation)
	window := int(outRate * d.GoertzelSeconds)
	goertzel, err := blocks.NewGoertzel(outRate, window, d.GoertzelFreq)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		g:        flowgraph.New("msk_demod", env.GraphOptions()...),
		reporter: blocks.NewReporter(env.Logger),
		outRate:  outRate,
	}
	g := p.g
	s := g.Add(src)
	f2c := g.Add(blocks.NewFloatToComplex(false))
	xlate := g.Add(blocks.NewFreqXlatingFIR(d.Decimation, taps, d.Carrier, rate))
	square := g.Add(blocks.NewMultiply[complex64](2))
	c2f := g.Add(blocks.NewComplexToFloat())
	gz := g.Add(goertzel)
	rep := g.Add(p.reporter)

	links := []link{
		{s, f2c, 0},
		{f2c, xlate, 0},
		{xlate, square, 0},
		{xlate, square, 1},
		{square, c2f, 0},
		{c2f, gz, 0},
		{gz, rep, 0},
	}

	if opts.play || opts.out != "" {
		qd := g.Add(blocks.NewQuadDemod(d.Gain))
		links = append(links, link{xlate, qd, 0})
		if d.DeemphasisTau > 0 {
			de := blocks.NewIIRFilter(dsp.DeemphasisSpec(outRate, d.DeemphasisTau), blocks.PassThrough)
			de.SetName("deemphasis")
			id := g.Add(de)
			links = append(links, link{qd, id, 0})
			qd = id
		}
		if opts.play {
			p.probe = blocks.NewProbe[float32](env.Config.Audio.ProbeCapacity)
			p.probe.OnDrop = func(n int) { env.Metrics.ProbeDropped(p.probe.Name(), n) }
			links = append(links, link{qd, g.Add(p.probe), 0})
		}
		if opts.out != "" {
			path, err := stream.ExpandPath(opts.out, time.Now())
			if err != nil {
				return nil, err
			}
			fsink := g.Add(blocks.NewFileSink(path, stream.NewHeader(outRate)))
			links = append(links, link{qd, fsink, 0})
		}
	}

	for _, l := range links {
		if err := g.Connect(l.src, 0, l.dst, l.port); err != nil {
			return nil, err
		}
	}
	return p, nil
}
