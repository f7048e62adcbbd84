// Command lpfdemo filters a composite of sinusoids with a low-pass FIR or
// IIR filter and writes the unfiltered and filtered signals, interleaved,
// to a header + float32 payload file. With --filter none only the composite
// is written.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"go-flowgraph/internal/blocks"
	"go-flowgraph/internal/cli"
	"go-flowgraph/internal/dsp"
	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/stream"
)

func main() {
	ctx, cancel := cli.SignalContext()
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("lpfdemo", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common cli.Common
	common.AddFlags(fs)
	filter := fs.StringP("filter", "f", "fir", "Filter to apply: fir, iir or none.")
	usage := func() {
		fmt.Fprintln(stderr, "Usage: lpfdemo [flags] <output_file>")
		fs.PrintDefaults()
	}
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return cli.Exit(cli.Usagef("%v", err), nil, stderr, usage)
	}
	if fs.NArg() != 1 {
		return cli.Exit(cli.Usagef("expected one output file"), nil, stderr, usage)
	}
	switch *filter {
	case "fir", "iir", "none":
	default:
		return cli.Exit(cli.Usagef("unknown filter %q", *filter), nil, stderr, usage)
	}

	env, err := common.Setup("lpfdemo", stderr)
	if err != nil {
		return cli.Exit(err, nil, stderr, usage)
	}
	return cli.Exit(demo(ctx, env, *filter, fs.Arg(0)), env.Logger, stderr, usage)
}

func demo(ctx context.Context, env *cli.Env, filter, pattern string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	env.ServeMetrics(ctx)

	path, err := stream.ExpandPath(pattern, time.Now())
	if err != nil {
		return err
	}
	g, err := build(env, filter, path)
	if err != nil {
		return err
	}
	env.Logger.Info("running", "filter", filter, "output", path)
	if err := g.Run(ctx); err != nil {
		return err
	}
	return report(env, path)
}

// build wires tones → add, then either straight to the file (none) or
// through two heads, one behind the filter, into a {1,1} mux.
func build(env *cli.Env, filter, path string) (*flowgraph.Graph, error) {
	cfg := env.Config
	fsHz := cfg.Signal.SampleRate
	n := int(fsHz * float64(cfg.Signal.DurationMS) / 1000)

	g := flowgraph.New("lpfdemo_"+filter, env.GraphOptions()...)
	add := g.Add(blocks.NewAdd[float32](len(cfg.Signal.Tones)))
	for i, tone := range cfg.Signal.Tones {
		src := g.Add(blocks.NewSignalSource(flowgraph.KindFloat, blocks.SignalConfig{
			SampleRate: fsHz,
			Waveform:   blocks.Sine,
			Frequency:  tone.Frequency,
			Amplitude:  tone.Amplitude,
		}))
		if err := g.Connect(src, 0, add, i); err != nil {
			return nil, err
		}
	}

	if filter == "none" {
		head := g.Add(blocks.NewHead(flowgraph.KindFloat, n))
		sink := g.Add(blocks.NewFileSink(path, stream.NewHeader(fsHz)))
		return g, connectAll(g, [][2]flowgraph.BlockID{{add, head}, {head, sink}})
	}

	lpf, err := newFilter(env, filter)
	if err != nil {
		return nil, err
	}
	f := g.Add(lpf)
	headRaw := g.Add(blocks.NewHead(flowgraph.KindFloat, n))
	headFiltered := g.Add(blocks.NewHead(flowgraph.KindFloat, n))
	mux := g.Add(blocks.NewMux(flowgraph.KindFloat, []int{1, 1}))
	sink := g.Add(blocks.NewFileSink(path, stream.NewHeader(fsHz, 1, 1)))
	if err := connectAll(g, [][2]flowgraph.BlockID{
		{add, f},
		{add, headRaw},
		{f, headFiltered},
		{mux, sink},
	}); err != nil {
		return nil, err
	}
	if err := g.Connect(headRaw, 0, mux, 0); err != nil {
		return nil, err
	}
	return g, g.Connect(headFiltered, 0, mux, 1)
}

func newFilter(env *cli.Env, filter string) (flowgraph.Block, error) {
	cfg := env.Config
	if filter == "iir" {
		spec, err := dsp.NewIIRSpec(cfg.IIR.B, cfg.IIR.A)
		if err != nil {
			return nil, err
		}
		env.Logger.Info("IIR filter", "order", spec.Order(), "stable", spec.Stable(), "policy", cfg.StabilityPolicy())
		return blocks.NewIIRFilter(spec, cfg.StabilityPolicy()), nil
	}
	lp := cfg.LowPass
	taps, err := dsp.DesignLowPass(lp.Gain, cfg.Signal.SampleRate, lp.Cutoff, lp.Transition, lp.Window)
	if err != nil {
		return nil, err
	}
	env.Logger.Info("FIR filter", "order", len(taps)-1, "window", lp.Window)
	return blocks.NewFIRFilter(dsp.Float32Taps(taps), 1), nil
}

func connectAll(g *flowgraph.Graph, pairs [][2]flowgraph.BlockID) error {
	for _, p := range pairs {
		if err := g.Connect(p[0], 0, p[1], 0); err != nil {
			return err
		}
	}
	return nil
}

// report reads the file back and logs the Goertzel amplitude of every tone
// in every stream over the whole recording.
func report(env *cli.Env, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	h, samples, err := stream.ReadFile(f)
	if err != nil {
		return fmt.Errorf("reading back %s: %w", path, err)
	}
	streams, err := stream.Deinterleave(samples, h.MuxFormat)
	if err != nil {
		return err
	}
	names := []string{"unfiltered", "filtered"}
	for k, s := range streams {
		for _, tone := range env.Config.Signal.Tones {
			amp, ok := toneAmplitude(s, h.SampleRate, tone.Frequency)
			if !ok {
				continue
			}
			env.Logger.Info("level", "stream", names[k], "frequency", tone.Frequency, "amplitude", amp)
		}
	}
	env.Logger.Info("wrote", "path", path, "streams", len(streams), "samples", len(samples))
	return nil
}

func toneAmplitude(s []float32, fs, freq float64) (float64, bool) {
	g, err := dsp.NewGoertzel(fs, len(s), freq)
	if err != nil {
		return 0, false
	}
	for _, x := range s {
		if r, ok := g.Push(float64(x)); ok {
			return r.Amplitude(), true
		}
	}
	return 0, false
}
