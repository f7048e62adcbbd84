// Command mskwavgen writes a WAV file of random bits MSK-modulated onto an
// audio carrier.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"go-flowgraph/internal/audio"
	"go-flowgraph/internal/blocks"
	"go-flowgraph/internal/cli"
	"go-flowgraph/internal/flowgraph"
	"go-flowgraph/internal/stream"
)

func main() {
	ctx, cancel := cli.SignalContext()
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("mskwavgen", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common cli.Common
	common.AddFlags(fs)
	seed := fs.Uint64("seed", 0, "Seed for the bit generator (overrides msk.seed).")
	usage := func() {
		fmt.Fprintln(stderr, "Usage: mskwavgen [flags] <duration_seconds> <output_file.wav>")
		fs.PrintDefaults()
	}
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return cli.Exit(cli.Usagef("%v", err), nil, stderr, usage)
	}
	if fs.NArg() != 2 {
		return cli.Exit(cli.Usagef("expected a duration and an output file"), nil, stderr, usage)
	}
	seconds, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil || seconds <= 0 {
		return cli.Exit(cli.Usagef("invalid duration %q", fs.Arg(0)), nil, stderr, usage)
	}

	env, err := common.Setup("mskwavgen", stderr)
	if err != nil {
		return cli.Exit(err, nil, stderr, usage)
	}
	if fs.Changed("seed") {
		env.Config.MSK.Seed = *seed
	}
	return cli.Exit(generate(ctx, env, seconds, fs.Arg(1)), env.Logger, stderr, usage)
}

func generate(ctx context.Context, env *cli.Env, seconds float64, pattern string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	env.ServeMetrics(ctx)

	path, err := stream.ExpandPath(pattern, time.Now())
	if err != nil {
		return err
	}
	msk := env.Config.MSK
	rate := msk.SampleRate()
	n := int(rate * seconds)

	g := flowgraph.New("mskwavgen", env.GraphOptions()...)

	// Bits 0/1 are mapped to ±1 chars before modulation.
	bits := g.Add(blocks.NewUniformSource(0, 2, msk.Seed, msk.BitRate))
	toFloat := g.Add(blocks.NewByteToFloat())
	center := g.Add(blocks.NewAddConst[float32](-0.5))
	scale := g.Add(blocks.NewMultiplyConst[float32](2))
	toChar := g.Add(blocks.NewFloatToByte())
	mod, err := blocks.NewCPMMod(msk.H, msk.SamplesPerSymbol, msk.L)
	if err != nil {
		return err
	}
	modulator := g.Add(mod)

	carrier := g.Add(blocks.NewSignalSource(flowgraph.KindComplex, blocks.SignalConfig{
		SampleRate: rate,
		Waveform:   blocks.Cosine,
		Frequency:  msk.Carrier,
		Amplitude:  1,
	}))
	mixer := g.Add(blocks.NewMultiply[complex64](2))
	re := g.Add(blocks.NewComplexToFloat())
	head := g.Add(blocks.NewHead(flowgraph.KindFloat, n))
	sink := audio.NewWAVSink(path, int(rate))
	wav := g.Add(sink)

	for _, c := range []struct {
		src, dst flowgraph.BlockID
		port     int
	}{
		{bits, toFloat, 0},
		{toFloat, center, 0},
		{center, scale, 0},
		{scale, toChar, 0},
		{toChar, modulator, 0},
		{modulator, mixer, 0},
		{carrier, mixer, 1},
		{mixer, re, 0},
		{re, head, 0},
		{head, wav, 0},
	} {
		if err := g.Connect(c.src, 0, c.dst, c.port); err != nil {
			return err
		}
	}

	env.Logger.Info("generating", "output", path, "rate", rate, "samples", n, "carrier", msk.Carrier)
	if err := g.Run(ctx); err != nil {
		return err
	}
	written, clipped := sink.Stats()
	env.Logger.Info("WAV file written", "path", path, "samples", written, "clipped", clipped)
	return nil
}
