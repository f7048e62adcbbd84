// Command recorder records mono audio from a sound card into a 16-bit WAV
// file.
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

// newSource opens the capture device. Tests replace it.
var newSource = func(device string, sampleRate float64, frames int) flowgraph.Block {
	return audio.NewCaptureSource(device, sampleRate, frames)
}

func main() {
	ctx, cancel := cli.SignalContext()
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("recorder", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common cli.Common
	common.AddFlags(fs)
	list := fs.BoolP("list-devices", "l", false, "List input devices and exit.")
	usage := func() {
		fmt.Fprintln(stderr, "Usage: recorder [flags] <duration_seconds> <output_file.wav> <input_device>")
		fs.PrintDefaults()
	}
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return cli.Exit(cli.Usagef("%v", err), nil, stderr, usage)
	}
	if *list {
		names, err := audio.ListDevices()
		if err != nil {
			return cli.Exit(err, nil, stderr, usage)
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}
		return 0
	}
	if fs.NArg() != 3 {
		return cli.Exit(cli.Usagef("expected a duration, an output file and an input device"), nil, stderr, usage)
	}
	seconds, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil || seconds <= 0 {
		return cli.Exit(cli.Usagef("invalid duration %q", fs.Arg(0)), nil, stderr, usage)
	}

	env, err := common.Setup("recorder", stderr)
	if err != nil {
		return cli.Exit(err, nil, stderr, usage)
	}
	return cli.Exit(record(ctx, env, seconds, fs.Arg(1), fs.Arg(2)), env.Logger, stderr, usage)
}

func record(ctx context.Context, env *cli.Env, seconds float64, pattern, device string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	env.ServeMetrics(ctx)

	path, err := stream.ExpandPath(pattern, time.Now())
	if err != nil {
		return err
	}
	cfg := env.Config.Audio
	n := int(float64(cfg.SampleRate) * seconds)

	g := flowgraph.New("audio_recorder", env.GraphOptions()...)
	source := newSource(device, float64(cfg.SampleRate), cfg.FramesPerBuffer)
	if cs, ok := source.(*audio.CaptureSource); ok {
		cs.OnOverrun = func(n int) { env.Metrics.CaptureOverrun(cs.Name(), n) }
	}
	src := g.Add(source)
	head := g.Add(blocks.NewHead(flowgraph.KindFloat, n))
	sink := audio.NewWAVSink(path, cfg.SampleRate)
	wav := g.Add(sink)
	if err := g.Connect(src, 0, head, 0); err != nil {
		return err
	}
	if err := g.Connect(head, 0, wav, 0); err != nil {
		return err
	}

	env.Logger.Info("recording", "seconds", seconds, "device", device, "output", path)
	if err := g.Run(ctx); err != nil {
		return err
	}
	written, clipped := sink.Stats()
	env.Logger.Info("recording finished", "samples", written, "clipped", clipped)
	if cs, ok := source.(*audio.CaptureSource); ok {
		if lost := cs.Overruns(); lost > 0 {
			env.Logger.Warn("capture overruns", "lost", lost)
		}
	}
	return nil
}
