// Command flowcheck runs a sine source through a throttle into a null sink
// for a fixed time, then stops the graph. It verifies that the scheduler
// starts, paces and drains cleanly.
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
	"go-flowgraph/internal/flowgraph"
)

func main() {
	ctx, cancel := cli.SignalContext()
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("flowcheck", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common cli.Common
	common.AddFlags(fs)
	duration := fs.DurationP("duration", "d", 2*time.Second, "How long to run before stopping.")
	rate := fs.Float64P("rate", "r", 32_000, "Sample rate.")
	freq := fs.Float64P("frequency", "f", 1000, "Tone frequency in Hz.")
	usage := func() {
		fmt.Fprintln(stderr, "Usage: flowcheck [flags]")
		fs.PrintDefaults()
	}
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return cli.Exit(cli.Usagef("%v", err), nil, stderr, usage)
	}
	if fs.NArg() != 0 || *duration <= 0 {
		return cli.Exit(cli.Usagef("unexpected arguments"), nil, stderr, usage)
	}

	env, err := common.Setup("flowcheck", stderr)
	if err != nil {
		return cli.Exit(err, nil, stderr, usage)
	}
	return cli.Exit(check(ctx, env, *rate, *freq, *duration), env.Logger, stderr, usage)
}

func check(ctx context.Context, env *cli.Env, rate, freq float64, d time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	env.ServeMetrics(ctx)

	g := flowgraph.New("flowcheck", env.GraphOptions()...)
	src := g.Add(blocks.NewSignalSource(flowgraph.KindFloat, blocks.SignalConfig{
		SampleRate: rate,
		Waveform:   blocks.Sine,
		Frequency:  freq,
		Amplitude:  1,
	}))
	throttle := blocks.NewThrottle(flowgraph.KindFloat, rate)
	thr := g.Add(throttle)
	sink := g.Add(blocks.NewNullSink(flowgraph.KindFloat))
	for _, c := range [][2]flowgraph.BlockID{{src, thr}, {thr, sink}} {
		if err := g.Connect(c[0], 0, c[1], 0); err != nil {
			return err
		}
	}

	env.Logger.Info("starting flowgraph", "rate", rate, "duration", d)
	start := time.Now()
	if err := g.Start(ctx); err != nil {
		return err
	}
	timer := time.AfterFunc(d, g.Stop)
	defer timer.Stop()
	if err := g.Wait(); err != nil {
		return err
	}
	env.Logger.Info("flowgraph finished", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
