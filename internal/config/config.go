package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"go-flowgraph/internal/blocks"
	"go-flowgraph/internal/dsp"
	"go-flowgraph/internal/flowgraph"
)

// Config holds all the configuration parameters for the tools.
type Config struct {
	Graph   GraphConfig   `yaml:"graph"`
	Signal  SignalConfig  `yaml:"signal"`
	LowPass LowPassConfig `yaml:"lowpass"`
	IIR     IIRConfig     `yaml:"iir"`
	MSK     MSKConfig     `yaml:"msk"`
	Demod   DemodConfig   `yaml:"demod"`
	Audio   AudioConfig   `yaml:"audio"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GraphConfig sizes the scheduler.
type GraphConfig struct {
	EdgeCapacity int `yaml:"edge_capacity"`
	MaxItems     int `yaml:"max_items"`
}

// Tone is one sinusoid of the composite test signal.
type Tone struct {
	Frequency float64 `yaml:"frequency"`
	Amplitude float64 `yaml:"amplitude"`
}

// SignalConfig describes the composite test signal used by lpfdemo.
type SignalConfig struct {
	SampleRate float64 `yaml:"fs"`
	Tones      []Tone  `yaml:"tones"`
	DurationMS int     `yaml:"duration_ms"`
}

// LowPassConfig parameterises the windowed-sinc FIR design.
type LowPassConfig struct {
	Gain       float64    `yaml:"gain"`
	Cutoff     float64    `yaml:"cutoff"`
	Transition float64    `yaml:"transition"`
	Window     dsp.Window `yaml:"window"`
}

// IIRConfig holds coefficients designed offline. An empty B is filled with
// the unity-gain binomial numerator of A.
type IIRConfig struct {
	B         []float64 `yaml:"b"`
	A         []float64 `yaml:"a"`
	Stability string    `yaml:"stability"`
}

type MSKConfig struct {
	BitRate          float64 `yaml:"bit_rate"`
	SamplesPerSymbol int     `yaml:"samples_per_symbol"`
	H                float64 `yaml:"h"`
	L                int     `yaml:"l"`
	Carrier          float64 `yaml:"carrier"`
	Seed             uint64  `yaml:"seed"`
}

// SampleRate is BitRate·SamplesPerSymbol.
func (m MSKConfig) SampleRate() float64 {
	return m.BitRate * float64(m.SamplesPerSymbol)
}

// DemodConfig describes the sound-card MSK phase receiver.
type DemodConfig struct {
	SampleRate      float64    `yaml:"fs"`
	Decimation      int        `yaml:"decimation"`
	Carrier         float64    `yaml:"carrier"`
	Cutoff          float64    `yaml:"cutoff"`
	Transition      float64    `yaml:"transition"`
	Window          dsp.Window `yaml:"window"`
	GoertzelFreq    float64    `yaml:"goertzel_freq"`
	GoertzelSeconds float64    `yaml:"goertzel_seconds"`
	Gain            float32    `yaml:"gain"`

	// DeemphasisTau smooths the demodulated stream with a single-pole
	// low-pass of this time constant before it is played or saved. Zero
	// disables it.
	DeemphasisTau float64 `yaml:"deemphasis_tau"`
}

// OutputRate is the rate after the translating filter.
func (d DemodConfig) OutputRate() float64 {
	return d.SampleRate / float64(d.Decimation)
}

// GoertzelWindow is the analysis window length in samples at OutputRate.
func (d DemodConfig) GoertzelWindow() int {
	return int(d.OutputRate() * d.GoertzelSeconds)
}

// AudioConfig covers the sound-card boundary.
type AudioConfig struct {
	SampleRate      int     `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	PlaybackGain    float64 `yaml:"playback_gain"`
	ProbeCapacity   int     `yaml:"probe_capacity"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// butterworth9 is a 9th-order low-pass feedback polynomial designed offline
// for fs = 44 kHz.
var butterworth9 = []float64{
	1.00000000, -8.82357023, 34.64828281, -79.47088791, 117.33243477,
	-115.63875002, 76.07845294, -32.21785965, 7.96909649, -0.87719917,
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		Graph: GraphConfig{
			EdgeCapacity: flowgraph.DefaultEdgeCapacity,
			MaxItems:     flowgraph.DefaultMaxItems,
		},
		Signal: SignalConfig{
			SampleRate: 44_000,
			Tones: []Tone{
				{Frequency: 200, Amplitude: 1.0},
				{Frequency: 2000, Amplitude: 0.7},
				{Frequency: 5000, Amplitude: 0.5},
			},
			DurationMS: 40,
		},
		LowPass: LowPassConfig{
			Gain:       1,
			Cutoff:     1000,
			Transition: 500,
			Window:     dsp.WindowHamming,
		},
		IIR: IIRConfig{
			B:         dsp.BinomialNumerator(butterworth9),
			A:         append([]float64(nil), butterworth9...),
			Stability: "pass",
		},
		MSK: MSKConfig{
			BitRate:          200,
			SamplesPerSymbol: 32,
			H:                0.5,
			L:                1,
			Carrier:          800,
		},
		Demod: DemodConfig{
			SampleRate:      48_000,
			Decimation:      8,
			Carrier:         809,
			Cutoff:          400,
			Transition:      200,
			Window:          dsp.WindowHamming,
			GoertzelFreq:    100,
			GoertzelSeconds: 1,
			Gain:            1,
		},
		Audio: AudioConfig{
			SampleRate:      44_100,
			FramesPerBuffer: 1024,
			PlaybackGain:    1,
			ProbeCapacity:   1 << 16,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := New()
	cfg.IIR.B = nil
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Graph.EdgeCapacity == 0 {
		c.Graph.EdgeCapacity = flowgraph.DefaultEdgeCapacity
	}
	if c.Graph.MaxItems == 0 {
		c.Graph.MaxItems = flowgraph.DefaultMaxItems
	}
	if len(c.IIR.B) == 0 {
		c.IIR.B = dsp.BinomialNumerator(c.IIR.A)
	}
	if c.IIR.Stability == "" {
		c.IIR.Stability = "pass"
	}
}

// Validate checks every section and reports all problems found.
func (c *Config) Validate() error {
	var errs []error
	if c.Graph.EdgeCapacity <= 0 || c.Graph.MaxItems <= 0 {
		errs = append(errs, errors.New("graph: edge_capacity and max_items must be positive"))
	}
	if c.Signal.SampleRate <= 0 {
		errs = append(errs, errors.New("signal.fs must be positive"))
	}
	if len(c.Signal.Tones) == 0 {
		errs = append(errs, errors.New("signal.tones is empty"))
	}
	if c.Signal.DurationMS <= 0 {
		errs = append(errs, errors.New("signal.duration_ms must be positive"))
	}
	if c.LowPass.Cutoff <= 0 || c.LowPass.Transition <= 0 {
		errs = append(errs, errors.New("lowpass: cutoff and transition must be positive"))
	}
	if _, err := dsp.NewIIRSpec(c.IIR.B, c.IIR.A); err != nil {
		errs = append(errs, fmt.Errorf("iir: %w", err))
	}
	if _, err := blocks.ParseStabilityPolicy(c.IIR.Stability); err != nil {
		errs = append(errs, fmt.Errorf("iir: %w", err))
	}
	if c.MSK.BitRate <= 0 || c.MSK.SamplesPerSymbol <= 0 || c.MSK.L <= 0 || c.MSK.H <= 0 {
		errs = append(errs, errors.New("msk: bit_rate, samples_per_symbol, h and l must be positive"))
	}
	if c.Demod.SampleRate <= 0 || c.Demod.Decimation <= 0 {
		errs = append(errs, errors.New("demod: fs and decimation must be positive"))
	} else if c.Demod.GoertzelWindow() <= 0 {
		errs = append(errs, errors.New("demod: goertzel window is shorter than one sample"))
	}
	if c.Demod.DeemphasisTau < 0 {
		errs = append(errs, errors.New("demod: deemphasis_tau is negative"))
	}
	if c.Audio.SampleRate <= 0 || c.Audio.FramesPerBuffer <= 0 || c.Audio.ProbeCapacity <= 0 {
		errs = append(errs, errors.New("audio: sample_rate, frames_per_buffer and probe_capacity must be positive"))
	}
	return errors.Join(errs...)
}

// StabilityPolicy returns the parsed IIR stability policy.
func (c *Config) StabilityPolicy() blocks.StabilityPolicy {
	p, _ := blocks.ParseStabilityPolicy(c.IIR.Stability)
	return p
}

// GraphOptions returns the scheduler options for the graph section.
func (c *Config) GraphOptions() []flowgraph.Option {
	return []flowgraph.Option{
		flowgraph.WithEdgeCapacity(c.Graph.EdgeCapacity),
		flowgraph.WithMaxItems(c.Graph.MaxItems),
	}
}
