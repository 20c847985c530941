package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
)

// Sample sources.
const (
	SourceTest   = "test"
	SourceWebcam = "webcam"
	SourceRTLSDR = "rtlsdr"
	SourceFile   = "file"
)

// Test source pictures.
const (
	PatternBars       = "bars"
	PatternVertical   = "vertical"
	PatternHorizontal = "horizontal"
)

// Output sinks.
const (
	SinkWindow = "window"
	SinkFFplay = "ffplay"
	SinkHackRF = "hackrf"
	SinkRaw    = "raw"
	SinkNone   = "none"
)

// Config holds all application configuration values.
type Config struct {
	Settings Settings

	SettingsFile string
	SaveSettings bool

	Source  string
	Input   string
	Device  string
	Pattern string

	Sink   string
	Output string

	// SDR front ends
	Frequency  float64
	SampleRate float64
	Gain       int

	Snapshot string
	Monitor  bool
}

// New creates and returns a new Config populated from command-line flags.
func New() *Config {
	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Parse reads the settings file named by -config, if any, then applies the
// flags explicitly given on the command line over it.
func Parse(flags *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	def := Default()

	var (
		mode         = flags.Int("mode", def.Output.Mode, "Output video mode (0-5)")
		dvi          = flags.Bool("dvi", false, "Output DVI instead of VGA")
		scanlines    = flags.Bool("scanlines", false, "Draw scanlines")
		thick        = flags.Bool("thick", false, "Use thick scanlines at line multiplier 4")
		triple       = flags.Bool("triple", false, "Enable triple buffering")
		capFreq      = flags.Uint("capfreq", uint(def.Capture.Frequency), "Capture sampling frequency in Hz")
		extClock     = flags.Int("extclock", 0, "Clock capture from the input pixel clock divided by N (0 = self clocked)")
		delay        = flags.Int("delay", def.Capture.Delay, "Capture delay in sequencer cycles")
		shiftX       = flags.Int("shiftx", def.Capture.ShiftX, "Horizontal image shift in samples")
		shiftY       = flags.Int("shifty", def.Capture.ShiftY, "Vertical image shift in lines")
		separateSync = flags.Bool("separate-sync", false, "Input carries separate H and V sync")
		invert       = flags.Uint("invert", uint(def.Capture.InversionMask), "Input pin inversion mask")
	)

	flags.StringVar(&cfg.SettingsFile, "config", "", "YAML settings file")
	flags.BoolVar(&cfg.SaveSettings, "save", false, "Write the effective settings back to the settings file")
	flags.StringVar(&cfg.Source, "source", SourceWebcam, "Sample source: test, webcam, rtlsdr or file")
	flags.StringVar(&cfg.Input, "input", "", "Raw sample file for the file source")
	flags.StringVar(&cfg.Device, "device", "", "Video device name or index (OS-dependent)")
	flags.StringVar(&cfg.Sink, "sink", SinkWindow, "Output sink: window, ffplay, hackrf, raw or none")
	flags.StringVar(&cfg.Output, "output", "", "File the raw sink writes to")
	flags.Float64Var(&cfg.Frequency, "freq", 1280, "SDR frequency in MHz")
	flags.Float64Var(&cfg.SampleRate, "bw", 8, "SDR sample rate in MHz")
	flags.IntVar(&cfg.Gain, "gain", 30, "SDR gain (HackRF TX VGA 0-47, RTL-SDR tenths of a dB)")
	flags.StringVar(&cfg.Snapshot, "snapshot", "", "Write a PNG of the first displayed frame")
	flags.BoolVar(&cfg.Monitor, "monitor", false, "Show the terminal status monitor")
	flags.StringVar(&cfg.Pattern, "pattern", PatternBars, "Test source picture: bars, vertical or horizontal")
	test := flags.Bool("test", false, "Capture colour bars instead of a real source")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg.Settings = def
	if cfg.SettingsFile != "" {
		s, err := Load(cfg.SettingsFile)
		switch {
		case err == nil:
			cfg.Settings = s
		case errors.Is(err, fs.ErrNotExist) && cfg.SaveSettings:
			// created on save
		default:
			return nil, err
		}
	}

	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	c, o := &cfg.Settings.Capture, &cfg.Settings.Output
	if set["mode"] {
		o.Mode = *mode
	}
	if set["dvi"] {
		o.Standard = VGA
		if *dvi {
			o.Standard = DVI
		}
	}
	if set["scanlines"] {
		o.Scanlines = *scanlines
	}
	if set["thick"] {
		o.ScanlineStyle = Thin
		if *thick {
			o.ScanlineStyle = Thick
		}
	}
	if set["triple"] {
		o.TripleBuffering = *triple
	}
	if set["capfreq"] {
		c.Frequency = uint32(*capFreq)
	}
	if set["extclock"] {
		c.ClockSource = Self
		if *extClock > 0 {
			c.ClockSource = External
			c.ExtClockDivider = *extClock
		}
	}
	if set["delay"] {
		c.Delay = *delay
	}
	if set["shiftx"] {
		c.ShiftX = *shiftX
	}
	if set["shifty"] {
		c.ShiftY = *shiftY
	}
	if set["separate-sync"] {
		c.SeparateSync = *separateSync
	}
	if set["invert"] {
		c.InversionMask = byte(*invert)
		if *invert > 0xff {
			c.InversionMask = 0xff
		}
	}
	cfg.Settings.Validate()

	if *test {
		cfg.Source = SourceTest
	}
	switch cfg.Source {
	case SourceTest, SourceWebcam, SourceRTLSDR:
	case SourceFile:
		if cfg.Input == "" {
			return nil, errors.New("file source needs -input")
		}
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
	switch cfg.Pattern {
	case PatternBars, PatternVertical, PatternHorizontal:
	default:
		return nil, fmt.Errorf("unknown test pattern %q", cfg.Pattern)
	}
	switch cfg.Sink {
	case SinkWindow, SinkFFplay, SinkHackRF, SinkNone:
	case SinkRaw:
		if cfg.Output == "" {
			return nil, errors.New("raw sink needs -output")
		}
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	return cfg, nil
}
