package sdr_test

import (
	"math"
	"testing"

	"rgbiscaler/decoder"
	"rgbiscaler/sdr"
	"rgbiscaler/video"
)

func TestLowPassTaps(t *testing.T) {
	taps := sdr.NewLowPassFilterTaps(31, 6e6, 16e6)
	var sum float64
	for i, tap := range taps {
		sum += tap
		if mirror := taps[len(taps)-1-i]; math.Abs(tap-mirror) > 1e-12 {
			t.Errorf("tap %d = %g, mirror %g", i, tap, mirror)
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("DC gain %g, want 1", sum)
	}
}

func TestIreToAmplitude(t *testing.T) {
	tests := []struct {
		ire  float64
		want float64
	}{
		{-40, 1},
		{0, 0.75},
		{100, 0.125},
	}
	for _, tt := range tests {
		if got := sdr.IreToAmplitude(tt.ire); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("IreToAmplitude(%g) = %g, want %g", tt.ire, got, tt.want)
		}
	}
}

func TestIRE(t *testing.T) {
	tests := []struct {
		name string
		mode int
		b    byte
		want float64
	}{
		// negative syncs idle high
		{"neg black", video.Mode640x480, 0xc0, 0},
		{"neg hsync", video.Mode640x480, 0x80, -40},
		{"neg vsync", video.Mode640x480, 0x40, -40},
		{"neg bright white", video.Mode640x480, 0xff, 100},
		{"pos black", video.Mode800x600, 0x00, 0},
		{"pos hsync", video.Mode800x600, 0x40, -40},
		{"pos bright white", video.Mode800x600, 0x3f, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sdr.NewModulator(video.Modes[tt.mode], 8e6, 0)
			if got := m.IRE(tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("IRE(%#x) = %g, want %g", tt.b, got, tt.want)
			}
		})
	}

	// normal white sits between black and bright white
	m := sdr.NewModulator(video.Modes[video.Mode640x480], 8e6, 0)
	if got := m.IRE(0xea); got <= 0 || got >= 100 {
		t.Errorf("normal white at %g IRE", got)
	}
}

func TestModulateResamples(t *testing.T) {
	mode := video.Modes[video.Mode640x480]
	rate := mode.PixelFreq / float64(mode.Div)

	tests := []struct {
		name  string
		ratio float64
		pairs int
	}{
		{"same rate", 1, 800},
		{"double rate", 2, 1600},
		{"half rate", 0.5, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sdr.NewModulator(mode, rate*tt.ratio, 0)
			iq := m.Modulate(make([]byte, 800), nil)
			if got := len(iq) / 2; got != tt.pairs {
				t.Errorf("%d I/Q pairs, want %d", got, tt.pairs)
			}
		})
	}
}

func TestFilteredBlackIsSteady(t *testing.T) {
	mode := video.Modes[video.Mode640x480]
	line := make([]byte, 800)
	for i := range line {
		line[i] = 0xc0
	}
	m := sdr.NewModulator(mode, 16e6, 6e6)
	iq := m.Modulate(line, nil)
	for i := 0; i < len(iq); i += 2 {
		if iq[i] != 95 && iq[i] != 94 {
			t.Fatalf("pair %d: I = %d, want black carrier", i/2, iq[i])
		}
		if iq[i+1] != 0 {
			t.Fatalf("pair %d: Q = %d", i/2, iq[i+1])
		}
	}
}

// A line sent through the modulator and back through the demodulator keeps
// its syncs and its black and white levels.
func TestLoopback(t *testing.T) {
	mode := video.Modes[video.Mode640x480]
	rate := mode.PixelFreq / float64(mode.Div)

	var line []byte
	for _, seg := range []struct {
		b byte
		n int
	}{{0x80, 40}, {0xc0, 20}, {0xff, 40}, {0xc0, 20}} {
		for range seg.n {
			line = append(line, seg.b)
		}
	}

	iq := sdr.NewModulator(mode, rate, 0).Modulate(line, nil)
	// signed HackRF samples to unsigned RTL-SDR samples
	rx := make([]byte, len(iq))
	for i, v := range iq {
		rx[i] = byte(int(int8(v)) + 127)
	}

	got := sdr.NewDemodulator(rate, rate).Demodulate(rx, nil)
	if len(got) != len(line) {
		t.Fatalf("%d samples, want %d", len(got), len(line))
	}

	const idle = decoder.HSyncBit | decoder.VSyncBit
	want := map[byte]byte{
		0x80: decoder.VSyncBit,
		0xc0: idle | video.Black,
		0xff: idle | video.White | video.Bright,
	}
	for i, b := range line {
		if got[i] != want[b] {
			t.Fatalf("sample %d: %#x became %#x, want %#x", i, b, got[i], want[b])
		}
	}
}

func TestDemodulateRates(t *testing.T) {
	rx := make([]byte, 2*1000)
	for i := range rx {
		rx[i] = 127
	}
	if got := len(sdr.NewDemodulator(2e6, 8e6).Demodulate(rx, nil)); got != 4000 {
		t.Errorf("upsampling by 4: %d samples", got)
	}
	if got := len(sdr.NewDemodulator(8e6, 4e6).Demodulate(rx, nil)); got != 500 {
		t.Errorf("downsampling by 2: %d samples", got)
	}
}
