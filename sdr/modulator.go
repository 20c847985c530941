// Package sdr moves the scaler's video over the air: a HackRF sink that
// transmits the analog output as an AM baseband signal, and an RTL-SDR
// source that demodulates one back into capture samples.
package sdr

import (
	"math"

	"rgbiscaler/video"
)

// IRE levels of the transmitted signal.
const (
	ireSync  = -40.0
	ireBlack = 0.0
	ireWhite = 100.0
)

// NewLowPassFilterTaps creates the coefficients (taps) for a FIR low-pass filter.
// A Blackman window is used for good performance.
func NewLowPassFilterTaps(numTaps int, bandwidth, sampleRate float64) []float64 {
	taps := make([]float64, numTaps)
	cutoffFreq := bandwidth / 2.0
	normalizedCutoff := cutoffFreq / sampleRate

	M := float64(numTaps - 1)
	var sum float64
	for i := 0; i < numTaps; i++ {
		n := float64(i)
		window := 0.42 - 0.5*math.Cos(2*math.Pi*n/M) + 0.08*math.Cos(4*math.Pi*n/M)

		var sinc float64
		if i == int(M/2) {
			sinc = 2 * math.Pi * normalizedCutoff
		} else {
			sinc = math.Sin(2*math.Pi*normalizedCutoff*(n-M/2)) / (n - M/2)
		}

		taps[i] = sinc * window
		sum += taps[i]
	}

	// Normalize the taps to have a gain of 1 at DC (0 Hz)
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// IreToAmplitude maps an IRE level to the carrier amplitude. Modulation is
// negative: sync tips are full carrier, peak white 12.5%.
func IreToAmplitude(ire float64) float64 {
	return ((ire-100.0)/-140.0)*(1.0-0.125) + 0.125
}

// Modulator turns analog output bytes into 8-bit I/Q pairs at the radio
// sample rate.
type Modulator struct {
	polarity byte
	// input samples consumed per output sample
	step  float64
	phase float64

	taps    []float64
	history []float64
	pos     int
}

// NewModulator creates a modulator for the analog output of mode m. A
// bandwidth of zero disables the low-pass filter.
func NewModulator(m video.Mode, sampleRate, bandwidth float64) *Modulator {
	mod := &Modulator{
		polarity: m.SyncPolarity,
		step:     m.PixelFreq / float64(m.Div) / sampleRate,
	}
	if bandwidth > 0 {
		mod.taps = NewLowPassFilterTaps(31, bandwidth, sampleRate)
		mod.history = make([]float64, len(mod.taps))
		for i := range mod.history {
			mod.history[i] = IreToAmplitude(ireBlack)
		}
	}
	return mod
}

// IRE returns the level of one analog output byte: sync when either sync is
// active, the brightness of the colour otherwise.
func (m *Modulator) IRE(b byte) float64 {
	if (b^m.polarity)&video.VHSync != video.NoSync {
		return ireSync
	}
	r, g, bl := analogLevel(b), analogLevel(b>>2), analogLevel(b>>4)
	luma := 0.299*r + 0.587*g + 0.114*bl
	return ireBlack + luma/255.0*(ireWhite-ireBlack)
}

func analogLevel(bits byte) float64 {
	switch bits & 3 {
	case 0b11:
		return video.LevelBright
	case 0b10:
		return video.LevelNormal
	case 0b01:
		return video.LevelNormal / 2
	}
	return 0
}

// Modulate appends the I/Q pairs of line to dst. Resampling state carries
// over between lines.
func (m *Modulator) Modulate(line []byte, dst []byte) []byte {
	for _, b := range line {
		amp := IreToAmplitude(m.IRE(b))
		for m.phase < 1 {
			v := m.filter(amp)
			dst = append(dst, byte(int8(v*127.0)), 0)
			m.phase += m.step
		}
		m.phase--
	}
	return dst
}

func (m *Modulator) filter(amp float64) float64 {
	if m.taps == nil {
		return amp
	}
	m.history[m.pos] = amp
	var y float64
	n := len(m.history)
	for k, tap := range m.taps {
		y += tap * m.history[(m.pos-k+n)%n]
	}
	m.pos = (m.pos + 1) % n
	return y
}
