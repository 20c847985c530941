package sdr

import (
	"context"
	"fmt"
	"log"
	"math"

	rtl "github.com/jpoirier/gortlsdr"

	"rgbiscaler/decoder"
	"rgbiscaler/video"
)

// RxConfig holds the RTL-SDR settings.
type RxConfig struct {
	FrequencyHz  int
	SampleRateHz int
	// Gain is in tenths of a dB.
	Gain int
}

// SetupDevice initializes and configures the RTL-SDR device.
func SetupDevice(cfg RxConfig) (*rtl.Context, error) {
	devCount := rtl.GetDeviceCount()
	if devCount == 0 {
		return nil, fmt.Errorf("no RTL-SDR devices found")
	}
	log.Printf("Found %d RTL-SDR device(s). Using device 0.", devCount)

	dongle, err := rtl.Open(0)
	if err != nil {
		return nil, fmt.Errorf("error opening RTL-SDR device: %w", err)
	}

	if err := dongle.SetCenterFreq(cfg.FrequencyHz); err != nil {
		dongle.Close()
		return nil, fmt.Errorf("SetCenterFreq failed: %w", err)
	}
	log.Printf("Tuned to frequency: %.3f MHz", float64(cfg.FrequencyHz)/1e6)

	if err := dongle.SetSampleRate(cfg.SampleRateHz); err != nil {
		dongle.Close()
		return nil, fmt.Errorf("SetSampleRate failed: %w", err)
	}
	log.Printf("Sample rate set to: %.3f MHz", float64(cfg.SampleRateHz)/1e6)

	if err := dongle.SetTunerGainMode(true); err != nil {
		dongle.Close()
		return nil, fmt.Errorf("SetTunerGainMode failed: %w", err)
	}
	if err := dongle.SetTunerGain(cfg.Gain); err != nil {
		dongle.Close()
		return nil, fmt.Errorf("SetTunerGain failed: %w", err)
	}
	log.Printf("Tuner gain set to MANUAL: %.1f dB", float64(cfg.Gain)/10.0)

	if err := dongle.ResetBuffer(); err != nil {
		dongle.Close()
		return nil, fmt.Errorf("ResetBuffer failed: %w", err)
	}

	return dongle, nil
}

// Demodulator turns 8-bit unsigned I/Q pairs of a negatively modulated AM
// signal into monochrome capture samples at the capture frequency.
type Demodulator struct {
	// input samples per output sample
	step  float64
	phase float64

	primed      bool
	smoothedMax float64
	smoothedMin float64
	mags        []float64
}

func NewDemodulator(sampleRate, captureRate float64) *Demodulator {
	return &Demodulator{step: sampleRate / captureRate}
}

// Demodulate appends the capture samples of iq to dst.
func (d *Demodulator) Demodulate(iq []byte, dst []byte) []byte {
	// AM Demodulation & AGC update
	n := len(iq) / 2
	if cap(d.mags) < n {
		d.mags = make([]float64, n)
	}
	amSignal := d.mags[:n]
	localMax, localMin := 0.0, 255.0
	for i := range amSignal {
		iqI := float64(int(iq[i*2]) - 127)
		iqQ := float64(int(iq[i*2+1]) - 127)
		mag := math.Sqrt(iqI*iqI + iqQ*iqQ)
		amSignal[i] = mag
		localMax = max(localMax, mag)
		localMin = min(localMin, mag)
	}
	if n == 0 {
		return dst
	}
	if !d.primed {
		d.smoothedMax, d.smoothedMin = localMax, localMin
		d.primed = true
	}
	d.smoothedMax = d.smoothedMax*0.95 + localMax*0.05
	d.smoothedMin = d.smoothedMin*0.95 + localMin*0.05

	// Signal levels relative to the sync tip, see IreToAmplitude.
	syncTipLevel := d.smoothedMax
	peakWhiteLevel := d.smoothedMin
	blackLevel := syncTipLevel * IreToAmplitude(ireBlack)
	syncThreshold := (syncTipLevel + blackLevel) / 2
	levelCoeff := 255.0 / (blackLevel - peakWhiteLevel + 1e-6)

	for _, mag := range amSignal {
		var s byte
		if mag >= syncThreshold {
			s = decoder.VSyncBit
		} else {
			brightness := (blackLevel - mag) * levelCoeff
			gray := uint8(math.Max(0, math.Min(255, brightness)))
			s = video.Quantize(gray, gray, gray) | decoder.HSyncBit | decoder.VSyncBit
		}
		for d.phase < 1 {
			dst = append(dst, s)
			d.phase += d.step
		}
		d.phase--
	}
	return dst
}

// Receiver is a capture source reading from an RTL-SDR.
type Receiver struct {
	dongle  *rtl.Context
	demod   *Demodulator
	iq      []byte
	pending []byte
}

// OpenReceiver sets up the first RTL-SDR and demodulates its signal into
// samples at captureRate.
func OpenReceiver(cfg RxConfig, captureRate float64) (*Receiver, error) {
	dongle, err := SetupDevice(cfg)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		dongle: dongle,
		demod:  NewDemodulator(float64(cfg.SampleRateHz), captureRate),
		iq:     make([]byte, rtl.DefaultBufLength),
	}, nil
}

func (r *Receiver) ReadBatch(ctx context.Context, buf []byte) error {
	for len(r.pending) < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.dongle.ReadSync(r.iq, len(r.iq))
		if err != nil {
			return fmt.Errorf("ReadSync error: %w", err)
		}
		r.pending = r.demod.Demodulate(r.iq[:n], r.pending)
	}
	n := copy(buf, r.pending)
	r.pending = append(r.pending[:0], r.pending[n:]...)
	return nil
}

func (r *Receiver) Close() error {
	return r.dongle.Close()
}
