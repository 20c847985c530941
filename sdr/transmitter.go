package sdr

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/samuel/go-hackrf/hackrf"

	"rgbiscaler/video"
)

// queued lines between the display path and the radio
const txQueueLines = 64

// TxConfig holds the HackRF settings.
type TxConfig struct {
	FrequencyHz uint64
	SampleRate  float64
	Bandwidth   float64
	Gain        int
}

// Transmitter is an output sink that sends the analog output over a HackRF.
// The radio consumes samples at its own rate, so WriteLine blocks while the
// queue is full and the radio paces the display path.
type Transmitter struct {
	dev *hackrf.Device
	cfg TxConfig
	mod *Modulator

	queue chan []byte
	cur   []byte
	idle  byte

	lines     atomic.Uint64
	underruns atomic.Uint64
}

// NewTransmitter creates a sink for the analog output of mode m on an open
// device.
func NewTransmitter(dev *hackrf.Device, m video.Mode, cfg TxConfig) *Transmitter {
	return &Transmitter{
		dev:   dev,
		cfg:   cfg,
		mod:   NewModulator(m, cfg.SampleRate, cfg.Bandwidth),
		queue: make(chan []byte, txQueueLines),
		idle:  byte(int8(IreToAmplitude(ireBlack) * 127.0)),
	}
}

// Start configures the device and starts the transmission stream.
func (t *Transmitter) Start() error {
	if err := t.dev.SetFreq(t.cfg.FrequencyHz); err != nil {
		return err
	}
	if err := t.dev.SetSampleRate(t.cfg.SampleRate); err != nil {
		return err
	}
	if err := t.dev.SetTXVGAGain(t.cfg.Gain); err != nil {
		return err
	}
	if err := t.dev.SetAmpEnable(false); err != nil {
		return err
	}

	log.Printf("Starting transmission on %.3f MHz with a %.2f MHz filter bandwidth (Sample Rate: %.1f Msps)...",
		float64(t.cfg.FrequencyHz)/1e6, t.cfg.Bandwidth/1e6, t.cfg.SampleRate/1e6)

	// StartTX is non-blocking and returns immediately.
	return t.dev.StartTX(func(buf []byte) error {
		t.fill(buf)
		return nil
	})
}

// Stop ends the transmission.
func (t *Transmitter) Stop() error {
	return t.dev.StopTX()
}

// WriteLine modulates one output line and queues it for the radio.
func (t *Transmitter) WriteLine(ctx context.Context, line []byte) error {
	iq := t.mod.Modulate(line, make([]byte, 0, 2*len(line)))
	select {
	case t.queue <- iq:
		t.lines.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fill copies queued samples into a radio buffer. When the queue runs dry
// the rest of the buffer carries the black level.
func (t *Transmitter) fill(buf []byte) {
	for i := 0; i < len(buf); {
		if len(t.cur) == 0 {
			select {
			case t.cur = <-t.queue:
			default:
				for ; i+1 < len(buf); i += 2 {
					buf[i], buf[i+1] = t.idle, 0
				}
				t.underruns.Add(1)
				return
			}
		}
		n := copy(buf[i:], t.cur)
		t.cur = t.cur[n:]
		i += n
	}
}

// Underruns returns how many radio buffers were padded with black.
func (t *Transmitter) Underruns() uint64 {
	return t.underruns.Load()
}
