package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rgbiscaler/clock"
	"rgbiscaler/config"
	"rgbiscaler/decoder"
	"rgbiscaler/vbuf"
)

// Synth timing in microseconds.
const (
	synthLineMicros   = 64.0
	synthHSyncMicros  = 4.7
	synthActiveMicros = 52.0
	synthFrontMicros  = 1.5

	synthVSyncLines  = 3
	synthBottomLines = 8

	// sequencer cycles per sample, used to turn a capture delay into a
	// sample offset
	synthCycles = 12
)

// Synth generates the sampled signal of an RGBI source showing a frame. The
// image starts ShiftX samples after the end of each line sync and ShiftY
// lines after the vertical sync, so a decoder with the same parameters
// captures it at the frame origin.
type Synth struct {
	frequency float64
	separate  bool

	lineSamples   int
	hSyncSamples  int
	activeStart   int
	activeSamples int
	linesPerFrame int
	firstActive   int

	image    vbuf.Frame
	signal   []byte
	signalMu sync.RWMutex
	pos      int
	delay    int

	pace    bool
	next    time.Time
	divider clock.Divider
}

// NewSynth creates a generator for the capture parameters p. With pace set
// ReadBatch delivers samples no faster than the sampling frequency.
func NewSynth(p config.CaptureParameters, pace bool) *Synth {
	mhz := float64(p.Frequency) / 1e6
	s := &Synth{
		frequency: float64(p.Frequency),
		separate:  p.SeparateSync,
		pace:      pace,
	}
	s.hSyncSamples = int(synthHSyncMicros * mhz)
	s.activeStart = s.hSyncSamples + p.ShiftX
	s.activeSamples = min(int(synthActiveMicros*mhz), vbuf.Width)
	s.lineSamples = max(int(synthLineMicros*mhz), s.activeStart+s.activeSamples+int(synthFrontMicros*mhz))
	// The sync of the line after the vertical sync merges into it, so the
	// first line counted is the one after that.
	s.firstActive = synthVSyncLines + 1 + p.ShiftY
	s.linesPerFrame = s.firstActive + vbuf.Height + synthBottomLines
	s.signal = make([]byte, s.lineSamples*s.linesPerFrame)
	s.generate()

	slog.Debug("source: synthetic signal",
		"line_samples", s.lineSamples,
		"lines", s.linesPerFrame,
		"active_start", s.activeStart,
		"active_samples", s.activeSamples)
	return s
}

// SetFrame replaces the image shown by the source.
func (s *Synth) SetFrame(f *vbuf.Frame) {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()
	s.image.Data = f.Data
	s.generate()
}

// FrameSamples returns the number of samples in one frame of the signal.
func (s *Synth) FrameSamples() int {
	return len(s.signal)
}

// generate renders the whole signal. signalMu must be held for writing.
func (s *Synth) generate() {
	for line := 0; line < s.linesPerFrame; line++ {
		s.generateLine(line, s.signal[line*s.lineSamples:(line+1)*s.lineSamples])
	}
}

func (s *Synth) generateLine(line int, buf []byte) {
	const idle = decoder.HSyncBit | decoder.VSyncBit

	if line < synthVSyncLines {
		level := byte(decoder.VSyncBit)
		if s.separate {
			level = decoder.HSyncBit
		}
		for i := range buf {
			buf[i] = level
		}
		if s.separate {
			for i := 0; i < s.hSyncSamples; i++ {
				buf[i] = 0
			}
		}
		return
	}

	for i := range buf {
		buf[i] = idle
	}
	for i := 0; i < s.hSyncSamples; i++ {
		buf[i] = decoder.VSyncBit
	}

	y := line - s.firstActive
	if y < 0 || y >= vbuf.Height {
		return
	}
	for x := 0; x < s.activeSamples; x++ {
		buf[s.activeStart+x] = idle | s.image.Pixel(x, y)
	}
}

// ReadBatch fills buf with the next samples of the signal, wrapping at the
// end of the frame.
func (s *Synth) ReadBatch(ctx context.Context, buf []byte) error {
	if s.pace {
		if err := s.wait(ctx, len(buf)); err != nil {
			return err
		}
	}

	s.signalMu.RLock()
	defer s.signalMu.RUnlock()
	n := len(s.signal)
	for i := 0; i < len(buf); {
		c := copy(buf[i:], s.signal[(s.pos+s.delay)%n:])
		i += c
		s.pos = (s.pos + c) % n
	}
	return nil
}

func (s *Synth) wait(ctx context.Context, samples int) error {
	now := time.Now()
	if s.next.IsZero() || now.Sub(s.next) > time.Second {
		s.next = now
	}
	s.next = s.next.Add(time.Duration(float64(samples) / s.frequency * float64(time.Second)))

	t := time.NewTimer(s.next.Sub(now))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetClockDivider records the sampling clock divider. The signal is always
// generated at the configured frequency.
func (s *Synth) SetClockDivider(d clock.Divider) {
	s.divider = d
}

// Divider returns the last clock divider set.
func (s *Synth) Divider() clock.Divider {
	return s.divider
}

// SetDelay shifts the sampling point by whole samples.
func (s *Synth) SetDelay(cycles int) {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()
	s.delay = cycles / synthCycles
}
