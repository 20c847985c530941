// Package decoder reconstructs frames from a stream of sampled RGBI bytes.
//
// Every sample is one byte of the capture port: the colour nibble in bits
// 0-3, the horizontal (or composite) sync in bit 4 and the vertical sync in
// bit 5. Sync lines are active low.
package decoder

import (
	"log/slog"
	"sync/atomic"

	"rgbiscaler/config"
	"rgbiscaler/vbuf"
)

// Sample bit layout.
const (
	ColourMask = 0x0f
	HSyncBit   = 1 << 4
	VSyncBit   = 1 << 5
	ClockBit   = 1 << 6
)

const (
	// SettleFrames is the number of frame boundaries ignored after start
	// before capture writes into the pool. Noise at power on produces bogus
	// boundaries.
	SettleFrames = 10

	halfSyncMicros = 3
	vSyncMicros    = 30
)

// State is the position of the decoder relative to the incoming sync.
type State int

const (
	// SeekingLineSync is the state after a reset and while a sync run is
	// still shorter than half a horizontal pulse.
	SeekingLineSync State = iota
	// InActiveLine follows a horizontal sync; samples are pixels.
	InActiveLine
	// InVSync is entered on a frame boundary and held until the sync ends.
	InVSync
)

func (s State) String() string {
	switch s {
	case SeekingLineSync:
		return "seeking"
	case InActiveLine:
		return "line"
	case InVSync:
		return "vsync"
	}
	return "unknown"
}

// Stats is a snapshot of the decoder counters.
type Stats struct {
	Frames uint32
	// Lines counts the line syncs seen in the last complete frame.
	Lines int
	// SyncPulses counts every sync run that reached the half pulse threshold.
	SyncPulses uint64
	// NoisePulses counts sync runs too short to mark a line.
	NoisePulses uint64
}

// cursor is the decoding position. It persists across batches.
type cursor struct {
	x, y   int
	run    int
	pix    byte
	target *vbuf.Frame
	lines  int
}

// Decoder turns sample batches into frames written to a pool. Process is
// called from a single goroutine; FrameCounter, Stats and State may be read
// from any goroutine.
type Decoder struct {
	pool *vbuf.Pool

	invert   byte
	syncMask byte
	shiftX   int
	shiftY   int
	halfSync int
	vSync    int

	cur    cursor
	settle int

	frames      atomic.Uint32
	lastLines   atomic.Int64
	syncPulses  atomic.Uint64
	noisePulses atomic.Uint64
	state       atomic.Int32
}

// New creates a decoder writing into pool.
func New(pool *vbuf.Pool, p config.CaptureParameters) *Decoder {
	d := &Decoder{pool: pool}
	d.Configure(p)
	return d
}

// Configure applies capture parameters and resets the cursor. It must not
// run concurrently with Process.
func (d *Decoder) Configure(p config.CaptureParameters) {
	mhz := int(p.Frequency / 1_000_000)
	d.invert = p.InversionMask & config.InversionMaskBits
	d.shiftX = p.ShiftX
	d.shiftY = p.ShiftY
	d.halfSync = halfSyncMicros * mhz
	d.vSync = vSyncMicros * mhz

	d.syncMask = HSyncBit
	if p.SeparateSync {
		d.syncMask = HSyncBit | VSyncBit
	}

	d.Reset()
	slog.Debug("decoder: configured",
		"half_sync", d.halfSync,
		"vsync", d.vSync,
		"separate_sync", p.SeparateSync,
		"shift_x", d.shiftX,
		"shift_y", d.shiftY)
}

// Reset restarts decoding from an unknown position and clears the settle
// count. The frame counter keeps running.
func (d *Decoder) Reset() {
	d.cur = cursor{
		x: -d.shiftX - 1,
		y: -d.shiftY - 1,
	}
	d.settle = 0
	d.state.Store(int32(SeekingLineSync))
}

// Process decodes one batch of samples. It never blocks.
func (d *Decoder) Process(samples []byte) {
	c := &d.cur
	state := State(d.state.Load())

	for _, s := range samples {
		s ^= d.invert
		c.x++

		if s&d.syncMask != d.syncMask {
			// a separate VSYNC pulse is one long sync run, not a line
			if c.run == d.halfSync && state != InVSync {
				c.y++
				c.lines++
				d.syncPulses.Add(1)
				state = InActiveLine
			}
			c.run++
			c.x = -d.shiftX - 1

			if d.syncMask == HSyncBit {
				if c.run < d.vSync {
					continue
				}
			} else if s&VSyncBit != 0 {
				continue
			}

			if c.y >= 0 {
				d.frameBoundary()
			}
			state = InVSync
			c.y = -d.shiftY - 1
			continue
		}

		if c.run > 0 {
			if c.run <= d.halfSync {
				d.noisePulses.Add(1)
			}
			if state == InVSync {
				state = SeekingLineSync
			}
			c.run = 0
		}

		if c.x&1 == 0 {
			c.pix = s
			continue
		}
		if c.target == nil || c.x < 0 || c.y < 0 || c.x >= vbuf.Width || c.y >= vbuf.Height {
			continue
		}
		c.target.Data[c.y*vbuf.Stride+c.x/2] = c.pix&ColourMask | s<<4
	}

	d.state.Store(int32(state))
}

func (d *Decoder) frameBoundary() {
	c := &d.cur
	if d.settle > SettleFrames {
		c.target = d.pool.AcquireWrite()
	} else {
		d.settle++
	}
	d.frames.Add(1)
	d.lastLines.Store(int64(c.lines))
	c.lines = 0
}

// FrameCounter returns the number of frame boundaries detected. A counter
// that stops advancing means the input signal is lost.
func (d *Decoder) FrameCounter() uint32 {
	return d.frames.Load()
}

func (d *Decoder) State() State {
	return State(d.state.Load())
}

func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:      d.frames.Load(),
		Lines:       int(d.lastLines.Load()),
		SyncPulses:  d.syncPulses.Load(),
		NoisePulses: d.noisePulses.Load(),
	}
}
