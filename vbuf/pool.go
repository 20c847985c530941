package vbuf

import (
	"sync/atomic"
)

const (
	slotMask  = 0b011
	readyFlag = 0b100
)

// Pool hands completed frames from the capture side to the display side.
//
// With triple buffering the three frames are owned by the writer, the reader
// and the shared middle slot. The middle slot index and its ready flag live in
// one atomic word so both sides exchange frames without locks:
//   - AcquireWrite publishes the writer's frame into the middle with the ready
//     flag set and takes the previous middle frame as the next target.
//   - AcquireRead takes the middle frame only when the ready flag is set;
//     otherwise the reader keeps its frame (freeze last good image).
//
// Exactly one goroutine may call AcquireWrite and one AcquireRead. Unbuffered
// pools share a single frame between both sides and tearing is accepted.
type Pool struct {
	frames [3]*Frame
	triple bool

	// write and first are owned by the writer
	write int
	first bool

	read   atomic.Int32
	middle atomic.Uint32

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Published uint64
	// Dropped counts published frames overwritten before the reader took them.
	Dropped uint64
}

// New allocates a pool. Frames are allocated once and never resized.
func New(triple bool) *Pool {
	p := &Pool{}
	for i := range p.frames {
		p.frames[i] = &Frame{}
	}
	p.reset(triple)
	return p
}

func (p *Pool) reset(triple bool) {
	p.triple = triple
	p.write = 0
	p.first = true
	p.middle.Store(1)
	p.read.Store(2)
	for _, f := range p.frames {
		f.valid.Store(false)
	}
}

// Triple reports whether the pool runs with three frames.
func (p *Pool) Triple() bool {
	return p.triple
}

// SetTripleBuffering switches the buffering mode. Both sides must be stopped.
// Ready flags and the first frame guard are reset.
func (p *Pool) SetTripleBuffering(on bool) {
	p.reset(on)
}

// Clear zeroes every frame.
func (p *Pool) Clear() {
	for _, f := range p.frames {
		f.Clear()
	}
}

// AcquireWrite returns the frame the capture side writes next. It is called
// once per completed frame; the first call only hands out a target.
func (p *Pool) AcquireWrite() *Frame {
	if !p.triple {
		f := p.frames[0]
		f.MarkValid()
		return f
	}

	if p.first {
		p.first = false
		return p.frames[p.write]
	}

	p.frames[p.write].MarkValid()
	old := p.middle.Swap(uint32(p.write) | readyFlag)
	p.published.Add(1)
	if old&readyFlag != 0 {
		p.dropped.Add(1)
	}
	p.write = int(old & slotMask)
	return p.frames[p.write]
}

// AcquireRead returns the frame the display side shows next. It is called
// once per output frame and never blocks.
func (p *Pool) AcquireRead() *Frame {
	if !p.triple {
		return p.frames[0]
	}

	if p.middle.Load()&readyFlag != 0 {
		old := p.middle.Swap(uint32(p.read.Load()))
		p.read.Store(int32(old & slotMask))
	}
	return p.frames[p.read.Load()]
}

// Display returns the frame currently owned by the display side, for drawing
// status screens while capture is idle.
func (p *Pool) Display() *Frame {
	if !p.triple {
		return p.frames[0]
	}
	return p.frames[p.read.Load()]
}

// Ready reports whether slot i holds a published frame not yet taken by the
// reader.
func (p *Pool) Ready(i int) bool {
	m := p.middle.Load()
	return p.triple && m&readyFlag != 0 && int(m&slotMask) == i
}

// Stats returns the publication counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Published: p.published.Load(),
		Dropped:   p.dropped.Load(),
	}
}
