package raster

import (
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

// DVI colour channel intensities.
const (
	dviNormal = 170
	dviBright = 255
)

// DVI generates the digital output: one serialised TMDS word per mode pixel.
// Every source pixel becomes a symbol followed by its complement, so the line
// multiplier is fixed at 2 horizontally and lines are rendered on even y and
// repeated on odd y.
type DVI struct {
	frameState

	mode video.Mode
	opts Options

	// palette[2c] is the symbol of colour c, palette[2c+1] its complement
	palette [32]uint64
	// control words indexed by the polarity adjusted (vsync<<1 | hsync) levels
	ctl [4]uint64

	blank []uint64
	vsync []uint64
	image [2][]uint64
	row   []byte

	hVisible int
}

// NewDVI creates a digital generator reading frames from pool.
func NewDVI(m video.Mode, pool *vbuf.Pool, opts Options) *DVI {
	g := &DVI{mode: m, opts: opts}
	g.pool = pool
	g.Start()
	return g
}

// DigitalColour returns the serialised symbol of RGBI colour c.
func DigitalColour(c byte, w Wiring) uint64 {
	lvl := byte(dviNormal)
	if c&video.Bright != 0 {
		lvl = dviBright
	}
	var r, g, b byte
	if c&video.Red != 0 {
		r = lvl
	}
	if c&video.Green != 0 {
		g = lvl
	}
	if c&video.Blue != 0 {
		b = lvl
	}
	return w.Serialize(EncodeTMDS(r), EncodeTMDS(g), EncodeTMDS(b))
}

// ControlWord returns the serialised control period word for the given sync
// states. Syncs travel on the blue lane; red and green carry C1C0=00.
func ControlWord(m video.Mode, hsync, vsync bool, w Wiring) uint64 {
	h, v := m.SyncLevels(hsync, vsync)
	idx := 0
	if h {
		idx |= 1
	}
	if v {
		idx |= 2
	}
	c0 := ControlSymbols[0]
	return w.Serialize(c0, c0, ControlSymbols[idx])
}

func (g *DVI) Start() {
	m := g.mode
	w := g.opts.Wiring

	for c := 0; c < 16; c++ {
		g.palette[2*c] = DigitalColour(byte(c), w)
		g.palette[2*c+1] = Complement(g.palette[2*c])
	}
	g.ctl[0b00] = ControlWord(m, false, false, w)
	g.ctl[0b01] = ControlWord(m, true, false, w)
	g.ctl[0b10] = ControlWord(m, false, true, w)
	g.ctl[0b11] = ControlWord(m, true, true, w)

	g.blank = g.controlLine(false)
	g.vsync = g.controlLine(true)
	for i := range g.image {
		g.image[i] = g.controlLine(false)
	}

	g.hVisible = min(m.HVisible/(2*m.Div), vbuf.Stride)
	g.row = make([]byte, vbuf.Stride)
	g.Rearm()
}

// controlLine builds a line of control words with the horizontal sync pulse
// after the visible area and front porch.
func (g *DVI) controlLine(vsync bool) []uint64 {
	m := g.mode
	idle, pulse := g.ctl[0b00], g.ctl[0b01]
	if vsync {
		idle, pulse = g.ctl[0b10], g.ctl[0b11]
	}

	line := make([]uint64, m.WholeLine)
	syncStart := m.HVisible + m.HFrontPorch
	for i := range line {
		line[i] = idle
		if i >= syncStart && i < syncStart+m.HSyncPulse {
			line[i] = pulse
		}
	}
	return line
}

func (g *DVI) Rearm() {
	g.y = -1
	g.frame = nil
}

func (g *DVI) Next() []uint64 {
	g.y++
	if g.y >= g.mode.WholeFrame {
		g.y = 0
	}
	return g.Line(g.y)
}

func (g *DVI) Mode() video.Mode { return g.mode }

func (g *DVI) Templates() (blank, vsync []uint64) {
	return g.blank, g.vsync
}

func (g *DVI) ImageSize() (w, h int) {
	return g.hVisible * 2, min(g.mode.VVisible/g.mode.Div, vbuf.Height)
}

func (g *DVI) SetOverlay(o *Overlay) {
	g.overlay.Store(o)
}

func (g *DVI) Line(y int) []uint64 {
	m := g.mode
	if y == 0 {
		g.latch()
	}

	switch m.Classify(y) {
	case video.SyncPulse:
		return g.vsync
	case video.FrontPorch, video.BackPorch:
		return g.blank
	}

	buf := g.image[(y/2)&1]
	if y&1 == 0 {
		g.render(buf, y/m.Div)
	}
	return buf
}

func (g *DVI) render(buf []uint64, sy int) {
	if sy >= vbuf.Height {
		sy = vbuf.Height - 1
	}
	g.compose(g.row, sy)

	i := 0
	for _, b := range g.row[:g.hVisible] {
		lo, hi := int(b&0x0f)<<1, int(b>>4)<<1
		buf[i] = g.palette[lo]
		buf[i+1] = g.palette[lo+1]
		buf[i+2] = g.palette[hi]
		buf[i+3] = g.palette[hi+1]
		i += 4
	}
}
