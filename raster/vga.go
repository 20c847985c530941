package raster

import (
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

// Analog output colour levels, two bits per channel.
const (
	levelNormal byte = 0b10
	levelBright byte = 0b11
)

// VGA generates the analog output: one byte per output pixel, each output
// pixel spanning Div mode pixels.
type VGA struct {
	frameState

	mode video.Mode
	opts Options

	// palette maps a packed source byte to its two output pixels
	palette [256][2]byte
	phases  []Action

	blank []byte
	vsync []byte
	image [2][]byte
	row   []byte

	// horizontal sizes in source bytes, vertical margin in output lines
	hVisible int
	hMargin  int
	vMargin  int
}

// NewVGA creates an analog generator reading frames from pool.
func NewVGA(m video.Mode, pool *vbuf.Pool, opts Options) *VGA {
	g := &VGA{mode: m, opts: opts}
	g.pool = pool
	g.Start()
	return g
}

// AnalogColour returns the output byte of RGBI colour c with idle syncs.
func AnalogColour(c byte, polarity byte) byte {
	lvl := levelNormal
	if c&video.Bright != 0 {
		lvl = levelBright
	}
	var out byte
	if c&video.Red != 0 {
		out |= lvl
	}
	if c&video.Green != 0 {
		out |= lvl << 2
	}
	if c&video.Blue != 0 {
		out |= lvl << 4
	}
	return out | (video.NoSync ^ polarity)
}

func (g *VGA) Start() {
	m := g.mode
	pol := m.SyncPolarity

	for i := 0; i < 256; i++ {
		g.palette[i] = [2]byte{
			AnalogColour(byte(i)&0x0f, pol),
			AnalogColour(byte(i)>>4, pol),
		}
	}

	n := (m.WholeLine / m.Div) &^ 3
	syncStart := (m.HVisible + m.HFrontPorch) / m.Div
	syncLen := m.HSyncPulse / m.Div

	g.blank = make([]byte, n)
	g.vsync = make([]byte, n)
	for i := range g.blank {
		g.blank[i] = video.NoSync ^ pol
		g.vsync[i] = video.VSync ^ pol
	}
	for i := syncStart; i < syncStart+syncLen && i < n; i++ {
		g.blank[i] = video.HSync ^ pol
		g.vsync[i] = video.VHSync ^ pol
	}
	for i := range g.image {
		g.image[i] = append([]byte(nil), g.blank...)
	}

	g.hVisible = m.HVisible / (m.Div * 4) * 2
	g.hMargin = (g.hVisible - int(g.opts.CaptureFreq/1_000_000)*(video.ActiveLineMicros/2)) / 2
	if g.hMargin < 0 {
		g.hMargin = 0
	}
	g.hVisible -= 2 * g.hMargin
	if g.hVisible > vbuf.Stride {
		g.hVisible = vbuf.Stride
	}

	g.vMargin = (m.VVisible - vbuf.Height*m.Div) / (m.Div * 2) * m.Div
	if g.vMargin < 0 {
		g.vMargin = 0
	}

	g.row = make([]byte, vbuf.Stride)
	g.phases = Phases(m.Div, g.opts.Scanlines, g.opts.Style)
	g.Rearm()
}

func (g *VGA) Rearm() {
	g.y = -1
	g.frame = nil
}

func (g *VGA) Next() []byte {
	g.y++
	if g.y >= g.mode.WholeFrame {
		g.y = 0
	}
	return g.Line(g.y)
}

func (g *VGA) Mode() video.Mode { return g.mode }

func (g *VGA) Templates() (blank, vsync []byte) {
	return g.blank, g.vsync
}

// Margins returns the horizontal margin in source bytes and the vertical
// margin in output lines.
func (g *VGA) Margins() (h, v int) {
	return g.hMargin, g.vMargin
}

func (g *VGA) ImageSize() (w, h int) {
	h = (g.mode.VVisible - 2*g.vMargin) / g.mode.Div
	return g.hVisible * 2, min(h, vbuf.Height)
}

func (g *VGA) SetOverlay(o *Overlay) {
	g.overlay.Store(o)
}

func (g *VGA) Line(y int) []byte {
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

	if y < g.vMargin || y >= g.vMargin+vbuf.Height*m.Div {
		return g.blank
	}

	var buf []byte
	switch g.phases[y%len(g.phases)] {
	case RenderA:
		buf = g.image[0]
	case RenderB:
		buf = g.image[1]
	case RepeatA:
		return g.image[0]
	case RepeatB:
		return g.image[1]
	default:
		return g.blank
	}

	g.render(buf, (y-g.vMargin)/m.Div)
	return buf
}

func (g *VGA) render(buf []byte, sy int) {
	g.compose(g.row, sy)

	fill := g.palette[0]
	i := 0
	for x := 0; x < g.hMargin; x++ {
		buf[i], buf[i+1] = fill[0], fill[1]
		i += 2
	}
	for _, b := range g.row[:g.hVisible] {
		p := g.palette[b]
		buf[i], buf[i+1] = p[0], p[1]
		i += 2
	}
	for x := 0; x < g.hMargin; x++ {
		buf[i], buf[i+1] = fill[0], fill[1]
		i += 2
	}
}
