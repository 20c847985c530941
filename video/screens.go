package video

import "rgbiscaler/vbuf"

// ActiveLineMicros is the active part of a captured line.
const ActiveLineMicros = 52

// noSignal is the banner drawn when capture loses the input signal.
var noSignal = [14]string{
	"xx      xx      xxxxxx                  xxxxxx      xxxxxx      xxxxxx      xx      xx        xx        xx",
	"xx      xx     xxxxxxxx                xxxxxxxx     xxxxxx     xxxxxxxx     xx      xx       xxxx       xx",
	"xxx     xx    xxx    xxx              xxx    xxx      xx      xxx    xxx    xxx     xx      xxxxxx      xx",
	"xxx     xx    xx      xx              xx      xx      xx      xx      xx    xxx     xx     xxx  xxx     xx",
	"xxxx    xx    xx      xx              xx              xx      xx            xxxx    xx    xxx    xxx    xx",
	"xxxxx   xx    xx      xx              xxx             xx      xx            xxxxx   xx    xx      xx    xx",
	"xx xxx  xx    xx      xx               xxxxxxx        xx      xx            xx xxx  xx    xx      xx    xx",
	"xx  xxx xx    xx      xx                xxxxxxx       xx      xx    xxxx    xx  xxx xx    xx      xx    xx",
	"xx   xxxxx    xx      xx                     xxx      xx      xx    xxxx    xx   xxxxx    xxxxxxxxxx    xx",
	"xx    xxxx    xx      xx                      xx      xx      xx      xx    xx    xxxx    xxxxxxxxxx    xx",
	"xx     xxx    xx      xx              xx      xx      xx      xx      xx    xx     xxx    xx      xx    xx",
	"xx     xxx    xxx    xxx              xxx    xxx      xx      xxx    xxx    xx     xxx    xx      xx    xx",
	"xx      xx     xxxxxxxx                xxxxxxxx     xxxxxx     xxxxxxxx     xx      xx    xx      xx    xxxxxxxxxx",
	"xx      xx      xxxxxx                  xxxxxx      xxxxxx      xxxxxx      xx      xx    xx      xx    xxxxxxxxxx",
}

// NoSignalWidth is the banner width in pixels.
const NoSignalWidth = 114

// VisibleSource returns the number of source pixels and lines that fit the
// active area of mode m at capture frequency freq.
func VisibleSource(m Mode, freq uint32) (w, h int) {
	w = m.HVisible / (m.Div * 4) * 4
	if freq > 0 {
		if margin := w - int(freq/1_000_000)*ActiveLineMicros; margin > 0 {
			w -= margin
		}
	}

	vMargin := (m.VVisible - vbuf.Height*m.Div) / (m.Div * 2) * m.Div * 2
	if vMargin < 0 {
		vMargin = 0
	}
	h = (m.VVisible - vMargin) / m.Div
	return w, h
}

// ramp returns the colour of band i of the welcome screen.
func ramp(i int) byte {
	var c byte
	if i&4 != 0 {
		c |= Red
	}
	if i&8 != 0 {
		c |= Green
	}
	if i&2 != 0 {
		c |= Blue
	}
	if c != 0 && i&1 == 0 {
		c |= Bright
	}
	return c
}

// DrawWelcome fills f with sixteen vertical colour bands spread over the
// visible width.
func DrawWelcome(f *vbuf.Frame, m Mode, freq uint32) {
	w, _ := VisibleSource(m, freq)
	for x := 0; x < vbuf.Width; x++ {
		c := ramp(0x0f &^ (16 * x / w))
		for y := 0; y < vbuf.Height; y++ {
			f.SetPixel(x, y, c)
		}
	}
	f.MarkValid()
}

// DrawWelcomeHorizontal fills f with sixteen horizontal colour bands spread
// over the visible height.
func DrawWelcomeHorizontal(f *vbuf.Frame, m Mode) {
	_, h := VisibleSource(m, 0)
	for y := 0; y < vbuf.Height; y++ {
		c := ramp(16 * y / h)
		b := c | c<<4
		line := f.Line(y)
		for i := range line {
			line[i] = b
		}
	}
	f.MarkValid()
}

// DrawNoSignal clears f and draws the no signal banner centred in the visible
// area.
func DrawNoSignal(f *vbuf.Frame, m Mode, freq uint32) {
	w, h := VisibleSource(m, freq)
	x0 := (w - NoSignalWidth) / 2 &^ 1
	y0 := h / 2

	clear(f.Data[:])
	for row, line := range noSignal {
		for col := 0; col < len(line); col++ {
			if line[col] == 'x' {
				f.SetPixel(x0+col, y0+row, White)
			}
		}
	}
	f.MarkValid()
}

// FillColorBars fills f with eight vertical colour bars, bright white first.
func FillColorBars(f *vbuf.Frame) {
	bars := [8]byte{
		White | Bright,
		Yellow,
		Cyan,
		Green,
		Magenta,
		Red,
		Blue,
		Black,
	}
	barWidth := vbuf.Width / len(bars)
	for x := 0; x < vbuf.Width; x++ {
		i := x / barWidth
		if i >= len(bars) {
			i = len(bars) - 1
		}
		for y := 0; y < vbuf.Height; y++ {
			f.SetPixel(x, y, bars[i])
		}
	}
	f.MarkValid()
}
