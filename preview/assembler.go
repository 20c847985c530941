// Package preview shows what the scaler puts on the wire. An Assembler is an
// output sink that rebuilds pictures from the generated lines; the window,
// ffplay and snapshot outputs consume those pictures. Raw writes the lines
// themselves to a file.
package preview

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"rgbiscaler/raster"
	"rgbiscaler/video"
)

// LineDecoder converts the visible part of an output line into RGBA pixels.
type LineDecoder[W raster.Word] func(dst []byte, line []W)

// FrameFunc is called with every assembled picture and its sequence number,
// starting at 1. The picture must not be kept after the call returns.
type FrameFunc func(img *image.RGBA, frame uint64) error

// analog levels of a two bit channel
var analogLevels = [4]uint8{0, video.LevelNormal / 2, video.LevelNormal, video.LevelBright}

// AnalogLine decodes analog output bytes. Sync bits are ignored.
func AnalogLine(dst []byte, line []byte) {
	n := min(len(dst)/4, len(line))
	for x := 0; x < n; x++ {
		b := line[x]
		p := dst[x*4 : x*4+4]
		p[0] = analogLevels[b&3]
		p[1] = analogLevels[b>>2&3]
		p[2] = analogLevels[b>>4&3]
		p[3] = 0xff
	}
}

// DigitalLine returns a decoder for serialised TMDS words wired as w. Every
// odd word carries the complement of the symbol before it and shows the same
// colour.
func DigitalLine(w raster.Wiring) LineDecoder[uint64] {
	cache := make(map[uint64]color.RGBA)
	return func(dst []byte, line []uint64) {
		n := min(len(dst)/4, len(line))
		for x := 0; x < n; x++ {
			word := line[x&^1]
			c, ok := cache[word]
			if !ok {
				r, g, b := w.Deserialize(word)
				c = color.RGBA{raster.DecodeTMDS(r), raster.DecodeTMDS(g), raster.DecodeTMDS(b), 0xff}
				cache[word] = c
			}
			p := dst[x*4 : x*4+4]
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
		}
	}
}

// Assembler collects output lines into pictures of the visible area. Lines
// are expected in order starting with line 0 of a frame, as the scaler emits
// them.
type Assembler[W raster.Word] struct {
	mode   video.Mode
	decode LineDecoder[W]
	width  int
	height int

	y        int
	back     *image.RGBA
	handlers []FrameFunc

	mu     sync.Mutex
	front  *image.RGBA
	frames atomic.Uint64

	pace   bool
	period time.Duration
	next   time.Time
}

// NewAnalog assembles the analog output of mode m. One output byte spans Div
// mode pixels, so pictures are HVisible/Div pixels wide. With pace set the
// assembler holds every frame until its refresh period has passed.
func NewAnalog(m video.Mode, pace bool) *Assembler[byte] {
	return newAssembler[byte](m, m.HVisible/m.Div, AnalogLine, pace)
}

// NewDigital assembles the digital output of mode m at full mode resolution.
func NewDigital(m video.Mode, w raster.Wiring, pace bool) *Assembler[uint64] {
	return newAssembler[uint64](m, m.HVisible, DigitalLine(w), pace)
}

func newAssembler[W raster.Word](m video.Mode, width int, decode LineDecoder[W], pace bool) *Assembler[W] {
	r := image.Rect(0, 0, width, m.VVisible)
	return &Assembler[W]{
		mode:   m,
		decode: decode,
		width:  width,
		height: m.VVisible,
		back:   image.NewRGBA(r),
		front:  image.NewRGBA(r),
		pace:   pace,
		period: time.Duration(float64(m.WholeLine*m.WholeFrame) / m.PixelFreq * float64(time.Second)),
	}
}

// Handle adds fn to the functions called with every picture. It must be
// called before the first line is written.
func (a *Assembler[W]) Handle(fn FrameFunc) {
	a.handlers = append(a.handlers, fn)
}

// Size returns the picture size in pixels.
func (a *Assembler[W]) Size() (w, h int) {
	return a.width, a.height
}

// DisplaySize returns the size pictures should be shown at.
func (a *Assembler[W]) DisplaySize() (w, h int) {
	return a.mode.HVisible, a.mode.VVisible
}

// RefreshRate returns the frame rate of the mode in Hz.
func (a *Assembler[W]) RefreshRate() float64 {
	return a.mode.PixelFreq / float64(a.mode.WholeLine*a.mode.WholeFrame)
}

// Frames returns the number of pictures assembled.
func (a *Assembler[W]) Frames() uint64 {
	return a.frames.Load()
}

// Latest copies the last complete picture into dst, which must hold
// width*height*4 bytes, and returns its sequence number. Zero means no
// picture has been completed yet.
func (a *Assembler[W]) Latest(dst []byte) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	copy(dst, a.front.Pix)
	return a.frames.Load()
}

// WriteLine decodes one output line.
func (a *Assembler[W]) WriteLine(ctx context.Context, line []W) error {
	if a.y < a.height {
		off := a.y * a.back.Stride
		a.decode(a.back.Pix[off:off+a.width*4], line)
	}
	a.y++
	if a.y < a.mode.WholeFrame {
		return nil
	}
	a.y = 0
	return a.endFrame(ctx)
}

func (a *Assembler[W]) endFrame(ctx context.Context) error {
	a.mu.Lock()
	a.back, a.front = a.front, a.back
	n := a.frames.Add(1)
	a.mu.Unlock()

	// front only changes on this goroutine
	for _, fn := range a.handlers {
		if err := fn(a.front, n); err != nil {
			return err
		}
	}

	if a.pace {
		return a.wait(ctx)
	}
	return ctx.Err()
}

func (a *Assembler[W]) wait(ctx context.Context) error {
	now := time.Now()
	if a.next.IsZero() || now.Sub(a.next) > time.Second {
		a.next = now
	}
	a.next = a.next.Add(a.period)

	t := time.NewTimer(a.next.Sub(now))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
