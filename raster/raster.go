// Package raster turns captured frames into an outgoing pixel stream, one
// output line at a time.
package raster

import (
	"sync/atomic"

	"rgbiscaler/config"
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

// Word is an output word: one byte per pixel for the analog output, one
// serialised TMDS word per pixel for the digital one.
type Word interface {
	byte | uint64
}

// Generator produces output lines for a timing mode.
type Generator[W Word] interface {
	// Start allocates the line templates and the palette.
	Start()
	// Rearm restarts the frame so the next call to Next returns line 0.
	Rearm()
	// Next returns the buffer for the line after the previous call.
	Next() []W
	// Line returns the buffer to emit for line y in [0, WholeFrame).
	Line(y int) []W
	// Templates returns the blank and vertical sync lines.
	Templates() (blank, vsync []W)
	// ImageSize is the area, in source pixels and lines, shown on screen.
	ImageSize() (w, h int)
	SetOverlay(o *Overlay)
	Mode() video.Mode
}

// Options are the output parameters that do not come from the timing mode.
type Options struct {
	// CaptureFreq sizes the horizontal margins of the analog output.
	CaptureFreq uint32
	Scanlines   bool
	Style       config.ScanlineStyle
	Wiring      Wiring
}

// OptionsFrom collects the raster options out of settings.
func OptionsFrom(s config.Settings) Options {
	return Options{
		CaptureFreq: s.Capture.Frequency,
		Scanlines:   s.Output.Scanlines,
		Style:       s.Output.ScanlineStyle,
		Wiring: Wiring{
			RGB:         s.Output.RGBLanes,
			InvertPairs: s.Output.InvertPairs,
		},
	}
}

// Overlay is a picture composited over the captured image, in the same packed
// 4-bit format. X and Width are rounded down to even so the overlay covers
// whole bytes.
type Overlay struct {
	Pixels []byte
	X      int
	Y      int
	Width  int
	Height int
}

// NewOverlay allocates a blank overlay of w by h pixels at (x, y).
func NewOverlay(x, y, w, h int) *Overlay {
	o := &Overlay{X: x &^ 1, Y: y, Width: w &^ 1, Height: h}
	o.Pixels = make([]byte, o.Stride()*o.Height)
	return o
}

// Stride is the number of bytes in an overlay line.
func (o *Overlay) Stride() int {
	return (o.Width &^ 1) / 2
}

// Centre moves the overlay to the middle of a w by h image area.
func (o *Overlay) Centre(w, h int) {
	o.X = ((w - o.Width) / 2) &^ 1
	o.Y = (h - o.Height) / 2
	if o.X < 0 {
		o.X = 0
	}
	if o.Y < 0 {
		o.Y = 0
	}
}

// SetPixel stores a 4-bit colour at overlay coordinate (x, y).
func (o *Overlay) SetPixel(x, y int, c byte) {
	if x < 0 || y < 0 || x >= o.Width || y >= o.Height {
		return
	}
	i := y*o.Stride() + x/2
	if x&1 == 0 {
		o.Pixels[i] = o.Pixels[i]&0xf0 | c&0x0f
	} else {
		o.Pixels[i] = o.Pixels[i]&0x0f | c<<4
	}
}

// span returns the overlay bytes covering source line y of the image area
// and the byte column they start at, or nil when the line is outside.
func (o *Overlay) span(y int) ([]byte, int) {
	if o == nil || y < o.Y || y >= o.Y+o.Height {
		return nil, 0
	}
	stride := o.Stride()
	if stride <= 0 {
		return nil, 0
	}
	off := (y - o.Y) * stride
	if off+stride > len(o.Pixels) {
		return nil, 0
	}
	return o.Pixels[off : off+stride], (o.X &^ 1) / 2
}

// frameState is what a generator latches at the start of every output frame.
type frameState struct {
	pool        *vbuf.Pool
	placeholder vbuf.Frame
	overlay     atomic.Pointer[Overlay]

	frame *vbuf.Frame
	ov    *Overlay
	y     int
}

func (s *frameState) latch() {
	s.frame = &s.placeholder
	if s.pool != nil {
		if f := s.pool.AcquireRead(); f.Valid() {
			s.frame = f
		}
	}
	s.ov = s.overlay.Load()
}

func (s *frameState) current() *vbuf.Frame {
	if s.frame == nil {
		return &s.placeholder
	}
	return s.frame
}

// compose copies source line sy into dst as packed bytes, replacing the bytes
// covered by the overlay.
func (s *frameState) compose(dst []byte, sy int) {
	src := s.current().Line(sy)
	n := copy(dst, src)

	ov, start := s.ov.span(sy)
	if start < 0 {
		// clipped on the left
		if -start >= len(ov) {
			return
		}
		ov, start = ov[-start:], 0
	}
	if ov == nil || start >= n {
		return
	}
	copy(dst[start:n], ov)
}
