package vbuf

import "sync/atomic"

// Captured frame geometry. A line holds 52µs of active video sampled at the
// highest supported capture frequency (8MHz).
const (
	Width      = 416
	Height     = 304
	Stride     = Width / 2
	FrameBytes = Stride * Height
)

// Frame is one captured image. Pixels are 4-bit RGBI values packed two per
// byte, the first (even) pixel in the low nibble.
type Frame struct {
	Data  [FrameBytes]byte
	valid atomic.Bool
}

// Valid reports whether the frame has ever been published or drawn into.
func (f *Frame) Valid() bool {
	return f.valid.Load()
}

// MarkValid flags the frame as displayable.
func (f *Frame) MarkValid() {
	f.valid.Store(true)
}

// Line returns the packed bytes of source line y.
func (f *Frame) Line(y int) []byte {
	return f.Data[y*Stride : (y+1)*Stride]
}

// Pixel returns the 4-bit colour at (x, y).
func (f *Frame) Pixel(x, y int) byte {
	b := f.Data[y*Stride+x/2]
	if x&1 == 0 {
		return b & 0x0f
	}
	return b >> 4
}

// SetPixel stores a 4-bit colour at (x, y). Out of range coordinates are
// ignored.
func (f *Frame) SetPixel(x, y int, c byte) {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return
	}
	i := y*Stride + x/2
	if x&1 == 0 {
		f.Data[i] = f.Data[i]&0xf0 | c&0x0f
	} else {
		f.Data[i] = f.Data[i]&0x0f | c<<4
	}
}

// Fill sets every pixel to colour c.
func (f *Frame) Fill(c byte) {
	b := c&0x0f | c<<4
	for i := range f.Data {
		f.Data[i] = b
	}
}

// Clear zeroes the pixels and drops the valid flag.
func (f *Frame) Clear() {
	clear(f.Data[:])
	f.valid.Store(false)
}
