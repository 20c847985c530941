package video

import "image/color"

// RGBI colour bits of a captured pixel.
const (
	Blue   byte = 0b0001
	Green  byte = 0b0010
	Red    byte = 0b0100
	Bright byte = 0b1000

	Black   byte = 0
	Cyan         = Green | Blue
	Magenta      = Red | Blue
	Yellow       = Red | Green
	White        = Red | Green | Blue
)

// Channel intensities of a lit RGBI channel.
const (
	LevelNormal = 170
	LevelBright = 255
)

// Levels returns the 8-bit red, green and blue intensities of colour c.
func Levels(c byte) (r, g, b uint8) {
	lvl := uint8(LevelNormal)
	if c&Bright != 0 {
		lvl = LevelBright
	}
	if c&Red != 0 {
		r = lvl
	}
	if c&Green != 0 {
		g = lvl
	}
	if c&Blue != 0 {
		b = lvl
	}
	return r, g, b
}

// RGBA converts an RGBI colour for display.
func RGBA(c byte) color.RGBA {
	r, g, b := Levels(c)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Quantize maps a 24-bit colour to the nearest RGBI colour. A channel is lit
// above a third of full scale; the bright bit follows the strongest lit
// channel.
func Quantize(r, g, b uint8) byte {
	var c byte
	var peak uint8
	if r > 85 {
		c |= Red
		peak = max(peak, r)
	}
	if g > 85 {
		c |= Green
		peak = max(peak, g)
	}
	if b > 85 {
		c |= Blue
		peak = max(peak, b)
	}
	if peak > (LevelNormal+LevelBright)/2 {
		c |= Bright
	}
	return c
}

// Luma returns the brightness of colour c on a 0-255 scale.
func Luma(c byte) float64 {
	r, g, b := Levels(c)
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}
