package raster

import "rgbiscaler/config"

// Action says what an image area output line does with the two line buffers.
type Action int

const (
	// RenderA draws the current source line into buffer A and emits it.
	RenderA Action = iota
	// RepeatA emits buffer A again.
	RepeatA
	RenderB
	RepeatB
	// Blank emits the blank template (a scanline).
	Blank
)

func (a Action) String() string {
	switch a {
	case RenderA:
		return "A"
	case RepeatA:
		return "A'"
	case RenderB:
		return "B"
	case RepeatB:
		return "B'"
	case Blank:
		return "_"
	}
	return "?"
}

// Phase tables, indexed by y % (2*div).
var (
	div2       = []Action{RenderA, RepeatA, RenderB, RepeatB}
	div2Lines  = []Action{RenderA, Blank, RenderB, Blank}
	div3       = []Action{RenderA, RepeatA, RepeatA, RenderB, RepeatB, RepeatB}
	div3Lines  = []Action{RenderA, RepeatA, Blank, RenderB, RepeatB, Blank}
	div4       = []Action{RenderA, RepeatA, RepeatA, RepeatA, RenderB, RepeatB, RepeatB, RepeatB}
	div4Thin   = []Action{RenderA, RepeatA, RepeatA, Blank, RenderB, RepeatB, RepeatB, Blank}
	div4Thick  = []Action{RenderA, RepeatA, Blank, Blank, RenderB, RepeatB, Blank, Blank}
	phaseTable = map[int][3][]Action{
		2: {div2, div2Lines, div2Lines},
		3: {div3, div3Lines, div3Lines},
		4: {div4, div4Thin, div4Thick},
	}
)

// Phases returns the action table for a line multiplier.
func Phases(div int, scanlines bool, style config.ScanlineStyle) []Action {
	t, ok := phaseTable[div]
	if !ok {
		t = phaseTable[2]
	}
	switch {
	case !scanlines:
		return t[0]
	case style == config.Thick:
		return t[2]
	}
	return t[1]
}

// Phase returns the action for image area line y.
func Phase(div int, scanlines bool, style config.ScanlineStyle, y int) Action {
	p := Phases(div, scanlines, style)
	return p[y%len(p)]
}
