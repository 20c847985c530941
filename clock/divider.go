package clock

import (
	"errors"
	"fmt"
	"math"
)

// Sequencer clock divider registers hold a 16 bit integer part and an 8 bit
// fractional part.
const (
	MaxInt    = 0xffff
	FracScale = 256
)

var (
	ErrInvalid    = errors.New("clock: frequency and multiplier must be positive")
	ErrOverflow   = errors.New("clock: integer part does not fit 16 bits")
	ErrDegenerate = errors.New("clock: integer part is zero")
)

// Divider is a fractional clock divider as programmed into a sequencer.
type Divider struct {
	Int  uint16
	Frac uint8
}

// Calc returns the divider that runs a sequencer at desired*multiplier cycles
// per second from the base clock. The fractional part is rounded to the
// nearest 1/256.
func Calc(desired, base float64, multiplier int) (Divider, error) {
	if desired <= 0 || base <= 0 || multiplier <= 0 {
		return Divider{}, ErrInvalid
	}

	div := base / (desired * float64(multiplier))
	whole := math.Floor(div)
	frac := math.Round((div - whole) * FracScale)
	if frac == FracScale {
		whole++
		frac = 0
	}

	if whole > MaxInt {
		return Divider{}, fmt.Errorf("%w: %.3f", ErrOverflow, div)
	}
	if whole == 0 {
		return Divider{}, fmt.Errorf("%w: %.6f", ErrDegenerate, div)
	}

	return Divider{Int: uint16(whole), Frac: uint8(frac)}, nil
}

// Float returns the divider as a real number.
func (d Divider) Float() float64 {
	return float64(d.Int) + float64(d.Frac)/FracScale
}

// Hz returns the rate, divided by multiplier, that the divider produces from
// the base clock.
func (d Divider) Hz(base float64, multiplier int) float64 {
	f := d.Float()
	if f == 0 || multiplier <= 0 {
		return 0
	}
	return base / f / float64(multiplier)
}

func (d Divider) String() string {
	return fmt.Sprintf("%d+%d/256", d.Int, d.Frac)
}
