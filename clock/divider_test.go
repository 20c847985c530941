package clock_test

import (
	"errors"
	"math"
	"testing"

	"rgbiscaler/clock"
)

func TestCalcCaptureExample(t *testing.T) {
	d, err := clock.Calc(7_000_000, 126_000_000, 12)
	if err != nil {
		t.Fatalf("Calc() failed: %v", err)
	}
	if d.Int != 1 || d.Frac != 128 {
		t.Errorf("divider = %v, want 1+128/256", d)
	}
}

func TestCalcModes(t *testing.T) {
	cases := []struct {
		name       string
		desired    float64
		base       float64
		multiplier int
		wantInt    uint16
		wantFrac   uint8
	}{
		{"7MHz capture at 252MHz", 7_000_000, 252_000_000, 12, 3, 0},
		{"6MHz capture at 252MHz", 6_000_000, 252_000_000, 12, 3, 128},
		{"8MHz capture at 270MHz", 8_000_000, 270_000_000, 12, 2, 208},
		{"unit divider", 10_000_000, 10_000_000, 1, 1, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, err := clock.Calc(c.desired, c.base, c.multiplier)
			if err != nil {
				t.Fatalf("Calc() failed: %v", err)
			}
			if d.Int != c.wantInt || d.Frac != c.wantFrac {
				t.Errorf("divider = %v, want %d+%d/256", d, c.wantInt, c.wantFrac)
			}
		})
	}
}

// TestCalcWithinOneLSB sweeps the capture frequency range against every
// system clock in use and checks the divider is within half a fractional step
// of the exact ratio.
func TestCalcWithinOneLSB(t *testing.T) {
	bases := []float64{126e6, 240e6, 252e6, 260e6, 270e6, 324e6}
	for _, base := range bases {
		for f := 6_000_000.0; f <= 8_000_000; f += 12_345 {
			d, err := clock.Calc(f, base, 12)
			if err != nil {
				t.Fatalf("Calc(%v, %v) failed: %v", f, base, err)
			}
			exact := base / (f * 12)
			if diff := math.Abs(d.Float() - exact); diff > 0.5/clock.FracScale+1e-12 {
				t.Errorf("Calc(%v, %v) = %v, off by %v", f, base, d, diff)
			}
		}
	}
}

func TestCalcRejects(t *testing.T) {
	if _, err := clock.Calc(1, 100_000_000, 1); !errors.Is(err, clock.ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
	if _, err := clock.Calc(100_000_000, 60_000_000, 1); !errors.Is(err, clock.ErrDegenerate) {
		t.Errorf("expected ErrDegenerate, got %v", err)
	}
	if _, err := clock.Calc(0, 1, 1); !errors.Is(err, clock.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if _, err := clock.Calc(1, 1, 0); !errors.Is(err, clock.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestDividerHz(t *testing.T) {
	d := clock.Divider{Int: 3}
	if hz := d.Hz(252e6, 12); hz != 7e6 {
		t.Errorf("Hz() = %v, want 7e6", hz)
	}
	if hz := (clock.Divider{}).Hz(252e6, 12); hz != 0 {
		t.Errorf("zero divider Hz() = %v, want 0", hz)
	}
}
