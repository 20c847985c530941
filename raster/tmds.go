package raster

import "math/bits"

// TMDS control symbols, indexed by C1C0.
var ControlSymbols = [4]uint16{
	0b1101010100,
	0b0010101011,
	0b0101010100,
	0b1010101011,
}

// complementMask flips bit-times 0 to 7 of a serialised word.
const complementMask uint64 = 0x0003ffffffffffff

// EncodeTMDS transition-minimises one data byte into a 10-bit symbol. Bit 8
// is set when the XOR chain was used, bit 9 when the XNOR chain was.
func EncodeTMDS(d byte) uint16 {
	ones := bits.OnesCount8(d)
	xnor := ones > 4 || (ones == 4 && d&1 == 0)

	q := uint16(d & 1)
	prev := q
	for i := 1; i < 8; i++ {
		b := uint16(d>>i) & 1
		bit := prev ^ b
		if xnor {
			bit ^= 1
		}
		q |= bit << i
		prev = bit
	}

	if xnor {
		return q | 1<<9
	}
	return q | 1<<8
}

// DecodeTMDS reverses EncodeTMDS.
func DecodeTMDS(sym uint16) byte {
	xnor := sym&(1<<9) != 0
	q := byte(sym)

	d := q & 1
	for i := 1; i < 8; i++ {
		bit := (q>>i ^ q>>(i-1)) & 1
		if xnor {
			bit ^= 1
		}
		d |= bit << i
	}
	return d
}

// Wiring describes how the three TMDS lanes reach the output pins.
type Wiring struct {
	// RGB puts red on the highest lane pair instead of blue.
	RGB bool
	// InvertPairs swaps P and N of every differential pair.
	InvertPairs bool
}

// Serialize interleaves three 10-bit symbols into one output word. Every
// bit-time takes 6 bits (a P/N pair per lane), least significant bit-time
// first; bit-times 0-4 fill bits 0-29 and 5-9 fill bits 32-61.
func (w Wiring) Serialize(r, g, b uint16) uint64 {
	var out uint64
	for i := 0; i < 10; i++ {
		out <<= 6
		if i == 5 {
			out <<= 2
		}

		br := pair(r, 9-i)
		bg := pair(g, 9-i)
		bb := pair(b, 9-i)
		if w.InvertPairs {
			br ^= 0b11
			bg ^= 0b11
			bb ^= 0b11
		}

		if w.RGB {
			out |= uint64(br<<4 | bg<<2 | bb)
		} else {
			out |= uint64(bb<<4 | bg<<2 | br)
		}
	}
	return out
}

func pair(sym uint16, bit int) byte {
	b := byte(sym>>bit) & 1
	return b | (b^1)<<1
}

// Deserialize recovers the three symbols from an output word.
func (w Wiring) Deserialize(word uint64) (r, g, b uint16) {
	for t := 0; t < 10; t++ {
		shift := 6 * t
		if t >= 5 {
			shift += 2
		}
		d6 := byte(word>>shift) & 0x3f
		if w.InvertPairs {
			d6 ^= 0b111111
		}

		hi, mid, lo := uint16(d6>>4)&1, uint16(d6>>2)&1, uint16(d6)&1
		if w.RGB {
			r |= hi << t
			b |= lo << t
		} else {
			b |= hi << t
			r |= lo << t
		}
		g |= mid << t
	}
	return r, g, b
}

// Complement returns the data-inverted companion of a serialised symbol. The
// pair carries as many ones as zeros on every lane.
func Complement(word uint64) uint64 {
	return word ^ complementMask
}
