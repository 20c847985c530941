package config

import (
	"fmt"
	"log/slog"
	"math"

	"gopkg.in/yaml.v3"

	"rgbiscaler/video"
)

// Capture parameter ranges and defaults.
const (
	FrequencyMin = 6_000_000
	FrequencyMax = 8_000_000
	FrequencyDef = 7_000_000

	ExtClockDividerMin = 1
	ExtClockDividerMax = 5
	ExtClockDividerDef = 2

	DelayMin = 0
	DelayMax = 31
	DelayDef = 15

	ShiftMin  = 0
	ShiftMax  = 200
	ShiftXDef = 68
	ShiftYDef = 34

	InversionMaskBits = 0x7f
	InversionMaskDef  = 0x00

	// DVI output can only be clocked for the first modes of the table.
	DVIModeMax = video.Mode720x576
)

// ClockSource selects what clocks the capture sampler.
type ClockSource int

const (
	Self ClockSource = iota
	External
)

// Standard is the output signal standard.
type Standard int

const (
	VGA Standard = iota
	DVI
)

// ScanlineStyle picks how many lines are blanked per source line when the
// line multiplier is 4.
type ScanlineStyle int

const (
	Thin ScanlineStyle = iota
	Thick
)

var (
	clockSourceNames   = []string{"self", "external"}
	standardNames      = []string{"vga", "dvi"}
	scanlineStyleNames = []string{"thin", "thick"}
)

func enumString(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("invalid(%d)", v)
	}
	return names[v]
}

// enumValue returns the index of s in names, or -1 so that Validate replaces
// the value with its default.
func enumValue(names []string, s string) int {
	for i, n := range names {
		if n == s {
			return i
		}
	}
	return -1
}

func (c ClockSource) String() string   { return enumString(clockSourceNames, int(c)) }
func (s Standard) String() string      { return enumString(standardNames, int(s)) }
func (s ScanlineStyle) String() string { return enumString(scanlineStyleNames, int(s)) }

func (c ClockSource) MarshalYAML() (interface{}, error)   { return c.String(), nil }
func (s Standard) MarshalYAML() (interface{}, error)      { return s.String(), nil }
func (s ScanlineStyle) MarshalYAML() (interface{}, error) { return s.String(), nil }

func (c *ClockSource) UnmarshalYAML(n *yaml.Node) error {
	*c = ClockSource(enumValue(clockSourceNames, n.Value))
	return nil
}

func (s *Standard) UnmarshalYAML(n *yaml.Node) error {
	*s = Standard(enumValue(standardNames, n.Value))
	return nil
}

func (s *ScanlineStyle) UnmarshalYAML(n *yaml.Node) error {
	*s = ScanlineStyle(enumValue(scanlineStyleNames, n.Value))
	return nil
}

// CaptureParameters control the sampler and the sync decoder.
type CaptureParameters struct {
	// Frequency is the pixel sampling rate in Hz.
	Frequency       uint32      `yaml:"frequency"`
	ClockSource     ClockSource `yaml:"clock_source"`
	ExtClockDivider int         `yaml:"ext_clock_divider"`
	// Delay is in sequencer cycles.
	Delay         int  `yaml:"delay"`
	ShiftX        int  `yaml:"shift_x"`
	ShiftY        int  `yaml:"shift_y"`
	InversionMask byte `yaml:"inversion_mask"`
	SeparateSync  bool `yaml:"separate_sync"`
}

// UnmarshalYAML decodes the numeric fields through int64, so a value the
// field type cannot hold is left to Validate instead of failing the file.
func (c *CaptureParameters) UnmarshalYAML(n *yaml.Node) error {
	w := struct {
		Frequency       int64       `yaml:"frequency"`
		ClockSource     ClockSource `yaml:"clock_source"`
		ExtClockDivider int64       `yaml:"ext_clock_divider"`
		Delay           int64       `yaml:"delay"`
		ShiftX          int64       `yaml:"shift_x"`
		ShiftY          int64       `yaml:"shift_y"`
		InversionMask   int64       `yaml:"inversion_mask"`
		SeparateSync    bool        `yaml:"separate_sync"`
	}{
		Frequency:       int64(c.Frequency),
		ClockSource:     c.ClockSource,
		ExtClockDivider: int64(c.ExtClockDivider),
		Delay:           int64(c.Delay),
		ShiftX:          int64(c.ShiftX),
		ShiftY:          int64(c.ShiftY),
		InversionMask:   int64(c.InversionMask),
		SeparateSync:    c.SeparateSync,
	}
	if err := n.Decode(&w); err != nil {
		return err
	}

	// Out of type values become values Validate rejects.
	c.Frequency = 0
	if w.Frequency >= 0 && w.Frequency <= math.MaxUint32 {
		c.Frequency = uint32(w.Frequency)
	}
	c.InversionMask = 0xff
	if w.InversionMask >= 0 && w.InversionMask <= 0xff {
		c.InversionMask = byte(w.InversionMask)
	}
	c.ClockSource = w.ClockSource
	c.ExtClockDivider = narrow(w.ExtClockDivider)
	c.Delay = narrow(w.Delay)
	c.ShiftX = narrow(w.ShiftX)
	c.ShiftY = narrow(w.ShiftY)
	c.SeparateSync = w.SeparateSync
	return nil
}

// narrow converts v to int, mapping values outside int32 to -1, which is
// below every range.
func narrow(v int64) int {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return -1
	}
	return int(v)
}

// OutputParameters control the raster generator.
type OutputParameters struct {
	Standard        Standard      `yaml:"standard"`
	Mode            int           `yaml:"mode"`
	Scanlines       bool          `yaml:"scanlines"`
	ScanlineStyle   ScanlineStyle `yaml:"scanline_style"`
	TripleBuffering bool          `yaml:"triple_buffering"`

	// board wiring of the digital output
	RGBLanes    bool `yaml:"rgb_lanes"`
	InvertPairs bool `yaml:"invert_pairs"`
}

// Settings is everything the scaler core is configured from.
type Settings struct {
	Capture CaptureParameters `yaml:"capture"`
	Output  OutputParameters  `yaml:"output"`
}

// Default returns the factory settings.
func Default() Settings {
	return Settings{
		Capture: CaptureParameters{
			Frequency:       FrequencyDef,
			ClockSource:     Self,
			ExtClockDivider: ExtClockDividerDef,
			Delay:           DelayDef,
			ShiftX:          ShiftXDef,
			ShiftY:          ShiftYDef,
			InversionMask:   InversionMaskDef,
		},
		Output: OutputParameters{
			Standard: VGA,
			Mode:     video.Mode640x480,
		},
	}
}

// Validate replaces every out of range value with its default, each field
// independently, and returns the names of the fields it corrected.
func (s *Settings) Validate() []string {
	var fixed []string
	fix := func(field string, value, def any) {
		slog.Warn("config: invalid value replaced by default", "field", field, "value", value, "default", def)
		fixed = append(fixed, field)
	}

	c := &s.Capture
	if c.Frequency < FrequencyMin || c.Frequency > FrequencyMax {
		fix("capture.frequency", c.Frequency, FrequencyDef)
		c.Frequency = FrequencyDef
	}
	if c.ClockSource != Self && c.ClockSource != External {
		fix("capture.clock_source", int(c.ClockSource), Self)
		c.ClockSource = Self
	}
	if c.ExtClockDivider < ExtClockDividerMin || c.ExtClockDivider > ExtClockDividerMax {
		fix("capture.ext_clock_divider", c.ExtClockDivider, ExtClockDividerDef)
		c.ExtClockDivider = ExtClockDividerDef
	}
	if c.Delay < DelayMin || c.Delay > DelayMax {
		fix("capture.delay", c.Delay, DelayDef)
		c.Delay = DelayDef
	}
	if c.ShiftX < ShiftMin || c.ShiftX > ShiftMax {
		fix("capture.shift_x", c.ShiftX, ShiftXDef)
		c.ShiftX = ShiftXDef
	}
	if c.ShiftY < ShiftMin || c.ShiftY > ShiftMax {
		fix("capture.shift_y", c.ShiftY, ShiftYDef)
		c.ShiftY = ShiftYDef
	}
	if c.InversionMask&^InversionMaskBits != 0 {
		fix("capture.inversion_mask", c.InversionMask, InversionMaskDef)
		c.InversionMask = InversionMaskDef
	}

	o := &s.Output
	if o.Standard != VGA && o.Standard != DVI {
		fix("output.standard", int(o.Standard), VGA)
		o.Standard = VGA
	}
	if o.Mode < 0 || o.Mode >= len(video.Modes) || (o.Standard == DVI && o.Mode > DVIModeMax) {
		fix("output.mode", o.Mode, video.Mode640x480)
		o.Mode = video.Mode640x480
	}
	if o.ScanlineStyle != Thin && o.ScanlineStyle != Thick {
		fix("output.scanline_style", int(o.ScanlineStyle), Thin)
		o.ScanlineStyle = Thin
	}

	return fixed
}

// VideoMode returns the timing mode the output is configured for.
func (s *Settings) VideoMode() video.Mode {
	m, err := video.Lookup(s.Output.Mode)
	if err != nil {
		return video.Modes[video.Mode640x480]
	}
	return m
}
