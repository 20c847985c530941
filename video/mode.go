package video

import "fmt"

// Analog output word sync bits. A mode's SyncPolarity is XORed over them so
// that negative-going syncs idle high.
const (
	NoSync  byte = 0b00000000
	VSync   byte = 0b10000000
	HSync   byte = 0b01000000
	VHSync  byte = 0b11000000
	SyncPos byte = 0b00000000
	SyncNeg byte = 0b11000000
)

// Mode describes one output timing. Horizontal counts are in output pixels,
// vertical counts in scanlines.
type Mode struct {
	ID   int
	Name string

	// system clock the output sequencer derives its timing from
	SysFreqKHz uint32
	PixelFreq  float64

	HVisible   int
	VVisible   int
	WholeLine  int
	WholeFrame int

	HFrontPorch int
	HSyncPulse  int
	HBackPorch  int

	VFrontPorch int
	VSyncPulse  int
	VBackPorch  int

	SyncPolarity byte

	// Div is the number of output scanlines drawn for every captured line.
	Div int

	// the digital output can only be clocked for the lower resolutions
	Digital bool
}

// Mode IDs, in settings order.
const (
	Mode640x480 = iota
	Mode720x576
	Mode800x600
	Mode1024x768
	Mode1280x1024Div3
	Mode1280x1024Div4
)

// Modes is the table of supported output timings indexed by mode ID.
var Modes = []Mode{
	{
		ID: Mode640x480, Name: "640x480@60Hz",
		SysFreqKHz: 252000, PixelFreq: 25_175_000,
		HVisible: 640, VVisible: 480, WholeLine: 800, WholeFrame: 525,
		HFrontPorch: 16, HSyncPulse: 96, HBackPorch: 48,
		VFrontPorch: 10, VSyncPulse: 2, VBackPorch: 33,
		SyncPolarity: SyncNeg, Div: 2, Digital: true,
	},
	{
		ID: Mode720x576, Name: "720x576@50Hz",
		SysFreqKHz: 270000, PixelFreq: 27_000_000,
		HVisible: 720, VVisible: 576, WholeLine: 864, WholeFrame: 625,
		HFrontPorch: 12, HSyncPulse: 64, HBackPorch: 68,
		VFrontPorch: 5, VSyncPulse: 5, VBackPorch: 39,
		SyncPolarity: SyncNeg, Div: 2, Digital: true,
	},
	{
		ID: Mode800x600, Name: "800x600@60Hz",
		SysFreqKHz: 240000, PixelFreq: 40_000_000,
		HVisible: 800, VVisible: 600, WholeLine: 1056, WholeFrame: 628,
		HFrontPorch: 40, HSyncPulse: 128, HBackPorch: 88,
		VFrontPorch: 1, VSyncPulse: 4, VBackPorch: 23,
		SyncPolarity: SyncPos, Div: 2,
	},
	{
		ID: Mode1024x768, Name: "1024x768@60Hz",
		SysFreqKHz: 260000, PixelFreq: 65_000_000,
		HVisible: 1024, VVisible: 768, WholeLine: 1344, WholeFrame: 806,
		HFrontPorch: 24, HSyncPulse: 136, HBackPorch: 160,
		VFrontPorch: 3, VSyncPulse: 6, VBackPorch: 29,
		SyncPolarity: SyncNeg, Div: 2,
	},
	{
		ID: Mode1280x1024Div3, Name: "1280x1024@60Hz (div 3)",
		SysFreqKHz: 324000, PixelFreq: 108_000_000,
		HVisible: 1280, VVisible: 1024, WholeLine: 1688, WholeFrame: 1066,
		HFrontPorch: 48, HSyncPulse: 112, HBackPorch: 248,
		VFrontPorch: 1, VSyncPulse: 3, VBackPorch: 38,
		SyncPolarity: SyncPos, Div: 3,
	},
	{
		ID: Mode1280x1024Div4, Name: "1280x1024@60Hz (div 4)",
		SysFreqKHz: 324000, PixelFreq: 108_000_000,
		HVisible: 1280, VVisible: 1024, WholeLine: 1688, WholeFrame: 1066,
		HFrontPorch: 48, HSyncPulse: 112, HBackPorch: 248,
		VFrontPorch: 1, VSyncPulse: 3, VBackPorch: 38,
		SyncPolarity: SyncPos, Div: 4,
	},
}

// Lookup returns the mode with the given ID.
func Lookup(id int) (Mode, error) {
	if id < 0 || id >= len(Modes) {
		return Mode{}, fmt.Errorf("video: unknown mode %d", id)
	}
	return Modes[id], nil
}

// SysFreq returns the system clock in Hz.
func (m Mode) SysFreq() float64 {
	return float64(m.SysFreqKHz) * 1000
}

// Phase is the vertical position of a scanline within the frame.
type Phase int

const (
	Active Phase = iota
	FrontPorch
	SyncPulse
	BackPorch
)

func (p Phase) String() string {
	switch p {
	case Active:
		return "active"
	case FrontPorch:
		return "front porch"
	case SyncPulse:
		return "sync pulse"
	case BackPorch:
		return "back porch"
	}
	return "unknown"
}

// Classify returns the vertical phase of scanline y. Values outside the frame
// wrap.
func (m Mode) Classify(y int) Phase {
	y %= m.WholeFrame
	if y < 0 {
		y += m.WholeFrame
	}

	switch {
	case y < m.VVisible:
		return Active
	case y < m.VVisible+m.VFrontPorch:
		return FrontPorch
	case y < m.VVisible+m.VFrontPorch+m.VSyncPulse:
		return SyncPulse
	}
	return BackPorch
}

// SyncLevels returns the polarity adjusted levels of the horizontal and
// vertical sync lines.
func (m Mode) SyncLevels(hActive, vActive bool) (h, v bool) {
	bits := NoSync
	if hActive {
		bits |= HSync
	}
	if vActive {
		bits |= VSync
	}
	bits ^= m.SyncPolarity
	return bits&HSync != 0, bits&VSync != 0
}

func (m Mode) String() string {
	return m.Name
}
