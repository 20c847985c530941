package config_test

import (
	"flag"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"rgbiscaler/config"
	"rgbiscaler/video"
)

func TestDefaultsAreValid(t *testing.T) {
	s := config.Default()
	if fixed := s.Validate(); len(fixed) != 0 {
		t.Errorf("defaults corrected: %v", fixed)
	}
	if s.Capture.Frequency != 7_000_000 || s.Capture.ShiftX != 68 || s.Capture.ShiftY != 34 ||
		s.Capture.Delay != 15 || s.Capture.ExtClockDivider != 2 {
		t.Errorf("unexpected capture defaults: %+v", s.Capture)
	}
}

// TestValidateFieldsIndependently sets every capture field out of range except
// one and checks only the broken fields are reset.
func TestValidateFieldsIndependently(t *testing.T) {
	s := config.Default()
	s.Capture.Frequency = 9_000_000
	s.Capture.ShiftX = 201
	s.Capture.ShiftY = 12
	s.Capture.Delay = -1
	s.Capture.ExtClockDivider = 6
	s.Capture.InversionMask = 0x80
	s.Capture.SeparateSync = true
	s.Output.Scanlines = true

	fixed := s.Validate()

	want := []string{
		"capture.frequency",
		"capture.ext_clock_divider",
		"capture.delay",
		"capture.shift_x",
		"capture.inversion_mask",
	}
	if !slices.Equal(fixed, want) {
		t.Errorf("corrected %v, want %v", fixed, want)
	}
	if s.Capture.Frequency != config.FrequencyDef || s.Capture.ShiftX != config.ShiftXDef {
		t.Errorf("fields not reset: %+v", s.Capture)
	}
	if s.Capture.ShiftY != 12 {
		t.Errorf("valid ShiftY changed to %d", s.Capture.ShiftY)
	}
	if !s.Capture.SeparateSync || !s.Output.Scanlines {
		t.Errorf("unrelated flags were reset")
	}
}

func TestValidateDVIModes(t *testing.T) {
	cases := []struct {
		mode int
		want int
	}{
		{video.Mode640x480, video.Mode640x480},
		{video.Mode720x576, video.Mode720x576},
		{video.Mode800x600, video.Mode640x480},
		{video.Mode1280x1024Div4, video.Mode640x480},
	}
	for _, c := range cases {
		s := config.Default()
		s.Output.Standard = config.DVI
		s.Output.Mode = c.mode
		s.Validate()
		if s.Output.Mode != c.want {
			t.Errorf("DVI mode %d validated to %d, want %d", c.mode, s.Output.Mode, c.want)
		}
	}

	s := config.Default()
	s.Output.Mode = video.Mode1280x1024Div4
	if s.Validate(); s.Output.Mode != video.Mode1280x1024Div4 {
		t.Errorf("VGA mode 5 rejected")
	}
	if s.VideoMode().Div != 4 {
		t.Errorf("VideoMode() = %v", s.VideoMode())
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s := config.Default()
	s.Capture.ClockSource = config.External
	s.Capture.ExtClockDivider = 3
	s.Capture.ShiftX = 100
	s.Output.Standard = config.DVI
	s.Output.Mode = video.Mode720x576
	s.Output.ScanlineStyle = config.Thick
	s.Output.TripleBuffering = true

	if err := config.Save(path, s); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got != s {
		t.Errorf("round trip changed settings:\n got %+v\nwant %+v", got, s)
	}
}

// TestLoadInvalidFile checks that unknown enum names and out of range numbers
// in a hand edited file fall back to defaults while the rest is kept.
func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	data := `capture:
  frequency: 12000000
  clock_source: crystal
  shift_y: 50
output:
  standard: hdmi
  mode: 3
  scanlines: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if s.Capture.Frequency != config.FrequencyDef || s.Capture.ClockSource != config.Self {
		t.Errorf("invalid capture values kept: %+v", s.Capture)
	}
	if s.Capture.ShiftY != 50 || s.Capture.ShiftX != config.ShiftXDef {
		t.Errorf("shift = %d,%d", s.Capture.ShiftX, s.Capture.ShiftY)
	}
	if s.Output.Standard != config.VGA || s.Output.Mode != 3 || !s.Output.Scanlines {
		t.Errorf("output = %+v", s.Output)
	}
}

// TestLoadValuesOutsideFieldTypes checks that numbers the settings fields
// cannot hold are replaced like any other invalid value, without losing the
// valid fields around them.
func TestLoadValuesOutsideFieldTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	data := `capture:
  frequency: -1
  shift_y: 50
  inversion_mask: 512
  delay: 99999999999
output:
  mode: 3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if s.Capture.Frequency != config.FrequencyDef {
		t.Errorf("frequency = %d, want default", s.Capture.Frequency)
	}
	if s.Capture.InversionMask != config.InversionMaskDef {
		t.Errorf("inversion mask = %#x, want default", s.Capture.InversionMask)
	}
	if s.Capture.Delay != config.DelayDef {
		t.Errorf("delay = %d, want default", s.Capture.Delay)
	}
	if s.Capture.ShiftY != 50 || s.Output.Mode != 3 {
		t.Errorf("valid fields lost: shift_y=%d mode=%d", s.Capture.ShiftY, s.Output.Mode)
	}
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := config.Default()
	s.Capture.ShiftX = 90
	s.Capture.ShiftY = 40
	if err := config.Save(path, s); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := config.Parse(fs, []string{"-config", path, "-shifty", "20", "-dvi", "-mode", "1", "-test", "-sink", "none"})
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	got := cfg.Settings
	if got.Capture.ShiftX != 90 {
		t.Errorf("file value lost: ShiftX = %d", got.Capture.ShiftX)
	}
	if got.Capture.ShiftY != 20 {
		t.Errorf("flag did not override: ShiftY = %d", got.Capture.ShiftY)
	}
	if got.Output.Standard != config.DVI || got.Output.Mode != 1 {
		t.Errorf("output = %+v", got.Output)
	}
	if cfg.Source != config.SourceTest || cfg.Sink != config.SinkNone {
		t.Errorf("source %q sink %q", cfg.Source, cfg.Sink)
	}
}

func TestParseRejects(t *testing.T) {
	cases := [][]string{
		{"-source", "camera"},
		{"-sink", "printer"},
		{"-source", "file"},
		{"-sink", "raw"},
		{"-pattern", "checkerboard"},
		{"-config", filepath.Join(t.TempDir(), "missing.yaml")},
	}
	for _, args := range cases {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		if _, err := config.Parse(fs, args); err == nil {
			t.Errorf("Parse(%v) unexpectedly succeeded", args)
		}
	}
}
