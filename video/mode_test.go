package video_test

import (
	"testing"

	"rgbiscaler/video"
)

func TestModeTotals(t *testing.T) {
	for _, m := range video.Modes {
		if h := m.HVisible + m.HFrontPorch + m.HSyncPulse + m.HBackPorch; h != m.WholeLine {
			t.Errorf("%s: horizontal counts sum to %d, whole line is %d", m, h, m.WholeLine)
		}
		if v := m.VVisible + m.VFrontPorch + m.VSyncPulse + m.VBackPorch; v != m.WholeFrame {
			t.Errorf("%s: vertical counts sum to %d, whole frame is %d", m, v, m.WholeFrame)
		}
		if m.Div < 2 || m.Div > 4 {
			t.Errorf("%s: unsupported div %d", m, m.Div)
		}
	}
}

func TestModeIDsMatchIndex(t *testing.T) {
	for i, m := range video.Modes {
		if m.ID != i {
			t.Errorf("mode %s has ID %d at index %d", m, m.ID, i)
		}
		got, err := video.Lookup(i)
		if err != nil || got.Name != m.Name {
			t.Errorf("Lookup(%d) = %v, %v", i, got, err)
		}
	}
	if _, err := video.Lookup(len(video.Modes)); err == nil {
		t.Errorf("Lookup past the table unexpectedly succeeded")
	}
}

// TestClassify640x480 walks the 640x480 frame: 480 visible lines, 10 lines of
// front porch, 2 of sync and 33 of back porch.
func TestClassify640x480(t *testing.T) {
	m := video.Modes[video.Mode640x480]

	for y := 0; y < 480; y++ {
		if p := m.Classify(y); p != video.Active {
			t.Fatalf("y=%d classified as %v, want active", y, p)
		}
	}
	for y := 480; y < 490; y++ {
		if p := m.Classify(y); p != video.FrontPorch {
			t.Fatalf("y=%d classified as %v, want front porch", y, p)
		}
	}
	if p := m.Classify(485); p != video.FrontPorch {
		t.Errorf("y=485 is inside the 10 line front porch, got %v", p)
	}
	for y := 490; y < 492; y++ {
		if p := m.Classify(y); p != video.SyncPulse {
			t.Fatalf("y=%d classified as %v, want sync pulse", y, p)
		}
	}
	for y := 492; y < 525; y++ {
		if p := m.Classify(y); p != video.BackPorch {
			t.Fatalf("y=%d classified as %v, want back porch", y, p)
		}
	}
	if p := m.Classify(525); p != video.Active {
		t.Errorf("y=525 should wrap to the first active line, got %v", p)
	}
}

func TestSyncLevels(t *testing.T) {
	neg := video.Modes[video.Mode640x480]
	if h, v := neg.SyncLevels(false, false); !h || !v {
		t.Errorf("negative polarity should idle high, got h=%v v=%v", h, v)
	}
	if h, v := neg.SyncLevels(true, false); h || !v {
		t.Errorf("negative polarity hsync should pull low, got h=%v v=%v", h, v)
	}

	pos := video.Modes[video.Mode800x600]
	if h, v := pos.SyncLevels(false, true); h || !v {
		t.Errorf("positive polarity vsync should drive high, got h=%v v=%v", h, v)
	}
}
