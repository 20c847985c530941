package ui_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rgbiscaler/decoder"
	"rgbiscaler/scaler"
	"rgbiscaler/ui"
)

type feed struct{ frames uint32 }

func (f *feed) status() ui.Status {
	return ui.Status{
		Mode:     "640x480@60Hz",
		Standard: "vga",
		Source:   "test",
		Sink:     "window",
		Stats: scaler.Stats{
			Decoder:      decoder.Stats{Frames: f.frames},
			DecoderState: decoder.InActiveLine,
		},
	}
}

func tick(t *testing.T, m tea.Model, f func() tea.Msg) tea.Model {
	t.Helper()
	m, cmd := m.Update(f())
	if cmd == nil {
		t.Fatal("tick did not schedule the next one")
	}
	return m
}

// The input LED follows the frame counter between two polls.
func TestSignalLED(t *testing.T) {
	f := &feed{}
	var m tea.Model = ui.New(f.status, 100*time.Millisecond)
	if m.(ui.Model).Init() == nil {
		t.Fatal("Init does not start polling")
	}

	// the tick message type is internal; drive it through the scheduled command
	next := func() tea.Msg { return ui.TickForTest(time.Now()) }

	f.frames = 5
	m = tick(t, m, next)
	if !m.(ui.Model).Signal() {
		t.Errorf("no signal after the counter moved")
	}
	view := m.View()
	for _, want := range []string{"50.0 fps", "640x480@60Hz", "test -> window", "line"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}

	m = tick(t, m, next)
	if m.(ui.Model).Signal() {
		t.Errorf("signal while the counter stalled")
	}
	if !strings.Contains(m.View(), "NO SIGNAL") {
		t.Errorf("view does not show signal loss:\n%s", m.View())
	}
}

func TestQuitKeys(t *testing.T) {
	m := ui.New((&feed{}).status, time.Second)
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		_, cmd := m.Update(key)
		if cmd == nil {
			t.Fatalf("%s: no command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s does not quit", key)
		}
	}
}

func TestErrorsShown(t *testing.T) {
	poll := func() ui.Status {
		return ui.Status{Stats: scaler.Stats{CaptureErr: errors.New("device gone")}}
	}
	var m tea.Model = ui.New(poll, time.Second)
	m, _ = m.Update(ui.TickForTest(time.Now()))
	if !strings.Contains(m.View(), "device gone") {
		t.Errorf("capture error not shown:\n%s", m.View())
	}
}
