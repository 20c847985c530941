package sdr

import (
	"bytes"
	"context"
	"testing"

	"rgbiscaler/video"
)

func newTestTransmitter() *Transmitter {
	m := video.Modes[video.Mode640x480]
	return NewTransmitter(nil, m, TxConfig{SampleRate: m.PixelFreq / float64(m.Div)})
}

func TestFillPadsWithBlack(t *testing.T) {
	tx := newTestTransmitter()
	if err := tx.WriteLine(context.Background(), []byte{0xff, 0xff, 0x80, 0x80}); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 12)
	tx.fill(buf)
	want := []byte{15, 0, 15, 0, 127, 0, 127, 0, 95, 0, 95, 0}
	if !bytes.Equal(buf, want) {
		t.Errorf("got %v, want %v", buf, want)
	}
	if got := tx.Underruns(); got != 1 {
		t.Errorf("%d underruns, want 1", got)
	}
}

func TestFillSpansBuffers(t *testing.T) {
	tx := newTestTransmitter()
	if err := tx.WriteLine(context.Background(), []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatal(err)
	}

	a, b := make([]byte, 4), make([]byte, 4)
	tx.fill(a)
	tx.fill(b)
	want := []byte{15, 0, 15, 0}
	if !bytes.Equal(a, want) || !bytes.Equal(b, want) {
		t.Errorf("got %v %v", a, b)
	}
	if got := tx.Underruns(); got != 0 {
		t.Errorf("%d underruns, want 0", got)
	}
}

func TestWriteLineHonoursContext(t *testing.T) {
	tx := newTestTransmitter()
	ctx, cancel := context.WithCancel(context.Background())
	for range txQueueLines {
		if err := tx.WriteLine(ctx, []byte{0xc0}); err != nil {
			t.Fatal(err)
		}
	}
	cancel()
	if err := tx.WriteLine(ctx, []byte{0xc0}); err != context.Canceled {
		t.Errorf("WriteLine on a full queue = %v, want context.Canceled", err)
	}
}
