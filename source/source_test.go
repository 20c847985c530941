package source_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"rgbiscaler/config"
	"rgbiscaler/decoder"
	"rgbiscaler/source"
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

// decodeSynth runs a decoder over enough synthetic frames to settle and
// capture at least one whole frame.
func decodeSynth(t *testing.T, p config.CaptureParameters, img *vbuf.Frame) *vbuf.Frame {
	t.Helper()
	s := source.NewSynth(p, false)
	s.SetFrame(img)

	pool := vbuf.New(false)
	d := decoder.New(pool, p)
	buf := make([]byte, 8192)
	total := s.FrameSamples() * (decoder.SettleFrames + 6)
	for n := 0; n < total; n += len(buf) {
		if err := s.ReadBatch(context.Background(), buf); err != nil {
			t.Fatal(err)
		}
		d.Process(buf)
	}
	if !pool.Display().Valid() {
		t.Fatalf("nothing captured after %d frames", d.FrameCounter())
	}
	return pool.Display()
}

func TestSynthRoundTrip(t *testing.T) {
	var img vbuf.Frame
	video.FillColorBars(&img)

	for _, separate := range []bool{false, true} {
		p := config.Default().Capture
		p.SeparateSync = separate
		got := decodeSynth(t, p, &img)

		// 52us at 7MHz
		w := 364
		for y := 0; y < vbuf.Height; y++ {
			for x := 0; x < w; x++ {
				if got.Pixel(x, y) != img.Pixel(x, y) {
					t.Fatalf("separate=%v: pixel %d,%d = %#x, want %#x", separate, x, y, got.Pixel(x, y), img.Pixel(x, y))
				}
			}
			if got.Pixel(w, y) != video.Black {
				t.Fatalf("separate=%v: pixel past the active line captured on line %d", separate, y)
			}
		}
	}
}

func TestSynthDelay(t *testing.T) {
	p := config.Default().Capture
	a := source.NewSynth(p, false)
	b := source.NewSynth(p, false)
	b.SetDelay(24)

	want := make([]byte, 1002)
	got := make([]byte, 1000)
	if err := a.ReadBatch(context.Background(), want); err != nil {
		t.Fatal(err)
	}
	if err := b.ReadBatch(context.Background(), got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want[2:]) {
		t.Errorf("24 cycle delay is not a two sample shift")
	}
}

func TestSynthWraps(t *testing.T) {
	s := source.NewSynth(config.Default().Capture, false)
	n := s.FrameSamples()

	first := make([]byte, n)
	second := make([]byte, n)
	if err := s.ReadBatch(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	if err := s.ReadBatch(context.Background(), second); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("consecutive frames differ")
	}
}

type counter struct{ n byte }

func (c *counter) ReadBatch(ctx context.Context, buf []byte) error {
	for i := range buf {
		buf[i] = c.n
		c.n++
	}
	return nil
}

func TestDecimator(t *testing.T) {
	d := source.NewDecimator(&counter{}, 3)
	buf := make([]byte, 4)
	if err := d.ReadBatch(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	if want := []byte{0, 3, 6, 9}; !bytes.Equal(buf, want) {
		t.Errorf("got %v, want %v", buf, want)
	}

	d.SetExternalDivider(0)
	if err := d.ReadBatch(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	if want := []byte{12, 13, 14, 15}; !bytes.Equal(buf, want) {
		t.Errorf("divider 0 not clamped to 1: %v", buf)
	}
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samples.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileLoop(t *testing.T) {
	f, err := source.OpenFile(writeTemp(t, []byte{1, 2, 3, 4}), true)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf := make([]byte, 10)
	if err := f.ReadBatch(context.Background(), buf); err != nil {
		t.Fatal(err)
	}
	if want := []byte{1, 2, 3, 4, 1, 2, 3, 4, 1, 2}; !bytes.Equal(buf, want) {
		t.Errorf("got %v, want %v", buf, want)
	}
}

func TestFileEOF(t *testing.T) {
	f, err := source.OpenFile(writeTemp(t, []byte{1, 2, 3}), false)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := f.ReadBatch(context.Background(), make([]byte, 8)); !errors.Is(err, io.EOF) {
		t.Errorf("short file: %v, want EOF", err)
	}

	empty, err := source.OpenFile(writeTemp(t, nil), true)
	if err != nil {
		t.Fatal(err)
	}
	defer empty.Close()
	if err := empty.ReadBatch(context.Background(), make([]byte, 8)); !errors.Is(err, io.EOF) {
		t.Errorf("empty looping file: %v, want EOF", err)
	}

	if _, err := source.OpenFile(filepath.Join(t.TempDir(), "missing"), false); err == nil {
		t.Errorf("missing file opened")
	}
}

func TestQuantizeRGB(t *testing.T) {
	rgb := []byte{
		255, 0, 0,
		170, 170, 0,
		0, 0, 0,
	}
	var f vbuf.Frame
	source.QuantizeRGB(&f, rgb, 3, 1)

	want := []byte{video.Red | video.Bright, video.Yellow, video.Black}
	for x, c := range want {
		if got := f.Pixel(x, 0); got != c {
			t.Errorf("pixel %d = %#x, want %#x", x, got, c)
		}
	}
}
