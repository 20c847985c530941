package preview_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"rgbiscaler/config"
	"rgbiscaler/preview"
	"rgbiscaler/raster"
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

func colourBarsPool() *vbuf.Pool {
	pool := vbuf.New(false)
	video.FillColorBars(pool.Display())
	return pool
}

func feed[W raster.Word](t *testing.T, g raster.Generator[W], a *preview.Assembler[W], frames int) {
	t.Helper()
	for range frames * g.Mode().WholeFrame {
		if err := a.WriteLine(context.Background(), g.Next()); err != nil {
			t.Fatal(err)
		}
	}
}

func pixel(pix []byte, w, x, y int) color.RGBA {
	i := (y*w + x) * 4
	return color.RGBA{pix[i], pix[i+1], pix[i+2], pix[i+3]}
}

var (
	brightWhite = color.RGBA{255, 255, 255, 255}
	yellow      = color.RGBA{170, 170, 0, 255}
)

func TestAnalogAssembler(t *testing.T) {
	m := video.Modes[video.Mode640x480]
	g := raster.NewVGA(m, colourBarsPool(), raster.Options{CaptureFreq: config.FrequencyDef})
	a := preview.NewAnalog(m, false)

	w, h := a.Size()
	if w != 320 || h != 480 {
		t.Fatalf("size %dx%d", w, h)
	}
	pix := make([]byte, w*h*4)
	if n := a.Latest(pix); n != 0 {
		t.Fatalf("picture %d before any line", n)
	}

	feed(t, raster.Generator[byte](g), a, 1)
	if n := a.Latest(pix); n != 1 {
		t.Fatalf("picture %d after one frame", n)
	}

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{0, 0, brightWhite},
		{60, 0, yellow},
		{0, 479, brightWhite},
		{60, 479, yellow},
	}
	for _, tt := range tests {
		if got := pixel(pix, w, tt.x, tt.y); got != tt.want {
			t.Errorf("pixel %d,%d = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDigitalAssembler(t *testing.T) {
	wiring := raster.Wiring{RGB: true, InvertPairs: true}
	m := video.Modes[video.Mode640x480]
	g := raster.NewDVI(m, colourBarsPool(), raster.Options{Wiring: wiring})
	a := preview.NewDigital(m, wiring, false)

	w, h := a.Size()
	feed(t, raster.Generator[uint64](g), a, 1)
	pix := make([]byte, w*h*4)
	a.Latest(pix)

	// two words per source pixel
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{0, 0, brightWhite},
		{1, 0, brightWhite},
		{120, 10, yellow},
		{121, 10, yellow},
	}
	for _, tt := range tests {
		if got := pixel(pix, w, tt.x, tt.y); got != tt.want {
			t.Errorf("pixel %d,%d = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestHandlersSeeEveryFrame(t *testing.T) {
	m := video.Modes[video.Mode640x480]
	g := raster.NewVGA(m, colourBarsPool(), raster.Options{})
	a := preview.NewAnalog(m, false)

	var seen []uint64
	a.Handle(func(img *image.RGBA, frame uint64) error {
		seen = append(seen, frame)
		return nil
	})
	feed(t, raster.Generator[byte](g), a, 3)

	if want := []uint64{1, 2, 3}; len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("handler saw %v, want %v", seen, want)
	}
}

func TestSnapshotAt(t *testing.T) {
	m := video.Modes[video.Mode640x480]
	g := raster.NewVGA(m, colourBarsPool(), raster.Options{CaptureFreq: config.FrequencyDef})
	a := preview.NewAnalog(m, false)

	path := filepath.Join(t.TempDir(), "shot.png")
	fn, done := preview.SnapshotAt(path, 2, m.HVisible, m.VVisible)
	a.Handle(fn)

	feed(t, raster.Generator[byte](g), a, 1)
	select {
	case <-done:
		t.Fatal("snapshot taken on the first picture")
	default:
	}
	feed(t, raster.Generator[byte](g), a, 2)
	<-done

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("snapshot is %v", b)
	}
	// 60 source pixels are 120 pixels wide after scaling
	if got := color.RGBAModel.Convert(img.At(121, 5)); got != yellow {
		t.Errorf("pixel 121,5 = %v, want yellow", got)
	}
}

func TestRGB24(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	img.SetRGBA(1, 0, color.RGBA{4, 5, 6, 255})

	dst := make([]byte, 6)
	preview.RGB24(dst, img)
	if want := []byte{1, 2, 3, 4, 5, 6}; !bytes.Equal(dst, want) {
		t.Errorf("got %v, want %v", dst, want)
	}
}

func TestRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	r, err := preview.CreateRaw[uint64](path)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.WriteLine(context.Background(), []uint64{1, 0x0203}); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 0, 0, 0, 0, 0, 0, 0, 3, 2, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
