package preview

import (
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/image/draw"
)

// Snapshot writes img to path as a PNG scaled to w x h.
func Snapshot(path string, img image.Image, w, h int) error {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preview: snapshot: %w", err)
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return fmt.Errorf("preview: snapshot: %w", err)
	}
	return f.Close()
}

// SnapshotAt returns a FrameFunc that saves picture number n to path, scaled
// to w x h. Failures are logged and do not stop the output. done is closed
// once the attempt was made.
func SnapshotAt(path string, n uint64, w, h int) (fn FrameFunc, done <-chan struct{}) {
	ch := make(chan struct{})
	var taken atomic.Bool
	fn = func(img *image.RGBA, frame uint64) error {
		if frame < n || !taken.CompareAndSwap(false, true) {
			return nil
		}
		defer close(ch)
		if err := Snapshot(path, img, w, h); err != nil {
			slog.Warn("preview: snapshot failed", "path", path, "err", err)
			return nil
		}
		slog.Info("preview: snapshot written", "path", path, "frame", frame)
		return nil
	}
	return fn, ch
}
