package preview

import (
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Frames is a source of assembled pictures.
type Frames interface {
	Size() (w, h int)
	DisplaySize() (w, h int)
	Latest(dst []byte) uint64
}

// Window shows the output in a desktop window.
type Window struct {
	frames Frames
	title  string

	img   *ebiten.Image
	pix   []byte
	shown uint64

	w, h         int
	dispW, dispH int

	closing atomic.Bool
	done    chan struct{}
}

func NewWindow(title string, f Frames) *Window {
	w, h := f.Size()
	dw, dh := f.DisplaySize()
	return &Window{
		frames: f,
		title:  title,
		pix:    make([]byte, w*h*4),
		w:      w,
		h:      h,
		dispW:  dw,
		dispH:  dh,
		done:   make(chan struct{}),
	}
}

// Run opens the window and blocks until it is closed by the user or by
// Close. It must be called from the main goroutine.
func (w *Window) Run() error {
	defer close(w.done)
	ebiten.SetWindowSize(w.dispW, w.dispH)
	ebiten.SetWindowTitle(w.title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetWindowClosingHandled(true)
	return ebiten.RunGame(w)
}

// Close makes Run return after the next update.
func (w *Window) Close() {
	w.closing.Store(true)
}

// Done is closed when Run has returned.
func (w *Window) Done() <-chan struct{} {
	return w.done
}

func (w *Window) Update() error {
	if ebiten.IsWindowBeingClosed() || w.closing.Load() {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	if w.img == nil {
		w.img = ebiten.NewImage(w.w, w.h)
	}
	if n := w.frames.Latest(w.pix); n != w.shown {
		w.img.WritePixels(w.pix)
		w.shown = n
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(w.dispW)/float64(w.w), float64(w.dispH)/float64(w.h))
	screen.DrawImage(w.img, op)
}

func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return w.dispW, w.dispH
}
