package main

import (
	"context"
	"log/slog"
	"time"
)

// signalWatch polls the capture frame counter. When an input that has been
// producing frames stops, lost is called once; it is armed again when frames
// come back.
type signalWatch struct {
	frames func() uint32
	lost   func()

	active bool
	last   uint32
}

func (w *signalWatch) check() {
	n := w.frames()
	// counting has to start before a stall means anything
	if n > 1 {
		switch {
		case n == w.last && w.active:
			w.active = false
			slog.Warn("main: input signal lost", "frames", n)
			w.lost()
		case n != w.last && !w.active:
			w.active = true
			slog.Info("main: input signal detected", "frames", n)
		}
	}
	w.last = n
}

func (w *signalWatch) run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	w.last = w.frames()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.check()
		}
	}
}
