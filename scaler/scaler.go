// Package scaler ties the capture path and the output path together.
//
// The capture path reads sample batches from a Sequencer through a transfer
// chain and feeds them to the sync decoder, which writes frames into the
// pool. The output path reads frames from the pool through a raster
// generator and writes lines to a Sink through a second chain. The two paths
// only share the pool, the overlay pointer and the frame counter.
package scaler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"rgbiscaler/clock"
	"rgbiscaler/config"
	"rgbiscaler/decoder"
	"rgbiscaler/dma"
	"rgbiscaler/raster"
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

const (
	// CaptureBatch is the number of samples per capture transfer.
	CaptureBatch = 8192
	// CaptureCycles is the number of sequencer cycles per sample.
	CaptureCycles = 12
	// DVICycles is the number of sequencer cycles per output pixel on the
	// digital output, one per TMDS bit.
	DVICycles = 10
)

var (
	ErrRunning        = errors.New("scaler: path is running")
	ErrNotConfigured  = errors.New("scaler: output not configured")
	ErrSinkType       = errors.New("scaler: sink does not match the output standard")
	ErrDVIMode        = errors.New("scaler: mode not available on the digital output")
	ErrQuiesceTimeout = errors.New("scaler: capture did not go idle")
)

// Sequencer is a source of capture samples. ReadBatch fills buf completely
// or returns an error.
type Sequencer interface {
	ReadBatch(ctx context.Context, buf []byte) error
}

// Clocked is implemented by sequencers and sinks that run from a divided
// system clock.
type Clocked interface {
	SetClockDivider(d clock.Divider)
}

// Delayed is implemented by sequencers with an adjustable sampling delay.
type Delayed interface {
	SetDelay(cycles int)
}

// ExternallyClocked is implemented by sequencers that can sample on an
// external pixel clock, taking one sample every n clock edges.
type ExternallyClocked interface {
	SetExternalDivider(n int)
}

// Sink receives output lines. VGA outputs use Sink[byte], DVI outputs
// Sink[uint64].
type Sink[W raster.Word] interface {
	WriteLine(ctx context.Context, line []W) error
}

// OutputOptions are the output settings besides mode and standard.
type OutputOptions struct {
	Scanlines bool
	Style     config.ScanlineStyle
	Wiring    raster.Wiring
}

// OutputOptionsFrom extracts output options from settings.
func OutputOptionsFrom(s config.Settings) OutputOptions {
	o := raster.OptionsFrom(s)
	return OutputOptions{Scanlines: o.Scanlines, Style: o.Style, Wiring: o.Wiring}
}

type Options struct {
	// Pool is used when set; otherwise New allocates one.
	Pool            *vbuf.Pool
	TripleBuffering bool
}

// Stats is a snapshot of both paths.
type Stats struct {
	Decoder        decoder.Stats
	DecoderState   decoder.State
	Pool           vbuf.Stats
	CaptureBatches uint64
	OutputLines    uint64
	CaptureErr     error
	OutputErr      error
}

// Scaler is the core facade. Its methods are safe for concurrent use.
type Scaler struct {
	mu   sync.Mutex
	pool *vbuf.Pool

	capture  config.CaptureParameters
	dec      *decoder.Decoder
	capChain dma.Chain[byte]
	capBufs  [2][]byte
	seq      Sequencer

	mode     video.Mode
	standard config.Standard
	outOpts  OutputOptions
	vga      *raster.VGA
	dvi      *raster.DVI
	vgaChain dma.Chain[byte]
	dviChain dma.Chain[uint64]
	sink     any
	overlay  *raster.Overlay

	stopReq  atomic.Bool
	inactive atomic.Bool
}

// New creates a scaler with default capture parameters and no output.
func New(opts Options) *Scaler {
	pool := opts.Pool
	if pool == nil {
		pool = vbuf.New(opts.TripleBuffering)
	}
	s := &Scaler{
		pool:    pool,
		capture: config.Default().Capture,
		mode:    video.Modes[video.Mode640x480],
	}
	s.dec = decoder.New(pool, s.capture)
	for i := range s.capBufs {
		s.capBufs[i] = make([]byte, CaptureBatch)
	}
	s.capChain.Handler = s.captureHandler
	return s
}

// Pool returns the frame pool shared by both paths.
func (s *Scaler) Pool() *vbuf.Pool {
	return s.pool
}

// ConfigureCapture sets the capture parameters used by the next
// StartCapture.
func (s *Scaler) ConfigureCapture(p config.CaptureParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capChain.Running() {
		return ErrRunning
	}
	s.capture = p
	return nil
}

// StartCapture starts reading samples from seq. The sampling clock divider
// is derived from the system clock of the configured output mode.
func (s *Scaler) StartCapture(seq Sequencer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capChain.Running() {
		return ErrRunning
	}

	p := s.capture
	switch p.ClockSource {
	case config.External:
		if ec, ok := seq.(ExternallyClocked); ok {
			ec.SetExternalDivider(p.ExtClockDivider)
		}
	default:
		div, err := clock.Calc(float64(p.Frequency), s.mode.SysFreq(), CaptureCycles)
		if err != nil {
			return fmt.Errorf("scaler: capture clock: %w", err)
		}
		if c, ok := seq.(Clocked); ok {
			c.SetClockDivider(div)
		}
		slog.Debug("scaler: capture clock", "divider", div.String(), "hz", div.Hz(s.mode.SysFreq(), CaptureCycles))
	}
	if d, ok := seq.(Delayed); ok {
		d.SetDelay(p.Delay)
	}

	s.dec.Configure(p)
	s.stopReq.Store(false)
	s.inactive.Store(false)
	s.seq = seq
	s.capChain.Transfer = seq.ReadBatch
	if err := s.capChain.Start(s.capBufs[0], s.capBufs[1]); err != nil {
		return err
	}

	slog.Info("scaler: capture started",
		"frequency", p.Frequency,
		"clock_source", p.ClockSource.String(),
		"separate_sync", p.SeparateSync)
	return nil
}

// captureHandler decodes one completed batch. A pending quiesce request is
// acknowledged before the batch and held until Resume.
func (s *Scaler) captureHandler(buf []byte) []byte {
	if s.stopReq.Load() {
		s.inactive.Store(true)
		for s.stopReq.Load() {
			runtime.Gosched()
		}
		s.inactive.Store(false)
	}
	s.dec.Process(buf)
	return buf
}

// StopCapture stops the capture path after the batch in flight.
func (s *Scaler) StopCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCapture()
}

func (s *Scaler) stopCapture() {
	if !s.capChain.Running() {
		return
	}
	s.stopReq.Store(false)
	s.capChain.Stop()
	s.inactive.Store(false)
	slog.Info("scaler: capture stopped", "frames", s.dec.FrameCounter())
}

// ConfigureOutput builds the raster generator for the next StartOutput.
// Horizontal margins of the analog output depend on the capture frequency,
// so capture should be configured first.
func (s *Scaler) ConfigureOutput(m video.Mode, std config.Standard, opts OutputOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputRunning() {
		return ErrRunning
	}
	if std == config.DVI && m.ID > config.DVIModeMax {
		return fmt.Errorf("%w: %s", ErrDVIMode, m)
	}

	ro := raster.Options{
		CaptureFreq: s.capture.Frequency,
		Scanlines:   opts.Scanlines,
		Style:       opts.Style,
		Wiring:      opts.Wiring,
	}
	s.vga, s.dvi = nil, nil
	switch std {
	case config.DVI:
		s.dvi = raster.NewDVI(m, s.pool, ro)
		s.dvi.SetOverlay(s.overlay)
	default:
		s.vga = raster.NewVGA(m, s.pool, ro)
		s.vga.SetOverlay(s.overlay)
	}
	s.mode, s.standard, s.outOpts = m, std, opts
	return nil
}

// StartOutput starts emitting lines to sink, which must be a Sink[byte] for
// the analog output or a Sink[uint64] for the digital one.
func (s *Scaler) StartOutput(sink any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outputRunning() {
		return ErrRunning
	}

	var err error
	switch {
	case s.vga != nil:
		vs, ok := sink.(Sink[byte])
		if !ok {
			return fmt.Errorf("%w: %T on %s", ErrSinkType, sink, s.standard)
		}
		err = s.startVGA(vs)
	case s.dvi != nil:
		ds, ok := sink.(Sink[uint64])
		if !ok {
			return fmt.Errorf("%w: %T on %s", ErrSinkType, sink, s.standard)
		}
		err = s.startDVI(ds)
	default:
		return ErrNotConfigured
	}
	if err != nil {
		return err
	}

	s.sink = sink
	slog.Info("scaler: output started", "mode", s.mode.String(), "standard", s.standard.String())
	return nil
}

func (s *Scaler) startVGA(sink Sink[byte]) error {
	m := s.mode
	if err := s.clockSink(sink, m.PixelFreq/float64(m.Div), 1); err != nil {
		return err
	}
	g := s.vga
	g.Rearm()
	s.vgaChain.Transfer = sink.WriteLine
	s.vgaChain.Handler = func([]byte) []byte { return g.Next() }
	return s.vgaChain.Start(g.Next(), g.Next())
}

func (s *Scaler) startDVI(sink Sink[uint64]) error {
	if err := s.clockSink(sink, s.mode.PixelFreq, DVICycles); err != nil {
		return err
	}
	g := s.dvi
	g.Rearm()
	s.dviChain.Transfer = sink.WriteLine
	s.dviChain.Handler = func([]uint64) []uint64 { return g.Next() }
	return s.dviChain.Start(g.Next(), g.Next())
}

func (s *Scaler) clockSink(sink any, hz float64, cycles int) error {
	c, ok := sink.(Clocked)
	if !ok {
		return nil
	}
	div, err := clock.Calc(hz, s.mode.SysFreq(), cycles)
	if err != nil {
		return fmt.Errorf("scaler: output clock: %w", err)
	}
	c.SetClockDivider(div)
	return nil
}

// StopOutput stops the output path after the line in flight.
func (s *Scaler) StopOutput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopOutput()
}

func (s *Scaler) stopOutput() {
	if !s.outputRunning() {
		return
	}
	s.vgaChain.Stop()
	s.dviChain.Stop()
	slog.Info("scaler: output stopped", "lines", s.vgaChain.Completed()+s.dviChain.Completed())
}

func (s *Scaler) outputRunning() bool {
	return s.vgaChain.Running() || s.dviChain.Running()
}

// SetTripleBuffering switches the pool mode. Both paths must be stopped.
func (s *Scaler) SetTripleBuffering(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capChain.Running() || s.outputRunning() {
		return ErrRunning
	}
	s.pool.SetTripleBuffering(on)
	return nil
}

// SetOverlay shows o on top of the image from the next output frame on. A
// nil overlay hides it.
func (s *Scaler) SetOverlay(o *raster.Overlay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = o
	if s.vga != nil {
		s.vga.SetOverlay(o)
	}
	if s.dvi != nil {
		s.dvi.SetOverlay(o)
	}
}

// ImageSize returns the visible image area of the configured output in
// source pixels and lines, for placing overlays and status screens.
func (s *Scaler) ImageSize() (w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.vga != nil:
		return s.vga.ImageSize()
	case s.dvi != nil:
		return s.dvi.ImageSize()
	}
	return 0, 0
}

// Mode returns the configured output mode.
func (s *Scaler) Mode() video.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// FrameCounter returns the number of frames detected on the input.
func (s *Scaler) FrameCounter() uint32 {
	return s.dec.FrameCounter()
}

func (s *Scaler) Stats() Stats {
	return Stats{
		Decoder:        s.dec.Stats(),
		DecoderState:   s.dec.State(),
		Pool:           s.pool.Stats(),
		CaptureBatches: s.capChain.Completed(),
		OutputLines:    s.vgaChain.Completed() + s.dviChain.Completed(),
		CaptureErr:     s.capChain.Err(),
		OutputErr:      errors.Join(s.vgaChain.Err(), s.dviChain.Err()),
	}
}

// CaptureDone is closed when the capture path ends. It is nil before the
// first StartCapture.
func (s *Scaler) CaptureDone() <-chan struct{} {
	return s.capChain.Done()
}

// Quiesce asks the capture handler to go idle and waits until it
// acknowledges at the start of its next batch. Without a deadline on ctx the
// wait is unbounded. Capture stays idle until Resume.
func (s *Scaler) Quiesce(ctx context.Context) error {
	if !s.capChain.Running() {
		return nil
	}
	done := s.capChain.Done()
	s.stopReq.Store(true)
	for !s.inactive.Load() {
		select {
		case <-done:
			// the chain ended on a transfer error
			s.stopReq.Store(false)
			return nil
		default:
		}
		if err := ctx.Err(); err != nil {
			s.stopReq.Store(false)
			return fmt.Errorf("%w: %w", ErrQuiesceTimeout, err)
		}
		runtime.Gosched()
	}
	return nil
}

// Resume releases a quiesced capture handler.
func (s *Scaler) Resume() {
	s.stopReq.Store(false)
	for s.inactive.Load() && s.capChain.Running() {
		runtime.Gosched()
	}
}

// Reconfigure applies new settings: capture is quiesced, both paths are
// stopped, reconfigured and restarted with the same source and sink.
func (s *Scaler) Reconfigure(ctx context.Context, st config.Settings) error {
	st.Validate()
	if err := s.Quiesce(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	seq, sink := s.seq, s.sink
	capturing, outputting := s.capChain.Running(), s.outputRunning()
	s.stopCapture()
	s.stopOutput()
	s.pool.SetTripleBuffering(st.Output.TripleBuffering)
	s.capture = st.Capture
	s.mu.Unlock()

	// The paths restart independently; a failing output leaves capture
	// running.
	var errs []error
	m, err := video.Lookup(st.Output.Mode)
	if err == nil {
		err = s.ConfigureOutput(m, st.Output.Standard, OutputOptionsFrom(st))
	}
	if err == nil && outputting {
		err = s.StartOutput(sink)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("output: %w", err))
	}
	if capturing {
		if err := s.StartCapture(seq); err != nil {
			errs = append(errs, fmt.Errorf("capture: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("scaler: reconfigure incomplete", "err", err)
		return err
	}

	slog.Info("scaler: reconfigured", "mode", m.String(), "standard", st.Output.Standard.String())
	return nil
}
