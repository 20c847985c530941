package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samuel/go-hackrf/hackrf"

	"rgbiscaler/config"
	"rgbiscaler/preview"
	"rgbiscaler/raster"
	"rgbiscaler/scaler"
	"rgbiscaler/sdr"
	"rgbiscaler/source"
	"rgbiscaler/ui"
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

const (
	// the snapshot is taken once the decoder has settled
	snapshotFrame = 60
	// RTL-SDR dongles top out well below the HackRF rates
	rtlMaxSampleRate = 2.4
)

// output is an opened sink and what has to be torn down with it.
type output struct {
	sink   any
	window *preview.Window
	close  func()
}

// input is an opened sample source.
type input struct {
	seq   scaler.Sequencer
	close func()
}

func main() {
	cfg := config.New()
	settings := cfg.Settings

	if cfg.Monitor {
		// The monitor owns the terminal, so logs go to a file.
		logFile, err := tea.LogToFile("rgbiscaler.log", "rgbiscaler")
		if err != nil {
			log.Fatalf("Failed to open the log file: %v", err)
		}
		defer logFile.Close()
	}

	if cfg.SaveSettings {
		if cfg.SettingsFile == "" {
			log.Fatalf("-save needs a settings file given with -config")
		}
		if err := config.Save(cfg.SettingsFile, settings); err != nil {
			log.Fatalf("Failed to save settings: %v", err)
		}
		log.Printf("Settings written to %s", cfg.SettingsFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Configure both paths of the scaler
	mode := settings.VideoMode()
	sc := scaler.New(scaler.Options{TripleBuffering: settings.Output.TripleBuffering})
	if err := sc.ConfigureCapture(settings.Capture); err != nil {
		log.Fatalf("Invalid capture settings: %v", err)
	}
	if err := sc.ConfigureOutput(mode, settings.Output.Standard, scaler.OutputOptionsFrom(settings)); err != nil {
		log.Fatalf("Invalid output settings: %v", err)
	}
	video.DrawWelcome(sc.Pool().Display(), mode, settings.Capture.Frequency)

	// 2. Open the output sink and the sample source (lifecycle is managed by main)
	out, err := openOutput(cfg, settings, mode)
	if err != nil {
		log.Fatalf("Failed to open the %s output: %v", cfg.Sink, err)
	}
	defer out.close()

	in, err := openInput(cfg, settings, mode)
	if err != nil {
		log.Fatalf("Failed to open the %s source: %v", cfg.Source, err)
	}
	defer in.close()

	// 3. Start output first so the welcome screen shows while capture settles
	if err := sc.StartOutput(out.sink); err != nil {
		log.Fatalf("Failed to start output: %v", err)
	}
	defer sc.StopOutput()
	if err := sc.StartCapture(in.seq); err != nil {
		log.Fatalf("Failed to start capture: %v", err)
	}
	defer sc.StopCapture()

	watch := &signalWatch{
		frames: sc.FrameCounter,
		lost: func() {
			video.DrawNoSignal(sc.Pool().Display(), mode, settings.Capture.Frequency)
		},
	}
	go watch.run(ctx, 100*time.Millisecond)

	if cfg.Monitor {
		go func() {
			poll := func() ui.Status {
				return ui.Status{
					Mode:     mode.String(),
					Standard: settings.Output.Standard.String(),
					Source:   cfg.Source,
					Sink:     cfg.Sink,
					Stats:    sc.Stats(),
				}
			}
			if err := ui.Run(ctx, poll); err != nil {
				slog.Error("main: monitor failed", "err", err)
			}
			stop()
		}()
	}

	// 4. Wait for the window to close, a stop signal or the end of capture
	log.Printf("Scaling to %s %s. Press Ctrl+C to stop.", mode, settings.Output.Standard)
	if out.window != nil {
		go func() {
			<-ctx.Done()
			out.window.Close()
		}()
		if err := out.window.Run(); err != nil {
			log.Printf("Window error: %v", err)
		}
		stop()
	} else {
		select {
		case <-ctx.Done():
		case <-sc.CaptureDone():
			if err := sc.Stats().CaptureErr; err != nil {
				log.Printf("Capture ended: %v", err)
			}
		}
	}

	log.Println("Shutting down...")
}

func openInput(cfg *config.Config, s config.Settings, mode video.Mode) (*input, error) {
	p := s.Capture
	switch cfg.Source {
	case config.SourceTest:
		log.Printf("Test mode: %s pattern will be captured.", cfg.Pattern)
		var img vbuf.Frame
		switch cfg.Pattern {
		case config.PatternVertical:
			video.DrawWelcome(&img, mode, p.Frequency)
		case config.PatternHorizontal:
			video.DrawWelcomeHorizontal(&img, mode)
		default:
			video.FillColorBars(&img)
		}
		synth := source.NewSynth(p, true)
		synth.SetFrame(&img)
		return &input{seq: synth, close: func() {}}, nil

	case config.SourceWebcam:
		wc, err := source.StartWebcam(cfg.Device, p, mode)
		if err != nil {
			return nil, err
		}
		return &input{seq: wc, close: func() { _ = wc.Close() }}, nil

	case config.SourceRTLSDR:
		rate := cfg.SampleRate
		if rate > rtlMaxSampleRate {
			log.Printf("RTL-SDR sample rate limited to %.1f MHz", rtlMaxSampleRate)
			rate = rtlMaxSampleRate
		}
		rx, err := sdr.OpenReceiver(sdr.RxConfig{
			FrequencyHz:  int(cfg.Frequency * 1e6),
			SampleRateHz: int(rate * 1e6),
			Gain:         cfg.Gain,
		}, float64(p.Frequency))
		if err != nil {
			return nil, err
		}
		return &input{seq: rx, close: func() { _ = rx.Close() }}, nil

	case config.SourceFile:
		f, err := source.OpenFile(cfg.Input, true)
		if err != nil {
			return nil, err
		}
		in := &input{seq: f, close: func() { _ = f.Close() }}
		if p.ClockSource == config.External {
			// recorded on every pixel clock edge
			in.seq = source.NewDecimator(f, p.ExtClockDivider)
		}
		return in, nil
	}
	return nil, errors.New("no source selected")
}

func openOutput(cfg *config.Config, s config.Settings, mode video.Mode) (*output, error) {
	digital := s.Output.Standard == config.DVI

	if cfg.Snapshot != "" && (cfg.Sink == config.SinkHackRF || cfg.Sink == config.SinkRaw) {
		log.Printf("Snapshots need a picture output, -snapshot is ignored with the %s sink", cfg.Sink)
	}

	switch cfg.Sink {
	case config.SinkHackRF:
		if digital {
			return nil, errors.New("the HackRF can only transmit the analog output")
		}
		return openTransmitter(cfg, mode)

	case config.SinkRaw:
		if digital {
			r, err := preview.CreateRaw[uint64](cfg.Output)
			if err != nil {
				return nil, err
			}
			return &output{sink: r, close: func() { _ = r.Close() }}, nil
		}
		r, err := preview.CreateRaw[byte](cfg.Output)
		if err != nil {
			return nil, err
		}
		return &output{sink: r, close: func() { _ = r.Close() }}, nil
	}

	if digital {
		wiring := raster.OptionsFrom(s).Wiring
		return assemble(cfg, preview.NewDigital(mode, wiring, true))
	}
	return assemble(cfg, preview.NewAnalog(mode, true))
}

// assemble wires an assembler to the picture outputs selected by cfg.
func assemble[W raster.Word](cfg *config.Config, a *preview.Assembler[W]) (*output, error) {
	out := &output{sink: a, close: func() {}}
	dw, dh := a.DisplaySize()

	if cfg.Snapshot != "" {
		fn, _ := preview.SnapshotAt(cfg.Snapshot, snapshotFrame, dw, dh)
		a.Handle(fn)
	}

	switch cfg.Sink {
	case config.SinkWindow:
		out.window = preview.NewWindow("rgbiscaler", a)
	case config.SinkFFplay:
		w, h := a.Size()
		ff, err := preview.StartFFplay(w, h, dw, dh, a.RefreshRate(), "rgbiscaler")
		if err != nil {
			return nil, err
		}
		a.Handle(ff.WriteFrame)
		out.close = ff.Stop
	}
	return out, nil
}

func openTransmitter(cfg *config.Config, mode video.Mode) (*output, error) {
	if err := hackrf.Init(); err != nil {
		return nil, err
	}
	dev, err := hackrf.Open()
	if err != nil {
		hackrf.Exit()
		return nil, err
	}

	rate := cfg.SampleRate * 1e6
	tx := sdr.NewTransmitter(dev, mode, sdr.TxConfig{
		FrequencyHz: uint64(cfg.Frequency * 1e6),
		SampleRate:  rate,
		// keep the low-pass cutoff below the Nyquist frequency
		Bandwidth: rate * 0.8,
		Gain:      cfg.Gain,
	})
	if err := tx.Start(); err != nil {
		dev.Close()
		hackrf.Exit()
		return nil, err
	}
	log.Println("Transmission is live.")

	return &output{
		sink: tx,
		close: func() {
			_ = tx.Stop()
			dev.Close()
			hackrf.Exit()
			if n := tx.Underruns(); n > 0 {
				slog.Warn("main: transmitter underruns", "buffers", n)
			}
		},
	}, nil
}
