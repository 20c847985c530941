package source

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"runtime"

	"rgbiscaler/config"
	"rgbiscaler/vbuf"
	"rgbiscaler/video"
)

// Webcam captures a camera with FFmpeg, reduces every picture to the 16
// RGBI colours and serves it as a synthetic RGBI signal.
type Webcam struct {
	*Synth

	cmd           *exec.Cmd
	width, height int
	raw           []byte
	frame         vbuf.Frame
	done          chan struct{}
}

// ffmpegInput returns the FFmpeg input arguments for a capture device on the
// running OS.
func ffmpegInput(device string) ([]string, error) {
	switch runtime.GOOS {
	case "linux":
		if device == "" {
			device = "/dev/video0"
		}
		return []string{"-f", "v4l2", "-i", device}, nil
	case "darwin":
		if device == "" {
			device = "0"
		}
		return []string{"-f", "avfoundation", "-i", device}, nil
	case "windows":
		if device == "" {
			device = "Integrated Webcam"
		}
		return []string{"-f", "dshow", "-i", "video=" + device}, nil
	}
	return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
}

// ffmpegArgs returns the full FFmpeg command line producing rgb24 pictures
// of w x h pixels at fps frames per second.
func ffmpegArgs(input []string, w, h int, fps string) []string {
	vf := fmt.Sprintf("scale=%d:%d,fps=%s", w, h, fps)
	common := []string{
		"-hide_banner", "-loglevel", "error",
		"-fflags", "nobuffer", "-flags", "low_delay",
		"-probesize", "32", "-analyzeduration", "0",
		"-threads", "1", "-f", "rawvideo",
		"-pix_fmt", "rgb24", "-vf", vf, "-",
	}
	return append(input, common...)
}

// StartWebcam starts FFmpeg on device (or the OS default camera when empty)
// and returns a source producing its pictures with capture parameters p.
// Pictures are scaled to the image area of mode m.
func StartWebcam(device string, p config.CaptureParameters, m video.Mode) (*Webcam, error) {
	input, err := ffmpegInput(device)
	if err != nil {
		return nil, err
	}

	w, h := video.VisibleSource(m, p.Frequency)
	wc := &Webcam{
		Synth:  NewSynth(p, true),
		width:  w,
		height: h,
		raw:    make([]byte, w*h*3),
		done:   make(chan struct{}),
	}

	wc.cmd = exec.Command("ffmpeg", ffmpegArgs(input, w, h, "25")...)
	stdout, err := wc.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get FFmpeg stdout pipe: %w", err)
	}
	if err := wc.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}
	log.Println("FFmpeg process started to capture webcam...")

	go wc.run(stdout)
	return wc, nil
}

func (wc *Webcam) run(r io.Reader) {
	defer close(wc.done)
	for {
		if _, err := io.ReadFull(r, wc.raw); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("Error reading from FFmpeg: %v", err)
			}
			return
		}
		QuantizeRGB(&wc.frame, wc.raw, wc.width, wc.height)
		wc.SetFrame(&wc.frame)
	}
}

// Done is closed when FFmpeg stops producing pictures.
func (wc *Webcam) Done() <-chan struct{} {
	return wc.done
}

// Close stops FFmpeg.
func (wc *Webcam) Close() error {
	if wc.cmd.Process != nil {
		_ = wc.cmd.Process.Kill()
	}
	return wc.cmd.Wait()
}

// QuantizeRGB converts an rgb24 picture of w x h pixels into frame f,
// reducing every pixel to the nearest RGBI colour. Pixels outside the frame
// are dropped.
func QuantizeRGB(f *vbuf.Frame, rgb []byte, w, h int) {
	for y := 0; y < min(h, vbuf.Height); y++ {
		for x := 0; x < min(w, vbuf.Width); x++ {
			i := (y*w + x) * 3
			f.SetPixel(x, y, video.Quantize(rgb[i], rgb[i+1], rgb[i+2]))
		}
	}
}
