package preview

import (
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/exec"
)

// FFplay represents the FFplay video player process and its input pipe.
type FFplay struct {
	Pipe io.WriteCloser
	Cmd  *exec.Cmd
	rgb  []byte
}

// StartFFplay launches FFplay for rgb24 pictures of w x h pixels shown in a
// dispW x dispH window.
func StartFFplay(w, h, dispW, dispH int, fps float64, title string) (*FFplay, error) {
	ffplayPath, err := exec.LookPath("ffplay")
	if err != nil {
		return nil, fmt.Errorf("ffplay not found in your PATH")
	}

	cmd := exec.Command(ffplayPath, ffplayArgs(w, h, dispW, dispH, fps, title)...)
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr // Show ffplay errors in our console

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	log.Println("FFplay process started. Video output should appear in a new window.")
	return &FFplay{Pipe: stdinPipe, Cmd: cmd, rgb: make([]byte, w*h*3)}, nil
}

func ffplayArgs(w, h, dispW, dispH int, fps float64, title string) []string {
	return []string{
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", fmt.Sprintf("%f", fps),
		"-i", "-", // Read from stdin
		"-window_title", title,
		"-x", fmt.Sprint(dispW), "-y", fmt.Sprint(dispH),
		"-fflags", "nobuffer",
		"-flags", "low_delay",
	}
}

// WriteFrame sends one picture to FFplay. It is a FrameFunc.
func (f *FFplay) WriteFrame(img *image.RGBA, _ uint64) error {
	RGB24(f.rgb, img)
	if _, err := f.Pipe.Write(f.rgb); err != nil {
		return fmt.Errorf("error writing to FFplay pipe, FFplay may have been closed: %w", err)
	}
	return nil
}

// Stop safely terminates the FFplay process.
func (f *FFplay) Stop() {
	f.Pipe.Close()
	f.Cmd.Process.Kill()
	_ = f.Cmd.Wait()
}

// RGB24 packs the pixels of img into dst, three bytes per pixel.
func RGB24(dst []byte, img *image.RGBA) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx() && i+3 <= len(dst); x++ {
			copy(dst[i:i+3], row[x*4:x*4+3])
			i += 3
		}
	}
}
