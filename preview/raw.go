package preview

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"rgbiscaler/raster"
)

// Raw writes output lines to a file as they are generated, little endian.
type Raw[W raster.Word] struct {
	f *os.File
	w *bufio.Writer
}

func CreateRaw[W raster.Word](path string) (*Raw[W], error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("preview: raw output: %w", err)
	}
	return &Raw[W]{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (r *Raw[W]) WriteLine(ctx context.Context, line []W) error {
	if err := binary.Write(r.w, binary.LittleEndian, line); err != nil {
		return fmt.Errorf("preview: raw output: %w", err)
	}
	return ctx.Err()
}

// Close flushes and closes the file.
func (r *Raw[W]) Close() error {
	if err := r.w.Flush(); err != nil {
		r.f.Close()
		return err
	}
	return r.f.Close()
}
