// Package source provides capture sample sources: recorded sample files,
// a synthetic RGBI signal generator, a webcam fed through FFmpeg and an
// external clock decimator.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader is the sample source interface of the capture path.
type Reader interface {
	ReadBatch(ctx context.Context, buf []byte) error
}

// File reads raw capture samples, one byte per sample, from a file.
type File struct {
	f    *os.File
	loop bool
}

// OpenFile opens a sample file. With loop set the file restarts at EOF.
func OpenFile(path string, loop bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return &File{f: f, loop: loop}, nil
}

// ReadBatch fills buf. Without looping a short file ends with io.EOF.
func (s *File) ReadBatch(ctx context.Context, buf []byte) error {
	rewound := false
	for n := 0; n < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := s.f.Read(buf[n:])
		n += m
		if m > 0 {
			rewound = false
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if !s.loop || rewound {
				return io.EOF
			}
			if _, err := s.f.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("source: rewind: %w", err)
			}
			rewound = true
		default:
			return fmt.Errorf("source: read samples: %w", err)
		}
	}
	return nil
}

func (s *File) Close() error {
	return s.f.Close()
}

// Decimator samples an externally clocked source: the wrapped reader
// delivers one sample per clock edge and the decimator keeps every n-th.
type Decimator struct {
	src     Reader
	n       int
	scratch []byte
}

func NewDecimator(src Reader, n int) *Decimator {
	d := &Decimator{src: src}
	d.SetExternalDivider(n)
	return d
}

// SetExternalDivider sets the number of clock edges per sample.
func (d *Decimator) SetExternalDivider(n int) {
	d.n = max(n, 1)
}

func (d *Decimator) ReadBatch(ctx context.Context, buf []byte) error {
	need := len(buf) * d.n
	if cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	}
	raw := d.scratch[:need]
	if err := d.src.ReadBatch(ctx, raw); err != nil {
		return err
	}
	for i := range buf {
		buf[i] = raw[i*d.n]
	}
	return nil
}
