// Package gzipcodec registers a gzip codec.Codec backed by
// github.com/klauspost/compress/gzip, the drop-in replacement for stdlib
// compress/gzip the rest of the example pack favors for its faster
// compression path.
package gzipcodec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/cuemby/pgbackup/pkg/codec"
)

func init() {
	codec.Register(codec.Gzip, New)
}

// Codec implements codec.Codec using gzip at the default compression level.
type Codec struct {
	level int
	zw    *gzip.Writer
}

// New returns a gzip codec at the default compression level.
func New() codec.Codec { return &Codec{level: gzip.DefaultCompression} }

// NewLevel returns a gzip codec at the given compression level
// (gzip.BestSpeed..gzip.BestCompression).
func NewLevel(level int) codec.Codec { return &Codec{level: level} }

func (c *Codec) Prepare(w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, c.level)
	if err != nil {
		return fmt.Errorf("gzipcodec: prepare: %w", err)
	}
	c.zw = zw
	return nil
}

func (c *Codec) Step(p []byte) (int, error) {
	n, err := c.zw.Write(p)
	if err != nil {
		return n, fmt.Errorf("gzipcodec: step: %w", err)
	}
	return n, nil
}

func (c *Codec) Close() error {
	if err := c.zw.Close(); err != nil {
		return fmt.Errorf("gzipcodec: close: %w", err)
	}
	return nil
}

// Decompress wraps r in a gzip reader, for pkg/extract's layer-stripping
// pass over a .gz-suffixed archive.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzipcodec: decompress: %w", err)
	}
	return zr, nil
}
