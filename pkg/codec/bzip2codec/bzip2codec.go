// Package bzip2codec registers a bzip2 codec.Codec backed by
// github.com/dsnet/compress/bzip2, since stdlib compress/bzip2 only
// decodes. Named explicitly in DESIGN.md as an out-of-pack ecosystem
// dependency: no example repo compresses bzip2.
package bzip2codec

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"

	"github.com/cuemby/pgbackup/pkg/codec"
)

func init() {
	codec.Register(codec.Bzip2, New)
}

// Codec implements codec.Codec using bzip2 at the default block size.
type Codec struct {
	zw *bzip2.Writer
}

// New returns a bzip2 codec at the default compression level.
func New() codec.Codec { return &Codec{} }

func (c *Codec) Prepare(w io.Writer) error {
	zw, err := bzip2.NewWriter(w, nil)
	if err != nil {
		return fmt.Errorf("bzip2codec: prepare: %w", err)
	}
	c.zw = zw
	return nil
}

func (c *Codec) Step(p []byte) (int, error) {
	n, err := c.zw.Write(p)
	if err != nil {
		return n, fmt.Errorf("bzip2codec: step: %w", err)
	}
	return n, nil
}

func (c *Codec) Close() error {
	if err := c.zw.Close(); err != nil {
		return fmt.Errorf("bzip2codec: close: %w", err)
	}
	return nil
}

// Decompress wraps r in a bzip2 reader, for pkg/extract's layer-stripping
// pass over a .bz2-suffixed archive.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	zr, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2codec: decompress: %w", err)
	}
	return zr, nil
}
