// Package lz4codec registers an lz4 codec.Codec backed by
// github.com/pierrec/lz4/v4.
package lz4codec

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/cuemby/pgbackup/pkg/codec"
)

func init() {
	codec.Register(codec.LZ4, New)
}

// Codec implements codec.Codec using lz4 at its default block settings.
type Codec struct {
	zw *lz4.Writer
}

// New returns an lz4 codec.
func New() codec.Codec { return &Codec{} }

func (c *Codec) Prepare(w io.Writer) error {
	c.zw = lz4.NewWriter(w)
	return nil
}

func (c *Codec) Step(p []byte) (int, error) {
	n, err := c.zw.Write(p)
	if err != nil {
		return n, fmt.Errorf("lz4codec: step: %w", err)
	}
	return n, nil
}

func (c *Codec) Close() error {
	if err := c.zw.Close(); err != nil {
		return fmt.Errorf("lz4codec: close: %w", err)
	}
	return nil
}

// Decompress wraps r in an lz4 reader, for pkg/extract's layer-stripping
// pass over a .lz4-suffixed archive.
func Decompress(r io.Reader) (io.Reader, error) {
	return lz4.NewReader(r), nil
}
