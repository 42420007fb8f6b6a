// Package zstdcodec registers a zstd codec.Codec backed by
// github.com/klauspost/compress/zstd.
package zstdcodec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/cuemby/pgbackup/pkg/codec"
)

func init() {
	codec.Register(codec.Zstd, New)
}

// Codec implements codec.Codec using zstd at the default level.
type Codec struct {
	zw *zstd.Encoder
}

// New returns a zstd codec at the default compression level.
func New() codec.Codec { return &Codec{} }

func (c *Codec) Prepare(w io.Writer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstdcodec: prepare: %w", err)
	}
	c.zw = zw
	return nil
}

func (c *Codec) Step(p []byte) (int, error) {
	n, err := c.zw.Write(p)
	if err != nil {
		return n, fmt.Errorf("zstdcodec: step: %w", err)
	}
	return n, nil
}

func (c *Codec) Close() error {
	if err := c.zw.Close(); err != nil {
		return fmt.Errorf("zstdcodec: close: %w", err)
	}
	return nil
}

// decoderCloser adapts *zstd.Decoder's void Close to io.ReadCloser.
type decoderCloser struct{ *zstd.Decoder }

func (d decoderCloser) Close() error {
	d.Decoder.Close()
	return nil
}

// Decompress wraps r in a zstd decoder, for pkg/extract's layer-stripping
// pass over a .zst-suffixed archive.
func Decompress(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstdcodec: decompress: %w", err)
	}
	return decoderCloser{zr}, nil
}
