// Package stream implements the streaming pipeline that turns raw backup
// bytes into compressed, encrypted output fanned out to one or more
// destinations (spec.md §4.1/§4.4). It batches writes into a 1 MiB buffer
// before pushing them through the configured codec chain, mirroring the
// original tool's fixed internal buffer (stream.h's BUFFER_SIZE).
package stream

import (
	"fmt"
	"io"

	"github.com/cuemby/pgbackup/pkg/codec"
	"github.com/cuemby/pgbackup/pkg/vfile"
)

// BufferSize is the internal accumulation buffer size before a flush is
// pushed through the codec chain.
const BufferSize = 1 << 20 // 1 MiB

// Streamer chains an optional compressor and an optional encryptor in
// front of one or more vfile destinations. Writes are buffered and only
// pushed through the chain once BufferSize bytes have accumulated, or on
// the final chunk.
type Streamer struct {
	compressor codec.Codec
	encryptor  codec.Codec
	destCodec  codec.Codec // the head of the chain Write actually feeds

	destinations []vfile.VFile
	fanout       io.Writer

	buf     []byte
	written int64
}

// New creates a Streamer. Either codec may be nil to skip that stage.
func New(compressor, encryptor codec.Codec) *Streamer {
	return &Streamer{
		compressor: compressor,
		encryptor:  encryptor,
		buf:        make([]byte, 0, BufferSize),
	}
}

// AddDestination registers a VFile the streamer writes to. Must be called
// before Prepare.
func (s *Streamer) AddDestination(f vfile.VFile) {
	s.destinations = append(s.destinations, f)
}

// Prepare wires the codec chain (compressor -> encryptor -> fan-out) ready
// for Write calls.
func (s *Streamer) Prepare() error {
	writers := make([]io.Writer, len(s.destinations))
	for i, d := range s.destinations {
		writers[i] = &vfileWriter{f: d}
	}
	s.fanout = io.MultiWriter(writers...)

	next := s.fanout
	if s.encryptor != nil {
		if err := s.encryptor.Prepare(next); err != nil {
			return fmt.Errorf("stream: prepare encryptor: %w", err)
		}
		next = &codecWriter{c: s.encryptor}
	}
	if s.compressor != nil {
		if err := s.compressor.Prepare(next); err != nil {
			return fmt.Errorf("stream: prepare compressor: %w", err)
		}
		next = &codecWriter{c: s.compressor}
	}

	if cw, ok := next.(*codecWriter); ok {
		s.destCodec = cw.c
	}
	if s.destCodec == nil {
		// no codecs configured: Write pushes straight to the fan-out
		s.destCodec = &passthroughCodec{w: s.fanout}
	}
	return nil
}

// Write appends data to the internal buffer, flushing through the codec
// chain whenever BufferSize is reached. lastChunk forces a final flush and
// closes the codec chain.
func (s *Streamer) Write(data []byte, lastChunk bool) error {
	s.buf = append(s.buf, data...)
	for len(s.buf) >= BufferSize {
		if err := s.flush(s.buf[:BufferSize]); err != nil {
			return err
		}
		s.buf = s.buf[BufferSize:]
	}

	if lastChunk {
		if len(s.buf) > 0 {
			if err := s.flush(s.buf); err != nil {
				return err
			}
			s.buf = s.buf[:0]
		}
		return s.close()
	}
	return nil
}

func (s *Streamer) flush(chunk []byte) error {
	n, err := s.destCodec.Step(chunk)
	s.written += int64(n)
	if err != nil {
		return fmt.Errorf("stream: step: %w", err)
	}
	return nil
}

func (s *Streamer) close() error {
	if s.compressor != nil {
		if err := s.compressor.Close(); err != nil {
			return fmt.Errorf("stream: close compressor: %w", err)
		}
	}
	if s.encryptor != nil {
		if err := s.encryptor.Close(); err != nil {
			return fmt.Errorf("stream: close encryptor: %w", err)
		}
	}
	for _, d := range s.destinations {
		if err := d.Close(); err != nil {
			return fmt.Errorf("stream: close destination: %w", err)
		}
	}
	return nil
}

// Written returns the total number of input bytes pushed through Step so far.
func (s *Streamer) Written() int64 { return s.written }

// Reset drops all destinations so the Streamer can be reused for a new
// stream.
func (s *Streamer) Reset() {
	s.destinations = nil
	s.fanout = nil
	s.destCodec = nil
	s.buf = s.buf[:0]
	s.written = 0
}

// codecWriter adapts a codec.Codec (already Prepare'd) to io.Writer by
// calling Step, so codecs can be chained: compressor writes into an
// encryptor, which writes into the fan-out.
type codecWriter struct {
	c codec.Codec
}

func (c *codecWriter) Write(p []byte) (int, error) { return c.c.Step(p) }

// passthroughCodec implements codec.Codec by writing straight through,
// used when no compression or encryption is configured.
type passthroughCodec struct {
	w io.Writer
}

func (p *passthroughCodec) Prepare(w io.Writer) error { p.w = w; return nil }
func (p *passthroughCodec) Step(b []byte) (int, error) { return p.w.Write(b) }
func (p *passthroughCodec) Close() error               { return nil }

// vfileWriter adapts a vfile.VFile to io.Writer, always reporting
// lastChunk=false; the Streamer calls VFile.Close explicitly after the
// final flush.
type vfileWriter struct {
	f vfile.VFile
}

func (v *vfileWriter) Write(p []byte) (int, error) {
	if err := v.f.Write(p, false); err != nil {
		return 0, err
	}
	return len(p), nil
}
