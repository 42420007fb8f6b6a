// Package codec defines the push/pull transform contract every compressor
// and encryptor in pgbackup implements (spec.md §4.1), so the streamer
// (pkg/stream) can chain them without knowing their concrete algorithm.
package codec

import "io"

// Codec is a streaming transform: Step pushes a chunk of input and writes
// whatever output is ready to the writer given to Prepare, Close flushes
// any buffered tail. A Codec is one-shot: Prepare resets it for reuse.
type Codec interface {
	// Prepare resets the codec for a fresh stream, wrapping w as the
	// destination for output produced by Step/Close.
	Prepare(w io.Writer) error

	// Step transforms p and writes the result to the writer given to
	// Prepare. It returns the number of input bytes consumed, which is
	// always len(p) on success.
	Step(p []byte) (int, error)

	// Close flushes any buffered output and releases resources. A Codec
	// must not be used again until Prepare is called.
	Close() error
}

// Name identifies a codec algorithm, used for manifest/backup metadata and
// server configuration (spec.md §3).
type Name string

const (
	None  Name = "none"
	Gzip  Name = "gzip"
	Zstd  Name = "zstd"
	LZ4   Name = "lz4"
	Bzip2 Name = "bzip2"
	AES   Name = "aes"
)

// Factory constructs a fresh, unprepared Codec for a named algorithm.
type Factory func() Codec

var registry = map[Name]Factory{}

// Register associates a Name with a Factory. Codec subpackages call this
// from an init function so callers only need to blank-import the
// subpackages they want available.
func Register(name Name, f Factory) {
	registry[name] = f
}

// New constructs a codec by name, or an error if no subpackage registered it.
func New(name Name) (Codec, error) {
	f, ok := registry[name]
	if !ok {
		return nil, &UnsupportedError{Name: name}
	}
	return f(), nil
}

// UnsupportedError is returned by New for an unregistered codec name.
type UnsupportedError struct {
	Name Name
}

func (e *UnsupportedError) Error() string {
	return "codec: unsupported algorithm " + string(e.Name)
}
