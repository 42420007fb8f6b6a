// Package extract peels the compression/encryption layers off a backup
// artifact and unpacks the resulting tar stream onto disk, mirroring
// restore's "reverse of backup" path (spec.md §4.10).
//
// Grounded on _examples/original_source/src/libpgmoneta/extraction.c's
// pgmoneta_extract_file/extract_layers/extract_layer: detect a file's
// type bitmask from its name, strip one layer (decrypt or decompress)
// at a time until only a plain file remains, then require that file be
// a tar archive and unpack it. The C original frees/removes
// intermediate files as it goes; this port uses defer and os.Remove
// the same way pkg/orchestrator's stages clean up after themselves.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/pgbackup/pkg/codec/bzip2codec"
	"github.com/cuemby/pgbackup/pkg/codec/gzipcodec"
	"github.com/cuemby/pgbackup/pkg/codec/lz4codec"
	"github.com/cuemby/pgbackup/pkg/codec/zstdcodec"
	"github.com/cuemby/pgbackup/pkg/tarball"

	"github.com/cuemby/pgbackup/pkg/codec/aescodec"
)

// Type is a bitmask describing what transforms still need stripping
// before a file is a plain tar archive.
type Type uint32

const (
	TypeUnknown    Type = 0
	TypeEncrypted  Type = 1 << 0
	TypeCompressed Type = 1 << 1
	TypeTar        Type = 1 << 2
)

// ErrNotArchive is returned when the fully-stripped file is not a tar
// archive, matching extraction.c's "file is not a TAR archive" check.
type ErrNotArchive struct {
	Path string
}

func (e *ErrNotArchive) Error() string {
	return fmt.Sprintf("extract: %s is not a tar archive", e.Path)
}

// DetectType infers a Type bitmask from path's extension chain, the Go
// equivalent of pgmoneta_get_file_type. Encryption is assumed to be the
// outermost layer (spec.md §4.2's compress-then-encrypt pipeline order),
// so a .aes suffix always wins over any compression suffix beneath it.
func DetectType(path string) Type {
	if strings.HasSuffix(path, ".aes") {
		return TypeEncrypted
	}
	switch {
	case strings.HasSuffix(path, ".gz"), strings.HasSuffix(path, ".tgz"):
		return TypeCompressed
	case strings.HasSuffix(path, ".zst"), strings.HasSuffix(path, ".zstd"):
		return TypeCompressed
	case strings.HasSuffix(path, ".lz4"):
		return TypeCompressed
	case strings.HasSuffix(path, ".bz2"):
		return TypeCompressed
	case strings.HasSuffix(path, ".tar"):
		return TypeTar
	default:
		return TypeUnknown
	}
}

// stripExtension removes path's final extension, turning base.tar.gz
// into base.tar the way pgmoneta_strip_extension does.
func stripExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path
	}
	stripped := strings.TrimSuffix(path, ext)
	if ext == ".tgz" {
		return stripped + ".tar"
	}
	return stripped
}

// Options configures Extract.
type Options struct {
	// Type overrides auto-detection of filePath's layer. Leave zero to
	// auto-detect from the file name.
	Type Type
	// Passphrase decrypts an encrypted layer; required if any layer
	// in the chain is encrypted.
	Passphrase string
	// Copy, when true, copies filePath into destDir before peeling
	// layers in place rather than operating on filePath directly,
	// leaving the original backup artifact untouched.
	Copy bool
}

// File extracts filePath's archive into destDir: it strips every
// encryption/compression layer in turn, then untars the result into
// destDir. With Copy set, filePath is first copied into destDir and
// every intermediate layer is peeled from that copy, so filePath
// itself is never modified or removed.
func File(filePath, destDir string, opts Options) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("extract: mkdir %s: %w", destDir, err)
	}

	working := filePath
	if opts.Copy {
		copied, err := copyFile(filePath, filepath.Join(destDir, filepath.Base(filePath)))
		if err != nil {
			return fmt.Errorf("extract: copy %s: %w", filePath, err)
		}
		working = copied
		defer os.Remove(working)
	}

	archivePath, cleanup, err := extractLayers(working, opts.Type, opts.Passphrase)
	if err != nil {
		return err
	}
	defer cleanup()

	if DetectType(archivePath)&TypeTar == 0 {
		return &ErrNotArchive{Path: filePath}
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract: open %s: %w", archivePath, err)
	}
	defer f.Close()

	if err := tarball.Unpack(f, destDir); err != nil {
		return fmt.Errorf("extract: untar %s: %w", archivePath, err)
	}
	return nil
}

// extractLayers repeatedly strips the outermost encryption/compression
// layer from path until a plain file remains, returning its path and a
// cleanup func that removes every intermediate file it generated.
func extractLayers(path string, fileType Type, passphrase string) (string, func(), error) {
	current := path
	currentType := fileType
	if currentType == TypeUnknown {
		currentType = DetectType(current)
	}

	var generated []string
	cleanup := func() {
		for _, p := range generated {
			os.Remove(p)
		}
	}

	for currentType&(TypeEncrypted|TypeCompressed) != 0 {
		next, err := extractLayer(current, currentType, passphrase)
		if err != nil {
			cleanup()
			return "", func() {}, err
		}
		generated = append(generated, next)
		current = next
		currentType = DetectType(current)
	}

	return current, cleanup, nil
}

// extractLayer strips exactly one layer from path, producing a new
// file alongside it with that layer's extension removed.
func extractLayer(path string, fileType Type, passphrase string) (string, error) {
	outPath := stripExtension(path)

	if fileType&TypeEncrypted != 0 {
		if err := decryptFile(path, outPath, passphrase); err != nil {
			return "", fmt.Errorf("extract: decrypt %s: %w", path, err)
		}
		return outPath, nil
	}

	if fileType&TypeCompressed != 0 {
		if err := decompressFile(path, outPath); err != nil {
			return "", fmt.Errorf("extract: decompress %s: %w", path, err)
		}
		return outPath, nil
	}

	return "", fmt.Errorf("extract: %s has no encryption/compression layer to strip", path)
}

func decryptFile(src, dst, passphrase string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	plain, err := aescodec.Decrypt(in, passphrase)
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, plain)
	return err
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	var reader io.Reader
	var closer io.Closer
	switch {
	case strings.HasSuffix(src, ".gz"), strings.HasSuffix(src, ".tgz"):
		r, err := gzipcodec.Decompress(in)
		if err != nil {
			return err
		}
		reader, closer = r, r
	case strings.HasSuffix(src, ".zst"), strings.HasSuffix(src, ".zstd"):
		r, err := zstdcodec.Decompress(in)
		if err != nil {
			return err
		}
		reader, closer = r, r
	case strings.HasSuffix(src, ".lz4"):
		r, err := lz4codec.Decompress(in)
		if err != nil {
			return err
		}
		reader = r
	case strings.HasSuffix(src, ".bz2"):
		r, err := bzip2codec.Decompress(in)
		if err != nil {
			return err
		}
		reader, closer = r, r
	default:
		return fmt.Errorf("extract: %s has no recognized compression suffix", src)
	}
	if closer != nil {
		defer closer.Close()
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, reader)
	return err
}

// copyFile copies src to dst, creating dst's parent directory if
// needed, and returns dst.
func copyFile(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", err
	}
	return dst, nil
}
