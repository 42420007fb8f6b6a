// Package tarball packs a directory tree (a PostgreSQL data directory or
// tablespace) into a tar stream and unpacks one back onto disk, normalizing
// paths so archive members never escape the destination root.
package tarball

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Pack walks root and writes every regular file, directory, and symlink
// under it to w as a tar stream. Archive member names are relative to root
// and use forward slashes regardless of host OS.
func Pack(w io.Writer, root string) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("tarball: relativize %s: %w", path, err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("tarball: stat %s: %w", path, err)
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("tarball: readlink %s: %w", path, err)
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("tarball: header for %s: %w", path, err)
		}
		hdr.Name = rel
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tarball: write header %s: %w", rel, err)
		}

		if info.Mode().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("tarball: open %s: %w", path, err)
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return fmt.Errorf("tarball: copy %s: %w", rel, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

// Unpack reads a tar stream from r and recreates it under dest. Member
// paths are normalized: leading slashes are stripped and any path that
// would escape dest (via "..") is rejected.
func Unpack(r io.Reader, dest string) error {
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tarball: read header: %w", err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0o700); err != nil {
				return fmt.Errorf("tarball: mkdir %s: %w", target, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return fmt.Errorf("tarball: mkdir parent of %s: %w", target, err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("tarball: symlink %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
				return fmt.Errorf("tarball: mkdir parent of %s: %w", target, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)|0o600)
			if err != nil {
				return fmt.Errorf("tarball: create %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("tarball: write %s: %w", target, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("tarball: close %s: %w", target, err)
			}
		default:
			// Skip device nodes, fifos, and other member types: a PostgreSQL
			// data directory never contains them.
		}
	}
}

// safeJoin joins dest and name, rejecting any name that would resolve
// outside dest.
func safeJoin(dest, name string) (string, error) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	cleaned := filepath.Join(dest, filepath.FromSlash(name))
	if cleaned != dest && !strings.HasPrefix(cleaned, dest+string(filepath.Separator)) {
		return "", fmt.Errorf("tarball: member %q escapes destination", name)
	}
	return cleaned, nil
}
