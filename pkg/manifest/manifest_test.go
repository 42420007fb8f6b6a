package manifest

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/pgbackup/pkg/hashutil"
	"github.com/cuemby/pgbackup/pkg/types"
)

func TestGenerateWriteReadVerifyChecksum(t *testing.T) {
	files := []FileInput{
		{Path: "PG_VERSION", Size: 3, ModTime: time.Unix(0, 0).UTC(), Content: strings.NewReader("17\n")},
		{Path: "base/1/1259", Size: 7, ModTime: time.Unix(0, 0).UTC(), Content: strings.NewReader("relfile")},
	}

	m, err := Generate(123456789, hashutil.SHA256, files)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := got.VerifyChecksum(); err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
	if len(got.Files) != 2 {
		t.Fatalf("Files = %v", got.Files)
	}
}

func TestVerifyChecksumDetectsTampering(t *testing.T) {
	m := &Manifest{
		Version:          FormatVersion,
		SystemIdentifier: 1,
		Files:            []types.ManifestEntry{{Path: "a", Checksum: "abc"}},
		Checksum:         "not-the-real-checksum",
	}
	if err := m.VerifyChecksum(); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestDiffAddedChangedDeleted(t *testing.T) {
	parent := &Manifest{Files: []types.ManifestEntry{
		{Path: "base/1/1", Checksum: "aaa"},
		{Path: "base/1/2", Checksum: "bbb"},
		{Path: "base/1/3", Checksum: "ccc"},
	}}
	child := &Manifest{Files: []types.ManifestEntry{
		{Path: "base/1/1", Checksum: "aaa"},       // unchanged
		{Path: "base/1/2", Checksum: "bbb-changed"}, // changed
		{Path: "base/1/4", Checksum: "ddd"},         // added
		// base/1/3 deleted
	}}

	added, changed, deleted := Diff(parent, child)

	if added.Len() != 1 {
		t.Fatalf("added.Len() = %d, want 1", added.Len())
	}
	if _, ok := added.Search([]byte("base/1/4")); !ok {
		t.Fatal("expected base/1/4 in added")
	}

	if changed.Len() != 1 {
		t.Fatalf("changed.Len() = %d, want 1", changed.Len())
	}
	if _, ok := changed.Search([]byte("base/1/2")); !ok {
		t.Fatal("expected base/1/2 in changed")
	}

	if deleted.Len() != 1 {
		t.Fatalf("deleted.Len() = %d, want 1", deleted.Len())
	}
	if _, ok := deleted.Search([]byte("base/1/3")); !ok {
		t.Fatal("expected base/1/3 in deleted")
	}
}

type fakeReadCloser struct{ *strings.Reader }

func (f fakeReadCloser) Close() error { return nil }

func TestVerifyReportsMismatches(t *testing.T) {
	sum, _ := hashutil.SumBytes(hashutil.SHA256, []byte("correct"))
	m := &Manifest{Files: []types.ManifestEntry{
		{Path: "good", ChecksumAlgorithm: string(hashutil.SHA256), Checksum: sum},
		{Path: "bad", ChecksumAlgorithm: string(hashutil.SHA256), Checksum: sum},
	}}

	mismatched, err := m.Verify(func(path string) (io.ReadCloser, error) {
		if path == "good" {
			return fakeReadCloser{strings.NewReader("correct")}, nil
		}
		return fakeReadCloser{strings.NewReader("tampered")}, nil
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(mismatched) != 1 || mismatched[0] != "bad" {
		t.Fatalf("mismatched = %v", mismatched)
	}
}

// A missing file must not abort verification of the rest of the
// manifest: it is recorded as a failure for that path and the walk
// continues.
func TestVerifyContinuesPastOpenFailure(t *testing.T) {
	sum, _ := hashutil.SumBytes(hashutil.SHA256, []byte("correct"))
	m := &Manifest{Files: []types.ManifestEntry{
		{Path: "missing", ChecksumAlgorithm: string(hashutil.SHA256), Checksum: sum},
		{Path: "good", ChecksumAlgorithm: string(hashutil.SHA256), Checksum: sum},
	}}

	mismatched, err := m.Verify(func(path string) (io.ReadCloser, error) {
		if path == "missing" {
			return nil, os.ErrNotExist
		}
		return fakeReadCloser{strings.NewReader("correct")}, nil
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(mismatched) != 1 || mismatched[0] != "missing" {
		t.Fatalf("mismatched = %v, want [missing]", mismatched)
	}
}
