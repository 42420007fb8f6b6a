package tarball

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "base", "1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "base", "1", "1259"), []byte("relfile"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "PG_VERSION"), []byte("17\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Pack(&buf, src); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	dst := t.TempDir()
	if err := Unpack(&buf, dst); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "base", "1", "1259"))
	if err != nil {
		t.Fatalf("read unpacked relfile: %v", err)
	}
	if string(got) != "relfile" {
		t.Errorf("relfile content = %q, want %q", got, "relfile")
	}

	got, err = os.ReadFile(filepath.Join(dst, "PG_VERSION"))
	if err != nil {
		t.Fatalf("read unpacked PG_VERSION: %v", err)
	}
	if string(got) != "17\n" {
		t.Errorf("PG_VERSION content = %q, want %q", got, "17\n")
	}
}

func TestUnpackRejectsPathEscape(t *testing.T) {
	if _, err := safeJoin(t.TempDir(), "../../etc/passwd"); err == nil {
		t.Fatal("expected path escape to be rejected")
	}
}
