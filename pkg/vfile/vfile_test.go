package vfile

import (
	"path/filepath"
	"testing"
)

func TestWriteReadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunked.dat")

	w, err := CreateLocal(path, "w")
	if err != nil {
		t.Fatalf("CreateLocal write: %v", err)
	}
	if err := w.Write([]byte("hello "), false); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	if err := w.Write([]byte("world"), true); err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	r, err := CreateLocal(path, "r")
	if err != nil {
		t.Fatalf("CreateLocal read: %v", err)
	}
	defer r.Close()

	buf := make([]byte, 64)
	n, last, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello world" {
		t.Fatalf("Read content = %q", buf[:n])
	}
	if !last {
		t.Fatal("expected last chunk to be true after reading entire file")
	}

	if err := r.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestCreateLocalUnknownMode(t *testing.T) {
	if _, err := CreateLocal(filepath.Join(t.TempDir(), "x"), "z"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
