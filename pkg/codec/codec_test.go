package codec

import (
	"io"
	"testing"
)

func TestRegisterAndNew(t *testing.T) {
	const testName Name = "test-echo"
	Register(testName, func() Codec { return &nopCodec{} })

	c, err := New(testName)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil codec")
	}
}

func TestNewUnregisteredReturnsError(t *testing.T) {
	_, err := New("does-not-exist")
	if err == nil {
		t.Fatal("expected error for unregistered codec name")
	}
	var uerr *UnsupportedError
	if ue, ok := err.(*UnsupportedError); !ok {
		t.Fatalf("expected *UnsupportedError, got %T", err)
	} else {
		uerr = ue
	}
	if uerr.Name != "does-not-exist" {
		t.Fatalf("Name = %q", uerr.Name)
	}
}

type nopCodec struct{ w io.Writer }

func (n *nopCodec) Prepare(w io.Writer) error { n.w = w; return nil }
func (n *nopCodec) Step(p []byte) (int, error) {
	return n.w.Write(p)
}
func (n *nopCodec) Close() error { return nil }
