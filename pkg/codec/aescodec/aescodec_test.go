package aescodec

import (
	"bytes"
	"io"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("base/1/1259 relation page data, repeated enough to span multiple CTR blocks of AES-256.")

	var ciphertext bytes.Buffer
	c := New("correct horse battery staple")
	if err := c.Prepare(&ciphertext); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := c.Step(plaintext[:10]); err != nil {
		t.Fatalf("Step 1: %v", err)
	}
	if _, err := c.Step(plaintext[10:]); err != nil {
		t.Fatalf("Step 2: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Decrypt(bytes.NewReader(ciphertext.Bytes()), "correct horse battery staple")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestDecryptWrongPassphraseFails(t *testing.T) {
	plaintext := []byte("secret data")

	var ciphertext bytes.Buffer
	c := New("right-passphrase")
	c.Prepare(&ciphertext)
	c.Step(plaintext)
	c.Close()

	r, err := Decrypt(bytes.NewReader(ciphertext.Bytes()), "wrong-passphrase")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	got, _ := io.ReadAll(r)
	if bytes.Equal(got, plaintext) {
		t.Fatal("expected wrong passphrase to produce different plaintext")
	}
}
