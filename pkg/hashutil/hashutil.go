// Package hashutil computes the content checksums recorded in backup
// manifests (spec.md §4.7): SHA-224/256/384/512, plus HMAC-SHA256
// sign/verify helpers.
package hashutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Algorithm names a supported checksum algorithm, matching the values
// written to a manifest's Checksum-Algorithm field.
type Algorithm string

const (
	SHA224 Algorithm = "SHA224"
	SHA256 Algorithm = "SHA256"
	SHA384 Algorithm = "SHA384"
	SHA512 Algorithm = "SHA512"
)

// New returns a fresh hash.Hash for the given algorithm.
func New(alg Algorithm) (hash.Hash, error) {
	switch alg {
	case SHA224:
		return sha256.New224(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("hashutil: unknown algorithm %q", alg)
	}
}

// Sum hashes r with the given algorithm and returns the lowercase hex digest.
func Sum(alg Algorithm, r io.Reader) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashutil: hash %s: %w", alg, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes hashes b with the given algorithm and returns the lowercase hex digest.
func SumBytes(alg Algorithm, b []byte) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HMACSHA256 computes an HMAC-SHA256 over data keyed by key, returned as
// lowercase hex.
func HMACSHA256(key, data []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 reports whether sig (lowercase hex) is the correct
// HMAC-SHA256 of data under key, using a constant-time comparison.
func VerifyHMACSHA256(key, data []byte, sig string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hmac.Equal(mac.Sum(nil), want)
}
