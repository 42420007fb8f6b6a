package hashutil

import (
	"encoding/hex"
	"testing"
)

func TestSumBytesKnownVectors(t *testing.T) {
	cases := []struct {
		alg  Algorithm
		want string
	}{
		{SHA256, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{SHA224, "ea09ae9cc6768c50fcee903ed054556e5bfc8347907f12598aa24193"},
	}

	for _, c := range cases {
		got, err := SumBytes(c.alg, []byte("hello"))
		if err != nil {
			t.Fatalf("SumBytes(%s): %v", c.alg, err)
		}
		if got != c.want {
			t.Errorf("SumBytes(%s) = %s, want %s", c.alg, got, c.want)
		}
	}
}

func TestSumUnknownAlgorithm(t *testing.T) {
	if _, err := SumBytes("SHA1", nil); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}

func TestHMACRoundTrip(t *testing.T) {
	key := []byte("secret")
	data := []byte("payload")

	sig := HMACSHA256(key, data)
	if !VerifyHMACSHA256(key, data, sig) {
		t.Fatal("expected signature to verify")
	}
	if VerifyHMACSHA256(key, []byte("tampered"), sig) {
		t.Fatal("expected signature mismatch for tampered data")
	}
	if _, err := hex.DecodeString(sig); err != nil || len(sig) != 64 {
		t.Fatal("sig should be a 64-character hex string")
	}
}
