package crypt

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c := New("12345678901234567890123456789012")

	for _, msg := range []string{
		"hello",
		"",
		"a message exactly 16b",
		strings.Repeat("long ", 200),
		"unicode ✓ émojis 🙂",
	} {
		enc, err := c.Encrypt(msg)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", msg, err)
		}
		if enc == msg && msg != "" {
			t.Fatalf("Encrypt(%q) did not change content", msg)
		}
		got, err := c.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != msg {
			t.Errorf("round trip = %q, want %q", got, msg)
		}
	}
}

func TestEncryptUniqueIV(t *testing.T) {
	c := New("secret")
	a, _ := c.Encrypt("same message")
	b, _ := c.Encrypt("same message")
	if a == b {
		t.Error("two encryptions of the same message produced identical output")
	}
}

func TestDecryptMalformed(t *testing.T) {
	c := New("secret")
	for _, in := range []string{
		"",
		"nocolon",
		"zz:zz",
		"deadbeef:deadbeef", // iv too short
		"00000000000000000000000000000000:abc", // ciphertext not block aligned
	} {
		if _, err := c.Decrypt(in); err == nil {
			t.Errorf("Decrypt(%q) succeeded, want error", in)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc, _ := New("key one").Encrypt("classified")
	if got, err := New("key two").Decrypt(enc); err == nil && got == "classified" {
		t.Error("decryption with wrong key recovered plaintext")
	}
}
