package crypto_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mizan-app/mizan/server/internal/zakat/crypto"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestRoundTrip(t *testing.T) {
	c, err := crypto.NewAEADCipher(testKey())
	if err != nil {
		t.Fatalf("NewAEADCipher: %v", err)
	}

	reason := "Fixed a data entry error"
	ct, err := c.Encrypt(reason)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(string(ct), reason) {
		t.Fatal("ciphertext contains plaintext")
	}

	got, err := c.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != reason {
		t.Errorf("expected %q, got %q", reason, got)
	}
}

func TestEncrypt_NonceIsRandomized(t *testing.T) {
	c, _ := crypto.NewAEADCipher(testKey())

	a, err := c.Encrypt("same plaintext, ten+ chars")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt("same plaintext, ten+ chars")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext must differ")
	}
}

func TestNewAEADCipher_RejectsBadKeyLength(t *testing.T) {
	if _, err := crypto.NewAEADCipher([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestNewAEADCipherHex(t *testing.T) {
	c, err := crypto.NewAEADCipherHex(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("NewAEADCipherHex: %v", err)
	}
	if c == nil {
		t.Fatal("expected cipher")
	}

	if _, err := crypto.NewAEADCipherHex("not hex"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestDecrypt_TruncatedCiphertext(t *testing.T) {
	c, _ := crypto.NewAEADCipher(testKey())

	_, err := c.Decrypt([]byte{0x01, 0x02})
	if !errors.Is(err, crypto.ErrCiphertextTooShort) {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	c1, _ := crypto.NewAEADCipher(testKey())
	c2, _ := crypto.NewAEADCipher(bytes.Repeat([]byte{0x43}, 32))

	ct, err := c1.Encrypt("a perfectly valid reason")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c2.Decrypt(ct); err == nil {
		t.Error("expected authentication failure with the wrong key")
	}
}
