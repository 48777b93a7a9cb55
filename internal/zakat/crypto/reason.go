// Package crypto is the encryption boundary for unlock reasons.  The
// lifecycle service validates plaintext length, calls Encrypt, and only the
// ciphertext ever reaches a store.  Decryption happens at the read boundary
// for operators; the ledger's integrity logic never looks inside.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ReasonCipher encrypts and decrypts unlock-reason text.
type ReasonCipher interface {
	Encrypt(plaintext string) ([]byte, error)
	Decrypt(ciphertext []byte) (string, error)
}

var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// AEADCipher is a ReasonCipher backed by ChaCha20-Poly1305 with a random
// nonce prepended to each ciphertext.
type AEADCipher struct {
	key []byte
}

// NewAEADCipher builds a cipher from a 32-byte key.
func NewAEADCipher(key []byte) (*AEADCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("unlock key must be %d bytes, got %d",
			chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &AEADCipher{key: k}, nil
}

// NewAEADCipherHex builds a cipher from a hex-encoded 32-byte key, the form
// the key takes in configuration.
func NewAEADCipherHex(hexKey string) (*AEADCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode unlock key: %w", err)
	}
	return NewAEADCipher(key)
}

func (c *AEADCipher) Encrypt(plaintext string) ([]byte, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (c *AEADCipher) Decrypt(ciphertext []byte) (string, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return "", err
	}
	if len(ciphertext) < aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	return string(plain), nil
}
