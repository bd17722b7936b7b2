// Package crypto seals credentials stored in tenant settings.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt is returned when a ciphertext was not sealed with the current key
var ErrDecrypt = errors.New("secret could not be decrypted")

// SecretBoxSealer encrypts with NaCl secretbox (XSalsa20-Poly1305).
// Ciphertexts are base64(nonce || box).
type SecretBoxSealer struct {
	key  [32]byte
	rand io.Reader
}

// NewSecretBoxSealer creates a sealer with a 32 byte key
func NewSecretBoxSealer(key [32]byte) *SecretBoxSealer {
	return &SecretBoxSealer{key: key, rand: rand.Reader}
}

// Seal encrypts plaintext under a fresh random nonce
func (s *SecretBoxSealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal
func (s *SecretBoxSealer) Open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
