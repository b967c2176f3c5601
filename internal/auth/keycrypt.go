// Package auth — credential sealing.
//
// The Gemini API key a user saves has to be *recoverable*: every analysis
// request needs the plaintext to authenticate against the completion
// endpoint. So unlike a password (one-way bcrypt), the key is sealed with
// authenticated symmetric encryption under a server-held secret and
// unsealed per request. A database dump alone does not leak usable keys;
// an attacker needs the server secret too.
//
// WHY ChaCha20-Poly1305?
// It's an AEAD: confidentiality and tamper-detection in one primitive, no
// separate MAC to get wrong. The extended-nonce variant (XChaCha20) takes
// a 24-byte random nonce, which is large enough that generating one per
// seal with crypto/rand is safe without any counter bookkeeping.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyCrypt seals and unseals credential strings.
type KeyCrypt struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewKeyCrypt derives the sealing key from the configured server secret.
//
// The secret is operator-supplied text of arbitrary length (like the JWT
// secret), so it's hashed down to the 32 bytes the cipher wants rather
// than used directly.
func NewKeyCrypt(secret string) (*KeyCrypt, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: credential secret must be at least 16 characters")
	}

	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("auth: creating cipher: %w", err)
	}

	return &KeyCrypt{aead: aead}, nil
}

// Seal encrypts a plaintext credential. The random nonce is prepended to
// the ciphertext so the output is a single self-contained blob, ready to
// store in one database column.
func (k *KeyCrypt) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("auth: generating nonce: %w", err)
	}

	return k.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Unseal decrypts a blob produced by Seal. Fails if the blob was truncated,
// tampered with, or sealed under a different secret.
func (k *KeyCrypt) Unseal(sealed []byte) (string, error) {
	if len(sealed) < k.aead.NonceSize() {
		return "", errors.New("auth: sealed credential is too short")
	}

	nonce, ciphertext := sealed[:k.aead.NonceSize()], sealed[k.aead.NonceSize():]
	plaintext, err := k.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("auth: unsealing credential: %w", err)
	}

	return string(plaintext), nil
}
