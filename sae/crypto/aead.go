package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSize
	TagSize   = chacha20poly1305.Overhead
)

var (
	ErrAuthFailed     = errors.New("crypto: authentication failed")
	ErrInvalidKeySize = errors.New("crypto: invalid key size for ChaCha20-Poly1305")
)

// Encrypt seals plaintext under key, authenticating header as associated data.
// The nonce is read from crypto/rand on every call; it is never derived from a
// counter, so restarting a process with the same key cannot repeat a nonce.
func Encrypt(key, header, plaintext []byte) (nonce, ciphertext, tag []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, nil, ErrInvalidKeySize
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, err
	}
	sealed := aead.Seal(nil, nonce, plaintext, header)
	split := len(sealed) - TagSize
	return nonce, sealed[:split], sealed[split:], nil
}

// Decrypt verifies and opens ciphertext. Any mismatch of key, nonce, header,
// ciphertext or tag, including truncation, yields ErrAuthFailed.
func Decrypt(key, nonce, header, ciphertext, tag []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return nil, ErrAuthFailed
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
