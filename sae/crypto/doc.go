// Package crypto provides the primitives SAE sessions are built from.
//
// Design goals:
//   - Fast on commodity hardware (no AES-NI required)
//   - AEAD encryption via ChaCha20-Poly1305 (RFC 8439) with a fresh random nonce per message
//   - Ephemeral X25519 key agreement
//   - Key derivation via HKDF-SHA256
//   - Secrets held in secret.Buffer and wiped after use
package crypto
