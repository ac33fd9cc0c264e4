package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// FingerprintSize is the number of SHA-256 bytes shown to users.
const FingerprintSize = 16

// Fingerprint is defined as hex(SHA-256(publicKey)[:16]).
// It is meant for out-of-band comparison between the two parties.
func Fingerprint(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return hex.EncodeToString(sum[:FingerprintSize])
}

// ParsePublicKeyHex decodes a hex encoded Ed25519 public key.
func ParsePublicKeyHex(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.New("identity: invalid public key length")
	}
	return ed25519.PublicKey(b), nil
}
