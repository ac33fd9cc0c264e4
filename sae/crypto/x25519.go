package crypto

import (
	"errors"

	"golang.org/x/crypto/curve25519"

	"github.com/TheusHen/sae/sae/secret"
)

// X25519KeyPair represents an ephemeral ECDH keypair.
type X25519KeyPair struct {
	PublicKey  [32]byte
	PrivateKey *secret.Buffer
}

var (
	ErrInvalidPublicKey = errors.New("crypto: invalid X25519 public key")
)

// GenerateX25519 generates a new ephemeral X25519 keypair.
func GenerateX25519() (X25519KeyPair, error) {
	priv, err := secret.Random(curve25519.ScalarSize)
	if err != nil {
		return X25519KeyPair{}, err
	}
	// Clamp private key per RFC 7748
	k := priv.Bytes()
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64

	pub, err := curve25519.X25519(k, curve25519.Basepoint)
	if err != nil {
		priv.Destroy()
		return X25519KeyPair{}, err
	}
	kp := X25519KeyPair{PrivateKey: priv}
	copy(kp.PublicKey[:], pub)
	return kp, nil
}

// Destroy wipes the private half.
func (kp *X25519KeyPair) Destroy() {
	kp.PrivateKey.Destroy()
}

// ECDH computes the raw X25519 shared secret. The result must be passed
// through a KDF and destroyed by the caller.
func ECDH(privateKey *secret.Buffer, peerPublicKey [32]byte) (*secret.Buffer, error) {
	if privateKey.Len() != curve25519.ScalarSize {
		return nil, errors.New("crypto: X25519 private key unavailable")
	}
	var zero [32]byte
	if peerPublicKey == zero {
		return nil, ErrInvalidPublicKey
	}
	shared, err := curve25519.X25519(privateKey.Bytes(), peerPublicKey[:])
	if err != nil {
		// curve25519 rejects low-order points that produce an all-zero output.
		return nil, ErrInvalidPublicKey
	}
	return secret.Take(shared), nil
}
