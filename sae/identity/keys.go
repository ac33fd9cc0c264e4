package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/TheusHen/sae/sae/crypto"
	"github.com/TheusHen/sae/sae/secret"
)

const (
	// RootSecretSize is the length of the secret derived from the exchange.
	RootSecretSize = 32

	rootSecretInfo = "sae-root-secret"
)

var (
	ErrDestroyed         = errors.New("identity: key material destroyed")
	ErrExchangeConsumed  = errors.New("identity: exchange key already consumed")
	ErrInvalidPrivateKey = errors.New("identity: invalid Ed25519 private key size")
)

// Identity holds an Ed25519 signing keypair and an X25519 exchange keypair.
// It is not safe for concurrent use.
type Identity struct {
	publicKey  ed25519.PublicKey
	signingKey *secret.Buffer
	exchange   crypto.X25519KeyPair
}

// Generate creates a fresh signing keypair and a fresh exchange keypair.
// It fails only when the system entropy source does.
func Generate() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newIdentity(pub, secret.Take(priv))
}

// FromPrivateKey wraps an existing Ed25519 private key. The caller's slice is
// wiped.
func FromPrivateKey(privateKey []byte) (*Identity, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivateKey
	}
	pub := ed25519.PrivateKey(privateKey).Public().(ed25519.PublicKey)
	return newIdentity(append(ed25519.PublicKey(nil), pub...), secret.Take(privateKey))
}

func newIdentity(pub ed25519.PublicKey, signingKey *secret.Buffer) (*Identity, error) {
	kx, err := crypto.GenerateX25519()
	if err != nil {
		signingKey.Destroy()
		return nil, err
	}
	return &Identity{publicKey: pub, signingKey: signingKey, exchange: kx}, nil
}

// Fork returns a copy of the identity that shares the signing key but owns a
// new exchange keypair. Destroying the fork leaves the parent intact.
func (id *Identity) Fork() (*Identity, error) {
	if id.signingKey.Destroyed() {
		return nil, ErrDestroyed
	}
	return newIdentity(append(ed25519.PublicKey(nil), id.publicKey...), id.signingKey.Clone())
}

// PublicKey returns a copy of the Ed25519 public key.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), id.publicKey...)
}

// ExchangePublic returns the X25519 public key to be signed in the handshake.
func (id *Identity) ExchangePublic() [32]byte {
	return id.exchange.PublicKey
}

// Fingerprint returns the short hex fingerprint of the signing key.
func (id *Identity) Fingerprint() string {
	return Fingerprint(id.publicKey)
}

func (id *Identity) Sign(message []byte) ([]byte, error) {
	if id.signingKey.Destroyed() {
		return nil, ErrDestroyed
	}
	return ed25519.Sign(ed25519.PrivateKey(id.signingKey.Bytes()), message), nil
}

// Verify reports whether signature is a valid Ed25519 signature of message by
// publicKey. Malformed keys or signatures never verify.
func Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// DeriveRoot derives the session root secret from the local exchange key and
// the peer's exchange public key, then wipes the local exchange private key.
func (id *Identity) DeriveRoot(peerExchangePublic [32]byte) (*secret.Buffer, error) {
	if id.exchange.PrivateKey.Destroyed() {
		return nil, ErrExchangeConsumed
	}
	root, err := DeriveRootSecret(id.exchange.PrivateKey, peerExchangePublic)
	id.exchange.Destroy()
	return root, err
}

// DeriveRootSecret runs X25519 followed by HKDF-SHA256. The raw shared secret
// is destroyed before returning.
func DeriveRootSecret(localExchangePrivate *secret.Buffer, peerExchangePublic [32]byte) (*secret.Buffer, error) {
	shared, err := crypto.ECDH(localExchangePrivate, peerExchangePublic)
	if err != nil {
		return nil, err
	}
	defer shared.Destroy()
	return crypto.DeriveKey(shared.Bytes(), nil, []byte(rootSecretInfo), RootSecretSize)
}

// Destroyed reports whether the signing key has been wiped.
func (id *Identity) Destroyed() bool {
	return id.signingKey.Destroyed()
}

// Destroy wipes the signing and exchange private keys.
func (id *Identity) Destroy() {
	if id == nil {
		return
	}
	id.signingKey.Destroy()
	id.exchange.Destroy()
}
