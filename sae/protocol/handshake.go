package protocol

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TheusHen/sae/sae/identity"
)

const (
	TypeHandshake    = "handshake"
	TypeHandshakeAck = "handshake_ack"

	ExchangeKeySize = 32
)

var (
	ErrInvalidSignature   = errors.New("protocol: invalid handshake signature")
	ErrTokenMismatch      = errors.New("protocol: invite token mismatch")
	ErrMalformedHandshake = errors.New("protocol: malformed handshake")
)

// Handshake binds an ephemeral exchange key to an Ed25519 identity.
// The signature is computed over ExchangeKey alone.
type Handshake struct {
	Type        string `json:"type"`
	ExchangeKey []byte `json:"exchange_key"`
	IdentityKey []byte `json:"identity_key"`
	Signature   []byte `json:"signature"`
	Token       string `json:"token,omitempty"`
}

// BuildHandshake creates the connector's opening message carrying the invite
// token.
func BuildHandshake(id *identity.Identity, token string) (Handshake, error) {
	h, err := build(id, TypeHandshake)
	if err != nil {
		return Handshake{}, err
	}
	h.Token = token
	return h, nil
}

// BuildAck creates the host's reply. Acks never carry a token.
func BuildAck(id *identity.Identity) (Handshake, error) {
	return build(id, TypeHandshakeAck)
}

func build(id *identity.Identity, typ string) (Handshake, error) {
	kx := id.ExchangePublic()
	sig, err := id.Sign(kx[:])
	if err != nil {
		return Handshake{}, err
	}
	return Handshake{
		Type:        typ,
		ExchangeKey: append([]byte(nil), kx[:]...),
		IdentityKey: id.PublicKey(),
		Signature:   sig,
	}, nil
}

// VerifyHandshake checks the signature over the exchange key with the embedded
// identity key, then the invite token. An empty expectedToken skips the token
// check. Malformed key or signature lengths fail as ErrInvalidSignature.
func VerifyHandshake(h Handshake, expectedToken string) error {
	if len(h.ExchangeKey) != ExchangeKeySize ||
		len(h.IdentityKey) != ed25519.PublicKeySize ||
		len(h.Signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !identity.Verify(h.IdentityKey, h.ExchangeKey, h.Signature) {
		return ErrInvalidSignature
	}
	if expectedToken == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(h.Token), []byte(expectedToken)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}

// ExchangeKeyArray returns the exchange key as a fixed array. The handshake
// must have been verified.
func (h Handshake) ExchangeKeyArray() [32]byte {
	var k [32]byte
	copy(k[:], h.ExchangeKey)
	return k
}

// Fingerprint of the sender's identity key.
func (h Handshake) Fingerprint() string {
	return identity.Fingerprint(h.IdentityKey)
}

func EncodeHandshake(h Handshake) ([]byte, error) {
	return json.Marshal(h)
}

func DecodeHandshake(b []byte) (Handshake, error) {
	var h Handshake
	if err := json.Unmarshal(b, &h); err != nil {
		return Handshake{}, fmt.Errorf("%w: %v", ErrMalformedHandshake, err)
	}
	switch h.Type {
	case TypeHandshake, TypeHandshakeAck:
	default:
		return Handshake{}, fmt.Errorf("%w: unknown type %q", ErrMalformedHandshake, h.Type)
	}
	return h, nil
}
