package ratchet

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"errors"

	"github.com/TheusHen/sae/sae/crypto"
	"github.com/TheusHen/sae/sae/secret"
)

const (
	// ChainKeySize is the size of chain and message keys.
	ChainKeySize = 32

	chainsInfo = "sae-ratchet-chains"
)

var (
	labelChain = []byte("chain")
	labelMsg   = []byte("msg")
)

var ErrInvalidChainKey = errors.New("ratchet: chain key must be 32 bytes")

// derive computes (nextChainKey, messageKey) without touching chainKey.
func derive(chainKey []byte) (next, msg *secret.Buffer) {
	return mac(chainKey, labelChain), mac(chainKey, labelMsg)
}

func mac(key, label []byte) *secret.Buffer {
	h := hmac.New(sha256.New, key)
	h.Write(label)
	return secret.Take(h.Sum(nil))
}

// Advance consumes chainKey and returns the next chain key together with the
// message key for the current step. chainKey is destroyed.
func Advance(chainKey *secret.Buffer) (next, messageKey *secret.Buffer, err error) {
	if chainKey.Len() != ChainKeySize {
		return nil, nil, ErrInvalidChainKey
	}
	next, messageKey = derive(chainKey.Bytes())
	chainKey.Destroy()
	return next, messageKey, nil
}

// InitialChains splits the root secret into a send and a receive chain key.
// Both parties bind the ordered pair of exchange keys into the derivation; the
// party holding the lexicographically lower exchange key sends on the first
// half, so the two sides always end up with mirrored chains.
func InitialChains(root *secret.Buffer, localExchange, peerExchange [32]byte) (send, recv *secret.Buffer, err error) {
	if root.Destroyed() {
		return nil, nil, secret.ErrDestroyed
	}
	lower, higher := localExchange, peerExchange
	localIsLower := bytes.Compare(localExchange[:], peerExchange[:]) < 0
	if !localIsLower {
		lower, higher = peerExchange, localExchange
	}
	info := make([]byte, 0, len(chainsInfo)+64)
	info = append(info, chainsInfo...)
	info = append(info, lower[:]...)
	info = append(info, higher[:]...)

	okm, err := crypto.DeriveKey(root.Bytes(), nil, info, 2*ChainKeySize)
	if err != nil {
		return nil, nil, err
	}
	defer okm.Destroy()

	first := secret.New(ChainKeySize)
	second := secret.New(ChainKeySize)
	copy(first.Bytes(), okm.Bytes()[:ChainKeySize])
	copy(second.Bytes(), okm.Bytes()[ChainKeySize:])
	if localIsLower {
		return first, second, nil
	}
	return second, first, nil
}
