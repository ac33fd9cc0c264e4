// Package ratchet provides per-message forward secrecy via symmetric key
// ratcheting.
//
// Every message advances the chain key with HMAC-SHA256:
//
//	chainKey' = HMAC(chainKey, "chain")
//	messageKey = HMAC(chainKey, "msg")
//
// and the old chain key is wiped, so a compromised chain key cannot recover
// earlier message keys.
//
// This is a single-ratchet (symmetric) design. A session uses two chains, a
// Sender for its own direction and a Receiver for the peer's. There is no
// Diffie-Hellman re-keying step.
//
// The Receiver tolerates reordering within MaxSkip messages by caching the
// keys it skips. Receiver state only changes once a frame authenticates.
package ratchet
