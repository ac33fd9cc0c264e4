// Package sae provides ephemeral, authenticated, end-to-end encrypted
// two-party sessions.
//
// Two peers meet through an invite URI carrying the host's identity key and a
// single-use token. A signed X25519 handshake establishes a root secret from
// which each direction derives its own symmetric ratchet. Every message is
// padded to a fixed bucket, encrypted under a fresh per-message key and
// checked against replay on arrival. Nothing is persisted; all keys are wiped
// when a session ends.
//
// Peer combines a transport adapter (QUIC or WebSocket) with session.Conn.
package sae
