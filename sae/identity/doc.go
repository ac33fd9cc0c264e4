// Package identity holds the keys a peer proves itself with.
//
// An Identity pairs a long-term Ed25519 signing key with an ephemeral X25519
// exchange key. The exchange key is signed during the handshake and then used
// once to derive the session root secret. Fork gives every session its own
// copy of the signing key and a fresh exchange key, so each session can wipe
// its material independently of the process-wide identity.
package identity
