// Package session implements the SAE session controller.
//
// A Session moves through
//
//	Uninitiated -> HandshakeSent | HandshakeVerified -> Established -> Terminated
//
// It becomes Established once its own handshake has been sent and the peer's
// has been verified. From then on Send pads, ratchets and encrypts plaintext
// into frames and Receive replay-checks, decrypts and unpads them.
//
// Terminated is final. Every secret is wiped on entry and every later call
// fails with ErrTerminated. Authentication failures during the handshake and
// repeated decryption failures afterwards both terminate the session.
//
// Conn drives a Session over a transport.Transport.
package session
