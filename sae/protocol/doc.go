// Package protocol defines the SAE wire formats.
//
// Three layers are defined here:
//   - Packet: a type byte plus a length-prefixed payload, used by stream transports
//   - Handshake: the signed JSON key-exchange message, one per direction
//   - Frame: the binary encrypted message, nonce ‖ counter ‖ timestamp ‖ ciphertext ‖ tag
package protocol
