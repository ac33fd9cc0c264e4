// Package invite issues and parses SAE invitations.
//
// A host hands out an invite URI of the form
//
//	sae://<identity-public-key-hex>@host:port?token=<hex>
//
// The token is single use and expires after a short TTL. The public key lets
// the connector compare the host's fingerprint once the handshake completes.
package invite
