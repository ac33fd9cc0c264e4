// Package secret holds key material in buffers that are overwritten on release.
//
// Every field in SAE that carries a private key, root secret, chain key or
// message key is a *Buffer. Owners call Destroy on every exit path, usually
// with defer, so secrets do not outlive the operation that needed them.
package secret
