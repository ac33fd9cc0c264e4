package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"
)

func TestFingerprintStable(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer id.Destroy()

	fp := id.Fingerprint()
	if len(fp) != FingerprintSize*2 {
		t.Fatalf("unexpected fingerprint length %d", len(fp))
	}
	if fp != Fingerprint(id.PublicKey()) {
		t.Fatalf("Fingerprint mismatch")
	}

	parsed, err := ParsePublicKeyHex(hex.EncodeToString(id.PublicKey()))
	if err != nil {
		t.Fatalf("ParsePublicKeyHex: %v", err)
	}
	if !bytes.Equal(parsed, id.PublicKey()) {
		t.Fatalf("ParsePublicKeyHex mismatch")
	}
	if _, err := ParsePublicKeyHex("abcd"); err == nil {
		t.Fatalf("expected error for short key")
	}
}

func TestSignVerify(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer id.Destroy()

	msg := []byte("hello")
	sig, err := id.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !Verify(id.PublicKey(), msg, sig) {
		t.Fatalf("signature verification failed")
	}
	if Verify(id.PublicKey(), []byte("tampered"), sig) {
		t.Fatalf("expected verification to fail for tampered message")
	}

	id2, _ := Generate()
	defer id2.Destroy()
	if Verify(id2.PublicKey(), msg, sig) {
		t.Fatalf("expected verification to fail with different public key")
	}
	if Verify(id.PublicKey()[:31], msg, sig) {
		t.Fatalf("expected verification to fail with short public key")
	}
	if Verify(id.PublicKey(), msg, sig[:10]) {
		t.Fatalf("expected verification to fail with short signature")
	}
}

func TestFromPrivateKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	id, err := FromPrivateKey(priv)
	if err != nil {
		t.Fatalf("FromPrivateKey: %v", err)
	}
	defer id.Destroy()
	if !bytes.Equal(id.PublicKey(), pub) {
		t.Fatalf("public key mismatch")
	}
	if !bytes.Equal(priv, make([]byte, len(priv))) {
		t.Fatalf("caller's private key was not wiped")
	}
	if _, err := FromPrivateKey(make([]byte, 10)); err != ErrInvalidPrivateKey {
		t.Fatalf("expected ErrInvalidPrivateKey, got %v", err)
	}
}

func TestForkSharesSigningKey(t *testing.T) {
	parent, _ := Generate()
	defer parent.Destroy()

	fork, err := parent.Fork()
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if !bytes.Equal(fork.PublicKey(), parent.PublicKey()) {
		t.Fatalf("fork has a different signing key")
	}
	if fork.ExchangePublic() == parent.ExchangePublic() {
		t.Fatalf("fork reused the parent's exchange key")
	}

	fork.Destroy()
	if !fork.Destroyed() {
		t.Fatalf("fork not destroyed")
	}
	if _, err := fork.Sign([]byte("x")); err != ErrDestroyed {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
	if _, err := parent.Sign([]byte("x")); err != nil {
		t.Fatalf("parent unusable after fork destroyed: %v", err)
	}
}

func TestDeriveRootAgrees(t *testing.T) {
	alice, _ := Generate()
	defer alice.Destroy()
	bob, _ := Generate()
	defer bob.Destroy()

	alicePub, bobPub := alice.ExchangePublic(), bob.ExchangePublic()
	rootA, err := alice.DeriveRoot(bobPub)
	if err != nil {
		t.Fatalf("DeriveRoot alice: %v", err)
	}
	defer rootA.Destroy()
	rootB, err := bob.DeriveRoot(alicePub)
	if err != nil {
		t.Fatalf("DeriveRoot bob: %v", err)
	}
	defer rootB.Destroy()

	if rootA.Len() != RootSecretSize {
		t.Fatalf("unexpected root length %d", rootA.Len())
	}
	if !bytes.Equal(rootA.Bytes(), rootB.Bytes()) {
		t.Fatalf("root secrets differ")
	}
	if _, err := alice.DeriveRoot(bobPub); err != ErrExchangeConsumed {
		t.Fatalf("expected ErrExchangeConsumed, got %v", err)
	}
}

func TestDeriveRootRejectsLowOrder(t *testing.T) {
	id, _ := Generate()
	defer id.Destroy()
	if _, err := id.DeriveRoot([32]byte{}); err == nil {
		t.Fatalf("expected error for all-zero peer key")
	}
}
