package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/TheusHen/sae/sae/secret"
)

// DeriveKey derives a key of the specified length using HKDF-SHA256.
// salt can be nil (uses zero salt), info provides context binding.
func DeriveKey(ikm, salt, info []byte, length int) (*secret.Buffer, error) {
	hk := hkdf.New(sha256.New, ikm, salt, info)
	key := secret.New(length)
	if _, err := io.ReadFull(hk, key.Bytes()); err != nil {
		key.Destroy()
		return nil, err
	}
	return key, nil
}
