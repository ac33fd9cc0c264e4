// Package padding hides message length by rounding plaintext up to fixed
// bucket sizes before encryption.
package padding

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// PrefixSize is the length of the big-endian length prefix.
	PrefixSize = 4
	// MaxPlaintext is the largest message that fits the largest bucket.
	MaxPlaintext = 4096 - PrefixSize
)

// Buckets lists the padded sizes in ascending order.
var Buckets = [...]int{128, 256, 512, 1024, 2048, 4096}

var (
	ErrMessageTooLarge = errors.New("padding: message too large")
	ErrLengthOverflow  = errors.New("padding: length prefix exceeds buffer")
)

// BucketFor returns the smallest bucket holding n plaintext bytes.
func BucketFor(n int) (int, error) {
	for _, b := range Buckets {
		if n+PrefixSize <= b {
			return b, nil
		}
	}
	return 0, fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, n, MaxPlaintext)
}

// Pad writes len(plaintext) as a 4-byte prefix followed by plaintext and fills
// the rest of the bucket with random bytes.
func Pad(plaintext []byte) ([]byte, error) {
	size, err := BucketFor(len(plaintext))
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	binary.BigEndian.PutUint32(out[:PrefixSize], uint32(len(plaintext)))
	n := copy(out[PrefixSize:], plaintext)
	if _, err := io.ReadFull(rand.Reader, out[PrefixSize+n:]); err != nil {
		return nil, err
	}
	return out, nil
}

// Unpad returns the plaintext inside padded. The result aliases padded.
func Unpad(padded []byte) ([]byte, error) {
	if len(padded) < PrefixSize {
		return nil, ErrLengthOverflow
	}
	n := binary.BigEndian.Uint32(padded[:PrefixSize])
	if uint64(n) > uint64(len(padded)-PrefixSize) {
		return nil, fmt.Errorf("%w: prefix %d, buffer %d", ErrLengthOverflow, n, len(padded))
	}
	return padded[PrefixSize : PrefixSize+int(n)], nil
}
