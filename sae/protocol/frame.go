package protocol

import (
	"encoding/binary"
	"errors"
)

const (
	NonceSize  = 12
	HeaderSize = 12
	TagSize    = 16

	// MinFrameSize is a frame with an empty ciphertext.
	MinFrameSize = NonceSize + HeaderSize + TagSize
)

var ErrMalformedFrame = errors.New("protocol: malformed frame")

// Header is authenticated but not encrypted.
type Header struct {
	Counter   uint32
	Timestamp int64 // unix seconds
}

// Bytes returns the 12-byte big-endian encoding used as associated data.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[:4], h.Counter)
	binary.BigEndian.PutUint64(b[4:], uint64(h.Timestamp))
	return b
}

// Frame is an encrypted message.
// Format:
//
//	12 bytes: nonce
//	4 bytes: counter (big endian)
//	8 bytes: unix timestamp (big endian)
//	N bytes: ciphertext
//	16 bytes: tag
type Frame struct {
	Nonce      [NonceSize]byte
	Header     Header
	Ciphertext []byte
	Tag        [TagSize]byte
}

func (f Frame) Encode() []byte {
	out := make([]byte, 0, MinFrameSize+len(f.Ciphertext))
	out = append(out, f.Nonce[:]...)
	out = append(out, f.Header.Bytes()...)
	out = append(out, f.Ciphertext...)
	out = append(out, f.Tag[:]...)
	return out
}

// DecodeFrame parses b. The ciphertext is copied.
func DecodeFrame(b []byte) (Frame, error) {
	if len(b) < MinFrameSize {
		return Frame{}, ErrMalformedFrame
	}
	var f Frame
	copy(f.Nonce[:], b[:NonceSize])
	hdr := b[NonceSize : NonceSize+HeaderSize]
	f.Header.Counter = binary.BigEndian.Uint32(hdr[:4])
	f.Header.Timestamp = int64(binary.BigEndian.Uint64(hdr[4:]))
	ct := b[NonceSize+HeaderSize : len(b)-TagSize]
	f.Ciphertext = append([]byte(nil), ct...)
	copy(f.Tag[:], b[len(b)-TagSize:])
	return f, nil
}
