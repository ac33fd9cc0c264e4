package secret

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"runtime"
)

// ErrDestroyed is returned by callers that find a wiped buffer where live key
// material was expected.
var ErrDestroyed = errors.New("secret: buffer destroyed")

// Buffer owns a fixed-size slice of secret bytes.
// A Buffer is not safe for concurrent use; its owner serialises access.
type Buffer struct {
	b         []byte
	destroyed bool
}

// New returns a zeroed buffer of n bytes.
func New(n int) *Buffer {
	return &Buffer{b: make([]byte, n)}
}

// Take copies src into a new buffer and wipes src.
func Take(src []byte) *Buffer {
	buf := New(len(src))
	copy(buf.b, src)
	Wipe(src)
	return buf
}

// Random returns a buffer of n bytes read from crypto/rand.
func Random(n int) (*Buffer, error) {
	buf := New(n)
	if _, err := io.ReadFull(rand.Reader, buf.b); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// Bytes exposes the underlying secret. The slice must not be retained past
// the buffer's lifetime. It returns nil once the buffer is destroyed.
func (s *Buffer) Bytes() []byte {
	if s == nil || s.destroyed {
		return nil
	}
	return s.b
}

// Len returns the buffer size, or 0 after Destroy.
func (s *Buffer) Len() int {
	if s == nil || s.destroyed {
		return 0
	}
	return len(s.b)
}

// Clone returns an independent copy. Cloning a destroyed buffer yields a
// destroyed buffer.
func (s *Buffer) Clone() *Buffer {
	if s == nil || s.destroyed {
		return &Buffer{destroyed: true}
	}
	out := New(len(s.b))
	copy(out.b, s.b)
	return out
}

// Destroyed reports whether Destroy has been called.
func (s *Buffer) Destroyed() bool {
	return s == nil || s.destroyed
}

// Destroy overwrites the secret and marks the buffer unusable.
// It is safe to call more than once and on a nil buffer.
func (s *Buffer) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	Wipe(s.b)
	s.b = nil
	s.destroyed = true
}

// Wipe zeroes b in place.
//
//go:noinline
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
	runtime.KeepAlive(&b)
}
