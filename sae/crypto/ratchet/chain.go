package ratchet

import (
	"errors"
	"math"
	"sync"

	"github.com/TheusHen/sae/sae/crypto"
	"github.com/TheusHen/sae/sae/protocol"
	"github.com/TheusHen/sae/sae/secret"
)

var (
	ErrWindowExceeded     = errors.New("ratchet: counter beyond skip window")
	ErrUnknownOrReusedKey = errors.New("ratchet: unknown or reused message key")
	ErrCounterExhausted   = errors.New("ratchet: send counter exhausted")
	ErrChainDestroyed     = errors.New("ratchet: chain destroyed")
)

const (
	// MaxSkip is how far ahead of the expected counter a frame may be.
	MaxSkip = 100
	// SkippedCacheSize bounds the number of cached skipped message keys.
	SkippedCacheSize = 100
)

// Sender is the sending half of a session. Each Seal consumes one chain step.
type Sender struct {
	mu        sync.Mutex
	chainKey  *secret.Buffer
	counter   uint32
	exhausted bool
}

// NewSender takes ownership of chainKey.
func NewSender(chainKey *secret.Buffer) (*Sender, error) {
	if chainKey.Len() != ChainKeySize {
		return nil, ErrInvalidChainKey
	}
	return &Sender{chainKey: chainKey}, nil
}

// Seal advances the chain, stamps the counter and timestamp into the header
// and encrypts plaintext under the message key.
func (s *Sender) Seal(plaintext []byte, timestamp int64) (protocol.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainKey.Destroyed() {
		return protocol.Frame{}, ErrChainDestroyed
	}
	if s.exhausted {
		return protocol.Frame{}, ErrCounterExhausted
	}

	next, msgKey := derive(s.chainKey.Bytes())
	defer msgKey.Destroy()

	hdr := protocol.Header{Counter: s.counter, Timestamp: timestamp}
	nonce, ct, tag, err := crypto.Encrypt(msgKey.Bytes(), hdr.Bytes(), plaintext)
	if err != nil {
		next.Destroy()
		return protocol.Frame{}, err
	}

	s.chainKey.Destroy()
	s.chainKey = next
	if s.counter == math.MaxUint32 {
		s.exhausted = true
	} else {
		s.counter++
	}

	f := protocol.Frame{Header: hdr, Ciphertext: ct}
	copy(f.Nonce[:], nonce)
	copy(f.Tag[:], tag)
	return f, nil
}

// Counter returns the counter the next frame will carry.
func (s *Sender) Counter() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

func (s *Sender) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chainKey.Destroy()
}

// Receiver is the receiving half of a session. It accepts frames up to
// MaxSkip ahead of the expected counter in any order.
type Receiver struct {
	mu       sync.Mutex
	chainKey *secret.Buffer
	next     uint64 // counter of the next in-order frame
	skipped  *skippedCache
}

// NewReceiver takes ownership of chainKey.
func NewReceiver(chainKey *secret.Buffer) (*Receiver, error) {
	if chainKey.Len() != ChainKeySize {
		return nil, ErrInvalidChainKey
	}
	return &Receiver{chainKey: chainKey, skipped: newSkippedCache(SkippedCacheSize)}, nil
}

// Open authenticates and decrypts f. Receiver state is committed only when
// decryption succeeds; on any error every candidate key is destroyed and the
// chain is left as it was.
func (r *Receiver) Open(f protocol.Frame) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.chainKey.Destroyed() {
		return nil, ErrChainDestroyed
	}

	counter := uint64(f.Header.Counter)
	switch {
	case counter == r.next:
		next, msgKey := derive(r.chainKey.Bytes())
		pt, err := open(msgKey, f)
		msgKey.Destroy()
		if err != nil {
			next.Destroy()
			return nil, err
		}
		r.chainKey.Destroy()
		r.chainKey = next
		r.next++
		return pt, nil

	case counter > r.next:
		if counter-r.next > MaxSkip {
			return nil, ErrWindowExceeded
		}
		ck := r.chainKey.Clone()
		pending := make([]*secret.Buffer, 0, counter-r.next)
		for i := r.next; i < counter; i++ {
			next, msgKey := derive(ck.Bytes())
			ck.Destroy()
			ck = next
			pending = append(pending, msgKey)
		}
		next, msgKey := derive(ck.Bytes())
		ck.Destroy()
		pt, err := open(msgKey, f)
		msgKey.Destroy()
		if err != nil {
			next.Destroy()
			for _, k := range pending {
				k.Destroy()
			}
			return nil, err
		}
		for i, k := range pending {
			r.skipped.put(uint32(r.next+uint64(i)), k)
		}
		r.chainKey.Destroy()
		r.chainKey = next
		r.next = counter + 1
		return pt, nil

	default:
		msgKey, ok := r.skipped.get(f.Header.Counter)
		if !ok {
			return nil, ErrUnknownOrReusedKey
		}
		pt, err := open(msgKey, f)
		if err != nil {
			return nil, err
		}
		r.skipped.remove(f.Header.Counter)
		return pt, nil
	}
}

// Consumed reports whether a frame with counter can no longer be opened:
// it lies below the expected counter and its key is not cached.
func (r *Receiver) Consumed(counter uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(counter) < r.next && !r.skipped.has(counter)
}

// Next returns the counter of the next in-order frame.
func (r *Receiver) Next() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// Skipped returns the number of cached skipped keys.
func (r *Receiver) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped.len()
}

func (r *Receiver) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chainKey.Destroy()
	r.skipped.destroy()
}

func open(msgKey *secret.Buffer, f protocol.Frame) ([]byte, error) {
	return crypto.Decrypt(msgKey.Bytes(), f.Nonce[:], f.Header.Bytes(), f.Ciphertext, f.Tag[:])
}
