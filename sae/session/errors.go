package session

import (
	"errors"

	"github.com/TheusHen/sae/sae/crypto"
	"github.com/TheusHen/sae/sae/crypto/ratchet"
	"github.com/TheusHen/sae/sae/padding"
	"github.com/TheusHen/sae/sae/protocol"
	"github.com/TheusHen/sae/sae/replay"
)

var (
	ErrTerminated         = errors.New("session: terminated")
	ErrNotEstablished     = errors.New("session: not established")
	ErrHandshakeState     = errors.New("session: unexpected handshake message")
	ErrReflectedHandshake = errors.New("session: peer echoed our exchange key")
	ErrPeerMismatch       = errors.New("session: peer identity does not match invite")
	ErrTooManyFailures    = errors.New("session: too many consecutive failures")
	ErrTransport          = errors.New("session: transport failure")
	ErrClosed             = errors.New("session: closed")
)

// Kind groups errors by how a session reacts to them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAuth: handshake authentication failed. Fatal.
	KindAuth
	// KindRatchet: no key for the frame. Dropped, escalates on repeat.
	KindRatchet
	// KindReplay: stale, future-dated or repeated frame. Dropped.
	KindReplay
	// KindPadding: oversize or corrupt message. Rejected.
	KindPadding
	// KindCrypto: frame failed authentication. Dropped, escalates on repeat.
	KindCrypto
	// KindTransport: the underlying connection failed. Fatal.
	KindTransport
	// KindSession: lifecycle misuse or a dead session.
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRatchet:
		return "ratchet"
	case KindReplay:
		return "replay"
	case KindPadding:
		return "padding"
	case KindCrypto:
		return "crypto"
	case KindTransport:
		return "transport"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

// Classify maps err onto the error taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, protocol.ErrInvalidSignature),
		errors.Is(err, protocol.ErrTokenMismatch),
		errors.Is(err, crypto.ErrInvalidPublicKey),
		errors.Is(err, ErrReflectedHandshake),
		errors.Is(err, ErrPeerMismatch):
		return KindAuth
	case errors.Is(err, ErrTooManyFailures),
		errors.Is(err, ErrTerminated),
		errors.Is(err, ErrNotEstablished),
		errors.Is(err, ErrHandshakeState),
		errors.Is(err, ErrClosed),
		errors.Is(err, ratchet.ErrCounterExhausted),
		errors.Is(err, ratchet.ErrChainDestroyed):
		return KindSession
	case errors.Is(err, ratchet.ErrWindowExceeded),
		errors.Is(err, ratchet.ErrUnknownOrReusedKey):
		return KindRatchet
	case errors.Is(err, replay.ErrFutureTimestamp),
		errors.Is(err, replay.ErrExpired),
		errors.Is(err, replay.ErrAlreadyReceived):
		return KindReplay
	case errors.Is(err, padding.ErrMessageTooLarge),
		errors.Is(err, padding.ErrLengthOverflow),
		errors.Is(err, protocol.ErrMalformedFrame),
		errors.Is(err, protocol.ErrMalformedHandshake):
		return KindPadding
	case errors.Is(err, crypto.ErrAuthFailed):
		return KindCrypto
	default:
		return KindUnknown
	}
}

// Recoverable reports whether the session survives err: the offending message
// is dropped and processing continues.
func Recoverable(err error) bool {
	switch Classify(err) {
	case KindRatchet, KindReplay, KindPadding, KindCrypto:
		return true
	default:
		return false
	}
}

// UserMessage renders err for display.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindAuth:
		return "authentication failed — possible interception"
	case KindTransport:
		return "connection lost"
	case KindReplay:
		return "message rejected: replayed or out of date"
	case KindPadding:
		return "message rejected: malformed or too large"
	case KindRatchet, KindCrypto:
		return "message rejected: could not be decrypted"
	case KindSession:
		return "session closed"
	default:
		if err == nil {
			return ""
		}
		return err.Error()
	}
}
