package session

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TheusHen/sae/sae/crypto"
	"github.com/TheusHen/sae/sae/crypto/ratchet"
	"github.com/TheusHen/sae/sae/identity"
	"github.com/TheusHen/sae/sae/log"
	"github.com/TheusHen/sae/sae/padding"
	"github.com/TheusHen/sae/sae/protocol"
	"github.com/TheusHen/sae/sae/replay"
	"github.com/TheusHen/sae/sae/secret"
)

// Session is one end of an SAE conversation. It is safe for concurrent use:
// one goroutine may Send while another Receives.
type Session struct {
	// mu guards the lifecycle. Message processing holds the read side,
	// state transitions hold the write side.
	mu       sync.RWMutex
	state    State
	sent     bool
	verified bool
	termErr  error

	id            uuid.UUID
	local         *identity.Identity
	localExchange [32]byte
	localFP       string
	peerFP        string
	peerExchange  [32]byte

	token         string
	expectedToken string
	redeem        func(string) error
	expectedPeer  []byte

	root     *secret.Buffer
	sender   *ratchet.Sender
	receiver *ratchet.Receiver

	guard      *replay.Guard
	replayOpts []replay.Option
	now        func() time.Time

	failures    atomic.Int32
	maxFailures int32

	logger *zap.Logger
}

// New creates a session for id. The session works on its own fork of the
// identity, so id stays usable and owned by the caller.
func New(id *identity.Identity, opts ...Option) (*Session, error) {
	fork, err := id.Fork()
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:            uuid.New(),
		local:         fork,
		localExchange: fork.ExchangePublic(),
		localFP:       fork.Fingerprint(),
		now:           time.Now,
		maxFailures:   DefaultMaxConsecutiveFailures,
		logger:        log.L(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.guard = replay.NewGuard(append([]replay.Option{replay.WithClock(s.now)}, s.replayOpts...)...)
	s.logger = s.logger.With(zap.String("session", s.id.String()))
	return s, nil
}

func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Established reports whether messages can be exchanged.
func (s *Session) Established() bool {
	return s.State() == Established
}

// Err returns the reason the session was terminated, if it was.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termErr
}

// LocalFingerprint is the fingerprint of our signing key.
func (s *Session) LocalFingerprint() string {
	return s.localFP
}

// PeerFingerprint is the fingerprint of the verified peer identity, or "" if
// the peer has not been verified.
func (s *Session) PeerFingerprint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peerFP
}

// LocalHandshake returns the message to send to the peer. Before the peer's
// handshake has been verified this is an opening handshake carrying the
// invite token; afterwards it is an ack.
func (s *Session) LocalHandshake() (protocol.Handshake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Terminated {
		return protocol.Handshake{}, ErrTerminated
	}
	if s.sent {
		return protocol.Handshake{}, ErrHandshakeState
	}

	var (
		h   protocol.Handshake
		err error
	)
	if s.verified {
		h, err = protocol.BuildAck(s.local)
	} else {
		h, err = protocol.BuildHandshake(s.local, s.token)
	}
	if err != nil {
		s.terminateLocked(err)
		return protocol.Handshake{}, err
	}

	s.sent = true
	if s.verified {
		if err := s.establishLocked(); err != nil {
			return protocol.Handshake{}, err
		}
	} else {
		s.state = HandshakeSent
	}
	return h, nil
}

// AcceptHandshake verifies the peer's handshake. Any failure terminates the
// session; a retry needs a new session and token.
func (s *Session) AcceptHandshake(msg protocol.Handshake) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Terminated {
		return ErrTerminated
	}
	if s.verified {
		return ErrHandshakeState
	}

	// The side that speaks first gets an ack back, the other side an opening
	// handshake.
	want, expected := protocol.TypeHandshake, s.expectedToken
	if s.sent {
		want, expected = protocol.TypeHandshakeAck, ""
	}
	if msg.Type != want {
		err := fmt.Errorf("%w: got %q, want %q", ErrHandshakeState, msg.Type, want)
		s.terminateLocked(err)
		return err
	}

	if err := protocol.VerifyHandshake(msg, expected); err != nil {
		event := log.EventAuthFailure
		if errors.Is(err, protocol.ErrTokenMismatch) {
			event = log.EventTokenMismatch
		}
		s.logger.Warn("handshake rejected", log.Event(event), zap.Error(err))
		s.terminateLocked(err)
		return err
	}
	if s.redeem != nil && msg.Type == protocol.TypeHandshake {
		if rerr := s.redeem(msg.Token); rerr != nil {
			err := fmt.Errorf("%w: %w", protocol.ErrTokenMismatch, rerr)
			s.logger.Warn("handshake rejected", log.Event(log.EventTokenMismatch), zap.Error(rerr))
			s.terminateLocked(err)
			return err
		}
	}
	if s.expectedPeer != nil && !bytes.Equal(s.expectedPeer, msg.IdentityKey) {
		s.logger.Warn("handshake rejected", log.Event(log.EventAuthFailure),
			zap.String("peer", msg.Fingerprint()), zap.Error(ErrPeerMismatch))
		s.terminateLocked(ErrPeerMismatch)
		return ErrPeerMismatch
	}
	peerExchange := msg.ExchangeKeyArray()
	if peerExchange == s.localExchange {
		s.logger.Warn("handshake rejected", log.Event(log.EventAuthFailure), zap.Error(ErrReflectedHandshake))
		s.terminateLocked(ErrReflectedHandshake)
		return ErrReflectedHandshake
	}

	s.peerExchange = peerExchange
	s.peerFP = msg.Fingerprint()
	s.verified = true
	if s.sent {
		return s.establishLocked()
	}
	s.state = HandshakeVerified
	return nil
}

// establishLocked derives the root secret and both chains. The local signing
// and exchange keys are no longer needed afterwards and are wiped.
func (s *Session) establishLocked() error {
	root, err := s.local.DeriveRoot(s.peerExchange)
	if err != nil {
		if errors.Is(err, crypto.ErrInvalidPublicKey) {
			s.logger.Warn("handshake rejected", log.Event(log.EventAuthFailure), zap.Error(err))
		}
		s.terminateLocked(err)
		return err
	}
	s.root = root
	s.local.Destroy()

	send, recv, err := ratchet.InitialChains(root, s.localExchange, s.peerExchange)
	if err != nil {
		s.terminateLocked(err)
		return err
	}
	if s.sender, err = ratchet.NewSender(send); err != nil {
		recv.Destroy()
		s.terminateLocked(err)
		return err
	}
	if s.receiver, err = ratchet.NewReceiver(recv); err != nil {
		s.terminateLocked(err)
		return err
	}

	s.state = Established
	s.logger.Info("session established",
		zap.String("local", s.localFP),
		zap.String("peer", s.peerFP))
	return nil
}

// Send pads and encrypts plaintext into an encoded frame.
func (s *Session) Send(plaintext []byte) ([]byte, error) {
	frame, fatal, err := s.send(plaintext)
	if fatal {
		s.Terminate(err)
	}
	return frame, err
}

func (s *Session) send(plaintext []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.readyLocked(); err != nil {
		return nil, false, err
	}

	padded, err := padding.Pad(plaintext)
	if err != nil {
		return nil, false, err
	}
	defer secret.Wipe(padded)

	f, err := s.sender.Seal(padded, s.now().Unix())
	if err != nil {
		return nil, errors.Is(err, ratchet.ErrCounterExhausted), err
	}
	return f.Encode(), false, nil
}

// Receive decodes, validates and decrypts one frame. Errors for which
// Recoverable is true leave the session usable.
func (s *Session) Receive(frame []byte) ([]byte, error) {
	plaintext, fatal, err := s.receive(frame)
	if fatal {
		err = fmt.Errorf("%w: %w", ErrTooManyFailures, err)
		s.Terminate(err)
	}
	return plaintext, err
}

func (s *Session) receive(b []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.readyLocked(); err != nil {
		return nil, false, err
	}

	f, err := protocol.DecodeFrame(b)
	if err != nil {
		return nil, false, err
	}
	if err := s.guard.Check(f.Header, s.receiver); err != nil {
		s.logger.Debug("frame dropped", log.Event(log.EventReplayRejected),
			zap.Uint32("counter", f.Header.Counter), zap.Error(err))
		return nil, false, err
	}

	padded, err := s.receiver.Open(f)
	if err != nil {
		n := s.failures.Add(1)
		if errors.Is(err, crypto.ErrAuthFailed) {
			s.logger.Warn("frame failed authentication", log.Event(log.EventTamperDetected),
				zap.Uint32("counter", f.Header.Counter), zap.Int32("consecutive", n))
		} else {
			s.logger.Debug("frame dropped", zap.Uint32("counter", f.Header.Counter), zap.Error(err))
		}
		return nil, n >= s.maxFailures, err
	}
	s.failures.Store(0)
	defer secret.Wipe(padded)

	plaintext, err := padding.Unpad(padded)
	if err != nil {
		return nil, false, err
	}
	return append([]byte(nil), plaintext...), false, nil
}

func (s *Session) readyLocked() error {
	switch s.state {
	case Established:
		return nil
	case Terminated:
		return ErrTerminated
	default:
		return ErrNotEstablished
	}
}

// Terminate ends the session and wipes every secret it holds. It is safe to
// call more than once; only the first reason is kept.
func (s *Session) Terminate(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked(reason)
}

func (s *Session) terminateLocked(reason error) {
	if s.state == Terminated {
		return
	}
	s.state = Terminated
	s.termErr = reason

	s.root.Destroy()
	if s.sender != nil {
		s.sender.Destroy()
	}
	if s.receiver != nil {
		s.receiver.Destroy()
	}
	s.local.Destroy()

	s.logger.Info("session terminated", log.Event(log.EventSessionTerminated), zap.Error(reason))
}
