package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/TheusHen/sae/sae/replay"
)

// DefaultMaxConsecutiveFailures is the number of consecutive ratchet or
// decryption failures after which a session is terminated.
const DefaultMaxConsecutiveFailures = 5

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithToken sets the invite token carried in the opening handshake.
func WithToken(token string) Option {
	return func(s *Session) { s.token = token }
}

// WithExpectedToken makes AcceptHandshake require the peer's token to equal
// token.
func WithExpectedToken(token string) Option {
	return func(s *Session) { s.expectedToken = token }
}

// WithTokenRedeemer consults redeem for the token of every opening handshake
// whose signature verifies. A non-nil error rejects the handshake. It is
// typically (*invite.TokenStore).Redeem.
func WithTokenRedeemer(redeem func(token string) error) Option {
	return func(s *Session) { s.redeem = redeem }
}

// WithExpectedPeer makes AcceptHandshake reject any identity key other than
// publicKey, as when the key came with an invite.
func WithExpectedPeer(publicKey []byte) Option {
	return func(s *Session) { s.expectedPeer = append([]byte(nil), publicKey...) }
}

// WithClock sets the time source for frame timestamps and the replay guard.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithReplayWindow overrides the replay guard limits.
func WithReplayWindow(maxFutureSkew, maxAge time.Duration) Option {
	return func(s *Session) {
		s.replayOpts = append(s.replayOpts, replay.WithMaxFutureSkew(maxFutureSkew), replay.WithMaxAge(maxAge))
	}
}

func WithMaxConsecutiveFailures(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxFailures = int32(n)
		}
	}
}
