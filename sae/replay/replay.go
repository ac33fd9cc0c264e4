// Package replay validates message headers before any ratchet state is
// touched.
package replay

import (
	"errors"
	"fmt"
	"time"

	"github.com/TheusHen/sae/sae/protocol"
)

const (
	DefaultMaxFutureSkew = 60 * time.Second
	DefaultMaxAge        = 300 * time.Second
)

var (
	ErrFutureTimestamp = errors.New("replay: timestamp too far in the future")
	ErrExpired         = errors.New("replay: message expired")
	ErrAlreadyReceived = errors.New("replay: message already received")
)

// CounterState is the read-only view of a receive chain the guard consults.
type CounterState interface {
	// Consumed reports whether counter has already been received or can no
	// longer be received.
	Consumed(counter uint32) bool
}

// Guard rejects stale, future-dated and repeated frames.
type Guard struct {
	maxFutureSkew int64
	maxAge        int64
	now           func() time.Time
}

type Option func(*Guard)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func WithMaxFutureSkew(d time.Duration) Option {
	return func(g *Guard) { g.maxFutureSkew = seconds(d) }
}

func WithMaxAge(d time.Duration) Option {
	return func(g *Guard) { g.maxAge = seconds(d) }
}

// seconds truncates d to whole seconds. Negative windows collapse to zero.
func seconds(d time.Duration) int64 {
	return max(int64(d/time.Second), 0)
}

func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		maxFutureSkew: int64(DefaultMaxFutureSkew / time.Second),
		maxAge:        int64(DefaultMaxAge / time.Second),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Now returns the guard's current unix time in seconds.
func (g *Guard) Now() int64 {
	return g.now().Unix()
}

// Check validates h. Timestamps are checked first so a stale frame never
// reaches the counter lookup.
func (g *Guard) Check(h protocol.Header, state CounterState) error {
	now := g.Now()
	if h.Timestamp > now {
		if ahead := distance(h.Timestamp, now); ahead > uint64(g.maxFutureSkew) {
			return fmt.Errorf("%w: %ds ahead", ErrFutureTimestamp, ahead)
		}
	} else if age := distance(now, h.Timestamp); age > uint64(g.maxAge) {
		return fmt.Errorf("%w: %ds old", ErrExpired, age)
	}
	if state != nil && state.Consumed(h.Counter) {
		return fmt.Errorf("%w: counter %d", ErrAlreadyReceived, h.Counter)
	}
	return nil
}

// distance returns hi-lo for hi >= lo. The difference of two int64 values
// always fits in a uint64.
func distance(hi, lo int64) uint64 {
	return uint64(hi) - uint64(lo)
}
