package invite

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

var (
	ErrTokenExpired  = errors.New("invite: token expired")
	ErrTokenNotFound = errors.New("invite: token not found")
)

const (
	TokenSize       = 16
	DefaultTokenTTL = 5 * time.Minute
)

type token struct {
	issuedAt  time.Time
	expiresAt time.Time
}

// TokenStore tracks outstanding invite tokens.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]token
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenStore creates a store whose tokens live for ttl. A non-positive ttl
// selects DefaultTokenTTL.
func NewTokenStore(ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{
		tokens: make(map[string]token),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a new random token.
func (ts *TokenStore) Issue() (string, error) {
	var raw [TokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	tok := hex.EncodeToString(raw[:])

	ts.mu.Lock()
	defer ts.mu.Unlock()
	now := ts.now()
	ts.tokens[tok] = token{issuedAt: now, expiresAt: now.Add(ts.ttl)}
	return tok, nil
}

// Redeem consumes tok. A token can be redeemed once; expired tokens are
// removed and reported as ErrTokenExpired.
func (ts *TokenStore) Redeem(tok string) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	t, ok := ts.tokens[tok]
	if !ok {
		return ErrTokenNotFound
	}
	delete(ts.tokens, tok)
	if ts.now().After(t.expiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// Revoke invalidates a token.
func (ts *TokenStore) Revoke(tok string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.tokens, tok)
}

// Cleanup removes expired tokens.
func (ts *TokenStore) Cleanup() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	removed := 0
	for tok, t := range ts.tokens {
		if now.After(t.expiresAt) {
			delete(ts.tokens, tok)
			removed++
		}
	}
	return removed
}

// Count returns the number of outstanding tokens.
func (ts *TokenStore) Count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tokens)
}
