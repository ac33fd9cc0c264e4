package invite

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/TheusHen/sae/sae/identity"
)

const Scheme = "sae"

var ErrInvalidInvite = errors.New("invite: invalid invite URI")

// Invite is the information a connector needs to reach a host.
type Invite struct {
	PublicKey ed25519.PublicKey
	Addr      string // host:port
	Token     string
}

// Format renders inv as an sae:// URI.
func Format(inv Invite) string {
	u := url.URL{
		Scheme:   Scheme,
		User:     url.User(hex.EncodeToString(inv.PublicKey)),
		Host:     inv.Addr,
		RawQuery: url.Values{"token": {inv.Token}}.Encode(),
	}
	return u.String()
}

func (inv Invite) String() string {
	return Format(inv)
}

// Fingerprint of the host identity named in the invite.
func (inv Invite) Fingerprint() string {
	return identity.Fingerprint(inv.PublicKey)
}

// Parse validates and decodes an sae:// URI.
func Parse(uri string) (Invite, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Invite{}, fmt.Errorf("%w: %v", ErrInvalidInvite, err)
	}
	if u.Scheme != Scheme {
		return Invite{}, fmt.Errorf("%w: scheme %q", ErrInvalidInvite, u.Scheme)
	}
	if u.User == nil || u.User.Username() == "" {
		return Invite{}, fmt.Errorf("%w: missing public key", ErrInvalidInvite)
	}
	pub, err := identity.ParsePublicKeyHex(u.User.Username())
	if err != nil {
		return Invite{}, fmt.Errorf("%w: %v", ErrInvalidInvite, err)
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" {
		return Invite{}, fmt.Errorf("%w: address %q", ErrInvalidInvite, u.Host)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return Invite{}, fmt.Errorf("%w: port %q", ErrInvalidInvite, port)
	}

	tok := u.Query().Get("token")
	if raw, err := hex.DecodeString(tok); err != nil || len(raw) != TokenSize {
		return Invite{}, fmt.Errorf("%w: token", ErrInvalidInvite)
	}

	return Invite{PublicKey: pub, Addr: u.Host, Token: tok}, nil
}
