package sae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TheusHen/sae/sae/config"
	"github.com/TheusHen/sae/sae/identity"
	"github.com/TheusHen/sae/sae/invite"
	"github.com/TheusHen/sae/sae/log"
	"github.com/TheusHen/sae/sae/session"
	"github.com/TheusHen/sae/sae/transport"
	"github.com/TheusHen/sae/sae/transport/quic"
	"github.com/TheusHen/sae/sae/transport/websocket"
)

var ErrNotListening = errors.New("sae: peer is not listening")

// Peer is a high-level helper that combines a transport adapter with
// session.Conn. It owns no key material beyond the identity it is given.
type Peer struct {
	Identity *identity.Identity

	cfg      *config.Config
	tokens   *invite.TokenStore
	listener listener
	logger   *zap.Logger
}

type listener interface {
	accept(ctx context.Context) (transport.Transport, error)
	AddrString() string
	Close() error
}

type quicListener struct{ *quic.Listener }

func (l quicListener) accept(ctx context.Context) (transport.Transport, error) {
	st, err := l.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

type wsListener struct{ *websocket.Listener }

func (l wsListener) accept(ctx context.Context) (transport.Transport, error) {
	c, err := l.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewPeer creates a peer. A nil cfg selects config.Default().
func NewPeer(id *identity.Identity, cfg *config.Config) *Peer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Peer{
		Identity: id,
		cfg:      cfg,
		tokens:   invite.NewTokenStore(cfg.Invite.TokenTTL),
		logger:   log.L().With(zap.String("peer", id.Fingerprint())),
	}
}

func (p *Peer) Listen(addr string) error {
	switch p.cfg.Transport {
	case config.TransportWebSocket:
		ln, err := websocket.Listen(addr)
		if err != nil {
			return err
		}
		p.listener = wsListener{ln}
	default:
		ln, err := quic.Listen(addr)
		if err != nil {
			return err
		}
		p.listener = quicListener{ln}
	}
	p.logger.Info("listening", zap.String("addr", p.listener.AddrString()), zap.String("transport", p.cfg.Transport))
	return nil
}

func (p *Peer) Close() error {
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

func (p *Peer) ListenAddr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.AddrString()
}

// Invite issues a fresh token and returns the invite for reaching this peer
// at addr. An empty addr uses the listen address.
func (p *Peer) Invite(addr string) (invite.Invite, error) {
	if p.listener == nil {
		return invite.Invite{}, ErrNotListening
	}
	if addr == "" {
		addr = p.listener.AddrString()
	}
	tok, err := p.tokens.Issue()
	if err != nil {
		return invite.Invite{}, err
	}
	return invite.Invite{PublicKey: p.Identity.PublicKey(), Addr: addr, Token: tok}, nil
}

// Tokens exposes the outstanding invite tokens.
func (p *Peer) Tokens() *invite.TokenStore { return p.tokens }

// CleanupTokens drops expired invite tokens every interval until ctx is done.
func (p *Peer) CleanupTokens(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := p.tokens.Cleanup(); n > 0 {
				p.logger.Debug("expired invite tokens removed", zap.Int("count", n))
			}
		}
	}
}

// Accept waits for a connector, redeems its invite token and completes the
// handshake.
func (p *Peer) Accept(ctx context.Context) (*session.Conn, error) {
	if p.listener == nil {
		return nil, ErrNotListening
	}
	tr, err := p.listener.accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrTransport, err)
	}
	return p.handshake(ctx, tr, session.RoleHost, session.WithTokenRedeemer(p.tokens.Redeem))
}

// Dial connects to the host named in inv. The host must prove the identity
// key carried by the invite.
func (p *Peer) Dial(ctx context.Context, inv invite.Invite) (*session.Conn, error) {
	var (
		tr  transport.Transport
		err error
	)
	switch p.cfg.Transport {
	case config.TransportWebSocket:
		tr, err = dialWebSocket(ctx, inv.Addr)
	default:
		tr, err = dialQUIC(ctx, inv.Addr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrTransport, err)
	}
	return p.handshake(ctx, tr, session.RoleConnector,
		session.WithToken(inv.Token),
		session.WithExpectedPeer(inv.PublicKey))
}

func dialQUIC(ctx context.Context, addr string) (transport.Transport, error) {
	st, err := quic.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func dialWebSocket(ctx context.Context, addr string) (transport.Transport, error) {
	c, err := websocket.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Peer) handshake(ctx context.Context, tr transport.Transport, role session.Role, opts ...session.Option) (*session.Conn, error) {
	opts = append(opts,
		session.WithLogger(p.logger),
		session.WithReplayWindow(p.cfg.Replay.MaxFutureSkew, p.cfg.Replay.MaxAge),
		session.WithMaxConsecutiveFailures(p.cfg.Session.MaxConsecutiveFailures),
	)
	sess, err := session.New(p.Identity, opts...)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, p.cfg.Session.HandshakeTimeout)
	defer cancel()

	conn := session.NewConn(sess, tr)
	if err := conn.Handshake(hctx, role); err != nil {
		return nil, err
	}
	return conn, nil
}
