package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TheusHen/sae/sae/protocol"
	"github.com/TheusHen/sae/sae/transport"
)

// Role selects who speaks first during the handshake.
type Role int

const (
	// RoleHost waits for the opening handshake and answers with an ack.
	RoleHost Role = iota
	// RoleConnector sends the opening handshake and waits for the ack.
	RoleConnector
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "connector"
}

// Conn runs a Session over a Transport. Any transport failure terminates the
// session.
type Conn struct {
	sess *Session
	tr   transport.Transport
}

func NewConn(sess *Session, tr transport.Transport) *Conn {
	return &Conn{sess: sess, tr: tr}
}

func (c *Conn) Session() *Session { return c.sess }

// Handshake exchanges handshakes over the transport. Cancelling ctx before it
// returns terminates the session.
func (c *Conn) Handshake(ctx context.Context, role Role) error {
	stop := context.AfterFunc(ctx, func() {
		c.sess.Terminate(ctx.Err())
	})
	defer stop()

	var err error
	if role == RoleConnector {
		if err = c.sendHandshake(ctx); err == nil {
			err = c.receiveHandshake(ctx)
		}
	} else {
		if err = c.receiveHandshake(ctx); err == nil {
			err = c.sendHandshake(ctx)
		}
	}
	if err != nil {
		c.sess.logger.Debug("handshake failed", zap.Stringer("role", role), zap.Error(err))
		_ = c.tr.Close()
		return err
	}
	return nil
}

func (c *Conn) sendHandshake(ctx context.Context) error {
	h, err := c.sess.LocalHandshake()
	if err != nil {
		return err
	}
	b, err := protocol.EncodeHandshake(h)
	if err != nil {
		c.sess.Terminate(err)
		return err
	}
	if err := c.tr.Send(ctx, b); err != nil {
		return c.fatal(err)
	}
	return nil
}

func (c *Conn) receiveHandshake(ctx context.Context) error {
	b, err := c.tr.Receive(ctx)
	if err != nil {
		return c.fatal(err)
	}
	h, err := protocol.DecodeHandshake(b)
	if err != nil {
		c.sess.Terminate(err)
		return err
	}
	return c.sess.AcceptHandshake(h)
}

// Send encrypts plaintext and writes the frame.
func (c *Conn) Send(ctx context.Context, plaintext []byte) error {
	frame, err := c.sess.Send(plaintext)
	if err != nil {
		return err
	}
	if err := c.tr.Send(ctx, frame); err != nil {
		return c.fatal(err)
	}
	return nil
}

// Receive returns the next message that decrypts. Frames rejected with a
// recoverable error are dropped; a fatal error ends the session and is
// returned.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	for {
		b, err := c.tr.Receive(ctx)
		if err != nil {
			return nil, c.fatal(err)
		}
		plaintext, err := c.sess.Receive(b)
		if err == nil {
			return plaintext, nil
		}
		if !Recoverable(err) {
			_ = c.tr.Close()
			return nil, err
		}
		c.sess.logger.Debug("message dropped", zap.Stringer("kind", Classify(err)), zap.Error(err))
	}
}

// Close terminates the session and closes the transport.
func (c *Conn) Close() error {
	c.sess.Terminate(ErrClosed)
	return c.tr.Close()
}

func (c *Conn) fatal(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	werr := fmt.Errorf("%w: %w", ErrTransport, err)
	c.sess.Terminate(werr)
	_ = c.tr.Close()
	return werr
}
