// Package quic carries SAE messages over a single bidirectional QUIC stream.
package quic

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	q "github.com/quic-go/quic-go"

	"github.com/TheusHen/sae/sae/protocol"
	"github.com/TheusHen/sae/sae/transport"
)

const closeCode q.ApplicationErrorCode = 0

var quicConfig = &q.Config{
	MaxIdleTimeout:  5 * time.Minute,
	KeepAlivePeriod: 20 * time.Second,
}

type Listener struct {
	inner *q.Listener
}

func Listen(addr string) (*Listener, error) {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := q.ListenAddr(addr, tlsConf, quicConfig)
	if err != nil {
		return nil, err
	}
	return &Listener{inner: ln}, nil
}

// Accept waits for a connection and for the stream its peer opens.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	conn, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, err
	}
	st, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(closeCode, "no stream")
		return nil, err
	}
	return &Stream{conn: conn, st: st}, nil
}

func (l *Listener) Addr() net.Addr { return l.inner.Addr() }

func (l *Listener) AddrString() string {
	if l.inner == nil {
		return ""
	}
	return l.inner.Addr().String()
}

func (l *Listener) Close() error { return l.inner.Close() }

// Dial connects to addr and opens the message stream. The stream becomes
// visible to the listener once the first message is sent.
func Dial(ctx context.Context, addr string) (*Stream, error) {
	conn, err := q.DialAddr(ctx, addr, clientTLSConfig(), quicConfig)
	if err != nil {
		return nil, err
	}
	st, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(closeCode, "no stream")
		return nil, err
	}
	return &Stream{conn: conn, st: st}, nil
}

// Stream frames messages as protocol packets on one QUIC stream.
type Stream struct {
	conn q.Connection
	st   q.Stream

	wmu       sync.Mutex
	closeOnce sync.Once
}

var _ transport.Transport = (*Stream)(nil)

func (s *Stream) Send(ctx context.Context, msg []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	_ = s.st.SetWriteDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { _ = s.st.SetWriteDeadline(time.Now()) })
	defer stop()

	err := protocol.WritePacket(s.st, protocol.Packet{Type: protocol.MessageTypeData, Payload: msg})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	_ = s.st.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { _ = s.st.SetReadDeadline(time.Now()) })
	defer stop()

	p, err := protocol.ReadPacket(s.st)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var appErr *q.ApplicationError
		if errors.Is(err, io.EOF) || errors.As(err, &appErr) {
			return nil, transport.ErrClosed
		}
		return nil, err
	}
	if p.Type == protocol.MessageTypeClose {
		return nil, transport.ErrClosed
	}
	return p.Payload, nil
}

// Close tells the peer the conversation is over and tears down the
// connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.wmu.Lock()
		_ = s.st.SetWriteDeadline(time.Now().Add(time.Second))
		_ = protocol.WritePacket(s.st, protocol.Packet{Type: protocol.MessageTypeClose})
		_ = s.st.Close()
		s.wmu.Unlock()
		err = s.conn.CloseWithError(closeCode, "closed")
	})
	return err
}

func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
