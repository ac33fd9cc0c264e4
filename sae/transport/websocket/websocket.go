// Package websocket carries SAE messages as binary WebSocket messages.
package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/mux"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TheusHen/sae/sae/log"
	"github.com/TheusHen/sae/sae/transport"
)

// Path is the HTTP endpoint upgraded to a WebSocket.
const Path = "/sae"

const closeTimeout = time.Second

// Listener accepts WebSocket connections on Path.
type Listener struct {
	ln    net.Listener
	srv   *http.Server
	conns chan *Conn
	done  chan struct{}
	once  sync.Once
}

func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		ln:    ln,
		conns: make(chan *Conn),
		done:  make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc(Path, l.handleUpgrade()).Methods(http.MethodGet)
	l.srv = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("websocket listener stopped", zap.Error(err))
		}
	}()
	return l, nil
}

func (l *Listener) handleUpgrade() http.HandlerFunc {
	upgrader := ws.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // peers authenticate in the session handshake
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		select {
		case l.conns <- newConn(conn):
		case <-l.done:
			_ = conn.Close()
		case <-r.Context().Done():
			_ = conn.Close()
		}
	}
}

// Accept returns the next upgraded connection.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

func (l *Listener) AddrString() string { return l.ln.Addr().String() }

func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

// Dial connects to a Listener at addr (host:port).
func Dial(ctx context.Context, addr string) (*Conn, error) {
	u := url.URL{
		Scheme: "ws",
		Host:   addr,
		Path:   Path,
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return newConn(conn), nil
}

// Conn adapts a WebSocket connection to transport.Transport.
type Conn struct {
	c         *ws.Conn
	wmu       sync.Mutex
	closeOnce sync.Once
}

var _ transport.Transport = (*Conn)(nil)

func newConn(c *ws.Conn) *Conn {
	return &Conn{c: c}
}

func (c *Conn) Send(ctx context.Context, msg []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	_ = c.c.SetWriteDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { _ = c.c.SetWriteDeadline(time.Now()) })
	defer stop()

	if err := c.c.WriteMessage(ws.BinaryMessage, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ws.ErrCloseSent) {
			return transport.ErrClosed
		}
		return err
	}
	return nil
}

// Receive returns the next binary message. Text messages are ignored.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	_ = c.c.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() { _ = c.c.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		typ, data, err := c.c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				return nil, transport.ErrClosed
			}
			return nil, err
		}
		if typ == ws.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and drops the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		_ = c.c.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout))
		c.wmu.Unlock()
		err = c.c.Close()
	})
	return err
}

func (c *Conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }
