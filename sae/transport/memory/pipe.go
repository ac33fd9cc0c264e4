// Package memory provides an in-process Transport pair for tests and demos.
package memory

import (
	"context"
	"sync"

	"github.com/TheusHen/sae/sae/transport"
)

const pipeBuffer = 64

// Conn is one end of a Pipe.
type Conn struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

var _ transport.Transport = (*Conn)(nil)

// Pipe returns two connected ends. Closing either end closes both.
func Pipe() (*Conn, *Conn) {
	ab := make(chan []byte, pipeBuffer)
	ba := make(chan []byte, pipeBuffer)
	done := make(chan struct{})
	once := &sync.Once{}
	return &Conn{in: ba, out: ab, done: done, once: once},
		&Conn{in: ab, out: ba, done: done, once: once}
}

func (c *Conn) Send(ctx context.Context, msg []byte) error {
	buf := append([]byte(nil), msg...)
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}
	select {
	case c.out <- buf:
		return nil
	case <-c.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}
