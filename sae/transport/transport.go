// Package transport defines the capability a session needs from the network.
//
// Adapters live in subpackages (quic, websocket, memory). The session core
// depends only on the Transport interface.
package transport

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("transport: closed")

// Transport moves whole messages between two peers. Implementations must
// preserve message boundaries and order. Send and Receive may be called
// concurrently with each other, but not with themselves.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
