package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxPacketPayload limits a single packet payload. The largest data frame
	// is well below it.
	MaxPacketPayload = 64 << 10 // 64 KiB
)

var (
	ErrPacketTooLarge = errors.New("protocol: packet payload too large")
	ErrInvalidType    = errors.New("protocol: invalid message type")
)

// Packet is the container used on stream transports.
// Format:
//
//	1 byte: type
//	4 bytes: payload length (big endian)
//	N bytes: payload
type Packet struct {
	Type    MessageType
	Payload []byte
}

func WritePacket(w io.Writer, p Packet) error {
	if p.Type == 0 {
		return ErrInvalidType
	}
	if len(p.Payload) > MaxPacketPayload {
		return ErrPacketTooLarge
	}

	buf := make([]byte, 5+len(p.Payload))
	buf[0] = byte(p.Type)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(p.Payload)))
	copy(buf[5:], p.Payload)
	_, err := w.Write(buf)
	return err
}

func ReadPacket(r io.Reader) (Packet, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}
	mt := MessageType(hdr[0])
	if mt == 0 {
		return Packet{}, ErrInvalidType
	}
	payloadLen := binary.BigEndian.Uint32(hdr[1:])
	if payloadLen > MaxPacketPayload {
		return Packet{}, fmt.Errorf("%w: %d", ErrPacketTooLarge, payloadLen)
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Packet{}, err
		}
	}
	return Packet{Type: mt, Payload: payload}, nil
}
