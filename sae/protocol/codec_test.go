package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := Packet{Type: MessageTypeData, Payload: []byte("hello")}
	if err := WritePacket(&buf, in); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	out, err := ReadPacket(&buf)
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if out.Type != in.Type || !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("packet mismatch")
	}
}

func TestPacketSequentialReads(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		if err := WritePacket(&buf, Packet{Type: MessageTypeData, Payload: []byte{byte(i)}}); err != nil {
			t.Fatalf("WritePacket %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		p, err := ReadPacket(&buf)
		if err != nil {
			t.Fatalf("ReadPacket %d: %v", i, err)
		}
		if p.Payload[0] != byte(i) {
			t.Fatalf("packet %d out of order", i)
		}
	}
	if _, err := ReadPacket(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestPacketErrors(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, Packet{}); err != ErrInvalidType {
		t.Fatalf("expected ErrInvalidType, got %v", err)
	}
	if err := WritePacket(&buf, Packet{Type: MessageTypeData, Payload: make([]byte, MaxPacketPayload+1)}); err != ErrPacketTooLarge {
		t.Fatalf("expected ErrPacketTooLarge, got %v", err)
	}

	oversize := []byte{byte(MessageTypeData), 0xff, 0xff, 0xff, 0xff}
	if _, err := ReadPacket(bytes.NewReader(oversize)); !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge, got %v", err)
	}
	truncated := []byte{byte(MessageTypeData), 0, 0, 0, 4, 'a'}
	if _, err := ReadPacket(bytes.NewReader(truncated)); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestFrameLayout(t *testing.T) {
	f := Frame{
		Header:     Header{Counter: 0x01020304, Timestamp: 0x0a0b0c0d},
		Ciphertext: []byte("ciphertext"),
	}
	for i := range f.Nonce {
		f.Nonce[i] = 0xaa
	}
	for i := range f.Tag {
		f.Tag[i] = 0xbb
	}

	b := f.Encode()
	if len(b) != MinFrameSize+len(f.Ciphertext) {
		t.Fatalf("unexpected frame length %d", len(b))
	}
	if !bytes.Equal(b[12:16], []byte{1, 2, 3, 4}) {
		t.Fatalf("counter not big endian at offset 12: %x", b[12:16])
	}
	if !bytes.Equal(b[16:24], []byte{0, 0, 0, 0, 0x0a, 0x0b, 0x0c, 0x0d}) {
		t.Fatalf("timestamp not big endian at offset 16: %x", b[16:24])
	}

	got, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Header != f.Header || got.Nonce != f.Nonce || got.Tag != f.Tag || !bytes.Equal(got.Ciphertext, f.Ciphertext) {
		t.Fatalf("frame mismatch")
	}

	if _, err := DecodeFrame(b[:MinFrameSize-1]); err != ErrMalformedFrame {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}
