package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheusHen/sae/sae/crypto"
	"github.com/TheusHen/sae/sae/crypto/ratchet"
	"github.com/TheusHen/sae/sae/identity"
	"github.com/TheusHen/sae/sae/padding"
	"github.com/TheusHen/sae/sae/protocol"
	"github.com/TheusHen/sae/sae/replay"
)

const testToken = "00112233445566778899aabbccddeeff"

func newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	t.Cleanup(id.Destroy)
	return id
}

// handshakePair runs a complete handshake between a connector and a host and
// returns them in that order.
func handshakePair(t *testing.T, connOpts, hostOpts []Option) (*Session, *Session) {
	t.Helper()
	connector, err := New(newIdentity(t), append([]Option{WithToken(testToken)}, connOpts...)...)
	require.NoError(t, err)
	host, err := New(newIdentity(t), append([]Option{WithExpectedToken(testToken)}, hostOpts...)...)
	require.NoError(t, err)

	hello, err := connector.LocalHandshake()
	require.NoError(t, err)
	require.Equal(t, HandshakeSent, connector.State())

	require.NoError(t, host.AcceptHandshake(hello))
	require.Equal(t, HandshakeVerified, host.State())
	require.False(t, host.Established())

	ack, err := host.LocalHandshake()
	require.NoError(t, err)
	require.Equal(t, protocol.TypeHandshakeAck, ack.Type)
	require.True(t, host.Established())

	require.NoError(t, connector.AcceptHandshake(ack))
	require.True(t, connector.Established())
	return connector, host
}

func sendN(t *testing.T, s *Session, n int) [][]byte {
	t.Helper()
	frames := make([][]byte, n)
	for i := range frames {
		f, err := s.Send([]byte(fmt.Sprintf("message %d", i)))
		require.NoError(t, err)
		frames[i] = f
	}
	return frames
}

func TestEndToEndOutOfOrder(t *testing.T) {
	connector, host := handshakePair(t, nil, nil)

	frames := sendN(t, connector, 5)
	for _, i := range []int{0, 2, 1, 4, 3} {
		pt, err := host.Receive(frames[i])
		require.NoError(t, err, "frame %d", i)
		require.Equal(t, fmt.Sprintf("message %d", i), string(pt))
	}

	reply, err := host.Send([]byte("ack"))
	require.NoError(t, err)
	pt, err := connector.Receive(reply)
	require.NoError(t, err)
	require.Equal(t, "ack", string(pt))

	require.Equal(t, host.LocalFingerprint(), connector.PeerFingerprint())
	require.Equal(t, connector.LocalFingerprint(), host.PeerFingerprint())
	require.NotEqual(t, host.ID(), connector.ID())
}

func TestFramesAreBucketed(t *testing.T) {
	connector, _ := handshakePair(t, nil, nil)
	for _, n := range []int{0, 100, 125, 1000, padding.MaxPlaintext} {
		f, err := connector.Send(make([]byte, n))
		require.NoError(t, err)
		bucket, err := padding.BucketFor(n)
		require.NoError(t, err)
		require.Len(t, f, protocol.MinFrameSize+bucket)
	}
	_, err := connector.Send(make([]byte, padding.MaxPlaintext+1))
	require.ErrorIs(t, err, padding.ErrMessageTooLarge)
	require.True(t, connector.Established())
}

func TestReplayRejectedOnce(t *testing.T) {
	connector, host := handshakePair(t, nil, nil)
	frames := sendN(t, connector, 2)

	_, err := host.Receive(frames[0])
	require.NoError(t, err)
	_, err = host.Receive(frames[0])
	require.ErrorIs(t, err, replay.ErrAlreadyReceived)
	require.Equal(t, KindReplay, Classify(err))
	require.True(t, host.Established())

	_, err = host.Receive(frames[1])
	require.NoError(t, err)
}

func TestSkippedFrameReplay(t *testing.T) {
	connector, host := handshakePair(t, nil, nil)
	frames := sendN(t, connector, 3)

	_, err := host.Receive(frames[2])
	require.NoError(t, err)
	_, err = host.Receive(frames[1])
	require.NoError(t, err)
	_, err = host.Receive(frames[1])
	require.ErrorIs(t, err, replay.ErrAlreadyReceived)
}

func TestWindowExceeded(t *testing.T) {
	connector, host := handshakePair(t, nil, nil)
	frames := sendN(t, connector, ratchet.MaxSkip+2)

	_, err := host.Receive(frames[ratchet.MaxSkip+1])
	require.ErrorIs(t, err, ratchet.ErrWindowExceeded)
	require.Equal(t, KindRatchet, Classify(err))

	_, err = host.Receive(frames[ratchet.MaxSkip])
	require.NoError(t, err)
}

func TestTimestampWindow(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	senderNow := base
	receiverNow := base
	connector, host := handshakePair(t,
		[]Option{WithClock(func() time.Time { return senderNow })},
		[]Option{WithClock(func() time.Time { return receiverNow })},
	)

	senderNow = base.Add(2 * time.Minute)
	future, err := connector.Send([]byte("from the future"))
	require.NoError(t, err)
	_, err = host.Receive(future)
	require.ErrorIs(t, err, replay.ErrFutureTimestamp)

	senderNow = base
	receiverNow = base.Add(10 * time.Minute)
	stale, err := connector.Send([]byte("stale"))
	require.NoError(t, err)
	_, err = host.Receive(stale)
	require.ErrorIs(t, err, replay.ErrExpired)

	require.True(t, host.Established())
	// Rejected frames never touched the receive chain, so the future frame
	// still opens once the clocks agree.
	receiverNow = senderNow.Add(2 * time.Minute)
	pt, err := host.Receive(future)
	require.NoError(t, err)
	require.Equal(t, "from the future", string(pt))
}

func TestMITMFlippedExchangeKey(t *testing.T) {
	connector, err := New(newIdentity(t), WithToken(testToken))
	require.NoError(t, err)
	host, err := New(newIdentity(t), WithExpectedToken(testToken))
	require.NoError(t, err)

	hello, err := connector.LocalHandshake()
	require.NoError(t, err)
	hello.ExchangeKey = append([]byte(nil), hello.ExchangeKey...)
	hello.ExchangeKey[7] ^= 0x01

	err = host.AcceptHandshake(hello)
	require.ErrorIs(t, err, protocol.ErrInvalidSignature)
	require.Equal(t, KindAuth, Classify(err))
	require.Equal(t, "authentication failed — possible interception", UserMessage(err))
	require.Equal(t, Terminated, host.State())
	require.ErrorIs(t, host.Err(), protocol.ErrInvalidSignature)

	_, err = host.LocalHandshake()
	require.ErrorIs(t, err, ErrTerminated)
}

func TestTokenMismatchTerminates(t *testing.T) {
	connector, err := New(newIdentity(t), WithToken("wrong"))
	require.NoError(t, err)
	host, err := New(newIdentity(t), WithExpectedToken(testToken))
	require.NoError(t, err)

	hello, err := connector.LocalHandshake()
	require.NoError(t, err)
	err = host.AcceptHandshake(hello)
	require.ErrorIs(t, err, protocol.ErrTokenMismatch)
	require.Equal(t, KindAuth, Classify(err))
	require.Equal(t, Terminated, host.State())
}

func TestTokenRedeemer(t *testing.T) {
	var seen []string
	redeem := func(tok string) error {
		seen = append(seen, tok)
		if len(seen) > 1 {
			return fmt.Errorf("already used")
		}
		return nil
	}

	for i, wantErr := range []bool{false, true} {
		connector, err := New(newIdentity(t), WithToken(testToken))
		require.NoError(t, err)
		host, err := New(newIdentity(t), WithTokenRedeemer(redeem))
		require.NoError(t, err)

		hello, err := connector.LocalHandshake()
		require.NoError(t, err)
		err = host.AcceptHandshake(hello)
		if wantErr {
			require.ErrorIs(t, err, protocol.ErrTokenMismatch, "attempt %d", i)
			require.Equal(t, Terminated, host.State())
		} else {
			require.NoError(t, err, "attempt %d", i)
		}
	}
	require.Equal(t, []string{testToken, testToken}, seen)
}

func TestReflectedHandshake(t *testing.T) {
	connector, err := New(newIdentity(t), WithToken(testToken))
	require.NoError(t, err)

	hello, err := connector.LocalHandshake()
	require.NoError(t, err)
	reflected := hello
	reflected.Type = protocol.TypeHandshakeAck
	reflected.Token = ""

	err = connector.AcceptHandshake(reflected)
	require.ErrorIs(t, err, ErrReflectedHandshake)
	require.Equal(t, KindAuth, Classify(err))
	require.Equal(t, Terminated, connector.State())
}

func TestUnexpectedHandshakeType(t *testing.T) {
	connector, err := New(newIdentity(t), WithToken(testToken))
	require.NoError(t, err)
	other, err := New(newIdentity(t), WithToken(testToken))
	require.NoError(t, err)

	_, err = connector.LocalHandshake()
	require.NoError(t, err)
	hello, err := other.LocalHandshake()
	require.NoError(t, err)

	// The connector expects an ack, not a second opening handshake.
	err = connector.AcceptHandshake(hello)
	require.ErrorIs(t, err, ErrHandshakeState)
	require.Equal(t, Terminated, connector.State())
}

func TestHandshakeOrdering(t *testing.T) {
	s, err := New(newIdentity(t))
	require.NoError(t, err)

	_, err = s.Send([]byte("early"))
	require.ErrorIs(t, err, ErrNotEstablished)
	_, err = s.Receive(make([]byte, protocol.MinFrameSize))
	require.ErrorIs(t, err, ErrNotEstablished)

	_, err = s.LocalHandshake()
	require.NoError(t, err)
	_, err = s.LocalHandshake()
	require.ErrorIs(t, err, ErrHandshakeState)
	require.Equal(t, HandshakeSent, s.State())
}

func TestTamperEscalation(t *testing.T) {
	connector, host := handshakePair(t, nil, []Option{WithMaxConsecutiveFailures(3)})
	frames := sendN(t, connector, 4)

	tamper := func(b []byte) []byte {
		out := append([]byte(nil), b...)
		out[len(out)-1] ^= 0x01
		return out
	}

	for i := 0; i < 2; i++ {
		_, err := host.Receive(tamper(frames[i]))
		require.ErrorIs(t, err, crypto.ErrAuthFailed)
		require.Equal(t, KindCrypto, Classify(err))
		require.True(t, Recoverable(err))
	}
	// A good frame resets the count.
	_, err := host.Receive(frames[0])
	require.NoError(t, err)
	for i := 1; i < 3; i++ {
		_, err := host.Receive(tamper(frames[i]))
		require.ErrorIs(t, err, crypto.ErrAuthFailed)
	}
	require.True(t, host.Established())

	_, err = host.Receive(tamper(frames[3]))
	require.ErrorIs(t, err, ErrTooManyFailures)
	require.ErrorIs(t, err, crypto.ErrAuthFailed)
	require.Equal(t, KindSession, Classify(err))
	require.Equal(t, Terminated, host.State())

	_, err = host.Receive(frames[1])
	require.ErrorIs(t, err, ErrTerminated)
	_, err = host.Send([]byte("x"))
	require.ErrorIs(t, err, ErrTerminated)
}

func TestMalformedFrameIsRecoverable(t *testing.T) {
	connector, host := handshakePair(t, nil, nil)

	_, err := host.Receive([]byte("short"))
	require.ErrorIs(t, err, protocol.ErrMalformedFrame)
	require.Equal(t, KindPadding, Classify(err))
	require.True(t, host.Established())

	f, err := connector.Send([]byte("still here"))
	require.NoError(t, err)
	pt, err := host.Receive(f)
	require.NoError(t, err)
	require.Equal(t, "still here", string(pt))
}

func TestTerminateWipesSecrets(t *testing.T) {
	connector, host := handshakePair(t, nil, nil)
	f, err := connector.Send([]byte("hi"))
	require.NoError(t, err)

	require.False(t, host.root.Destroyed())
	root := host.root.Bytes()

	host.Terminate(ErrClosed)
	host.Terminate(ErrTransport)
	require.Equal(t, Terminated, host.State())
	require.ErrorIs(t, host.Err(), ErrClosed)
	require.True(t, host.root.Destroyed())
	require.Equal(t, make([]byte, len(root)), root)
	require.True(t, host.local.Destroyed())

	_, err = host.Receive(f)
	require.ErrorIs(t, err, ErrTerminated)
	require.ErrorIs(t, host.AcceptHandshake(protocol.Handshake{}), ErrTerminated)
}

func TestLocalIdentitySurvivesSessions(t *testing.T) {
	id := newIdentity(t)
	s, err := New(id)
	require.NoError(t, err)
	s.Terminate(ErrClosed)

	require.False(t, id.Destroyed())
	_, err = New(id)
	require.NoError(t, err)
}

func TestClassifyAndUserMessage(t *testing.T) {
	require.Equal(t, KindUnknown, Classify(nil))
	require.Equal(t, KindTransport, Classify(fmt.Errorf("%w: %w", ErrTransport, fmt.Errorf("reset"))))
	require.Equal(t, "connection lost", UserMessage(fmt.Errorf("%w: eof", ErrTransport)))
	require.Equal(t, KindAuth, Classify(crypto.ErrInvalidPublicKey))
	require.Equal(t, KindSession, Classify(ratchet.ErrCounterExhausted))
	require.Equal(t, KindPadding, Classify(padding.ErrLengthOverflow))
	require.False(t, Recoverable(ErrTerminated))
	require.Equal(t, "", UserMessage(nil))
	require.Equal(t, "auth", KindAuth.String())
	require.Equal(t, "ESTABLISHED", Established.String())
}

func TestExpectedPeer(t *testing.T) {
	hostID := newIdentity(t)
	impostor := newIdentity(t)

	for _, tc := range []struct {
		name string
		host *identity.Identity
		err  error
	}{
		{"matching key", hostID, nil},
		{"other key", impostor, ErrPeerMismatch},
	} {
		t.Run(tc.name, func(t *testing.T) {
			connector, err := New(newIdentity(t), WithToken(testToken), WithExpectedPeer(hostID.PublicKey()))
			require.NoError(t, err)
			host, err := New(tc.host, WithExpectedToken(testToken))
			require.NoError(t, err)

			hello, err := connector.LocalHandshake()
			require.NoError(t, err)
			require.NoError(t, host.AcceptHandshake(hello))
			ack, err := host.LocalHandshake()
			require.NoError(t, err)

			err = connector.AcceptHandshake(ack)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, KindAuth, Classify(err))
			require.Equal(t, Terminated, connector.State())
		})
	}
}

func TestConcurrentSendAndReceive(t *testing.T) {
	const n = 200
	connector, host := handshakePair(t, nil, nil)

	toHost := make(chan []byte, n)
	toConnector := make(chan []byte, n)
	errs := make(chan error, 4)

	var wg sync.WaitGroup
	send := func(s *Session, out chan<- []byte, prefix string) {
		defer wg.Done()
		defer close(out)
		for i := 0; i < n; i++ {
			f, err := s.Send([]byte(fmt.Sprintf("%s %d", prefix, i)))
			if err != nil {
				errs <- fmt.Errorf("%s send %d: %w", prefix, i, err)
				return
			}
			out <- f
		}
	}
	receive := func(s *Session, in <-chan []byte, prefix string) {
		defer wg.Done()
		i := 0
		for f := range in {
			pt, err := s.Receive(f)
			if err != nil {
				errs <- fmt.Errorf("%s receive %d: %w", prefix, i, err)
				return
			}
			if want := fmt.Sprintf("%s %d", prefix, i); string(pt) != want {
				errs <- fmt.Errorf("got %q, want %q", pt, want)
				return
			}
			i++
		}
		if i != n {
			errs <- fmt.Errorf("%s: received %d of %d", prefix, i, n)
		}
	}

	wg.Add(4)
	go send(connector, toHost, "up")
	go send(host, toConnector, "down")
	go receive(host, toHost, "up")
	go receive(connector, toConnector, "down")
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	require.True(t, connector.Established())
	require.True(t, host.Established())
}
