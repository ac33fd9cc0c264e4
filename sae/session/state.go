package session

type State int

const (
	Uninitiated State = iota
	HandshakeSent
	HandshakeVerified
	Established
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitiated:
		return "UNINITIATED"
	case HandshakeSent:
		return "HANDSHAKE_SENT"
	case HandshakeVerified:
		return "HANDSHAKE_VERIFIED"
	case Established:
		return "ESTABLISHED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}
