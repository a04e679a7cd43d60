package pairlink

import "github.com/pion/webrtc/v3"

// Role selects which side of the SDP exchange this peer plays, as
// defined in RFC3264. A session keeps its role for its whole lifetime:
// the offerer produces the first descriptor, the answerer waits for it.
type Role uint8

const (
	RoleOfferer Role = iota
	RoleAnswerer
)

func (r Role) String() string {
	switch r {
	case RoleOfferer:
		return "offerer"
	case RoleAnswerer:
		return "answerer"
	default:
		return "unknown"
	}
}

// State is the position of a session in the handshake state machine.
//
// Transitions are one-directional: New -> Gathering -> AwaitingRemote
// -> Connecting -> Connected. Failed is reachable from any non-terminal
// state and only Reset leaves it. The answerer skips Gathering on Start
// and enters it while producing its answer.
type State uint32

const (
	StateNew State = iota
	StateGathering
	StateAwaitingRemote
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateGathering:
		return "Gathering"
	case StateAwaitingRemote:
		return "AwaitingRemote"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SessionKind selects the resource bound to a session: a reliable text
// channel or an audio/video stream.
type SessionKind uint8

const (
	SessionText SessionKind = iota
	SessionCall
)

// ChannelMode selects how the data channel of a text session is
// consumed. ChannelModeMessages keeps pion's message events and feeds
// the session's chat log. ChannelModeStream detaches the channel and
// exposes it as a net.Conn instead; no chat log is kept.
type ChannelMode uint8

const (
	ChannelModeMessages ChannelMode = iota
	ChannelModeStream
)

// RFC 4347
type DTLSRole = webrtc.DTLSRole

// From pion/webrtc
const (
	// DTLSRoleAuto defines the DTLS role is determined based on
	// the resolved ICE role: the ICE controlled role acts as the DTLS
	// client and the ICE controlling role acts as the DTLS server.
	DTLSRoleAuto DTLSRole = iota + 1

	// DTLSRoleClient defines the DTLS client role.
	DTLSRoleClient

	// DTLSRoleServer defines the DTLS server role.
	DTLSRoleServer
)

// NAT1To1IPs consists of a slice of IP addresses and one single ICE Candidate Type.
// Use this struct to set the IPs to be used as ICE Candidates.
type NAT1To1IPs struct {
	IPs  []string
	Type webrtc.ICECandidateType
}

// PortRange specifies the range of ports to use for ICE Transports.
type PortRange struct {
	Min uint16
	Max uint16
}
