package pairlink

import (
	"io"

	"github.com/pion/ice/v2"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// DefaultChannelLabel is used when Config.Label is left empty.
const DefaultChannelLabel = "pairlink"

// DefaultCallICEServers returns the small fixed set of public STUN
// servers used for call sessions, which usually have to cross network
// boundaries. Text sessions default to no ICE servers at all, which
// suits a local network.
func DefaultCallICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun1.l.google.com:19302"}},
	}
}

type Config struct {
	/**** MANDATORY FIELDS ****/
	// Label of the DataChannel created for text sessions.
	// Defaults to DefaultChannelLabel when empty.
	Label string

	// Kind selects the resource bound to each session: a reliable
	// text channel (SessionText) or an audio/video stream (SessionCall).
	Kind SessionKind

	/**** OPTIONAL FIELDS ****/
	// ICEServers are handed to the PeerConnection as-is. When nil,
	// text sessions get no servers (suited to a local network) and
	// call sessions get DefaultCallICEServers(). Set a non-nil empty
	// slice to force no servers for a call session.
	ICEServers []webrtc.ICEServer

	// Media acquires local capture tracks for call sessions.
	// MUST be set when Kind is SessionCall.
	Media MediaSource

	// ChannelMode selects message events (default) or a detached
	// net.Conn stream for text sessions.
	ChannelMode ChannelMode

	// AnsweringDTLSRole, when set on an answerer, decides which side
	// sends the DTLS ClientHello, as defined in RFC4347.
	AnsweringDTLSRole DTLSRole

	// IPs includes a slice of IP addresses and one single ICE Candidate Type.
	// If set, will add these IPs as ICE Candidates.
	IPs *NAT1To1IPs

	// PortRange is the range of local UDP ports to bind ICE transports to.
	PortRange *PortRange

	// UDPMux allows serving multiple sessions over one or more
	// pre-established UDP sockets.
	UDPMux ice.UDPMux

	// CandidateNetworkTypes restricts the ICE agent to gather
	// only selected types of ICE candidates.
	CandidateNetworkTypes []webrtc.NetworkType

	// InterfaceFilter restricts the ICE agent to gather ICE candidates
	// on only selected interfaces.
	InterfaceFilter func(name string) (gatherPermitted bool)

	// IncludeLoopbackCandidates permits host candidates on loopback
	// interfaces. Useful for same-machine sessions and tests.
	IncludeLoopbackCandidates bool

	// MulticastDNSMode overrides the ICE agent's mDNS behavior.
	MulticastDNSMode ice.MulticastDNSMode

	// Logger receives negotiation and channel events. A discarding
	// logger is used when nil.
	Logger *logrus.Entry
}

func (c *Config) logEntry() *logrus.Entry {
	if c.Logger != nil {
		return c.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func (c *Config) channelLabel() string {
	if c.Label == "" {
		return DefaultChannelLabel
	}
	return c.Label
}

// newPeerConnection builds a SettingEngine from the optional fields
// and creates a fresh PeerConnection for one session.
func (c *Config) newPeerConnection(role Role) (*webrtc.PeerConnection, error) {
	se := webrtc.SettingEngine{}

	if c.Kind == SessionText && c.ChannelMode == ChannelModeStream {
		se.DetachDataChannels()
	}

	if role == RoleAnswerer && c.AnsweringDTLSRole != 0 {
		if err := se.SetAnsweringDTLSRole(c.AnsweringDTLSRole); err != nil {
			return nil, err
		}
	}

	if c.IPs != nil {
		se.SetNAT1To1IPs(c.IPs.IPs, c.IPs.Type)
	}

	if c.PortRange != nil {
		if err := se.SetEphemeralUDPPortRange(c.PortRange.Min, c.PortRange.Max); err != nil {
			return nil, err
		}
	}

	if c.UDPMux != nil {
		se.SetICEUDPMux(c.UDPMux)
	}

	if c.CandidateNetworkTypes != nil {
		se.SetNetworkTypes(c.CandidateNetworkTypes)
	}

	if c.InterfaceFilter != nil {
		se.SetInterfaceFilter(c.InterfaceFilter)
	}

	if c.IncludeLoopbackCandidates {
		se.SetIncludeLoopbackCandidate(true)
	}

	if c.MulticastDNSMode != 0 {
		se.SetICEMulticastDNSMode(c.MulticastDNSMode)
	}

	servers := c.ICEServers
	if servers == nil && c.Kind == SessionCall {
		servers = DefaultCallICEServers()
	}

	opts := []func(*webrtc.API){webrtc.WithSettingEngine(se)}
	if c.Kind == SessionCall {
		// A zero-value API carries no codecs or interceptors; AddTrack
		// on it yields senders the offer/answer cannot describe.
		me := &webrtc.MediaEngine{}
		if err := me.RegisterDefaultCodecs(); err != nil {
			return nil, err
		}
		ir := &interceptor.Registry{}
		if err := webrtc.RegisterDefaultInterceptors(me, ir); err != nil {
			return nil, err
		}
		opts = append(opts, webrtc.WithMediaEngine(me), webrtc.WithInterceptorRegistry(ir))
	}

	api := webrtc.NewAPI(opts...)
	return api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
}
