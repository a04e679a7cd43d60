package pairlink

import "github.com/pion/webrtc/v3"

// session is the live unit of work behind one Start/Reset cycle. It
// exclusively owns the PeerConnection and the attached binding; the
// Controller replaces the whole value on Reset, so a late callback
// holding a stale *session can be detected by pointer identity.
type session struct {
	role Role
	pc   *webrtc.PeerConnection

	channel *ChannelBinding
	media   *MediaBinding

	// At most one local-description creation and one remote-description
	// application ever succeed per session. Later attempts are guarded
	// no-ops. remoteApplying marks an in-flight remote application so a
	// concurrent duplicate stays a no-op rather than racing pion.
	localSet       bool
	remoteSet      bool
	remoteApplying bool

	closed bool
}

// close releases everything the session owns. Media is released and
// the channel closed before the connection itself goes down.
// Idempotent: second and later calls do nothing.
func (s *session) close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	if s.media != nil {
		s.media.release(s.pc)
	}
	if s.channel != nil {
		s.channel.close()
	}
	_ = s.pc.Close()
}
