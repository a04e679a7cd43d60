package pairlink

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// MediaSource provides scoped acquisition of the local capture device
// for call sessions. The platform capture stack lives behind this
// interface; the library never touches a camera or microphone itself.
//
// Acquire is called at most once per session, before any offer or
// answer is created. Close releases the device and is called exactly
// once per successful Acquire, during Reset. The capture device is
// exclusively owned by at most one active session.
type MediaSource interface {
	Acquire() ([]webrtc.TrackLocal, error)
	Close() error
}

// RemoteStream groups the remote tracks sharing the first stream ID
// reported by the peer. Tracks from additional streams are ignored:
// there is no renegotiation path for later additions.
type RemoteStream struct {
	ID     string
	Tracks []*webrtc.TrackRemote
}

// MediaBinding attaches local capture tracks to the connection and
// exposes the peer's stream for rendering.
type MediaBinding struct {
	source MediaSource
	logger *logrus.Entry

	mu       sync.Mutex
	acquired bool
	local    []webrtc.TrackLocal
	senders  []*webrtc.RTPSender
	remote   *RemoteStream
}

func newMediaBinding(source MediaSource, logger *logrus.Entry) *MediaBinding {
	return &MediaBinding{source: source, logger: logger}
}

// attach acquires capture and adds every track to the connection.
// Attachment happens before local-description creation so the
// resulting descriptor advertises the media sections. A denied or
// unavailable device surfaces as ErrMediaAccess and leaves the
// connection without any attached track.
func (m *MediaBinding) attach(pc *webrtc.PeerConnection) error {
	tracks, err := m.source.Acquire()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMediaAccess, err)
	}

	senders := make([]*webrtc.RTPSender, 0, len(tracks))
	for _, track := range tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			if cerr := m.source.Close(); cerr != nil {
				m.logger.WithError(cerr).Warn("media source close failed")
			}
			return err
		}
		senders = append(senders, sender)
	}

	m.mu.Lock()
	m.acquired = true
	m.local = tracks
	m.senders = senders
	m.mu.Unlock()
	m.logger.WithField("tracks", len(tracks)).Debug("local media attached")
	return nil
}

// bindRemoteTrack records an incoming track under the first reported
// remote stream. The bool result is true when this track established
// the stream, which is the moment to hand it to a renderer.
func (m *MediaBinding) bindRemoteTrack(track *webrtc.TrackRemote) (*RemoteStream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remote == nil {
		m.remote = &RemoteStream{
			ID:     track.StreamID(),
			Tracks: []*webrtc.TrackRemote{track},
		}
		return m.remote, true
	}
	if m.remote.ID != track.StreamID() {
		m.logger.WithField("stream", track.StreamID()).Warn("ignoring track from additional remote stream")
		return m.remote, false
	}
	m.remote.Tracks = append(m.remote.Tracks, track)
	return m.remote, false
}

// LocalTracks returns the capture tracks attached to the session.
func (m *MediaBinding) LocalTracks() []webrtc.TrackLocal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]webrtc.TrackLocal, len(m.local))
	copy(out, m.local)
	return out
}

// RemoteStream returns the bound remote stream, or nil before the
// first remote track arrived.
func (m *MediaBinding) RemoteStream() *RemoteStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remote
}

// release stops local capture and detaches every sender. It runs
// before the connection itself is closed and clears both the local
// and remote references.
func (m *MediaBinding) release(pc *webrtc.PeerConnection) {
	m.mu.Lock()
	acquired := m.acquired
	senders := m.senders
	m.acquired = false
	m.local = nil
	m.senders = nil
	m.remote = nil
	m.mu.Unlock()

	for _, sender := range senders {
		if err := pc.RemoveTrack(sender); err != nil {
			m.logger.WithError(err).Debug("remove track failed")
		}
	}
	if acquired {
		if err := m.source.Close(); err != nil {
			m.logger.WithError(err).Warn("media source close failed")
		}
	}
}
