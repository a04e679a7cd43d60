package pairlink

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// Controller drives the offer/answer handshake for one session at a
// time. The user is the signaling transport: the controller only
// produces and consumes descriptor text, it never transmits it.
//
// All mutation happens under one mutex, whether triggered by a caller
// or by a pion event goroutine. Callbacks are dispatched outside the
// lock. Every asynchronous resumption re-checks that its session is
// still the controller's current one, so a gathering wait or channel
// event that resolves after Reset writes into nothing.
type Controller struct {
	config *Config
	logger *logrus.Entry

	mu              sync.Mutex
	sess            *session
	state           State
	lastErr         error
	localDescriptor string

	onStateChange     func(State)
	onLocalDescriptor func(string)
	onMessage         func(Message)
	onRemoteStream    func(*RemoteStream)
}

// NewController returns a Controller in StateNew. The same Config is
// reused for every session the controller starts.
func NewController(config *Config) *Controller {
	if config == nil {
		config = &Config{}
	}
	return &Controller{
		config: config,
		logger: config.logEntry(),
		state:  StateNew,
	}
}

// OnStateChange registers a hook invoked after every state transition,
// including the transition back to StateNew on Reset.
func (c *Controller) OnStateChange(f func(State)) {
	c.mu.Lock()
	c.onStateChange = f
	c.mu.Unlock()
}

// OnLocalDescriptor registers a hook invoked once per session when the
// local descriptor text is ready to be copied to the peer.
func (c *Controller) OnLocalDescriptor(f func(string)) {
	c.mu.Lock()
	c.onLocalDescriptor = f
	c.mu.Unlock()
}

// OnMessage registers a hook invoked for every entry appended to the
// message log, local echoes included.
func (c *Controller) OnMessage(f func(Message)) {
	c.mu.Lock()
	c.onMessage = f
	c.mu.Unlock()
}

// OnRemoteStream registers a hook invoked once per call session when
// the first remote stream is bound.
func (c *Controller) OnRemoteStream(f func(*RemoteStream)) {
	c.mu.Lock()
	c.onRemoteStream = f
	c.mu.Unlock()
}

// Start tears down any prior session and begins a new one with the
// given role.
//
// The offerer attaches its resource, produces the offer, waits for
// candidate gathering and publishes the local descriptor, ending in
// StateAwaitingRemote. The answerer only attaches (or registers an
// acceptor for) its resource and ends in StateAwaitingRemote with no
// local descriptor; its answer is produced by ApplyRemoteDescriptor.
//
// For call sessions, capture acquisition failure aborts the start
// before any negotiation: the error wraps ErrMediaAccess and the
// controller stays in StateNew so the user can retry.
func (c *Controller) Start(ctx context.Context, role Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.Reset()

	if c.config.Kind == SessionCall && c.config.Media == nil {
		return ErrMediaSourceRequired
	}

	pc, err := c.config.newPeerConnection(role)
	if err != nil {
		return err
	}

	sess := &session{role: role, pc: pc}
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
	c.logger.WithField("role", role.String()).Debug("session started")

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.handleConnectionState(sess, s)
	})

	switch c.config.Kind {
	case SessionCall:
		if err := c.attachMedia(sess); err != nil {
			c.abortStart(sess)
			return err
		}
	default:
		if err := c.attachChannel(sess); err != nil {
			c.abortStart(sess)
			return err
		}
	}

	if role == RoleOfferer {
		return c.publishLocalDescription(ctx, sess)
	}

	c.setState(sess, StateAwaitingRemote)
	return nil
}

// ApplyRemoteDescriptor decodes and applies the peer's descriptor
// text.
//
// Decode failure wraps ErrMalformedDescriptor, is local to this call
// and leaves all session state unchanged: show "invalid code" and let
// the user paste again. Applying a descriptor when no session exists,
// after the session failed, or after a remote description was already
// applied is a guarded no-op returning nil.
//
// When the answerer applies the offer, it produces and publishes its
// answer before returning. When the offerer applies the answer, the
// session moves to StateConnecting until the transport itself reports
// connected.
func (c *Controller) ApplyRemoteDescriptor(ctx context.Context, text string) error {
	desc, err := DecodeDescriptor(text)
	if err != nil {
		c.logger.WithError(err).Warn("rejected descriptor text")
		return err
	}

	c.mu.Lock()
	sess := c.sess
	if sess == nil || sess.remoteSet || sess.remoteApplying || c.state == StateFailed {
		c.mu.Unlock()
		return nil
	}
	sess.remoteApplying = true
	c.mu.Unlock()

	if err := sess.pc.SetRemoteDescription(*desc); err != nil {
		// Decodable but unusable. The call fails, the session does not.
		c.mu.Lock()
		sess.remoteApplying = false
		c.mu.Unlock()
		return fmt.Errorf("pairlink: apply remote descriptor: %w", err)
	}

	c.mu.Lock()
	sess.remoteApplying = false
	if c.sess != sess {
		c.mu.Unlock()
		return nil
	}
	sess.remoteSet = true
	localDone := sess.localSet
	c.mu.Unlock()
	c.logger.WithField("type", desc.Type.String()).Debug("remote descriptor applied")

	if sess.role == RoleAnswerer && !localDone {
		return c.publishLocalDescription(ctx, sess)
	}

	c.setState(sess, StateConnecting)
	return nil
}

// Send transmits text over the session's data channel and appends the
// optimistic local echo to the message log. It is a silent no-op for
// empty text, call sessions, failed sessions, or a channel that is not
// ready.
func (c *Controller) Send(text string) {
	c.mu.Lock()
	sess := c.sess
	failed := c.state == StateFailed
	c.mu.Unlock()
	if sess == nil || failed || sess.channel == nil {
		return
	}
	sess.channel.send(text)
}

// Reset unconditionally tears down the current session: the channel
// and capture resource are released, the connection closed, and all
// descriptors and status cleared back to StateNew. Safe to call from
// any state, any number of times, including before any session exists.
func (c *Controller) Reset() {
	c.mu.Lock()
	sess := c.sess
	prev := c.state
	c.sess = nil
	c.state = StateNew
	c.lastErr = nil
	c.localDescriptor = ""
	cb := c.onStateChange
	c.mu.Unlock()

	// sess is detached before closing, so the Closed event from the
	// connection teardown finds a stale session and is ignored.
	sess.close()
	if sess != nil {
		c.logger.Debug("session reset")
	}
	if prev != StateNew && cb != nil {
		cb(StateNew)
	}
}

// State returns the controller's current handshake state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error that moved the session to StateFailed,
// or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LocalDescriptor returns the published local descriptor text, or ""
// while it is not yet available.
func (c *Controller) LocalDescriptor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localDescriptor
}

// Channel returns the text session's channel binding, or nil for call
// sessions and before Start.
func (c *Controller) Channel() *ChannelBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.channel
}

// Messages returns a copy of the session's message log.
func (c *Controller) Messages() []Message {
	ch := c.Channel()
	if ch == nil {
		return nil
	}
	return ch.Messages()
}

// Conn returns the stream view of the data channel for sessions in
// ChannelModeStream.
func (c *Controller) Conn() (net.Conn, error) {
	ch := c.Channel()
	if ch == nil {
		return nil, ErrChannelNotReady
	}
	return ch.Conn()
}

// Media returns the call session's media binding, or nil for text
// sessions and before Start.
func (c *Controller) Media() *MediaBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.media
}

// RemoteStream returns the bound remote stream of a call session, or
// nil before the first remote track arrived.
func (c *Controller) RemoteStream() *RemoteStream {
	m := c.Media()
	if m == nil {
		return nil
	}
	return m.RemoteStream()
}

// attachChannel wires the role-appropriate data channel path: the
// offerer creates the channel so it rides in the offer, the answerer
// registers an acceptor for the remotely opened one.
func (c *Controller) attachChannel(sess *session) error {
	channel := newChannelBinding(c.config.ChannelMode, c.logger, func(m Message) {
		c.mu.Lock()
		if c.sess != sess {
			c.mu.Unlock()
			return
		}
		cb := c.onMessage
		c.mu.Unlock()
		if cb != nil {
			cb(m)
		}
	})
	sess.channel = channel

	if sess.role == RoleOfferer {
		dc, err := sess.pc.CreateDataChannel(c.config.channelLabel(), nil)
		if err != nil {
			return err
		}
		channel.bind(dc)
		return nil
	}

	sess.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		c.mu.Lock()
		current := c.sess == sess
		c.mu.Unlock()
		if current {
			channel.bind(dc)
		}
	})
	return nil
}

// attachMedia acquires capture and attaches it for both roles: the
// answerer's tracks must also be on the connection before its answer
// is created, or the answer would not advertise them.
func (c *Controller) attachMedia(sess *session) error {
	media := newMediaBinding(c.config.Media, c.logger)
	if err := media.attach(sess.pc); err != nil {
		return err
	}
	sess.media = media

	sess.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.mu.Lock()
		if c.sess != sess {
			c.mu.Unlock()
			return
		}
		cb := c.onRemoteStream
		c.mu.Unlock()
		stream, first := media.bindRemoteTrack(track)
		if first && cb != nil {
			cb(stream)
		}
	})
	return nil
}

// publishLocalDescription runs the one local-describe step a session
// gets: create offer/answer, wait out candidate gathering, encode and
// publish. Repeat calls are guarded no-ops.
func (c *Controller) publishLocalDescription(ctx context.Context, sess *session) error {
	c.mu.Lock()
	if c.sess != sess || sess.localSet {
		c.mu.Unlock()
		return nil
	}
	sess.localSet = true
	c.mu.Unlock()

	c.setState(sess, StateGathering)

	if err := setLocalDescription(ctx, sess.pc, sess.role); err != nil {
		c.fail(sess, err)
		return err
	}

	text, err := EncodeDescriptor(sess.pc.LocalDescription())
	if err != nil {
		c.fail(sess, err)
		return err
	}

	c.mu.Lock()
	if c.sess != sess {
		// Reset raced the gathering wait; the descriptor belongs to a
		// torn-down session.
		c.mu.Unlock()
		return nil
	}
	c.localDescriptor = text
	cb := c.onLocalDescriptor
	c.mu.Unlock()

	c.logger.WithField("role", sess.role.String()).Debug("local descriptor published")
	if cb != nil {
		cb(text)
	}

	if sess.role == RoleAnswerer {
		c.setState(sess, StateConnecting)
	} else {
		c.setState(sess, StateAwaitingRemote)
	}
	return nil
}

// handleConnectionState reacts to transport-level notifications.
// Connected confirms the handshake; failed, disconnected or closed is
// session-fatal with no automatic retry.
func (c *Controller) handleConnectionState(sess *session, s webrtc.PeerConnectionState) {
	c.mu.Lock()
	current := c.sess == sess
	c.mu.Unlock()
	if !current {
		return
	}
	c.logger.WithField("connection", s.String()).Debug("transport state changed")

	switch s {
	case webrtc.PeerConnectionStateConnected:
		c.setState(sess, StateConnected)
	case webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateDisconnected,
		webrtc.PeerConnectionStateClosed:
		c.fail(sess, ErrConnectionFailed)
	}
}

// setState advances the machine. Transitions are one-directional, so
// a transition that would move backwards is dropped: the transport may
// report connected before the apply call that triggered it returns.
func (c *Controller) setState(sess *session, s State) {
	c.mu.Lock()
	if c.sess != sess || s <= c.state || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = s
	cb := c.onStateChange
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"from": old.String(),
		"to":   s.String(),
	}).Debug("session state changed")
	if cb != nil {
		cb(s)
	}
}

// fail moves the session to the terminal StateFailed. Only Reset
// recovers from it.
func (c *Controller) fail(sess *session, err error) {
	c.mu.Lock()
	if c.sess != sess || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.lastErr = err
	cb := c.onStateChange
	c.mu.Unlock()

	c.logger.WithError(err).Error("session failed")
	if cb != nil {
		cb(StateFailed)
	}
}

// abortStart rolls a half-started session back so the controller is
// indistinguishable from one that never started: state stays StateNew
// and a retry is clean.
func (c *Controller) abortStart(sess *session) {
	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
	}
	c.mu.Unlock()
	sess.close()
}
