package pairlink

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// ChannelState tracks the data channel independently of the session's
// handshake state: a broken channel does not fail the negotiation, it
// only makes the channel unusable.
type ChannelState uint32

const (
	ChannelOpening ChannelState = iota
	ChannelReady
	ChannelClosed
	ChannelErrored
)

func (s ChannelState) String() string {
	switch s {
	case ChannelOpening:
		return "Opening"
	case ChannelReady:
		return "Ready"
	case ChannelClosed:
		return "Closed"
	case ChannelErrored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// Sender tags which side of the link appended a log entry.
type Sender uint8

const (
	SenderLocal Sender = iota
	SenderRemote
)

func (s Sender) String() string {
	if s == SenderRemote {
		return "remote"
	}
	return "local"
}

// Message is one entry of a session's append-only chat log. Each side
// stamps its own log: IDs and times are generated locally and carry no
// cross-side ordering guarantee. A SenderLocal entry records intent to
// send, not delivery confirmation.
type Message struct {
	ID     string
	Text   string
	Sender Sender
	Time   time.Time
}

// ChannelBinding wraps the single ordered, reliable data channel of a
// text session. It owns the channel's sub-state and the message log.
type ChannelBinding struct {
	mode   ChannelMode
	logger *logrus.Entry
	notify func(Message)

	mu      sync.Mutex
	dc      *webrtc.DataChannel
	state   ChannelState
	log     []Message
	conn    *Conn
	lastErr error
}

func newChannelBinding(mode ChannelMode, logger *logrus.Entry, notify func(Message)) *ChannelBinding {
	return &ChannelBinding{
		mode:   mode,
		logger: logger,
		notify: notify,
		state:  ChannelOpening,
	}
}

// bind wires the event handlers. Called once per session, either with
// the locally created channel (offerer) or the remotely opened one
// (answerer). A closed channel is never reopened.
func (b *ChannelBinding) bind(dc *webrtc.DataChannel) {
	b.mu.Lock()
	b.dc = dc
	b.mu.Unlock()

	dc.OnOpen(func() {
		if b.mode == ChannelModeStream {
			raw, err := dc.Detach()
			if err != nil {
				b.setError(err)
				return
			}
			b.mu.Lock()
			b.conn = newConn(raw)
			b.state = ChannelReady
			b.mu.Unlock()
			b.logger.WithField("label", dc.Label()).Debug("data channel detached")
			return
		}
		b.mu.Lock()
		b.state = ChannelReady
		b.mu.Unlock()
		b.logger.WithField("label", dc.Label()).Debug("data channel open")
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		b.append(string(msg.Data), SenderRemote)
	})

	dc.OnClose(func() {
		b.mu.Lock()
		if b.state != ChannelErrored {
			b.state = ChannelClosed
		}
		b.mu.Unlock()
		b.logger.WithField("label", dc.Label()).Debug("data channel closed")
	})

	dc.OnError(func(err error) {
		b.setError(err)
	})
}

func (b *ChannelBinding) setError(err error) {
	b.mu.Lock()
	b.state = ChannelErrored
	b.lastErr = err
	b.mu.Unlock()
	b.logger.WithError(err).Warn("data channel errored")
}

func (b *ChannelBinding) append(text string, sender Sender) {
	m := Message{
		ID:     uuid.NewString(),
		Text:   text,
		Sender: sender,
		Time:   time.Now(),
	}
	b.mu.Lock()
	b.log = append(b.log, m)
	b.mu.Unlock()
	if b.notify != nil {
		b.notify(m)
	}
}

// send transmits text and appends the optimistic local echo. It is a
// silent no-op unless the channel is Ready, in message mode, and text
// is non-empty.
func (b *ChannelBinding) send(text string) {
	if text == "" || b.mode != ChannelModeMessages {
		return
	}
	b.mu.Lock()
	dc := b.dc
	ready := b.state == ChannelReady
	b.mu.Unlock()
	if !ready || dc == nil {
		return
	}
	if err := dc.SendText(text); err != nil {
		b.logger.WithError(err).Warn("data channel send failed")
		return
	}
	b.append(text, SenderLocal)
}

// State returns the channel's sub-state.
func (b *ChannelBinding) State() ChannelState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastError returns the error that moved the channel to ChannelErrored.
func (b *ChannelBinding) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Messages returns a copy of the append-only message log.
func (b *ChannelBinding) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.log))
	copy(out, b.log)
	return out
}

// Conn returns the detached stream view of the channel. It errors
// unless the binding runs in ChannelModeStream and the channel has
// opened.
func (b *ChannelBinding) Conn() (net.Conn, error) {
	if b.mode != ChannelModeStream {
		return nil, ErrNotDetached
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil, ErrChannelNotReady
	}
	return b.conn, nil
}

func (b *ChannelBinding) close() {
	b.mu.Lock()
	dc := b.dc
	conn := b.conn
	b.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	if dc != nil {
		_ = dc.Close()
	}
}
