package pairlink

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/datachannel"
	"golang.org/x/net/context"
)

// connReadBufferSize bounds one datagram read off the detached
// channel. SCTP user messages larger than this are truncated by the
// underlying stream, not by us.
const connReadBufferSize = 65535

// Conn is a net.Conn over a detached WebRTC data channel, available
// for text sessions running in ChannelModeStream.
type Conn struct {
	dataChannel datachannel.ReadWriteCloser

	readBuf chan []byte
	done    chan struct{}

	mu            sync.Mutex
	closed        bool
	readDeadline  time.Time
	writeDeadline time.Time
}

func newConn(dataChannel datachannel.ReadWriteCloser) *Conn {
	c := &Conn{
		dataChannel: dataChannel,
		readBuf:     make(chan []byte),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Read implements the net.Conn Read method. The deadline is the one in
// effect when the call starts; tightening it does not interrupt a read
// already in flight.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()

	if deadline.Before(time.Now()) && !deadline.IsZero() {
		return 0, os.ErrDeadlineExceeded
	}

	var ctx context.Context = context.Background()
	var cancel context.CancelFunc = func() {}
	if !deadline.IsZero() {
		ctx, cancel = context.WithDeadline(ctx, deadline)
	}
	defer cancel()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, os.ErrDeadlineExceeded
		}
		return 0, ctx.Err()
	case <-c.done:
		return 0, io.EOF
	case b, ok := <-c.readBuf:
		if !ok {
			return 0, io.EOF
		}
		var err error
		if len(b) > len(p) {
			err = io.ErrShortBuffer
		}
		return copy(p, b), err
	}
}

// Write implements the net.Conn Write method.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	deadline := c.writeDeadline
	c.mu.Unlock()
	if deadline.Before(time.Now()) && !deadline.IsZero() {
		return 0, os.ErrDeadlineExceeded
	}
	return c.dataChannel.Write(p)
}

// Close implements the net.Conn Close method. It also releases the
// read pump if it sits on an undelivered payload.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
	return c.dataChannel.Close()
}

// LocalAddr implements the net.Conn LocalAddr method. The selected
// candidate pair lives on the controller, not the channel, so this is
// hardcoded to nil; see Controller.PeerAddrs.
func (*Conn) LocalAddr() net.Addr {
	return nil
}

// RemoteAddr implements the net.Conn RemoteAddr method.
//
// Hardcoded to nil, see LocalAddr.
func (*Conn) RemoteAddr() net.Addr {
	return nil
}

// SetDeadline implements the net.Conn SetDeadline method.
// It sets both read and write deadlines in a single call.
func (c *Conn) SetDeadline(deadline time.Time) error {
	if deadline.Before(time.Now()) && !deadline.IsZero() {
		return errors.New("deadline is in the past")
	}
	c.mu.Lock()
	c.readDeadline = deadline
	c.writeDeadline = deadline
	c.mu.Unlock()
	return nil
}

// SetReadDeadline sets the deadline for future Read calls. A Read call
// fails with os.ErrDeadlineExceeded once the deadline has passed, and
// blocks no later than it.
func (c *Conn) SetReadDeadline(deadline time.Time) error {
	if deadline.Before(time.Now()) && !deadline.IsZero() {
		return errors.New("deadline is in the past")
	}
	c.mu.Lock()
	c.readDeadline = deadline
	c.mu.Unlock()
	return nil
}

// SetWriteDeadline sets the deadline for future Write calls. A Write
// call fails with os.ErrDeadlineExceeded before touching the channel
// if the deadline has passed; an in-flight write is not interrupted.
func (c *Conn) SetWriteDeadline(deadline time.Time) error {
	if deadline.Before(time.Now()) && !deadline.IsZero() {
		return errors.New("deadline is in the past")
	}
	c.mu.Lock()
	c.writeDeadline = deadline
	c.mu.Unlock()
	return nil
}

// readLoop pumps the detached channel into readBuf until the channel
// fails or closes. A payload nobody reads must not pin the pump past
// Close, so delivery races the done channel.
func (c *Conn) readLoop() {
	for {
		b := make([]byte, connReadBufferSize)
		n, err := c.dataChannel.Read(b)
		if err != nil {
			close(c.readBuf)
			return
		}
		select {
		case c.readBuf <- b[:n]:
		case <-c.done:
			return
		}
	}
}
