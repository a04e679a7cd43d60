package pairlink

import (
	"fmt"
	"net"
)

// PeerAddr is one end of the selected ICE candidate pair, a net.Addr
// compliance struct.
type PeerAddr struct {
	NetworkType string // for now, UDP only
	IP          net.IP
	Port        uint16
}

func (a PeerAddr) Network() string {
	return a.NetworkType
}

func (a PeerAddr) String() string {
	return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
}

// PeerAddrs reports the local and remote addresses of the candidate
// pair the transport selected, or nils while no pair is nominated.
func (c *Controller) PeerAddrs() (local, remote *PeerAddr) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil, nil
	}

	sctp := sess.pc.SCTP()
	if sctp == nil {
		return nil, nil
	}
	dtls := sctp.Transport()
	if dtls == nil {
		return nil, nil
	}
	iceTransport := dtls.ICETransport()
	if iceTransport == nil {
		return nil, nil
	}
	pair, err := iceTransport.GetSelectedCandidatePair()
	if err != nil || pair == nil || pair.Local == nil || pair.Remote == nil {
		return nil, nil
	}

	local = &PeerAddr{
		NetworkType: "udp",
		IP:          net.ParseIP(pair.Local.Address),
		Port:        pair.Local.Port,
	}
	remote = &PeerAddr{
		NetworkType: "udp",
		IP:          net.ParseIP(pair.Remote.Address),
		Port:        pair.Remote.Port,
	}
	return local, remote
}
