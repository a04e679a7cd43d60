package pairlink

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v3"
)

// EncodeDescriptor serializes a session description into the opaque
// text blob the user copies to the peer. A nil description encodes to
// empty text: callers treat "" as "not yet available".
func EncodeDescriptor(desc *webrtc.SessionDescription) (string, error) {
	if desc == nil {
		return "", nil
	}
	b, err := json.Marshal(desc)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeDescriptor parses descriptor text produced by EncodeDescriptor,
// tolerating surrounding whitespace picked up while copy-pasting.
// All parse failures wrap ErrMalformedDescriptor. Side-effect-free.
func DecodeDescriptor(text string) (*webrtc.SessionDescription, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrMalformedDescriptor)
	}
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}
	desc := &webrtc.SessionDescription{}
	if err := json.Unmarshal(b, desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}
	if desc.SDP == "" {
		return nil, fmt.Errorf("%w: missing sdp payload", ErrMalformedDescriptor)
	}
	return desc, nil
}
