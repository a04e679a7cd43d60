package pairlink

import "errors"

var (
	ErrMalformedDescriptor = errors.New("pairlink: malformed descriptor text")
	ErrMediaAccess         = errors.New("pairlink: local media access denied")
	ErrMediaSourceRequired = errors.New("pairlink: call session requires a media source")
	ErrChannelNotReady     = errors.New("pairlink: data channel not ready")
	ErrNotDetached         = errors.New("pairlink: data channel not in stream mode")
	ErrConnectionFailed    = errors.New("pairlink: peer connection failed")
)
