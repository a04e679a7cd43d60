package pairlink

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
)

func TestSetLocalDescriptionGathersOffer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	cfg := testConfig()
	pc, err := cfg.newPeerConnection(RoleOfferer)
	if err != nil {
		t.Fatalf("newPeerConnection(): %v", err)
	}
	defer pc.Close()

	if _, err := pc.CreateDataChannel("probe", nil); err != nil {
		t.Fatalf("CreateDataChannel(): %v", err)
	}

	if err := setLocalDescription(ctx, pc, RoleOfferer); err != nil {
		t.Fatalf("setLocalDescription(): %v", err)
	}

	if pc.LocalDescription() == nil {
		t.Fatalf("no local description set")
	}
	if pc.ICEGatheringState() != webrtc.ICEGatheringStateComplete {
		t.Fatalf("ICEGatheringState() = %s, want complete", pc.ICEGatheringState())
	}
}

func TestSetLocalDescriptionHonorsContext(t *testing.T) {
	cfg := testConfig()
	// A single unroutable STUN server keeps gathering busy long enough
	// for the context to win.
	cfg.ICEServers = []webrtc.ICEServer{{URLs: []string{"stun:192.0.2.1:19302"}}}

	pc, err := cfg.newPeerConnection(RoleOfferer)
	if err != nil {
		t.Fatalf("newPeerConnection(): %v", err)
	}
	defer pc.Close()

	if _, err := pc.CreateDataChannel("probe", nil); err != nil {
		t.Fatalf("CreateDataChannel(): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	if err := setLocalDescription(ctx, pc, RoleOfferer); err == nil {
		t.Fatalf("setLocalDescription() ignored an expired context")
	}
}
