package pairlink

import (
	"context"

	"github.com/pion/webrtc/v3"
)

// setLocalDescription creates the local offer or answer for role, sets
// it on pc and blocks until ICE candidate gathering is complete.
//
// Trickle ICE is deliberately off: each side gets exactly one blob to
// copy, so the whole candidate set must ride in that one descriptor.
// The gathering promise resolves immediately if gathering already
// finished, and exactly once otherwise. There is no timeout beyond the
// caller's context; gathering that never completes blocks until the
// context is done.
func setLocalDescription(ctx context.Context, pc *webrtc.PeerConnection, role Role) error {
	var desc webrtc.SessionDescription
	var err error
	if role == RoleOfferer {
		desc, err = pc.CreateOffer(nil)
	} else {
		desc, err = pc.CreateAnswer(nil)
	}
	if err != nil {
		return err
	}

	// The promise must be armed before SetLocalDescription starts the
	// UDP listeners, or a fast gather could complete unobserved.
	gatherComplete := webrtc.GatheringCompletePromise(pc)

	if err = pc.SetLocalDescription(desc); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-gatherComplete:
		return nil
	}
}
