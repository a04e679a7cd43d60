package pairlink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// fakeMediaSource stands in for the platform capture stack.
type fakeMediaSource struct {
	denied error

	mu     sync.Mutex
	tracks []*webrtc.TrackLocalStaticSample
	closed bool
}

func (f *fakeMediaSource) Acquire() ([]webrtc.TrackLocal, error) {
	if f.denied != nil {
		return nil, f.denied
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "fake-capture")
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "fake-capture")
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.tracks = []*webrtc.TrackLocalStaticSample{audio, video}
	f.mu.Unlock()
	return []webrtc.TrackLocal{audio, video}, nil
}

// writeSamples pushes one dummy sample per track; no-op before Acquire.
func (f *fakeMediaSource) writeSamples() {
	f.mu.Lock()
	tracks := f.tracks
	f.mu.Unlock()
	for _, track := range tracks {
		_ = track.WriteSample(media.Sample{Data: []byte{0x00, 0x01, 0x02, 0x03}, Duration: 33 * time.Millisecond})
	}
}

func (f *fakeMediaSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeMediaSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testCallConfig(source MediaSource) *Config {
	cfg := testConfig()
	cfg.Kind = SessionCall
	cfg.Media = source
	// Loopback only; opt out of the default public STUN set.
	cfg.ICEServers = []webrtc.ICEServer{}
	return cfg
}

func TestCallRequiresMediaSource(t *testing.T) {
	ctrl := NewController(testCallConfig(nil))

	err := ctrl.Start(context.Background(), RoleOfferer)
	if !errors.Is(err, ErrMediaSourceRequired) {
		t.Fatalf("Start() = %v, want ErrMediaSourceRequired", err)
	}
	if ctrl.State() != StateNew {
		t.Fatalf("State() = %s, want New", ctrl.State())
	}
}

func TestCallCaptureDenied(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	cfg := testCallConfig(&fakeMediaSource{denied: errors.New("permission denied by platform")})
	ctrl := NewController(cfg)
	defer ctrl.Reset()

	err := ctrl.Start(ctx, RoleAnswerer)
	if !errors.Is(err, ErrMediaAccess) {
		t.Fatalf("Start() with denied capture = %v, want ErrMediaAccess", err)
	}

	// Start aborted before any descriptor; the user can simply retry.
	if ctrl.State() != StateNew || ctrl.LocalDescriptor() != "" {
		t.Fatalf("denied capture left state=%s descriptor=%q", ctrl.State(), ctrl.LocalDescriptor())
	}

	cfg.Media = &fakeMediaSource{}
	if err := ctrl.Start(ctx, RoleAnswerer); err != nil {
		t.Fatalf("retry after granting capture: %v", err)
	}
	if ctrl.State() != StateAwaitingRemote {
		t.Fatalf("State() after retry = %s, want AwaitingRemote", ctrl.State())
	}
}

func TestCallOfferAdvertisesMedia(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	ctrl := NewController(testCallConfig(&fakeMediaSource{}))
	defer ctrl.Reset()

	if err := ctrl.Start(ctx, RoleOfferer); err != nil {
		t.Fatalf("Start(): %v", err)
	}

	// Tracks were attached before the offer was created, so the
	// descriptor must advertise both media sections.
	desc, err := DecodeDescriptor(ctrl.LocalDescriptor())
	if err != nil {
		t.Fatalf("DecodeDescriptor(): %v", err)
	}
	if !strings.Contains(desc.SDP, "m=audio") || !strings.Contains(desc.SDP, "m=video") {
		t.Fatalf("offer does not advertise audio+video:\n%s", desc.SDP)
	}

	if got := len(ctrl.Media().LocalTracks()); got != 2 {
		t.Fatalf("LocalTracks() = %d, want 2", got)
	}
}

func TestCallSessionBindsRemoteStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	offererSource := &fakeMediaSource{}
	offerer := NewController(testCallConfig(offererSource))
	answerer := NewController(testCallConfig(&fakeMediaSource{}))
	defer offerer.Reset()
	defer answerer.Reset()

	bound := make(chan *RemoteStream, 1)
	answerer.OnRemoteStream(func(s *RemoteStream) {
		select {
		case bound <- s:
		default:
		}
	})

	connectPair(t, ctx, offerer, answerer)

	// Remote tracks only surface once RTP flows, so keep feeding
	// samples until the answerer binds the stream.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				offererSource.writeSamples()
			}
		}
	}()

	select {
	case s := <-bound:
		if s.ID != "fake-capture" {
			t.Fatalf("bound stream %q, want fake-capture", s.ID)
		}
		if answerer.RemoteStream() == nil {
			t.Fatalf("RemoteStream() = nil after the stream was bound")
		}
	case <-ctx.Done():
		t.Fatalf("remote stream never bound")
	}
}

func TestResetReleasesCapture(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	defer cancel()

	source := &fakeMediaSource{}
	ctrl := NewController(testCallConfig(source))

	if err := ctrl.Start(ctx, RoleOfferer); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	if source.isClosed() {
		t.Fatalf("capture released while the session is still live")
	}

	ctrl.Reset()

	waitFor(t, 5*time.Second, "capture released", source.isClosed)
	if ctrl.RemoteStream() != nil || ctrl.Media() != nil {
		t.Fatalf("Reset() left media references behind")
	}
}
