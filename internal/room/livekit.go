// Package room owns the media-routing connection: joining a LiveKit room
// with a per-session token and publishing the mixed audio track.
package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"lexlive/internal/logging"
	"lexlive/internal/ports"
)

// Transport implements ports.RoomTransport over the LiveKit SDK.
type Transport struct {
	log zerolog.Logger
}

func NewTransport() *Transport {
	return &Transport{log: logging.Component("room")}
}

// Connect joins the room. Room-level callbacks are advisory: they are logged
// and forwarded, but the authoritative session status is owned by the
// orchestrator. Auto-subscribe stays off: this participant only publishes.
func (t *Transport) Connect(ctx context.Context, url, token string, cb ports.RoomCallbacks) (ports.RoomHandle, error) {
	callbacks := &lksdk.RoomCallback{
		OnDisconnected: func() {
			t.log.Info().Msg("disconnected from room")
			if cb.OnDisconnected != nil {
				cb.OnDisconnected()
			}
		},
		OnParticipantConnected: func(p *lksdk.RemoteParticipant) {
			t.log.Info().Str("identity", p.Identity()).Msg("participant connected")
		},
		OnParticipantDisconnected: func(p *lksdk.RemoteParticipant) {
			t.log.Info().Str("identity", p.Identity()).Msg("participant disconnected")
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				t.log.Debug().
					Str("identity", rp.Identity()).
					Str("kind", track.Kind().String()).
					Msg("track subscribed")
			},
		},
	}

	lkRoom, err := lksdk.ConnectToRoomWithToken(url, token, callbacks, lksdk.WithAutoSubscribe(false))
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}
	if cb.OnStateChanged != nil {
		cb.OnStateChanged("connected")
	}

	t.log.Info().Str("room", lkRoom.Name()).Str("identity", lkRoom.LocalParticipant.Identity()).Msg("joined room")

	return &handle{room: lkRoom, log: t.log}, nil
}

type handle struct {
	room *lksdk.Room
	log  zerolog.Logger

	mu    sync.Mutex
	track *lkmedia.PCMLocalTrack

	disconnectOnce sync.Once
}

// PublishPCMTrack publishes one named audio track carrying raw PCM frames.
func (h *handle) PublishPCMTrack(name string, sampleRate, channels int) (ports.FrameWriter, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.track != nil {
		return nil, fmt.Errorf("track %q already published", name)
	}

	track, err := lkmedia.NewPCMLocalTrack(sampleRate, channels, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create PCM track: %w", err)
	}

	pub, err := h.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   name,
		Source: livekit.TrackSource_MICROPHONE,
	})
	if err != nil {
		track.Close()
		return nil, fmt.Errorf("failed to publish track: %w", err)
	}
	pub.SetMuted(false)
	h.track = track

	h.log.Info().Str("track", name).Int("sampleRate", sampleRate).Msg("published audio track")
	return &trackWriter{track: track}, nil
}

// Disconnect leaves the room and stops the published track. Idempotent.
func (h *handle) Disconnect() {
	h.disconnectOnce.Do(func() {
		h.mu.Lock()
		track := h.track
		h.track = nil
		h.mu.Unlock()

		if track != nil {
			track.Close()
		}
		h.room.Disconnect()
		h.log.Info().Msg("left room")
	})
}

type trackWriter struct {
	mu    sync.Mutex
	track *lkmedia.PCMLocalTrack
}

func (w *trackWriter) WriteFrame(frame []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.track == nil {
		return fmt.Errorf("track is closed")
	}
	return w.track.WriteSample(frame)
}

func (w *trackWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.track != nil {
		w.track.Close()
		w.track = nil
	}
	return nil
}
