package ports

import (
	"context"
	"io"

	"lexlive/internal/domain"
)

// AudioConfig describes how a local source should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	FilterChain string
}

// AudioSession is a live capture or mix session producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture acquires the microphone with processing (echo cancellation,
// noise suppression) applied at the source.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// DisplayCapture acquires shared system/tab audio. Implementations must probe
// the source and fail with domain.ErrNoAudioTrack when it carries no audio,
// before any socket is opened.
type DisplayCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Mixer combines capture sessions into one outbound signal through a shared
// graph. The graph is created lazily and closed exactly once.
type Mixer interface {
	Mix(a, b AudioSession) (AudioSession, error)
	Close() error
}

// StreamingConfig describes provider-agnostic recognition settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
	Diarize        bool
	Punctuate      bool
}

// RecognitionSession is an open recognition socket.
type RecognitionSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.RecognitionEvent
	Wait() error
	Close() error
}

// RecognitionProvider opens recognition sessions authenticated by a
// short-lived credential. At most one session may be open per provider.
type RecognitionProvider interface {
	StartStreaming(ctx context.Context, credential string, cfg StreamingConfig) (RecognitionSession, error)
}

// CredentialSource exchanges the server-held provider secret for a
// short-lived client credential. Results are never cached across sessions.
type CredentialSource interface {
	Fetch(ctx context.Context) (string, error)
}

// FrameWriter accepts fixed-size PCM frames for a published track.
type FrameWriter interface {
	WriteFrame(frame []int16) error
	Close() error
}

// RoomCallbacks are advisory notifications from the room transport. The
// authoritative status lives in the orchestrator, never here.
type RoomCallbacks struct {
	OnDisconnected func()
	OnStateChanged func(state string)
}

// RoomHandle is one joined room.
type RoomHandle interface {
	PublishPCMTrack(name string, sampleRate, channels int) (FrameWriter, error)
	Disconnect()
}

// RoomTransport joins media-routing rooms.
type RoomTransport interface {
	Connect(ctx context.Context, url, token string, cb RoomCallbacks) (RoomHandle, error)
}

// TranscriptFeed is the backend-relayed transcript delivery channel.
// Connect while connected is a no-op; Disconnect is idempotent.
type TranscriptFeed interface {
	Connect(ctx context.Context, roomName string, handler func(domain.TranscriptMessage)) error
	Disconnect()
}

// SessionAPI is the session-management collaborator.
type SessionAPI interface {
	StartSession(ctx context.Context) (domain.SessionInfo, error)
	// EndSession is fire-and-forget: failures are logged by the
	// implementation and never block local teardown.
	EndSession(ctx context.Context, sessionID string)
}

// EventSink surfaces session state and user-facing notifications.
type EventSink interface {
	StatusChanged(status domain.SessionStatus, reason domain.StatusReason)
	PartialTranscript(text string)
	EntryAppended(entry domain.TranscriptEntry)
	SessionError(code domain.ErrorCode, detail string)
}
