package domain

import (
	"errors"
	"fmt"
)

// SessionStatus models the live-session lifecycle.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
	StatusStreaming    SessionStatus = "streaming"
	StatusDisconnected SessionStatus = "disconnected"
	StatusError        SessionStatus = "error"
)

// StatusReason provides a structured reason for status transitions.
type StatusReason string

const (
	ReasonSessionRequested   StatusReason = "session_requested"
	ReasonRoomJoined         StatusReason = "room_joined"
	ReasonTrackPublished     StatusReason = "track_published"
	ReasonRemoteDisconnect   StatusReason = "remote_disconnect"
	ReasonSessionEnded       StatusReason = "session_ended"
	ReasonStartFailed        StatusReason = "start_failed"
	ReasonTranscriptionError StatusReason = "transcription_error"
)

// ErrorCode identifies user-visible failure categories.
type ErrorCode string

const (
	ErrorCodeStartup      ErrorCode = "startup"
	ErrorCodePermission   ErrorCode = "permission_denied"
	ErrorCodeNoAudioTrack ErrorCode = "no_audio_track"
	ErrorCodeCredential   ErrorCode = "credential_unavailable"
	ErrorCodeConnection   ErrorCode = "connection_failed"
	ErrorCodeAudioStream  ErrorCode = "audio_stream"
	ErrorCodeSessionAPI   ErrorCode = "session_api"
)

// Sentinel errors for the failure taxonomy. Callers match with errors.Is.
var (
	ErrPermissionDenied      = errors.New("device access denied")
	ErrNoAudioTrack          = errors.New("shared source has no audio track")
	ErrCredentialUnavailable = errors.New("recognition credential unavailable")
	ErrSessionActive         = errors.New("a live session is already active")
	ErrNoActiveSession       = errors.New("no active live session")
)

// ConnectionErrorKind distinguishes abnormal socket closures.
type ConnectionErrorKind string

const (
	ConnectionErrorAuth      ConnectionErrorKind = "auth"
	ConnectionErrorRateLimit ConnectionErrorKind = "rate_limit"
	ConnectionErrorGeneric   ConnectionErrorKind = "generic"
)

// ConnectionError wraps a socket failure with a classification and the
// provider close code when one was delivered.
type ConnectionError struct {
	Kind      ConnectionErrorKind
	CloseCode int
	Cause     error
}

func (e *ConnectionError) Error() string {
	if e.CloseCode != 0 {
		return fmt.Sprintf("connection failed (%s, close code %d): %v", e.Kind, e.CloseCode, e.Cause)
	}
	return fmt.Sprintf("connection failed (%s): %v", e.Kind, e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// Hint returns the actionable message surfaced to the user.
func (e *ConnectionError) Hint() string {
	switch e.Kind {
	case ConnectionErrorAuth:
		return "verify the transcription API key"
	case ConnectionErrorRateLimit:
		return "transcription quota exceeded, try again later"
	default:
		return "transcription connection failed, restart the session"
	}
}

// TranscriptEntry is one recognized utterance segment. Entries are immutable
// once emitted and the per-session sequence is append-only.
type TranscriptEntry struct {
	Speaker    int     `json:"speaker"`
	Text       string  `json:"text"`
	Timestamp  int64   `json:"timestamp"`
	Confidence float64 `json:"confidence"`
}

// RecognitionEventKind identifies whether a recognizer event is a revisable
// hypothesis or a durable utterance.
type RecognitionEventKind string

const (
	RecognitionPartial RecognitionEventKind = "partial"
	RecognitionFinal   RecognitionEventKind = "final"
)

// RecognitionEvent is incremental output from the recognition socket.
// Only final events carry entries destined for the transcript log.
type RecognitionEvent struct {
	Kind  RecognitionEventKind
	Entry TranscriptEntry
}

// SessionInfo is the validated payload of the session-start endpoint.
// All identifiers are issued together, once per session.
type SessionInfo struct {
	SessionID string
	RoomName  string
	ServerURL string
	Tokens    map[string]string
}

// Token returns the connection token for the given role.
func (s SessionInfo) Token(role string) (string, error) {
	token, ok := s.Tokens[role]
	if !ok || token == "" {
		return "", fmt.Errorf("session tokens missing role %q", role)
	}
	return token, nil
}

// TranscriptMessage is the wire shape pushed over the transcript delivery
// channel by the backend pipeline.
type TranscriptMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Speaker   string `json:"speaker"`
	RoomName  string `json:"roomName"`
	Timestamp int64  `json:"timestamp"`
}

// Status summarizes the current session for callers polling state.
type Status struct {
	State     SessionStatus `json:"state"`
	SessionID string        `json:"sessionId,omitempty"`
	RoomName  string        `json:"roomName,omitempty"`
	Error     string        `json:"error,omitempty"`
}
