// Package notify turns session events into user-facing notifications and
// structured logs, with optional error reporting to Sentry.
package notify

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"lexlive/internal/domain"
	"lexlive/internal/logging"
)

// Notifier is where user-visible messages end up: a toast layer, a TUI
// status line, whatever the frontend provides.
type Notifier interface {
	Notify(level, title, message string)
}

// Sink implements the event sink over a notifier plus structured logging.
// ReportErrors additionally forwards session errors to Sentry when the SDK
// was initialized at startup.
type Sink struct {
	notifier     Notifier
	log          zerolog.Logger
	reportErrors bool
}

func NewSink(notifier Notifier, reportErrors bool) *Sink {
	return &Sink{
		notifier:     notifier,
		log:          logging.Component("notify"),
		reportErrors: reportErrors,
	}
}

func (s *Sink) StatusChanged(status domain.SessionStatus, reason domain.StatusReason) {
	s.log.Info().
		Str("status", string(status)).
		Str("reason", string(reason)).
		Msg("session status changed")

	if title, message, ok := statusMessage(status, reason); ok {
		s.notify("info", title, message)
	}
}

func (s *Sink) PartialTranscript(text string) {
	s.log.Debug().Str("text", text).Msg("interim transcript")
}

func (s *Sink) EntryAppended(entry domain.TranscriptEntry) {
	s.log.Debug().
		Int("speaker", entry.Speaker).
		Int64("timestamp", entry.Timestamp).
		Msg("transcript entry appended")
}

func (s *Sink) SessionError(code domain.ErrorCode, detail string) {
	s.log.Error().
		Str("code", string(code)).
		Str("detail", detail).
		Msg("session error")

	if s.reportErrors {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("error_code", string(code))
			sentry.CaptureMessage(fmt.Sprintf("session error (%s): %s", code, detail))
		})
	}

	title, hint := errorMessage(code)
	message := detail
	if hint != "" {
		message = fmt.Sprintf("%s. %s", detail, hint)
	}
	s.notify("error", title, message)
}

func (s *Sink) notify(level, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(level, title, message)
}

// statusMessage picks the transitions worth surfacing. Intermediate states
// stay in the logs only.
func statusMessage(status domain.SessionStatus, reason domain.StatusReason) (title, message string, ok bool) {
	switch {
	case status == domain.StatusStreaming:
		return "Live session started", "Audio is streaming and transcription is active", true
	case status == domain.StatusIdle && reason == domain.ReasonSessionEnded:
		return "Live session ended", "Audio streaming has stopped", true
	case status == domain.StatusDisconnected && reason == domain.ReasonRemoteDisconnect:
		return "Connection lost", "The media room dropped the connection; end the session and retry", true
	default:
		return "", "", false
	}
}

// errorMessage maps an error code onto a headline and the actionable hint
// shown under it.
func errorMessage(code domain.ErrorCode) (title, hint string) {
	switch code {
	case domain.ErrorCodePermission:
		return "Microphone unavailable", "Grant microphone access and start the session again"
	case domain.ErrorCodeNoAudioTrack:
		return "No shared audio", "Enable \"share audio\" when picking the tab or screen to capture"
	case domain.ErrorCodeCredential:
		return "Transcription unavailable", "Verify the transcription credentials configuration"
	case domain.ErrorCodeConnection:
		return "Transcription connection failed", ""
	case domain.ErrorCodeSessionAPI:
		return "Could not start session", "Check that the case-management backend is reachable"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming failed", "End the session and start again"
	default:
		return "Session error", ""
	}
}
