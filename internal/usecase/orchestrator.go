// Package usecase contains the session lifecycle orchestrator: the one
// component allowed to mutate session status, own the transcript log, and
// drive the start/stop sequence across the injected collaborators.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lexlive/internal/domain"
	"lexlive/internal/logging"
	"lexlive/internal/ports"
)

// Mode selects where transcription happens.
type Mode string

const (
	// ModeRelay publishes audio to the room and receives finalized entries
	// over the backend transcript channel.
	ModeRelay Mode = "relay"
	// ModeDirect opens a local recognition socket and streams captured
	// audio to it alongside the room track.
	ModeDirect Mode = "direct"
)

var errSessionEnded = errors.New("session ended during start")

// Config carries the orchestrator's tunables. Zero values fall back to
// safe defaults where one exists.
type Config struct {
	Mic            ports.AudioConfig
	Monitor        ports.AudioConfig
	SystemAudio    bool
	Streaming      ports.StreamingConfig
	Mode           Mode
	Role           string
	TrackName      string
	ChunkSize      int
	StreamingGrace time.Duration
}

// Deps are the orchestrator's collaborators. All are required except
// InspectToken; Credentials and Recognition may be nil in relay mode.
type Deps struct {
	API         ports.SessionAPI
	Credentials ports.CredentialSource
	Recognition ports.RecognitionProvider
	Room        ports.RoomTransport
	Microphone  ports.AudioCapture
	Display     ports.DisplayCapture
	Mixer       ports.Mixer
	Feed        ports.TranscriptFeed
	Events      ports.EventSink

	// InspectToken decodes the issued connection token and returns the
	// room it grants. Mismatches are logged, never fatal: the server is
	// authoritative and the decode is a cross-check.
	InspectToken func(token string) (string, error)
}

// Orchestrator runs at most one live session at a time.
type Orchestrator struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger

	logbook *TranscriptLog

	mu      sync.Mutex
	status  domain.SessionStatus
	lastErr string
	current *liveSession
}

func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.Role == "" {
		cfg.Role = "lawyer"
	}
	if cfg.TrackName == "" {
		cfg.TrackName = "session-audio"
	}
	if cfg.StreamingGrace <= 0 {
		cfg.StreamingGrace = time.Second
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		log:     logging.Component("session"),
		logbook: NewTranscriptLog(),
		status:  domain.StatusIdle,
	}
}

// Start provisions a session and brings the audio pipeline up:
// session-start API, room join, capture, mix, publish, then transcription.
// Any failure tears down everything acquired so far and leaves status at
// error; a second Start while one is live fails with ErrSessionActive.
func (o *Orchestrator) Start(ctx context.Context) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	active := &liveSession{cancel: cancel}

	o.mu.Lock()
	if o.current != nil {
		o.mu.Unlock()
		cancel()
		return domain.ErrSessionActive
	}
	o.current = active
	o.status = domain.StatusConnecting
	o.lastErr = ""
	o.mu.Unlock()
	o.deps.Events.StatusChanged(domain.StatusConnecting, domain.ReasonSessionRequested)

	info, err := o.deps.API.StartSession(sessionCtx)
	if err != nil {
		return o.fail(active, domain.ErrorCodeSessionAPI, err)
	}
	if !active.set(func(s *liveSession) { s.info = info }) {
		return o.fail(active, domain.ErrorCodeSessionAPI, errSessionEnded)
	}

	log := logging.WithSession(info.SessionID, info.RoomName)
	log.Info().Str("server_url", info.ServerURL).Msg("session provisioned")

	token, err := info.Token(o.cfg.Role)
	if err != nil {
		return o.fail(active, domain.ErrorCodeSessionAPI, err)
	}
	o.crossCheckToken(log, token, info.RoomName)

	if err := o.startAudio(sessionCtx, active, info, token); err != nil {
		return o.fail(active, errorCodeFor(err), fmt.Errorf("failed to start audio streaming: %w", err))
	}

	if err := o.startTranscription(sessionCtx, active, info); err != nil {
		return o.fail(active, errorCodeFor(err), err)
	}

	o.setStatusFor(active, domain.StatusStreaming, domain.ReasonTrackPublished)
	log.Info().Str("mode", string(o.mode())).Msg("session streaming")
	return nil
}

func (o *Orchestrator) mode() Mode {
	if o.cfg.Mode == ModeDirect {
		return ModeDirect
	}
	return ModeRelay
}

func (o *Orchestrator) crossCheckToken(log zerolog.Logger, token, roomName string) {
	if o.deps.InspectToken == nil {
		return
	}
	granted, err := o.deps.InspectToken(token)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("could not inspect room token")
	case granted != roomName:
		log.Warn().Str("granted_room", granted).Msg("room token grants a different room")
	}
}

// startAudio joins the room, acquires the capture sessions, builds the mix
// graph and publishes the outbound track. Resources attach to the session
// as they come up so teardown can reach them.
func (o *Orchestrator) startAudio(ctx context.Context, active *liveSession, info domain.SessionInfo, token string) error {
	callbacks := ports.RoomCallbacks{
		OnDisconnected: func() { o.onRoomDisconnected(active) },
		OnStateChanged: func(state string) {
			o.log.Debug().Str("state", state).Msg("room connection state")
		},
	}
	handle, err := o.deps.Room.Connect(ctx, info.ServerURL, token, callbacks)
	if err != nil {
		return err
	}
	if !active.set(func(s *liveSession) { s.room = handle }) {
		handle.Disconnect()
		return errSessionEnded
	}
	o.setStatusFor(active, domain.StatusConnected, domain.ReasonRoomJoined)

	mic, err := o.deps.Microphone.Start(ctx, o.cfg.Mic)
	if err != nil {
		return err
	}
	if !active.set(func(s *liveSession) { s.mic = mic }) {
		_ = mic.Stop()
		return errSessionEnded
	}

	var monitor ports.AudioSession
	if o.cfg.SystemAudio {
		monitor, err = o.deps.Display.Start(ctx, o.cfg.Monitor)
		if err != nil {
			return err
		}
		if !active.set(func(s *liveSession) { s.monitor = monitor }) {
			_ = monitor.Stop()
			return errSessionEnded
		}
	}

	mixed, err := o.deps.Mixer.Mix(mic, monitor)
	if err != nil {
		return err
	}
	if !active.set(func(s *liveSession) { s.mixed = mixed }) {
		_ = mixed.Stop()
		return errSessionEnded
	}

	writer, err := handle.PublishPCMTrack(o.cfg.TrackName, o.cfg.Mic.SampleRate, o.cfg.Mic.Channels)
	if err != nil {
		return err
	}
	if !active.set(func(s *liveSession) { s.writer = writer }) {
		_ = writer.Close()
		return errSessionEnded
	}
	return nil
}

// startTranscription wires the transcript path for the configured mode and
// starts the audio pump. In relay mode the backend produces entries; in
// direct mode a local recognition socket does.
func (o *Orchestrator) startTranscription(ctx context.Context, active *liveSession, info domain.SessionInfo) error {
	var recognition ports.RecognitionSession

	switch o.mode() {
	case ModeDirect:
		credential, err := o.deps.Credentials.Fetch(ctx)
		if err != nil {
			return err
		}
		recognition, err = o.deps.Recognition.StartStreaming(ctx, credential, o.cfg.Streaming)
		if err != nil {
			return err
		}
		consumeDone := make(chan struct{})
		if !active.set(func(s *liveSession) {
			s.recognition = recognition
			s.consumeDone = consumeDone
		}) {
			_ = recognition.Close()
			return errSessionEnded
		}
		go o.consumeRecognition(active, recognition, consumeDone)
	default:
		handler := func(msg domain.TranscriptMessage) { o.appendRelayed(active, msg) }
		if err := o.deps.Feed.Connect(ctx, info.RoomName, handler); err != nil {
			return err
		}
	}

	pumpDone := make(chan struct{})
	var mixed ports.AudioSession
	var writer ports.FrameWriter
	if !active.set(func(s *liveSession) {
		mixed, writer = s.mixed, s.writer
		s.pumpDone = pumpDone
	}) || mixed == nil {
		return errSessionEnded
	}
	go pumpAudioFrames(mixed, writer, recognition, o.cfg.ChunkSize, o.deps.Events, pumpDone)
	return nil
}

// consumeRecognition drains the recognition socket: partials go straight to
// the sink, finals land in the log. A terminal socket error mid-stream moves
// the session to error without tearing down the room.
func (o *Orchestrator) consumeRecognition(active *liveSession, session ports.RecognitionSession, done chan struct{}) {
	defer close(done)

	for event := range session.Events() {
		switch event.Kind {
		case domain.RecognitionPartial:
			o.deps.Events.PartialTranscript(event.Entry.Text)
		case domain.RecognitionFinal:
			if o.logbook.Append(event.Entry) {
				o.deps.Events.EntryAppended(event.Entry)
			}
		}
	}

	if err := session.Wait(); err != nil {
		o.mu.Lock()
		stillCurrent := o.current == active
		if stillCurrent {
			o.status = domain.StatusError
			o.lastErr = err.Error()
		}
		o.mu.Unlock()
		if stillCurrent {
			o.deps.Events.SessionError(domain.ErrorCodeConnection, errorDetail(err))
			o.deps.Events.StatusChanged(domain.StatusError, domain.ReasonTranscriptionError)
		}
	}
}

// appendRelayed converts one backend transcript message into a log entry.
func (o *Orchestrator) appendRelayed(active *liveSession, msg domain.TranscriptMessage) {
	entry := domain.TranscriptEntry{
		Speaker:   active.speakerIndex(msg.Speaker),
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}
	if o.logbook.Append(entry) {
		o.deps.Events.EntryAppended(entry)
	}
}

// End stops the active session and releases every resource it holds: the
// capture path first so the pump quiesces, then the recognition drain, then
// the rest. Safe to call at any time, including with no session live; it
// never errors.
func (o *Orchestrator) End(ctx context.Context) {
	o.mu.Lock()
	active := o.current
	wasIdle := o.status == domain.StatusIdle
	o.current = nil
	o.status = domain.StatusIdle
	o.lastErr = ""
	o.mu.Unlock()

	if active == nil {
		o.deps.Feed.Disconnect()
		if !wasIdle {
			o.deps.Events.StatusChanged(domain.StatusIdle, domain.ReasonSessionEnded)
		}
		return
	}

	info := active.snapshotInfo()
	log := logging.WithSession(info.SessionID, info.RoomName)
	log.Info().Msg("ending session")

	active.stopAudio()
	o.drainRecognition(active)
	active.release()
	o.deps.Feed.Disconnect()
	if err := o.deps.Mixer.Close(); err != nil {
		log.Warn().Err(err).Msg("mix graph close failed")
	}
	if info.SessionID != "" {
		o.deps.API.EndSession(ctx, info.SessionID)
	}
	o.logbook.Clear()
	o.deps.Events.StatusChanged(domain.StatusIdle, domain.ReasonSessionEnded)
}

// drainRecognition closes the send side and gives the provider a grace
// period to flush buffered results before the hard close in release.
func (o *Orchestrator) drainRecognition(active *liveSession) {
	active.mu.Lock()
	recognition := active.recognition
	active.mu.Unlock()
	if recognition == nil {
		return
	}
	if err := recognition.CloseSend(); err != nil {
		o.log.Debug().Err(err).Msg("recognition drain signal failed")
		return
	}
	if err := waitForStream(recognition, o.cfg.StreamingGrace); err != nil {
		o.log.Debug().Err(err).Msg("recognition stream ended with error")
	}
}

// Status reports the current lifecycle state. Session identifiers are only
// present while a session is live.
func (o *Orchestrator) Status() domain.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := domain.Status{State: o.status, Error: o.lastErr}
	if o.current != nil {
		info := o.current.snapshotInfo()
		status.SessionID = info.SessionID
		status.RoomName = info.RoomName
	}
	return status
}

// Transcript returns the finalized entries of the current session in
// emission order.
func (o *Orchestrator) Transcript() []domain.TranscriptEntry {
	return o.logbook.Entries()
}

// fail tears the half-started session down and records the failure, unless
// End already claimed it, in which case only the error return survives.
func (o *Orchestrator) fail(active *liveSession, code domain.ErrorCode, err error) error {
	active.release()
	o.deps.Feed.Disconnect()
	_ = o.deps.Mixer.Close()

	o.mu.Lock()
	stillCurrent := o.current == active
	if stillCurrent {
		o.current = nil
		o.status = domain.StatusError
		o.lastErr = err.Error()
	}
	o.mu.Unlock()

	if stillCurrent {
		info := active.snapshotInfo()
		if info.SessionID != "" {
			o.deps.API.EndSession(context.Background(), info.SessionID)
		}
		o.log.Error().Err(err).Str("code", string(code)).Msg("session start failed")
		o.deps.Events.SessionError(code, errorDetail(err))
		o.deps.Events.StatusChanged(domain.StatusError, domain.ReasonStartFailed)
	}
	return err
}

// setStatusFor transitions status only while the given session is still
// current, so a racing End cannot be overwritten by a stale start step.
func (o *Orchestrator) setStatusFor(active *liveSession, status domain.SessionStatus, reason domain.StatusReason) {
	o.mu.Lock()
	if o.current != active {
		o.mu.Unlock()
		return
	}
	o.status = status
	o.mu.Unlock()
	o.deps.Events.StatusChanged(status, reason)
}

// onRoomDisconnected handles the transport dropping underneath a live
// session. The session resources stay up for End to reclaim.
func (o *Orchestrator) onRoomDisconnected(active *liveSession) {
	o.mu.Lock()
	relevant := o.current == active &&
		(o.status == domain.StatusConnected || o.status == domain.StatusStreaming)
	if relevant {
		o.status = domain.StatusDisconnected
	}
	o.mu.Unlock()
	if relevant {
		o.log.Warn().Msg("room connection lost")
		o.deps.Events.StatusChanged(domain.StatusDisconnected, domain.ReasonRemoteDisconnect)
	}
}

// errorCodeFor maps a start failure onto the user-facing taxonomy.
func errorCodeFor(err error) domain.ErrorCode {
	var connErr *domain.ConnectionError
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return domain.ErrorCodePermission
	case errors.Is(err, domain.ErrNoAudioTrack):
		return domain.ErrorCodeNoAudioTrack
	case errors.Is(err, domain.ErrCredentialUnavailable):
		return domain.ErrorCodeCredential
	case errors.As(err, &connErr):
		return domain.ErrorCodeConnection
	default:
		return domain.ErrorCodeAudioStream
	}
}

// errorDetail renders an error for the sink, appending the connection hint
// when the failure carries one.
func errorDetail(err error) string {
	var connErr *domain.ConnectionError
	if errors.As(err, &connErr) {
		return fmt.Sprintf("%v (%s)", err, connErr.Hint())
	}
	return err.Error()
}
