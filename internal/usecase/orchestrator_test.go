package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"lexlive/internal/audio"
	"lexlive/internal/domain"
	"lexlive/internal/ports"
)

func testSessionInfo() domain.SessionInfo {
	return domain.SessionInfo{
		SessionID: "sess-1",
		RoomName:  "case-room-1",
		ServerURL: "wss://media.example.com",
		Tokens:    map[string]string{"lawyer": "lawyer-token", "backend": "backend-token"},
	}
}

func newTestHarness() *harness {
	h := &harness{
		api:     &fakeSessionAPI{info: testSessionInfo()},
		creds:   &fakeCredentials{key: "short-lived"},
		rec:     &fakeRecognitionProvider{},
		room:    &fakeRoomTransport{},
		mic:     &fakeAudioCapture{},
		display: &fakeAudioCapture{},
		mixer:   &fakeMixer{},
		feed:    &fakeFeed{},
		events:  &fakeEventSink{},
	}
	h.mic.sessions = []ports.AudioSession{newFakePCMSession(audio.BytesFromSamples([]int16{1, 2, 3, 4}))}
	h.mixer.session = newFakePCMSession(audio.BytesFromSamples([]int16{1, 2, 3, 4}))
	h.room.handle = &fakeRoomHandle{writer: &fakeFrameWriter{}}
	h.rec.session = newFakeRecognitionSession()
	return h
}

type harness struct {
	api     *fakeSessionAPI
	creds   *fakeCredentials
	rec     *fakeRecognitionProvider
	room    *fakeRoomTransport
	mic     *fakeAudioCapture
	display *fakeAudioCapture
	mixer   *fakeMixer
	feed    *fakeFeed
	events  *fakeEventSink
}

func (h *harness) build(cfg Config) *Orchestrator {
	return NewOrchestrator(Deps{
		API:          h.api,
		Credentials:  h.creds,
		Recognition:  h.rec,
		Room:         h.room,
		Microphone:   h.mic,
		Display:      h.display,
		Mixer:        h.mixer,
		Feed:         h.feed,
		Events:       h.events,
		InspectToken: func(string) (string, error) { return "case-room-1", nil },
	}, cfg)
}

func TestOrchestratorRelayStartAndEnd(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	orchestrator := h.build(Config{Mode: ModeRelay})

	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	status := orchestrator.Status()
	if status.State != domain.StatusStreaming {
		t.Fatalf("expected streaming, got %s", status.State)
	}
	if status.SessionID != "sess-1" || status.RoomName != "case-room-1" {
		t.Fatalf("expected session identifiers while live: %+v", status)
	}

	if h.room.lastURL != "wss://media.example.com" || h.room.lastToken != "lawyer-token" {
		t.Fatalf("unexpected room connect: url=%q token=%q", h.room.lastURL, h.room.lastToken)
	}
	if h.feed.roomName() != "case-room-1" {
		t.Fatalf("expected feed filtered by room, got %q", h.feed.roomName())
	}
	if h.room.handle.publishedName != "session-audio" {
		t.Fatalf("unexpected track name: %q", h.room.handle.publishedName)
	}

	states := h.events.snapshotStates()
	wantReasons := []domain.StatusReason{
		domain.ReasonSessionRequested,
		domain.ReasonRoomJoined,
		domain.ReasonTrackPublished,
	}
	if len(states) != len(wantReasons) {
		t.Fatalf("expected %d transitions, got %+v", len(wantReasons), states)
	}
	for i, want := range wantReasons {
		if states[i].reason != want {
			t.Fatalf("transition %d: got %s, want %s", i, states[i].reason, want)
		}
	}

	orchestrator.End(context.Background())

	status = orchestrator.Status()
	if status.State != domain.StatusIdle || status.SessionID != "" {
		t.Fatalf("expected idle with no identifiers, got %+v", status)
	}
	if got := h.api.endedSessions(); len(got) != 1 || got[0] != "sess-1" {
		t.Fatalf("expected end notification for sess-1, got %v", got)
	}
	if h.room.handle.disconnects == 0 {
		t.Fatalf("expected room disconnect on end")
	}
	if h.feed.disconnects() == 0 {
		t.Fatalf("expected feed disconnect on end")
	}
	if h.mixer.closes == 0 {
		t.Fatalf("expected mix graph closed on end")
	}
	if len(orchestrator.Transcript()) != 0 {
		t.Fatalf("expected transcript cleared on end")
	}
}

func TestOrchestratorRelayAppendsDeliveredTranscripts(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	orchestrator := h.build(Config{Mode: ModeRelay})

	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	h.feed.deliver(domain.TranscriptMessage{Type: "transcript", Text: "objection", Speaker: "lawyer", RoomName: "case-room-1", Timestamp: 100})
	h.feed.deliver(domain.TranscriptMessage{Type: "transcript", Text: "sustained", Speaker: "judge", RoomName: "case-room-1", Timestamp: 200})
	h.feed.deliver(domain.TranscriptMessage{Type: "transcript", Text: "noted", Speaker: "lawyer", RoomName: "case-room-1", Timestamp: 300})

	entries := orchestrator.Transcript()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Speaker != 0 || entries[1].Speaker != 1 || entries[2].Speaker != 0 {
		t.Fatalf("speaker labels not mapped stably: %+v", entries)
	}
	if got := h.events.snapshotEntries(); len(got) != 3 || got[0].Text != "objection" {
		t.Fatalf("expected appended events, got %+v", got)
	}

	orchestrator.End(context.Background())
}

func TestOrchestratorDirectModeAppendsFinals(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	h.rec.session.events <- domain.RecognitionEvent{Kind: domain.RecognitionPartial, Entry: domain.TranscriptEntry{Text: "hel"}}
	h.rec.session.events <- domain.RecognitionEvent{Kind: domain.RecognitionFinal, Entry: domain.TranscriptEntry{Speaker: 1, Text: "hello", Timestamp: 10, Confidence: 0.9}}
	orchestrator := h.build(Config{Mode: ModeDirect})

	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if h.creds.calls == 0 {
		t.Fatalf("expected credential exchange in direct mode")
	}
	if h.feed.connects() != 0 {
		t.Fatalf("direct mode must not open the transcript feed")
	}

	orchestrator.End(context.Background())

	if h.rec.session.closeSendCalls() == 0 {
		t.Fatalf("expected graceful drain on end")
	}
	partials := h.events.snapshotPartials()
	if len(partials) != 1 || partials[0] != "hel" {
		t.Fatalf("expected partial event, got %v", partials)
	}
	appended := h.events.snapshotEntries()
	if len(appended) != 1 || appended[0].Text != "hello" || appended[0].Speaker != 1 {
		t.Fatalf("expected final entry appended, got %+v", appended)
	}
}

func TestOrchestratorEndWhileDirectStreaming(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	source := &livePCMSession{}
	h.mixer.session = source
	orchestrator := h.build(Config{Mode: ModeDirect})

	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.rec.session.sentChunks() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("pump never streamed audio")
		}
		time.Sleep(5 * time.Millisecond)
	}

	orchestrator.End(context.Background())

	if source.stops() == 0 {
		t.Fatalf("expected capture stopped on end")
	}
	if h.rec.session.closeSendCalls() == 0 {
		t.Fatalf("expected graceful drain on end")
	}
	if late := h.rec.session.lateSendCalls(); late != 0 {
		t.Fatalf("audio must stop before the stream is closed, got %d late sends", late)
	}
	if errs := h.events.snapshotErrors(); len(errs) != 0 {
		t.Fatalf("ending a live session must not surface errors, got %+v", errs)
	}
	if orchestrator.Status().State != domain.StatusIdle {
		t.Fatalf("expected idle after end")
	}
}

func TestOrchestratorStartWhileActiveFails(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	orchestrator := h.build(Config{Mode: ModeRelay})

	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := orchestrator.Start(context.Background()); !errors.Is(err, domain.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
	orchestrator.End(context.Background())
}

func TestOrchestratorEndWithoutSessionIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	orchestrator := h.build(Config{Mode: ModeRelay})

	orchestrator.End(context.Background())
	orchestrator.End(context.Background())

	if got := orchestrator.Status().State; got != domain.StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if states := h.events.snapshotStates(); len(states) != 0 {
		t.Fatalf("idle end must not emit transitions, got %+v", states)
	}
	if got := h.api.endedSessions(); len(got) != 0 {
		t.Fatalf("idle end must not notify the backend, got %v", got)
	}
}

func TestOrchestratorSessionAPIFailure(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	h.api.err = errors.New("backend down")
	orchestrator := h.build(Config{Mode: ModeRelay})

	if err := orchestrator.Start(context.Background()); err == nil {
		t.Fatalf("expected start failure")
	}

	status := orchestrator.Status()
	if status.State != domain.StatusError || status.Error == "" {
		t.Fatalf("expected error status, got %+v", status)
	}
	errs := h.events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeSessionAPI {
		t.Fatalf("expected session_api error event, got %+v", errs)
	}
	if h.room.connects != 0 {
		t.Fatalf("no room connection should open when provisioning fails")
	}
}

func TestOrchestratorMicrophonePermissionDenied(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	h.mic.err = domain.ErrPermissionDenied
	orchestrator := h.build(Config{Mode: ModeRelay})

	err := orchestrator.Start(context.Background())
	if err == nil || !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission error, got %v", err)
	}

	errs := h.events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodePermission {
		t.Fatalf("expected permission error event, got %+v", errs)
	}
	if h.room.handle.disconnects == 0 {
		t.Fatalf("expected the joined room to be released on failure")
	}
	if h.feed.connects() != 0 {
		t.Fatalf("transcript feed must not open after a capture failure")
	}
	if h.rec.calls != 0 {
		t.Fatalf("recognition socket must not open after a capture failure")
	}
}

func TestOrchestratorSharedSourceWithoutAudioTrack(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	h.display.err = domain.ErrNoAudioTrack
	orchestrator := h.build(Config{Mode: ModeRelay, SystemAudio: true})

	err := orchestrator.Start(context.Background())
	if !errors.Is(err, domain.ErrNoAudioTrack) {
		t.Fatalf("expected no-audio-track error, got %v", err)
	}

	errs := h.events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeNoAudioTrack {
		t.Fatalf("expected no_audio_track error event, got %+v", errs)
	}
	if h.feed.connects() != 0 || h.rec.calls != 0 {
		t.Fatalf("no sockets may open when the shared source has no audio")
	}
	if micSession := h.mic.sessions[0].(*fakePCMSession); micSession.stops() == 0 {
		t.Fatalf("expected microphone released on failure")
	}
}

func TestOrchestratorStartFailureWrapsAudioErrors(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	h.room.err = errors.New("room unreachable")
	orchestrator := h.build(Config{Mode: ModeRelay})

	err := orchestrator.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start audio streaming") {
		t.Fatalf("expected wrapped audio error, got %v", err)
	}
}

func TestOrchestratorCredentialFailureInDirectMode(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	h.creds.err = domain.ErrCredentialUnavailable
	orchestrator := h.build(Config{Mode: ModeDirect})

	err := orchestrator.Start(context.Background())
	if !errors.Is(err, domain.ErrCredentialUnavailable) {
		t.Fatalf("expected credential error, got %v", err)
	}
	errs := h.events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeCredential {
		t.Fatalf("expected credential error event, got %+v", errs)
	}
	if h.rec.calls != 0 {
		t.Fatalf("recognition socket must not open without a credential")
	}
}

func TestOrchestratorRoomDisconnectMidSession(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	orchestrator := h.build(Config{Mode: ModeRelay})

	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	h.room.callbacks.OnDisconnected()

	status := orchestrator.Status()
	if status.State != domain.StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", status.State)
	}
	states := h.events.snapshotStates()
	last := states[len(states)-1]
	if last.status != domain.StatusDisconnected || last.reason != domain.ReasonRemoteDisconnect {
		t.Fatalf("expected remote disconnect transition, got %+v", last)
	}

	// End still reclaims everything after the drop.
	orchestrator.End(context.Background())
	if orchestrator.Status().State != domain.StatusIdle {
		t.Fatalf("expected idle after end")
	}
}

func TestOrchestratorEndResetsErrorState(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	h.api.err = errors.New("backend down")
	orchestrator := h.build(Config{Mode: ModeRelay})

	_ = orchestrator.Start(context.Background())
	if orchestrator.Status().State != domain.StatusError {
		t.Fatalf("expected error state")
	}

	orchestrator.End(context.Background())
	status := orchestrator.Status()
	if status.State != domain.StatusIdle || status.Error != "" {
		t.Fatalf("expected clean idle after end, got %+v", status)
	}
}

func TestOrchestratorMissingRoleToken(t *testing.T) {
	t.Parallel()

	h := newTestHarness()
	orchestrator := h.build(Config{Mode: ModeRelay, Role: "paralegal"})

	if err := orchestrator.Start(context.Background()); err == nil {
		t.Fatalf("expected missing role token error")
	}
	if orchestrator.Status().State != domain.StatusError {
		t.Fatalf("expected error state")
	}
}

type fakeSessionAPI struct {
	mu    sync.Mutex
	info  domain.SessionInfo
	err   error
	ended []string
}

func (f *fakeSessionAPI) StartSession(_ context.Context) (domain.SessionInfo, error) {
	if f.err != nil {
		return domain.SessionInfo{}, f.err
	}
	return f.info, nil
}

func (f *fakeSessionAPI) EndSession(_ context.Context, sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID)
}

func (f *fakeSessionAPI) endedSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ended))
	copy(out, f.ended)
	return out
}

type fakeCredentials struct {
	key   string
	err   error
	calls int
}

func (f *fakeCredentials) Fetch(_ context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.key, nil
}

type fakeRecognitionProvider struct {
	session *fakeRecognitionSession
	err     error
	calls   int
}

func (f *fakeRecognitionProvider) StartStreaming(_ context.Context, _ string, _ ports.StreamingConfig) (ports.RecognitionSession, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeRecognitionSession struct {
	events chan domain.RecognitionEvent

	mu        sync.Mutex
	closed    bool
	closeSend int
	closes    int
	waitErr   error
	chunks    [][]byte
	lateSends int
}

func newFakeRecognitionSession() *fakeRecognitionSession {
	return &fakeRecognitionSession{events: make(chan domain.RecognitionEvent, 16)}
}

func (f *fakeRecognitionSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.lateSends++
		return errors.New("audio stream is already closed")
	}
	f.chunks = append(f.chunks, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeRecognitionSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeRecognitionSession) Events() <-chan domain.RecognitionEvent { return f.events }

func (f *fakeRecognitionSession) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeRecognitionSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeRecognitionSession) closeSendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeSend
}

func (f *fakeRecognitionSession) sentChunks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

func (f *fakeRecognitionSession) lateSendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lateSends
}

type fakeRoomTransport struct {
	handle    *fakeRoomHandle
	err       error
	connects  int
	lastURL   string
	lastToken string
	callbacks ports.RoomCallbacks
}

func (f *fakeRoomTransport) Connect(_ context.Context, url, token string, cb ports.RoomCallbacks) (ports.RoomHandle, error) {
	f.connects++
	if f.err != nil {
		return nil, f.err
	}
	f.lastURL = url
	f.lastToken = token
	f.callbacks = cb
	return f.handle, nil
}

type fakeRoomHandle struct {
	writer        *fakeFrameWriter
	publishErr    error
	publishedName string
	publishedRate int
	disconnects   int
}

func (f *fakeRoomHandle) PublishPCMTrack(name string, sampleRate, _ int) (ports.FrameWriter, error) {
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.publishedName = name
	f.publishedRate = sampleRate
	return f.writer, nil
}

func (f *fakeRoomHandle) Disconnect() { f.disconnects++ }

type fakeFrameWriter struct {
	mu     sync.Mutex
	frames [][]int16
	err    error
	closes int
}

func (f *fakeFrameWriter) WriteFrame(frame []int16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, append([]int16(nil), frame...))
	return nil
}

func (f *fakeFrameWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeFrameWriter) snapshotFrames() [][]int16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]int16, len(f.frames))
	copy(out, f.frames)
	return out
}

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no capture session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakePCMSession struct {
	mu        sync.Mutex
	data      []byte
	offset    int
	stopCalls int
}

func newFakePCMSession(data []byte) *fakePCMSession {
	return &fakePCMSession{data: data}
}

func (f *fakePCMSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *fakePCMSession) Close() error { return nil }

func (f *fakePCMSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakePCMSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

// livePCMSession produces audio until stopped, like a real capture source.
type livePCMSession struct {
	mu        sync.Mutex
	stopCalls int
}

func (f *livePCMSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	stopped := f.stopCalls > 0
	f.mu.Unlock()
	if stopped {
		return 0, io.EOF
	}
	time.Sleep(time.Millisecond)
	n := len(p)
	if n > 32 {
		n = 32
	}
	for i := 0; i < n; i++ {
		p[i] = 0
	}
	return n, nil
}

func (f *livePCMSession) Close() error { return nil }

func (f *livePCMSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *livePCMSession) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeMixer struct {
	session ports.AudioSession
	err     error
	closes  int
}

func (f *fakeMixer) Mix(_, _ ports.AudioSession) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeMixer) Close() error {
	f.closes++
	return nil
}

type fakeFeed struct {
	mu          sync.Mutex
	connectErr  error
	connectN    int
	disconnectN int
	room        string
	handler     func(domain.TranscriptMessage)
}

func (f *fakeFeed) Connect(_ context.Context, roomName string, handler func(domain.TranscriptMessage)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connectN++
	f.room = roomName
	f.handler = handler
	return nil
}

func (f *fakeFeed) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectN++
	f.handler = nil
}

func (f *fakeFeed) deliver(msg domain.TranscriptMessage) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(msg)
	}
}

func (f *fakeFeed) roomName() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.room
}

func (f *fakeFeed) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectN
}

func (f *fakeFeed) disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnectN
}

type fakeEventSink struct {
	mu sync.Mutex

	states   []statusEvent
	partials []string
	entries  []domain.TranscriptEntry
	errs     []errorEvent
}

type statusEvent struct {
	status domain.SessionStatus
	reason domain.StatusReason
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) StatusChanged(status domain.SessionStatus, reason domain.StatusReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, statusEvent{status: status, reason: reason})
}

func (f *fakeEventSink) PartialTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) EntryAppended(entry domain.TranscriptEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, errorEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []statusEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]statusEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotPartials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.partials))
	copy(out, f.partials)
	return out
}

func (f *fakeEventSink) snapshotEntries() []domain.TranscriptEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errorEvent, len(f.errs))
	copy(out, f.errs)
	return out
}
