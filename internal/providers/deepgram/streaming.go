package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lexlive/internal/domain"
	"lexlive/internal/logging"
	"lexlive/internal/ports"
)

// Config controls Deepgram websocket settings. The long-lived provider
// secret never appears here: sessions authenticate with the short-lived
// credential passed to StartStreaming.
type Config struct {
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.RecognitionProvider for Deepgram.
type Provider struct {
	cfg Config
	log zerolog.Logger

	// One open recognition session per provider; a second concurrent
	// session for the same capture is a contract violation.
	active atomic.Int32
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Provider{cfg: cfg, log: logging.Component("deepgram")}
}

func (p *Provider) StartStreaming(ctx context.Context, credential string, cfg ports.StreamingConfig) (ports.RecognitionSession, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, domain.ErrCredentialUnavailable
	}
	if !p.active.CompareAndSwap(0, 1) {
		return nil, errors.New("a recognition session is already open")
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		p.active.Store(0)
		return nil, err
	}

	// The credential rides the websocket subprotocol, the same channel the
	// browser client uses; it never goes into the URL where it could be
	// logged by intermediaries.
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = []string{"token", credential}

	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		p.active.Store(0)
		return nil, &domain.ConnectionError{Kind: domain.ConnectionErrorGeneric, Cause: fmt.Errorf("failed to open recognition socket: %w", err)}
	}

	session := &streamingSession{
		conn:    conn,
		events:  make(chan domain.RecognitionEvent, 64),
		audio:   make(chan []byte, 32),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
		log:     p.log,
		release: func() { p.active.Store(0) },
		now:     func() int64 { return time.Now().UnixMilli() },
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
		session.release()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type streamingSession struct {
	conn *websocket.Conn

	events chan domain.RecognitionEvent
	audio  chan []byte
	done   chan struct{}
	stop   chan struct{}

	log     zerolog.Logger
	release func()
	now     func() int64

	framesSent atomic.Int64

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

// SendAudio queues one chunk for the write loop. The read lock is held
// across the channel send so CloseSend cannot close the channel underneath
// an in-flight sender.
func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	copied := append([]byte(nil), chunk...)

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	select {
	case s.audio <- copied:
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.RecognitionEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		close(s.stop)
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// setErr records the first failure. Normal closes are not failures; other
// close codes are classified so the surfaced hint distinguishes a bad
// credential from a throttled account.
func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		err = classifyClose(closeErr)
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func classifyClose(closeErr *websocket.CloseError) error {
	kind := domain.ConnectionErrorGeneric
	switch closeErr.Code {
	case websocket.ClosePolicyViolation, 4001, 4003:
		kind = domain.ConnectionErrorAuth
	case websocket.CloseTryAgainLater, 4029:
		kind = domain.ConnectionErrorRateLimit
	}
	return &domain.ConnectionError{Kind: kind, CloseCode: closeErr.Code, Cause: closeErr}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
		s.framesSent.Add(1)
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read recognition event: %w", err))
			return
		}

		event, terminal := s.handleMessage(payload)
		if terminal {
			return
		}
		if event != nil {
			s.emit(*event)
		}
	}
}

// handleMessage parses one inbound payload. Malformed JSON is logged and
// dropped, never fatal to the channel. The returned terminal flag is set
// only for provider-reported errors.
func (s *streamingSession) handleMessage(payload []byte) (*domain.RecognitionEvent, bool) {
	var response listenResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		s.log.Debug().Err(err).Msg("dropping malformed recognition payload")
		return nil, false
	}

	switch response.Type {
	case "Results":
		return s.resultEvent(response), false
	case "Metadata", "UtteranceEnd", "SpeechStarted":
		s.log.Debug().Str("event", response.Type).Msg("recognition event")
		return nil, false
	case "Error":
		message := strings.TrimSpace(response.Message)
		if message == "" {
			message = "recognizer returned an unknown error"
		}
		s.setErr(errors.New(message))
		return nil, true
	default:
		return nil, false
	}
}

// resultEvent applies the dedup rule: only a final hypothesis with non-empty
// trimmed text becomes a durable entry; interim revisions surface as partial
// events for UI feedback and never reach the transcript log.
func (s *streamingSession) resultEvent(response listenResponse) *domain.RecognitionEvent {
	if len(response.Channel.Alternatives) == 0 {
		return nil
	}
	alt := response.Channel.Alternatives[0]
	text := strings.TrimSpace(alt.Transcript)
	if text == "" {
		return nil
	}

	entry := domain.TranscriptEntry{
		Speaker:    firstSpeaker(alt.Words),
		Text:       text,
		Timestamp:  s.now(),
		Confidence: alt.Confidence,
	}

	if response.IsFinal || response.SpeechFinal {
		return &domain.RecognitionEvent{Kind: domain.RecognitionFinal, Entry: entry}
	}
	return &domain.RecognitionEvent{Kind: domain.RecognitionPartial, Entry: entry}
}

func firstSpeaker(words []listenWord) int {
	if len(words) == 0 || words[0].Speaker == nil {
		return 0
	}
	return *words[0].Speaker
}

// emit blocks until the consumer takes the event, so no final result is ever
// dropped under backpressure. A hard Close is the only escape.
func (s *streamingSession) emit(event domain.RecognitionEvent) {
	select {
	case s.events <- event:
	case <-s.stop:
	}
}

type listenWord struct {
	Word    string `json:"word"`
	Speaker *int   `json:"speaker"`
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string       `json:"transcript"`
			Confidence float64      `json:"confidence"`
			Words      []listenWord `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := providerCfg.APIBaseURL
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	base = strings.TrimSpace(base)

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid recognition API base URL: %w", err)
	}

	query := listenURL.Query()
	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("diarize", fmt.Sprintf("%t", streamCfg.Diarize))
	query.Set("punctuate", fmt.Sprintf("%t", streamCfg.Punctuate))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
