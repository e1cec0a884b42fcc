package usecase

import (
	"sync"

	"lexlive/internal/domain"
	"lexlive/internal/ports"
)

// liveSession bundles every resource owned by one session so teardown can
// release all of it, in reverse acquisition order. End may race the start
// sequence, so acquisitions go through set: a resource attached after
// release began is refused and the caller closes it itself.
type liveSession struct {
	cancel func()

	mu       sync.Mutex
	released bool
	info     domain.SessionInfo

	room        ports.RoomHandle
	mic         ports.AudioSession
	monitor     ports.AudioSession
	mixed       ports.AudioSession
	writer      ports.FrameWriter
	recognition ports.RecognitionSession

	speakers map[string]int

	pumpDone    chan struct{}
	consumeDone chan struct{}
}

// set attaches resources to the session. Returns false once release has
// begun, in which case the caller still owns whatever it tried to attach.
func (s *liveSession) set(assign func(*liveSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	assign(s)
	return true
}

func (s *liveSession) snapshotInfo() domain.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// speakerIndex maps wire speaker labels to stable 0-based integers for the
// duration of this session.
func (s *liveSession) speakerIndex(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speakers == nil {
		s.speakers = make(map[string]int)
	}
	if idx, ok := s.speakers[label]; ok {
		return idx
	}
	idx := len(s.speakers)
	s.speakers[label] = idx
	return idx
}

// stopAudio stops the capture path and waits for the pump to exit, so the
// recognition socket can drain with no senders left. Release afterwards
// skips whatever this already detached.
func (s *liveSession) stopAudio() {
	s.mu.Lock()
	mixed, mic, monitor := s.mixed, s.mic, s.monitor
	writer, pumpDone := s.writer, s.pumpDone
	s.mixed, s.mic, s.monitor = nil, nil, nil
	s.writer, s.pumpDone = nil, nil
	s.mu.Unlock()

	if mixed != nil {
		_ = mixed.Stop()
	}
	if mic != nil {
		_ = mic.Stop()
	}
	if monitor != nil {
		_ = monitor.Stop()
	}
	if pumpDone != nil {
		<-pumpDone
	}
	if writer != nil {
		_ = writer.Close()
	}
}

// release tears down everything attached so far: cancel in-flight work,
// close the recognition socket, the published track, the room connection and
// the capture sessions, then wait for the worker goroutines to drain.
// Callable more than once; each call closes whatever attached since the
// previous one.
func (s *liveSession) release() {
	s.mu.Lock()
	s.released = true
	recognition, writer, room := s.recognition, s.writer, s.room
	mixed, mic, monitor := s.mixed, s.mic, s.monitor
	pumpDone, consumeDone := s.pumpDone, s.consumeDone
	s.recognition, s.writer, s.room = nil, nil, nil
	s.mixed, s.mic, s.monitor = nil, nil, nil
	s.pumpDone, s.consumeDone = nil, nil
	s.mu.Unlock()

	s.cancel()

	if recognition != nil {
		_ = recognition.Close()
	}
	if writer != nil {
		_ = writer.Close()
	}
	if room != nil {
		room.Disconnect()
	}
	if mixed != nil {
		_ = mixed.Stop()
	}
	if mic != nil {
		_ = mic.Stop()
	}
	if monitor != nil {
		_ = monitor.Stop()
	}

	if pumpDone != nil {
		<-pumpDone
	}
	if consumeDone != nil {
		<-consumeDone
	}
}
