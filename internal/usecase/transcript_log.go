package usecase

import (
	"strings"
	"sync"

	"lexlive/internal/domain"
)

// TranscriptLog is the append-only record of a session's finalized
// utterances. Entries are immutable once appended; timestamps are clamped
// so emission order stays monotonic non-decreasing even when the two
// delivery channels interleave.
type TranscriptLog struct {
	mu      sync.Mutex
	entries []domain.TranscriptEntry
	lastTS  int64
}

func NewTranscriptLog() *TranscriptLog {
	return &TranscriptLog{}
}

// Append records one entry. Empty text is rejected silently: the dedup rule
// upstream should already have filtered it, this is the last line of
// defense for the non-empty invariant.
func (l *TranscriptLog) Append(entry domain.TranscriptEntry) bool {
	entry.Text = strings.TrimSpace(entry.Text)
	if entry.Text == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp < l.lastTS {
		entry.Timestamp = l.lastTS
	}
	l.lastTS = entry.Timestamp
	l.entries = append(l.entries, entry)
	return true
}

// Entries returns a snapshot of the log in emission order.
func (l *TranscriptLog) Entries() []domain.TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *TranscriptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear resets the log. Only session end clears it.
func (l *TranscriptLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.lastTS = 0
}
