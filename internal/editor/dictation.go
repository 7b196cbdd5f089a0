package editor

import (
	"errors"
	"strings"
	"sync"
)

// ErrDictationClosed is returned when appending to a finished dictation
var ErrDictationClosed = errors.New("dictation already closed")

// Dictation accumulates a transcript for one free-text field. The speech
// engine is an environment capability: whatever produces the transcript
// feeds final and interim segments here, and closing the dictation commits
// the text to the draft and arms the autosave channel, matching the
// original flow where a save fired only when dictation ended.
type Dictation struct {
	session *Session
	field   string

	mu      sync.Mutex
	final   strings.Builder
	interim string
	closed  bool
}

// StartDictation begins dictation into an auxiliary free-text field
func (s *Session) StartDictation(field string) (*Dictation, error) {
	s.mu.Lock()
	locked := s.draft.Locked()
	s.mu.Unlock()
	if locked {
		return nil, errors.New("cannot dictate into a locked consultation")
	}
	return &Dictation{session: s, field: field}, nil
}

// AppendFinal adds a finalized transcript segment
func (d *Dictation) AppendFinal(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDictationClosed
	}
	d.final.WriteString(text)
	d.final.WriteString(" ")
	d.interim = ""
	return nil
}

// SetInterim replaces the provisional tail of the transcript
func (d *Dictation) SetInterim(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDictationClosed
	}
	d.interim = text
	return nil
}

// Text returns the current transcript, provisional tail included
func (d *Dictation) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.TrimSpace(d.final.String() + d.interim)
}

// Close commits the transcript to the field and arms autosave. Closing
// twice is an error; closing with an empty transcript commits nothing.
func (d *Dictation) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDictationClosed
	}
	d.closed = true
	text := strings.TrimSpace(d.final.String() + d.interim)
	d.mu.Unlock()

	if text == "" {
		return nil
	}
	return d.session.SetFreeText(d.field, text)
}
