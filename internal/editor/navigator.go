package editor

import "sync"

// Key is a keyboard action routed through the navigator
type Key int

const (
	KeyEnter Key = iota
	KeyArrowDown
	KeyArrowUp
	KeyCtrlEnter
	KeyEscape
)

// Navigator models the consultation form's keyboard focus traversal:
// Enter and ArrowDown advance to the next field, ArrowUp goes back,
// Ctrl+Enter appends a medicine row, Escape dismisses open pickers.
// Every key is ignored once the consultation is locked.
type Navigator struct {
	session *Session

	mu       sync.Mutex
	fields   []string
	active   int
	onEscape func()
}

// NewNavigator creates a navigator over the session's form
func (s *Session) NewNavigator() *Navigator {
	return &Navigator{session: s, active: -1}
}

// RegisterField appends a focusable field id in traversal order
func (n *Navigator) RegisterField(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fields = append(n.fields, id)
	if n.active < 0 {
		n.active = 0
	}
}

// SetEscapeHandler registers the picker-dismiss callback
func (n *Navigator) SetEscapeHandler(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onEscape = fn
}

// Active returns the focused field id, or empty when none registered
func (n *Navigator) Active() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active < 0 || n.active >= len(n.fields) {
		return ""
	}
	return n.fields[n.active]
}

// Focus moves focus to the given field id
func (n *Navigator) Focus(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, f := range n.fields {
		if f == id {
			n.active = i
			return true
		}
	}
	return false
}

// Next advances focus, stopping at the last field
func (n *Navigator) Next() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active >= 0 && n.active < len(n.fields)-1 {
		n.active++
	}
}

// Prev moves focus back, stopping at the first field
func (n *Navigator) Prev() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active > 0 {
		n.active--
	}
}

// Handle routes one key action. All actions are no-ops on a locked
// consultation.
func (n *Navigator) Handle(key Key) {
	if n.session.Locked() {
		return
	}

	switch key {
	case KeyEnter, KeyArrowDown:
		n.Next()
	case KeyArrowUp:
		n.Prev()
	case KeyCtrlEnter:
		n.session.AddRow()
	case KeyEscape:
		n.mu.Lock()
		fn := n.onEscape
		n.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}
