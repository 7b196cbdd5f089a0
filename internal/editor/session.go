// Package editor implements the consultation editor session: tag fields,
// the prescription table, the debounced autosave channel, and the finalize
// flow, against clinic server endpoints treated as collaborators.
//
// A Session replaces the page-global state of the original UI: it owns its
// draft, its debounce timer, and its optional capabilities, and its
// lifecycle is tied to one consultation visit. All methods are safe for
// concurrent use; the session serializes draft access the way the browser
// event loop did.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/clinic"
	"github.com/clinicdesk/consult/internal/domain/consultation"
	"github.com/clinicdesk/consult/internal/domain/prescription"
	"github.com/clinicdesk/consult/internal/observability/metrics"
	"github.com/clinicdesk/consult/pkg/debounce"
)

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = errors.New("editor session closed")

// StatusKind is the autosave feedback state shown to the user
type StatusKind string

const (
	StatusIdle   StatusKind = "idle"
	StatusSaving StatusKind = "saving"
	StatusSaved  StatusKind = "saved"
)

// StatusUpdate is one autosave status transition. At is the wall-clock
// completion time for StatusSaved.
type StatusUpdate struct {
	Kind StatusKind
	At   time.Time
}

// StatusFunc receives autosave status transitions
type StatusFunc func(StatusUpdate)

// SnapshotProvider supplies the prescription snapshot text for the
// autosave payload. It is an optional capability: when absent the sparse
// payload simply omits the prescription key.
type SnapshotProvider interface {
	SnapshotText() string
}

// Config holds session configuration
type Config struct {
	// AppointmentID identifies the consultation record server-side
	AppointmentID string
	// Locked seeds the already-finalized flag supplied by the host page
	Locked bool
	// AutosaveInterval is the autosave debounce window (default 800ms)
	AutosaveInterval time.Duration
	// SearchInterval is the picker search debounce window (default 300ms)
	SearchInterval time.Duration
}

// Option configures optional session capabilities
type Option func(*Session)

// WithStatusFunc registers the autosave status feedback sink
func WithStatusFunc(fn StatusFunc) Option {
	return func(s *Session) { s.status = fn }
}

// WithSnapshotProvider injects the prescription snapshot capability into
// the autosave payload
func WithSnapshotProvider(p SnapshotProvider) Option {
	return func(s *Session) { s.snapshot = p }
}

// WithMetrics attaches editor metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is one consultation editing session
type Session struct {
	id     string
	config Config
	client *clinic.Client
	logger *zap.Logger
	tracer trace.Tracer

	mu    sync.Mutex
	draft *consultation.Draft

	saver    *debounce.Debouncer
	status   StatusFunc
	snapshot SnapshotProvider
	metrics  *metrics.Metrics

	inflight sync.WaitGroup
	closed   bool
}

// New creates a session for one appointment
func New(cfg Config, client *clinic.Client, logger *zap.Logger, opts ...Option) (*Session, error) {
	if cfg.AppointmentID == "" {
		return nil, fmt.Errorf("appointment ID is required")
	}
	if client == nil {
		return nil, fmt.Errorf("clinic client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = 800 * time.Millisecond
	}
	if cfg.SearchInterval <= 0 {
		cfg.SearchInterval = 300 * time.Millisecond
	}

	s := &Session{
		id:     uuid.New().String(),
		config: cfg,
		client: client,
		logger: logger,
		tracer: otel.Tracer("consult-editor"),
		draft:  consultation.NewDraft(cfg.AppointmentID),
	}
	if cfg.Locked {
		s.draft.SeedLocked()
	}

	for _, opt := range opts {
		opt(s)
	}

	saver, err := debounce.New(debounce.Config{
		Name:     "autosave",
		Interval: cfg.AutosaveInterval,
	}, s.autosaveFired, logger)
	if err != nil {
		return nil, fmt.Errorf("create autosave debouncer: %w", err)
	}
	s.saver = saver

	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// AppointmentID returns the appointment this session edits
func (s *Session) AppointmentID() string { return s.config.AppointmentID }

// Locked reports whether the consultation has been finalized
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Locked()
}

// Close cancels any pending autosave fire and waits for in-flight sends.
// It never flushes: an unsent delta is lost, as on a page unload.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.saver.Stop()
	s.inflight.Wait()
}

// --- seeding from server-rendered initial values ---

// SeedTags loads a tag field's initial joined value without autosaving
func (s *Session) SeedTags(field consultation.Field, joined string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.SeedTags(field, joined)
}

// SeedRows loads existing prescription rows without autosaving
func (s *Session) SeedRows(items []prescription.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.SeedRows(items)
}

// SeedVitals loads server-rendered vitals values without autosaving
func (s *Session) SeedVitals(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range values {
		s.draft.SeedVital(name, value)
	}
}

// --- tag fields ---

// AddTag adds a tag to a field and arms the autosave channel
func (s *Session) AddTag(field consultation.Field, text string) (bool, error) {
	s.mu.Lock()
	added, err := s.draft.AddTag(field, text)
	s.mu.Unlock()
	if added {
		s.edited()
	}
	return added, err
}

// RemoveTag removes a tag from a field and arms the autosave channel
func (s *Session) RemoveTag(field consultation.Field, text string) (bool, error) {
	s.mu.Lock()
	removed, err := s.draft.RemoveTag(field, text)
	s.mu.Unlock()
	if removed {
		s.edited()
	}
	return removed, err
}

// RebuildTags replaces a field's tags from a joined string and arms the
// autosave channel
func (s *Session) RebuildTags(field consultation.Field, joined string) error {
	s.mu.Lock()
	err := s.draft.RebuildTags(field, joined)
	s.mu.Unlock()
	if err == nil {
		s.edited()
	}
	return err
}

// TagValues returns a field's tags in display order
func (s *Session) TagValues(field consultation.Field) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.TagValues(field)
}

// TagJoin returns a field's serialized joined value
func (s *Session) TagJoin(field consultation.Field) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.TagJoin(field)
}

// --- vitals and free text ---

// SetVital records a vitals value and arms the autosave channel
func (s *Session) SetVital(name, value string) error {
	s.mu.Lock()
	err := s.draft.SetVital(name, value)
	s.mu.Unlock()
	if err == nil {
		s.edited()
	}
	return err
}

// SetFreeText records an auxiliary free-text field and arms the autosave
// channel
func (s *Session) SetFreeText(name, value string) error {
	s.mu.Lock()
	err := s.draft.SetFreeText(name, value)
	s.mu.Unlock()
	if err == nil {
		s.edited()
	}
	return err
}

// Vitals returns a copy of the current vitals values
func (s *Session) Vitals() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Vitals()
}

// --- prescription table ---

// AddRow appends a blank row and returns its index
func (s *Session) AddRow() (int, error) {
	s.mu.Lock()
	idx, err := s.draft.AddRow()
	s.mu.Unlock()
	if err == nil {
		s.edited()
	}
	return idx, err
}

// UpdateRow replaces a row and arms the autosave channel
func (s *Session) UpdateRow(index int, row prescription.Item) error {
	s.mu.Lock()
	err := s.draft.UpdateRow(index, row)
	s.mu.Unlock()
	if err == nil {
		s.edited()
	}
	return err
}

// RemoveRow deletes a row and arms the autosave channel
func (s *Session) RemoveRow(index int) error {
	s.mu.Lock()
	err := s.draft.RemoveRow(index)
	s.mu.Unlock()
	if err == nil {
		s.edited()
	}
	return err
}

// Rows returns the editable grid, blank rows included
func (s *Session) Rows() []prescription.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Rows()
}

// Items returns the persisted view of the grid
func (s *Session) Items() []prescription.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Items()
}

// SnapshotText renders the current prescription snapshot. Session itself
// satisfies SnapshotProvider so the table can be attached to autosave.
func (s *Session) SnapshotText() string {
	return prescription.SnapshotText(s.Items())
}

// AttachPrescriptionSnapshot wires the session's own prescription table
// into the autosave payload
func (s *Session) AttachPrescriptionSnapshot() {
	s.snapshot = s
}

// edited records a draft mutation: drain change events, count it, arm the
// autosave debouncer.
func (s *Session) edited() {
	s.mu.Lock()
	changes := len(s.draft.Changes())
	s.draft.ClearChanges()
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}
	if s.metrics != nil {
		s.metrics.DraftEdits.Add(float64(changes))
	}
	s.saver.Trigger()
}

func (s *Session) newSearchDebouncer(name string, fn func()) (*debounce.Debouncer, error) {
	return debounce.New(debounce.Config{
		Name:     name,
		Interval: s.config.SearchInterval,
	}, fn, s.logger)
}

func (s *Session) notify(kind StatusKind, at time.Time) {
	if s.status != nil {
		s.status(StatusUpdate{Kind: kind, At: at})
	}
}

func trimmedNonEmpty(v string) (string, bool) {
	t := strings.TrimSpace(v)
	return v, t != ""
}
