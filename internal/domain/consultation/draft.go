// Package consultation implements the consultation draft aggregate: tag
// fields, vitals, prescription rows, and the one-way editing → locked
// transition.
package consultation

import (
	"errors"
	"fmt"
	"time"

	"github.com/clinicdesk/consult/internal/domain/prescription"
)

// Status represents the draft lifecycle state
type Status string

const (
	StatusEditing Status = "editing"
	StatusLocked  Status = "locked"
)

// Field is a tagged consultation field
type Field string

const (
	FieldSymptoms  Field = "symptoms"
	FieldDiagnosis Field = "diagnosis"
	FieldAdvice    Field = "advice"
)

// TagFields lists the tagged fields in display order
var TagFields = []Field{FieldSymptoms, FieldDiagnosis, FieldAdvice}

// VitalFields lists the recognized vitals inputs, all optional free text
var VitalFields = []string{"bp", "pulse", "spo2", "temperature", "weight", "follow_up_date"}

var (
	// ErrLocked is returned by every mutator once the draft is locked
	ErrLocked = errors.New("consultation is locked")
	// ErrUnknownField is returned for a tag field the draft does not carry
	ErrUnknownField = errors.New("unknown tag field")
	// ErrUnknownVital is returned for an unrecognized vitals name
	ErrUnknownVital = errors.New("unknown vital field")
	// ErrRowOutOfRange is returned for a prescription row index miss
	ErrRowOutOfRange = errors.New("prescription row out of range")
)

// Draft is the in-memory consultation record mirrored to the server
// resource for one appointment. It exists only for the lifetime of an
// editing session: seeded from server-rendered values, mutated by user
// actions, and superseded by the server record at finalize.
//
// Draft is not safe for concurrent use; the editor session serializes
// access the way the browser event loop did.
type Draft struct {
	appointmentID string
	status        Status
	tags          map[Field]*TagSet
	vitals        map[string]string
	freeText      map[string]string
	rows          []prescription.Item
	createdAt     time.Time
	updatedAt     time.Time
	changes       []*Event
}

// NewDraft creates an editable draft with one blank prescription row
func NewDraft(appointmentID string) *Draft {
	now := time.Now().UTC()
	return &Draft{
		appointmentID: appointmentID,
		status:        StatusEditing,
		tags: map[Field]*TagSet{
			FieldSymptoms:  NewTagSet(),
			FieldDiagnosis: NewTagSet(),
			FieldAdvice:    NewTagSet(),
		},
		vitals:    make(map[string]string),
		freeText:  make(map[string]string),
		rows:      []prescription.Item{{}},
		createdAt: now,
		updatedAt: now,
		changes:   make([]*Event, 0),
	}
}

// AppointmentID returns the appointment this draft mirrors
func (d *Draft) AppointmentID() string { return d.appointmentID }

// Status returns the current lifecycle state
func (d *Draft) Status() Status { return d.status }

// Locked reports whether the draft has been finalized
func (d *Draft) Locked() bool { return d.status == StatusLocked }

// Changes returns undrained change events
func (d *Draft) Changes() []*Event { return d.changes }

// ClearChanges drops drained change events
func (d *Draft) ClearChanges() { d.changes = d.changes[:0] }

// UpdatedAt returns the time of the last mutation
func (d *Draft) UpdatedAt() time.Time { return d.updatedAt }

// --- seeding (server-rendered initial values, no change events) ---

// SeedTags loads a tag field from its server-rendered joined string
func (d *Draft) SeedTags(field Field, joined string) error {
	set, ok := d.tags[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	set.Rebuild(joined)
	return nil
}

// SeedRows loads existing prescription rows, keeping a trailing blank row
// for further entry
func (d *Draft) SeedRows(items []prescription.Item) {
	rows := make([]prescription.Item, 0, len(items)+1)
	rows = append(rows, items...)
	rows = append(rows, prescription.Item{})
	d.rows = rows
}

// SeedVital loads a server-rendered vitals value, ignoring unknown names
func (d *Draft) SeedVital(name, value string) {
	for _, known := range VitalFields {
		if known == name {
			d.vitals[name] = value
			return
		}
	}
}

// SeedLocked marks the draft locked at load time (page-supplied flag)
func (d *Draft) SeedLocked() {
	d.status = StatusLocked
}

// --- tag fields ---

// AddTag adds a trimmed tag to a field. Empty and duplicate values are
// silent no-ops; a value containing the delimiter is rejected.
func (d *Draft) AddTag(field Field, text string) (bool, error) {
	if d.Locked() {
		return false, ErrLocked
	}
	set, ok := d.tags[field]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	added, err := set.Add(text)
	if err != nil {
		return false, err
	}
	if added {
		d.record(EventTagAdded, string(field), text)
	}
	return added, nil
}

// RemoveTag deletes an exact tag value from a field
func (d *Draft) RemoveTag(field Field, text string) (bool, error) {
	if d.Locked() {
		return false, ErrLocked
	}
	set, ok := d.tags[field]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	removed := set.Remove(text)
	if removed {
		d.record(EventTagRemoved, string(field), text)
	}
	return removed, nil
}

// RebuildTags replaces a field's tags from a fresh joined string, used
// when a suggested template overwrites the field
func (d *Draft) RebuildTags(field Field, joined string) error {
	if d.Locked() {
		return ErrLocked
	}
	set, ok := d.tags[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	set.Rebuild(joined)
	d.record(EventTagsRebuilt, string(field), joined)
	return nil
}

// TagValues returns a field's tags in display order
func (d *Draft) TagValues(field Field) []string {
	if set, ok := d.tags[field]; ok {
		return set.Values()
	}
	return nil
}

// TagJoin returns a field's serialized joined value
func (d *Draft) TagJoin(field Field) string {
	if set, ok := d.tags[field]; ok {
		return set.Join()
	}
	return ""
}

// --- vitals and free text ---

// SetVital records a vitals value by field name
func (d *Draft) SetVital(name, value string) error {
	if d.Locked() {
		return ErrLocked
	}
	known := false
	for _, v := range VitalFields {
		if v == name {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownVital, name)
	}
	d.vitals[name] = value
	d.record(EventVitalSet, name, value)
	return nil
}

// Vital returns a vitals value
func (d *Draft) Vital(name string) string { return d.vitals[name] }

// Vitals returns a copy of all vitals values
func (d *Draft) Vitals() map[string]string {
	out := make(map[string]string, len(d.vitals))
	for k, v := range d.vitals {
		out[k] = v
	}
	return out
}

// SetFreeText records an auxiliary free-text field such as lab tests
func (d *Draft) SetFreeText(name, value string) error {
	if d.Locked() {
		return ErrLocked
	}
	d.freeText[name] = value
	d.record(EventFreeTextSet, name, value)
	return nil
}

// FreeText returns an auxiliary free-text value
func (d *Draft) FreeText(name string) string { return d.freeText[name] }

// FreeTexts returns a copy of all auxiliary free-text fields
func (d *Draft) FreeTexts() map[string]string {
	out := make(map[string]string, len(d.freeText))
	for k, v := range d.freeText {
		out[k] = v
	}
	return out
}

// --- prescription rows ---

// AddRow appends a blank editable row and returns its index
func (d *Draft) AddRow() (int, error) {
	if d.Locked() {
		return 0, ErrLocked
	}
	d.rows = append(d.rows, prescription.Item{})
	idx := len(d.rows) - 1
	d.record(EventRowAdded, "", "")
	return idx, nil
}

// UpdateRow replaces the row at the given index
func (d *Draft) UpdateRow(index int, row prescription.Item) error {
	if d.Locked() {
		return ErrLocked
	}
	if index < 0 || index >= len(d.rows) {
		return ErrRowOutOfRange
	}
	d.rows[index] = row
	d.record(EventRowUpdated, "", row.Medicine)
	return nil
}

// RemoveRow deletes the row at the given index
func (d *Draft) RemoveRow(index int) error {
	if d.Locked() {
		return ErrLocked
	}
	if index < 0 || index >= len(d.rows) {
		return ErrRowOutOfRange
	}
	d.rows = append(d.rows[:index], d.rows[index+1:]...)
	d.record(EventRowRemoved, "", "")
	return nil
}

// ApplyTemplate replaces all rows with the template's items plus a
// trailing blank row for further entry
func (d *Draft) ApplyTemplate(items []prescription.Item) error {
	if d.Locked() {
		return ErrLocked
	}
	d.rows = d.rows[:0]
	d.rows = append(d.rows, items...)
	d.rows = append(d.rows, prescription.Item{})
	d.record(EventTemplateApplied, "", "")
	return nil
}

// Rows returns a copy of the editable grid, blank rows included
func (d *Draft) Rows() []prescription.Item {
	out := make([]prescription.Item, len(d.rows))
	copy(out, d.rows)
	return out
}

// Items returns the persisted view of the grid: trimmed rows with a
// medicine name, in row order
func (d *Draft) Items() []prescription.Item {
	return prescription.NormalizeItems(d.rows)
}

// --- finalize ---

// Lock performs the one-way transition to the locked state
func (d *Draft) Lock() error {
	if d.Locked() {
		return ErrLocked
	}
	d.status = StatusLocked
	d.record(EventLocked, "", "")
	return nil
}

func (d *Draft) record(eventType EventType, field, value string) {
	d.updatedAt = time.Now().UTC()
	d.changes = append(d.changes, newEvent(eventType, field, value))
}
