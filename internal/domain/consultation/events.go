package consultation

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a draft change event
type EventType string

const (
	EventTagAdded        EventType = "TagAdded"
	EventTagRemoved      EventType = "TagRemoved"
	EventTagsRebuilt     EventType = "TagsRebuilt"
	EventVitalSet        EventType = "VitalSet"
	EventFreeTextSet     EventType = "FreeTextSet"
	EventRowAdded        EventType = "RowAdded"
	EventRowUpdated      EventType = "RowUpdated"
	EventRowRemoved      EventType = "RowRemoved"
	EventTemplateApplied EventType = "TemplateApplied"
	EventLocked          EventType = "Locked"
)

// Event records one local mutation of a draft. The editor session drains
// these to drive notifications and the autosave channel; they are never
// persisted.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Field     string    `json:"field,omitempty"`
	Value     string    `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newEvent(eventType EventType, field, value string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Field:     field,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
}
