package models

import (
	"fmt"
	"time"
)

// EventCategory classifies a behavioral event.
type EventCategory string

const (
	CategoryScroll     EventCategory = "scroll"
	CategoryClick      EventCategory = "click"
	CategoryEngagement EventCategory = "engagement"
	CategoryConversion EventCategory = "conversion"
)

// Valid reports whether the category is one of the known values.
func (c EventCategory) Valid() bool {
	switch c {
	case CategoryScroll, CategoryClick, CategoryEngagement, CategoryConversion:
		return true
	default:
		return false
	}
}

// Event represents a single behavioral signal (scroll milestone, click,
// engagement duration, conversion) tied to a session and page.
type Event struct {
	EventID     string            `json:"eventId,omitempty"`
	SessionID   string            `json:"sessionId"`
	VisitorHash string            `json:"visitorHash,omitempty"`
	Path        string            `json:"path"`
	Category    EventCategory     `json:"category"`
	Action      string            `json:"action"`
	Label       string            `json:"label,omitempty"`
	Value       float64           `json:"value,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
}

// EventBatch is the body of a batched event submission.
type EventBatch struct {
	Events []Event `json:"events"`
}

// Validate checks that the event carries a session id, path, a known
// category and an action.
func (e *Event) Validate() error {
	if e.SessionID == "" || e.Path == "" || e.Action == "" {
		return ErrMissingFields
	}
	if !e.Category.Valid() {
		return fmt.Errorf("unknown event category %q", e.Category)
	}
	return nil
}
