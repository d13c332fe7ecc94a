package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingImage is a pending path as shown to users.
type PendingImage struct {
	Path       string     `json:"path"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// PortfolioRecord mirrors a Portfolio row joined to its Authentication row.
type PortfolioRecord struct {
	ImageID          int64 `db:"ImageId"`
	AuthenticationID int64 `db:"AuthenticationId"`
	IsSent           bool  `db:"IsSent"`
	IsImpressed      bool  `db:"IsImpressed"`
}

type EventKind string

const (
	EventDiscovered EventKind = "image.discovered"
	EventEffect     EventKind = "effect.applied"
	EventUploaded   EventKind = "image.uploaded"
	EventPrinted    EventKind = "image.printed"
	EventTouched    EventKind = "portfolio.touched"
)

// Event is published to kafka whenever the pipeline does something visible.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Kind    EventKind `json:"kind"`
	Path    string    `json:"path,omitempty"`
	Output  string    `json:"output,omitempty"`
	Filter  string    `json:"filter,omitempty"`
	ImageID int64     `json:"image_id,omitempty"`
	At      time.Time `json:"at"`
}

func NewEvent(kind EventKind, path string) Event {
	return Event{ID: uuid.New(), Kind: kind, Path: path, At: time.Now().UTC()}
}
