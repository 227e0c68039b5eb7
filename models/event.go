package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a change notification leaving the in-memory stores.
// Exactly one of Report / TamperLog is set, depending on Kind.
type Event struct {
	ID         string     `json:"id"`
	Kind       EventKind  `json:"kind"`
	Report     *Report    `json:"report,omitempty"`
	TamperLog  *TamperLog `json:"tamper_log,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// EventSink receives store events. Enqueue is called with the store lock held,
// so implementations must not block and must not call back into the stores.
type EventSink interface {
	Enqueue(event Event)
}

func NewReportEvent(kind EventKind, report *Report, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Report:     report,
		OccurredAt: at,
	}
}

func NewTamperEvent(log *TamperLog, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       EventKindTamperLogged,
		TamperLog:  log,
		OccurredAt: at,
	}
}
