package journal

import (
	"context"
	"time"
)

// Event types written by the simulator.
const (
	TypeRun      = "run"
	TypeFill     = "fill"
	TypeRecorder = "recorder"
	TypeError    = "error"
)

// Event represents a journaled event.
type Event struct {
	Time        time.Time      `json:"time"`
	Type        string         `json:"type"` // e.g., "run", "fill", "error", etc.
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// Journaler interface for journaling events.
type Journaler interface {
	LogEvent(ctx context.Context, event Event) error
	GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error)
}

// New builds an event stamped with the current UTC time.
func New(eventType, description string, data map[string]any) Event {
	return Event{
		Time:        time.Now().UTC(),
		Type:        eventType,
		Description: description,
		Data:        data,
	}
}
