// Package sse streams notifier events to UI clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/estudio-ia/studio-server/internal/events"
)

// EventType is the SSE event name. Job events keep the names the
// orchestrator emits (export-job-progress, ...).
type EventType string

const (
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's clients. Empty broadcasts.
	UserID string `json:"-"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}

// owned matches payloads that belong to a user without importing their package.
type owned interface {
	Owner() string
}

// FromNotifier converts a notifier event, keeping its name and payload.
// Payloads that report an owner are delivered to that user only.
func FromNotifier(e events.Event) Event {
	evt := Event{
		Type:      EventType(e.Name),
		Data:      e.Payload,
		Timestamp: e.Timestamp,
	}
	if o, ok := e.Payload.(owned); ok {
		evt.UserID = o.Owner()
	}
	return evt
}
