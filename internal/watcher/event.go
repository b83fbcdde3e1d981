package watcher

import "time"

// EventType is the kind of change observed on a watched file.
type EventType int

const (
	// EventAdded is emitted when a file appears and has settled.
	EventAdded EventType = iota
	// EventModified is emitted when a known file changes and has settled.
	EventModified
	// EventRemoved is emitted when a file is deleted or renamed away.
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a settled file change.
type Event struct {
	Type    EventType
	Path    string
	Size    int64
	ModTime time.Time
}
