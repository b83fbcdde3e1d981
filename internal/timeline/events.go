package timeline

import "github.com/estudio-ia/studio-server/internal/domain"

// Event names emitted by the editor.
const (
	EventTrackAdded        = "track-added"
	EventTrackRemoved      = "track-removed"
	EventTrackUpdated      = "track-updated"
	EventClipAdded         = "clip-added"
	EventClipRemoved       = "clip-removed"
	EventClipTrimmed       = "clip-trimmed"
	EventClipSplit         = "clip-split"
	EventClipMoved         = "clip-moved"
	EventTransitionApplied = "transition-applied"
	EventTimelineCleared   = "timeline-cleared"
	EventTimelineLoaded    = "timeline-loaded"
	EventFlowUpdated       = "flow-updated"
	EventClipsSnapped      = "clips-snapped"
	EventCrossfadesApplied = "crossfades-applied"
	EventPreviewStart      = "preview-start"
	EventPreviewComplete   = "preview-complete"
	EventExportStart       = "export-start"
	EventExportProgress    = "export-progress"
	EventExportComplete    = "export-complete"
	EventExportError       = "export-error"
)

type TrackAddedEvent struct {
	TrackID string           `json:"trackId"`
	Type    domain.TrackKind `json:"type"`
}

type TrackEvent struct {
	TrackID string `json:"trackId"`
}

type TrackUpdatedEvent struct {
	TrackID string `json:"trackId"`
	Muted   bool   `json:"muted"`
	Locked  bool   `json:"locked"`
}

type ClipEvent struct {
	TrackID string `json:"trackId"`
	ClipID  string `json:"clipId"`
}

type ClipTrimmedEvent struct {
	ClipID      string  `json:"clipId"`
	OldDuration float64 `json:"oldDuration"`
	NewDuration float64 `json:"newDuration"`
}

type ClipSplitEvent struct {
	TrackID string    `json:"trackId"`
	ClipID  string    `json:"clipId"`
	ClipIDs [2]string `json:"clipIds"`
}

type ClipMovedEvent struct {
	ClipID        string  `json:"clipId"`
	FromTrackID   string  `json:"fromTrackId"`
	ToTrackID     string  `json:"toTrackId"`
	TimelineStart float64 `json:"timelineStart"`
}

type TimelineLoadedEvent struct {
	Tracks int `json:"tracks"`
	Clips  int `json:"clips"`
}

type FlowUpdatedEvent struct {
	Flow domain.ContinuousFlow `json:"flow"`
}

type CrossfadesAppliedEvent struct {
	TrackID     string  `json:"trackId"`
	DurationSec float64 `json:"durationSec"`
}

type PreviewStartEvent struct {
	Timestamp float64 `json:"timestamp"`
}

type ExportStartEvent struct {
	Tracks int `json:"tracks"`
}

type ExportProgressEvent struct {
	Percent float64 `json:"percent"`
}

type ExportErrorEvent struct {
	Error string `json:"error"`
}
