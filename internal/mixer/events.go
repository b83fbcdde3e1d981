package mixer

import "github.com/estudio-ia/studio-server/internal/domain"

// Event names emitted by the mixer.
const (
	EventTrackAdded          = "track-added"
	EventTrackRemoved        = "track-removed"
	EventTrackUpdated        = "track-updated"
	EventVolumeChanged       = "volume-changed"
	EventPanChanged          = "pan-changed"
	EventMuteChanged         = "mute-changed"
	EventSoloChanged         = "solo-changed"
	EventEQChanged           = "eq-changed"
	EventCompressorChanged   = "compressor-changed"
	EventEffectAdded         = "effect-added"
	EventEffectsCleared      = "effects-cleared"
	EventAutomationAdded     = "automation-added"
	EventDuckingAdded        = "ducking-added"
	EventMasterVolumeChanged = "master-volume-changed"
	EventConfigLoaded        = "config-loaded"
	EventTracksCleared       = "tracks-cleared"
	EventExportStart         = "export-start"
	EventExportProgress      = "export-progress"
	EventExportComplete      = "export-complete"
	EventExportError         = "export-error"
)

type TrackAddedEvent struct {
	TrackID string            `json:"trackId"`
	Track   domain.MixerTrack `json:"track"`
}

type TrackRemovedEvent struct {
	TrackID string `json:"trackId"`
}

type TrackUpdatedEvent struct {
	TrackID string      `json:"trackId"`
	Updates TrackUpdate `json:"updates"`
}

type VolumeChangedEvent struct {
	TrackID string  `json:"trackId"`
	Volume  float64 `json:"volume"`
}

type PanChangedEvent struct {
	TrackID string  `json:"trackId"`
	Pan     float64 `json:"pan"`
}

type MuteChangedEvent struct {
	TrackID string `json:"trackId"`
	Muted   bool   `json:"muted"`
}

type SoloChangedEvent struct {
	TrackID string `json:"trackId"`
	Solo    bool   `json:"solo"`
}

type EQChangedEvent struct {
	TrackID string    `json:"trackId"`
	EQ      domain.EQ `json:"eq"`
}

type CompressorChangedEvent struct {
	TrackID    string            `json:"trackId"`
	Compressor domain.Compressor `json:"compressor"`
}

type EffectAddedEvent struct {
	TrackID string        `json:"trackId"`
	Effect  domain.Effect `json:"effect"`
}

type EffectsClearedEvent struct {
	TrackID string `json:"trackId"`
}

type AutomationAddedEvent struct {
	TrackID    string            `json:"trackId"`
	Automation domain.Automation `json:"automation"`
}

type DuckingAddedEvent struct {
	Ducking domain.DuckingRule `json:"ducking"`
}

type MasterVolumeChangedEvent struct {
	Volume float64 `json:"volume"`
}

type ConfigLoadedEvent struct {
	Tracks int `json:"tracks"`
}

type ExportStartEvent struct {
	TrackCount int `json:"trackCount"`
}

type ExportProgressEvent struct {
	Percent float64 `json:"percent"`
}

type ExportErrorEvent struct {
	Error string `json:"error"`
}
