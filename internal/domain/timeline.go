package domain

import "slices"

// TrackKind is the media a timeline track accepts.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
	TrackBoth  TrackKind = "both"
)

// Valid reports whether k is a known kind.
func (k TrackKind) Valid() bool {
	return k == TrackVideo || k == TrackAudio || k == TrackBoth
}

// CompatibleWith reports whether clips may move between tracks of kinds k and other.
func (k TrackKind) CompatibleWith(other TrackKind) bool {
	return k == other || k == TrackBoth || other == TrackBoth
}

// Transition is applied at the head of a clip.
type Transition struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
}

// Clip is a placed media reference. All times are in seconds.
type Clip struct {
	ID            string      `json:"id"`
	TrackID       string      `json:"trackId" required:"false"`
	FilePath      string      `json:"filePath"`
	StartTime     float64     `json:"startTime"`
	EndTime       float64     `json:"endTime"`
	Duration      float64     `json:"duration" required:"false" doc:"Derived from endTime - startTime"`
	TimelineStart float64     `json:"timelineStart"`
	TimelineEnd   float64     `json:"timelineEnd" required:"false" doc:"Derived from timelineStart + duration"`
	Speed         float64     `json:"speed,omitempty"`
	Volume        *float64    `json:"volume,omitempty"`
	Transition    *Transition `json:"transition,omitempty"`
}

// Clone returns a deep copy of the clip.
func (c Clip) Clone() Clip {
	if c.Volume != nil {
		v := *c.Volume
		c.Volume = &v
	}
	if c.Transition != nil {
		tr := *c.Transition
		c.Transition = &tr
	}
	return c
}

// Track is a timeline lane owning an ordered list of clips.
type Track struct {
	ID     string    `json:"id"`
	Kind   TrackKind `json:"type"`
	Clips  []Clip    `json:"clips"`
	Volume float64   `json:"volume"`
	Muted  bool      `json:"muted,omitempty"`
	Locked bool      `json:"locked,omitempty"`
}

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Sidechain configures the flow compressor keyed on the voice bus.
type Sidechain struct {
	Threshold float64 `json:"threshold,omitempty"`
	Ratio     float64 `json:"ratio,omitempty"`
}

// BPM sources for continuous flow.
const (
	BPMSourceAuto   = "auto"
	BPMSourceManual = "manual"
)

// ContinuousFlow aligns cuts to a musical beat.
type ContinuousFlow struct {
	Enabled         bool       `json:"enabled"`
	BPMSource       string     `json:"bpmSource" enum:"auto,manual"`
	BPMManual       float64    `json:"bpmManual,omitempty"`
	BeatToleranceMs float64    `json:"beatToleranceMs,omitempty"`
	CrossfadeRatio  float64    `json:"crossfadeRatio,omitempty"`
	Sidechain       *Sidechain `json:"sidechain,omitempty"`
}

// Timeline is the full editable composition.
type Timeline struct {
	Tracks     []Track         `json:"tracks"`
	FPS        float64         `json:"fps"`
	Resolution Resolution      `json:"resolution"`
	Flow       *ContinuousFlow `json:"flow,omitempty"`
}

// Clone returns a deep copy with non-nil slices.
func (t Timeline) Clone() Timeline {
	cp := t
	cp.Tracks = make([]Track, len(t.Tracks))
	for i, tr := range t.Tracks {
		clips := make([]Clip, len(tr.Clips))
		for j, c := range tr.Clips {
			clips[j] = c.Clone()
		}
		tr.Clips = clips
		cp.Tracks[i] = tr
	}
	if t.Flow != nil {
		f := *t.Flow
		if f.Sidechain != nil {
			s := *f.Sidechain
			f.Sidechain = &s
		}
		cp.Flow = &f
	}
	return cp
}

// ClipCount returns the number of clips across all tracks.
func (t Timeline) ClipCount() int {
	n := 0
	for _, tr := range t.Tracks {
		n += len(tr.Clips)
	}
	return n
}

// SortClips orders a track's clips by timeline position.
func (tr *Track) SortClips() {
	slices.SortStableFunc(tr.Clips, func(a, b Clip) int {
		switch {
		case a.TimelineStart < b.TimelineStart:
			return -1
		case a.TimelineStart > b.TimelineStart:
			return 1
		}
		return 0
	})
}
