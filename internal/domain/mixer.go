package domain

import (
	"maps"
	"slices"
	"time"
)

// EQ is a three-band equalizer. Gains are in dB, frequencies in Hz.
type EQ struct {
	LowGain  float64 `json:"lowGain"`
	LowFreq  float64 `json:"lowFreq,omitempty"`
	MidGain  float64 `json:"midGain"`
	MidFreq  float64 `json:"midFreq,omitempty"`
	HighGain float64 `json:"highGain"`
	HighFreq float64 `json:"highFreq,omitempty"`
}

// Compressor is a dynamics processor. Threshold is dB, attack/release ms.
type Compressor struct {
	Threshold  float64 `json:"threshold"`
	Ratio      float64 `json:"ratio"`
	Attack     float64 `json:"attack"`
	Release    float64 `json:"release"`
	MakeupGain float64 `json:"makeupGain,omitempty"`
}

// Effect is an insert on a mixer track.
type Effect struct {
	ID     string             `json:"id"`
	Type   string             `json:"type"`
	Mix    float64            `json:"mix"`
	Params map[string]float64 `json:"params,omitempty"`
}

// AutomationPoint is a control value at a time offset in seconds.
type AutomationPoint struct {
	Timestamp float64 `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Automation is a lane of control points for one parameter.
type Automation struct {
	Parameter string            `json:"parameter"`
	Points    []AutomationPoint `json:"points"`
}

// MixerTrack is an audio lane with its signal chain.
type MixerTrack struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	FilePath   string       `json:"filePath"`
	Volume     float64      `json:"volume"`
	Pan        float64      `json:"pan"`
	Muted      bool         `json:"muted,omitempty"`
	Solo       bool         `json:"solo,omitempty"`
	StartTime  float64      `json:"startTime"`
	Duration   float64      `json:"duration"`
	EQ         *EQ          `json:"eq,omitempty"`
	Compressor *Compressor  `json:"compressor,omitempty"`
	Effects    []Effect     `json:"effects,omitempty"`
	Automation []Automation `json:"automation,omitempty"`
	FadeIn     float64      `json:"fadeIn,omitempty"`
	FadeOut    float64      `json:"fadeOut,omitempty"`
}

// Clone returns a deep copy of the track.
func (t MixerTrack) Clone() MixerTrack {
	cp := t
	if t.EQ != nil {
		eq := *t.EQ
		cp.EQ = &eq
	}
	if t.Compressor != nil {
		c := *t.Compressor
		cp.Compressor = &c
	}
	cp.Effects = make([]Effect, len(t.Effects))
	for i, e := range t.Effects {
		e.Params = maps.Clone(e.Params)
		cp.Effects[i] = e
	}
	cp.Automation = make([]Automation, len(t.Automation))
	for i, a := range t.Automation {
		a.Points = slices.Clone(a.Points)
		cp.Automation[i] = a
	}
	return cp
}

// DuckingRule attenuates the target track while the trigger track is active.
type DuckingRule struct {
	TargetTrackID  string  `json:"targetTrackId"`
	TriggerTrackID string  `json:"triggerTrackId"`
	Threshold      float64 `json:"threshold"`
	Reduction      float64 `json:"reduction"`
	Attack         float64 `json:"attack"`
	Release        float64 `json:"release"`
}

// MixerConfig is the full state of a mix.
type MixerConfig struct {
	Tracks       []MixerTrack  `json:"tracks"`
	MasterVolume float64       `json:"masterVolume"`
	SampleRate   int           `json:"sampleRate"`
	BitDepth     int           `json:"bitDepth"`
	Channels     int           `json:"channels"`
	Ducking      []DuckingRule `json:"ducking"`
}

// Clone returns a deep copy with non-nil slices.
func (c MixerConfig) Clone() MixerConfig {
	cp := c
	cp.Tracks = make([]MixerTrack, len(c.Tracks))
	for i, t := range c.Tracks {
		cp.Tracks[i] = t.Clone()
	}
	cp.Ducking = slices.Clone(c.Ducking)
	if cp.Ducking == nil {
		cp.Ducking = []DuckingRule{}
	}
	return cp
}

// ProjectDocument is the persisted editing state of one project.
type ProjectDocument struct {
	ProjectID string       `json:"projectId"`
	Timeline  *Timeline    `json:"timeline,omitempty"`
	Mixer     *MixerConfig `json:"mixer,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
