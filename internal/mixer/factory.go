package mixer

import "github.com/estudio-ia/studio-server/internal/domain"

// TrackPreset is a reusable gain and signal-chain starting point.
type TrackPreset struct {
	Volume     float64            `json:"volume"`
	EQ         *domain.EQ         `json:"eq,omitempty"`
	Compressor *domain.Compressor `json:"compressor,omitempty"`
}

// Apply copies the preset onto in, leaving fields the preset does not set.
func (p TrackPreset) Apply(in TrackInput) TrackInput {
	v := p.Volume
	in.Volume = &v
	if p.EQ != nil {
		eq := *p.EQ
		in.EQ = &eq
	}
	if p.Compressor != nil {
		c := *p.Compressor
		in.Compressor = &c
	}
	return in
}

// CoursePresets are the narration and background-music chains used for lessons.
type CoursePresets struct {
	Voice TrackPreset `json:"voice"`
	Music TrackPreset `json:"music"`
}

// DefaultDucking is the rule the ducking factory installs between voice and music.
var DefaultDucking = domain.DuckingRule{Threshold: -25, Reduction: -12, Attack: 10, Release: 100}

// NewBasicMixer returns a mixer with default bus settings.
func NewBasicMixer(opts ...Option) *Mixer {
	return New(opts...)
}

// NewPodcastMixer returns a 48 kHz stereo mixer and its bus configuration.
func NewPodcastMixer(opts ...Option) (*Mixer, domain.MixerConfig) {
	cfg := DefaultConfig()
	cfg.SampleRate = 48000
	cfg.BitDepth = 24
	cfg.Channels = 2
	cfg.MasterVolume = 0.9
	m := New(append([]Option{WithConfig(cfg)}, opts...)...)
	return m, m.Config()
}

// NewCourseMixer returns a mixer plus voice and music presets tuned for narrated lessons.
func NewCourseMixer(opts ...Option) (*Mixer, CoursePresets) {
	presets := CoursePresets{
		Voice: TrackPreset{
			Volume:     1.0,
			EQ:         &domain.EQ{LowGain: -3, LowFreq: 120, MidGain: 2, MidFreq: 2500, HighGain: 1},
			Compressor: &domain.Compressor{Threshold: -18, Ratio: 3, Attack: 5, Release: 80, MakeupGain: 3},
		},
		Music: TrackPreset{
			Volume: 0.3,
			EQ:     &domain.EQ{LowGain: 0, MidGain: -3, MidFreq: 2000, HighGain: -1},
		},
	}
	return New(opts...), presets
}

// NewDuckingMixer returns a mixer that ducks music under voice as soon as
// both are present. Tracks are classified by name, e.g. "Voz Principal" or
// "Música de Fundo".
func NewDuckingMixer(opts ...Option) *Mixer {
	return New(append([]Option{WithAutoDucking(DefaultDucking)}, opts...)...)
}
