// Package mixer models a multitrack audio mix: per-track gain, pan and
// signal chain, master bus settings, ducking between tracks, and the render
// plan used to bounce the mix to a file.
package mixer

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/events"
	"github.com/estudio-ia/studio-server/internal/media"
)

// User-facing error messages.
const (
	msgTrackNotFound      = "Track não encontrada"
	msgAudioNotFound      = "Arquivo de áudio não encontrado"
	msgVolumeRange        = "Volume deve estar entre 0 e 2"
	msgPanRange           = "Pan deve estar entre -1 e 1"
	msgMasterVolumeRange  = "Master volume deve estar entre 0 e 2"
	msgEmptyMixer         = "Mixer vazio"
	msgAllTracksMuted     = "Todas as tracks estão mutadas"
	msgUnsupportedFormat  = "Formato de áudio não suportado"
	msgInvalidAudioConfig = "Configuração de áudio inválida"
)

// Bus defaults.
const (
	DefaultSampleRate = 48000
	DefaultBitDepth   = 16
	DefaultChannels   = 2
	MaxGain           = 2.0
)

// DefaultConfig returns an empty mix at 48 kHz, 16 bit, stereo.
func DefaultConfig() domain.MixerConfig {
	return domain.MixerConfig{
		Tracks:       []domain.MixerTrack{},
		MasterVolume: 1.0,
		SampleRate:   DefaultSampleRate,
		BitDepth:     DefaultBitDepth,
		Channels:     DefaultChannels,
		Ducking:      []domain.DuckingRule{},
	}
}

// Mixer owns one mix. It is safe for concurrent use.
type Mixer struct {
	mu       sync.Mutex
	cfg      domain.MixerConfig
	files    media.FileChecker
	prober   media.Prober
	renderer Renderer
	notifier *events.Notifier
	logger   *slog.Logger
	newID    func(prefix string) string
	autoDuck *domain.DuckingRule
}

// Option configures a Mixer.
type Option func(*Mixer)

// WithFileChecker sets the collaborator used to verify track sources.
func WithFileChecker(fc media.FileChecker) Option {
	return func(m *Mixer) { m.files = fc }
}

// WithProber sets the collaborator used to read track durations.
func WithProber(p media.Prober) Option {
	return func(m *Mixer) { m.prober = p }
}

// WithRenderer sets the backend that bounces export plans.
func WithRenderer(r Renderer) Option {
	return func(m *Mixer) { m.renderer = r }
}

// WithNotifier shares an existing notifier.
func WithNotifier(n *events.Notifier) Option {
	return func(m *Mixer) { m.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mixer) { m.logger = l }
}

// WithConfig seeds the bus settings and tracks.
func WithConfig(cfg domain.MixerConfig) Option {
	return func(m *Mixer) { m.cfg = cfg.Clone() }
}

// WithAutoDucking makes the mixer add rule, with its track ids filled in,
// as soon as both a voice track and a music track exist.
func WithAutoDucking(rule domain.DuckingRule) Option {
	return func(m *Mixer) { m.autoDuck = &rule }
}

// New creates a mixer with DefaultConfig.
func New(opts ...Option) *Mixer {
	m := &Mixer{
		cfg:   DefaultConfig(),
		files: media.OSFileChecker{},
		newID: func(prefix string) string { return prefix + "_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = events.New()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.prober == nil {
		m.prober = media.NewAudiometaProber(m.logger)
	}
	m.cfg = withBusDefaults(m.cfg)
	return m
}

// withBusDefaults fills unset bus fields. A zero master volume counts as unset;
// silence a mix by muting its tracks.
func withBusDefaults(cfg domain.MixerConfig) domain.MixerConfig {
	def := DefaultConfig()
	if cfg.MasterVolume == 0 {
		cfg.MasterVolume = def.MasterVolume
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.BitDepth <= 0 {
		cfg.BitDepth = def.BitDepth
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.Tracks == nil {
		cfg.Tracks = []domain.MixerTrack{}
	}
	if cfg.Ducking == nil {
		cfg.Ducking = []domain.DuckingRule{}
	}
	return cfg
}

// Events returns the notifier mixer events are published on.
func (m *Mixer) Events() *events.Notifier {
	return m.notifier
}

// Config returns a snapshot of the mix.
func (m *Mixer) Config() domain.MixerConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

// TrackInput describes a new mixer track. Nil volume means unity gain.
type TrackInput struct {
	Name       string             `json:"name"`
	FilePath   string             `json:"filePath"`
	Volume     *float64           `json:"volume,omitempty"`
	Pan        float64            `json:"pan,omitempty"`
	StartTime  float64            `json:"startTime,omitempty"`
	EQ         *domain.EQ         `json:"eq,omitempty"`
	Compressor *domain.Compressor `json:"compressor,omitempty"`
	FadeIn     float64            `json:"fadeIn,omitempty"`
	FadeOut    float64            `json:"fadeOut,omitempty"`
}

// AddTrack checks the source, probes its duration and appends the track.
// A failed probe leaves the duration at zero; the track is still added.
func (m *Mixer) AddTrack(ctx context.Context, in TrackInput) (string, error) {
	volume := 1.0
	if in.Volume != nil {
		volume = *in.Volume
	}
	if err := checkVolume(volume, msgVolumeRange); err != nil {
		return "", err
	}
	if err := checkPan(in.Pan); err != nil {
		return "", err
	}
	if in.FilePath == "" {
		return "", errors.New(errors.CodeSourceNotFound, msgAudioNotFound)
	}
	if err := m.files.Check(ctx, in.FilePath); err != nil {
		return "", errors.Wrap(err, errors.CodeSourceNotFound, msgAudioNotFound)
	}

	var duration float64
	if d, err := m.prober.Duration(ctx, in.FilePath); err != nil {
		m.logger.Warn("could not probe track duration",
			slog.String("path", in.FilePath),
			slog.String("error", err.Error()),
		)
	} else {
		duration = d.Seconds()
	}

	track := domain.MixerTrack{
		ID:        m.newID("track"),
		Name:      in.Name,
		FilePath:  in.FilePath,
		Volume:    volume,
		Pan:       in.Pan,
		StartTime: in.StartTime,
		Duration:  duration,
		Effects:   []domain.Effect{},
		FadeIn:    in.FadeIn,
		FadeOut:   in.FadeOut,
	}
	if in.EQ != nil {
		eq := *in.EQ
		track.EQ = &eq
	}
	if in.Compressor != nil {
		c := *in.Compressor
		track.Compressor = &c
	}

	m.mu.Lock()
	m.cfg.Tracks = append(m.cfg.Tracks, track)
	duck, added := m.applyAutoDucking()
	m.mu.Unlock()

	m.notifier.Emit(EventTrackAdded, TrackAddedEvent{TrackID: track.ID, Track: track.Clone()})
	if added {
		m.notifier.Emit(EventDuckingAdded, DuckingAddedEvent{Ducking: duck})
	}
	return track.ID, nil
}

// RemoveTrack deletes a track and every ducking rule that references it.
func (m *Mixer) RemoveTrack(trackID string) (bool, error) {
	m.mu.Lock()
	idx := m.trackIndex(trackID)
	if idx < 0 {
		m.mu.Unlock()
		return false, errors.NotFound(msgTrackNotFound)
	}
	m.cfg.Tracks = slices.Delete(m.cfg.Tracks, idx, idx+1)
	m.cfg.Ducking = slices.DeleteFunc(m.cfg.Ducking, func(r domain.DuckingRule) bool {
		return r.TargetTrackID == trackID || r.TriggerTrackID == trackID
	})
	m.mu.Unlock()

	m.notifier.Emit(EventTrackRemoved, TrackRemovedEvent{TrackID: trackID})
	return true, nil
}

// TrackUpdate is a partial update. Nil fields are left unchanged.
type TrackUpdate struct {
	Name      *string  `json:"name,omitempty"`
	FilePath  *string  `json:"filePath,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	Pan       *float64 `json:"pan,omitempty"`
	StartTime *float64 `json:"startTime,omitempty"`
	FadeIn    *float64 `json:"fadeIn,omitempty"`
	FadeOut   *float64 `json:"fadeOut,omitempty"`
}

// UpdateTrack applies u after range-checking volume and pan.
func (m *Mixer) UpdateTrack(trackID string, u TrackUpdate) error {
	if u.Volume != nil {
		if err := checkVolume(*u.Volume, msgVolumeRange); err != nil {
			return err
		}
	}
	if u.Pan != nil {
		if err := checkPan(*u.Pan); err != nil {
			return err
		}
	}

	m.mu.Lock()
	t, err := m.track(trackID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.FilePath != nil {
		t.FilePath = *u.FilePath
	}
	if u.Volume != nil {
		t.Volume = *u.Volume
	}
	if u.Pan != nil {
		t.Pan = *u.Pan
	}
	if u.StartTime != nil {
		t.StartTime = *u.StartTime
	}
	if u.FadeIn != nil {
		t.FadeIn = *u.FadeIn
	}
	if u.FadeOut != nil {
		t.FadeOut = *u.FadeOut
	}
	m.mu.Unlock()

	m.notifier.Emit(EventTrackUpdated, TrackUpdatedEvent{TrackID: trackID, Updates: u})
	return nil
}

// SetMasterVolume sets the master bus gain.
func (m *Mixer) SetMasterVolume(v float64) error {
	if err := checkVolume(v, msgMasterVolumeRange); err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg.MasterVolume = v
	m.mu.Unlock()

	m.notifier.Emit(EventMasterVolumeChanged, MasterVolumeChangedEvent{Volume: v})
	return nil
}

// LoadConfig replaces the whole mix. Bus fields left at zero get defaults;
// ducking rules pointing at unknown tracks are dropped.
func (m *Mixer) LoadConfig(cfg domain.MixerConfig) error {
	cfg = withBusDefaults(cfg.Clone())
	if err := checkVolume(cfg.MasterVolume, msgMasterVolumeRange); err != nil {
		return err
	}
	for _, t := range cfg.Tracks {
		if err := checkVolume(t.Volume, msgVolumeRange); err != nil {
			return err
		}
		if err := checkPan(t.Pan); err != nil {
			return err
		}
	}
	if cfg.Channels > 8 || cfg.BitDepth%8 != 0 {
		return errors.Validation(msgInvalidAudioConfig)
	}
	for i := range cfg.Tracks {
		sortAutomation(cfg.Tracks[i].Automation)
	}
	ids := make(map[string]bool, len(cfg.Tracks))
	for _, t := range cfg.Tracks {
		ids[t.ID] = true
	}
	cfg.Ducking = slices.DeleteFunc(cfg.Ducking, func(r domain.DuckingRule) bool {
		return !ids[r.TargetTrackID] || !ids[r.TriggerTrackID]
	})

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	m.notifier.Emit(EventConfigLoaded, ConfigLoadedEvent{Tracks: len(cfg.Tracks)})
	return nil
}

// ClearTracks removes every track and ducking rule, keeping bus settings.
func (m *Mixer) ClearTracks() {
	m.mu.Lock()
	m.cfg.Tracks = []domain.MixerTrack{}
	m.cfg.Ducking = []domain.DuckingRule{}
	m.mu.Unlock()

	m.notifier.Emit(EventTracksCleared, struct{}{})
}

// track returns the track with id. Caller holds m.mu.
func (m *Mixer) track(trackID string) (*domain.MixerTrack, error) {
	idx := m.trackIndex(trackID)
	if idx < 0 {
		return nil, errors.NotFound(msgTrackNotFound)
	}
	return &m.cfg.Tracks[idx], nil
}

func (m *Mixer) trackIndex(trackID string) int {
	return slices.IndexFunc(m.cfg.Tracks, func(t domain.MixerTrack) bool { return t.ID == trackID })
}

// checkVolume and checkPan are written so NaN fails the range test.
func checkVolume(v float64, msg string) error {
	if !(v >= 0 && v <= MaxGain) {
		return errors.OutOfRange(msg)
	}
	return nil
}

func checkPan(p float64) error {
	if !(p >= -1 && p <= 1) {
		return errors.OutOfRange(msgPanRange)
	}
	return nil
}
