package mixer

import (
	"cmp"
	"maps"
	"slices"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/slug"
)

// SetVolume sets a track's gain. Out-of-range values leave the track unchanged.
func (m *Mixer) SetVolume(trackID string, v float64) error {
	if err := checkVolume(v, msgVolumeRange); err != nil {
		return err
	}
	if err := m.mutate(trackID, func(t *domain.MixerTrack) { t.Volume = v }); err != nil {
		return err
	}
	m.notifier.Emit(EventVolumeChanged, VolumeChangedEvent{TrackID: trackID, Volume: v})
	return nil
}

// SetPan sets a track's stereo position, -1 (left) to 1 (right).
func (m *Mixer) SetPan(trackID string, p float64) error {
	if err := checkPan(p); err != nil {
		return err
	}
	if err := m.mutate(trackID, func(t *domain.MixerTrack) { t.Pan = p }); err != nil {
		return err
	}
	m.notifier.Emit(EventPanChanged, PanChangedEvent{TrackID: trackID, Pan: p})
	return nil
}

// SetMute mutes or unmutes a track.
func (m *Mixer) SetMute(trackID string, muted bool) error {
	if err := m.mutate(trackID, func(t *domain.MixerTrack) { t.Muted = muted }); err != nil {
		return err
	}
	m.notifier.Emit(EventMuteChanged, MuteChangedEvent{TrackID: trackID, Muted: muted})
	return nil
}

// SetSolo solos or unsolos a track.
//
// Solo overwrites the mute flag of every other track: enabling mutes them all,
// disabling unmutes them all. A mute set on another track before solo was
// engaged is therefore lost when solo is released.
func (m *Mixer) SetSolo(trackID string, enabled bool) error {
	m.mu.Lock()
	if m.trackIndex(trackID) < 0 {
		m.mu.Unlock()
		return errors.NotFound(msgTrackNotFound)
	}
	for i := range m.cfg.Tracks {
		t := &m.cfg.Tracks[i]
		if t.ID == trackID {
			t.Solo = enabled
			continue
		}
		t.Muted = enabled
		if enabled {
			t.Solo = false
		}
	}
	m.mu.Unlock()

	m.notifier.Emit(EventSoloChanged, SoloChangedEvent{TrackID: trackID, Solo: enabled})
	return nil
}

// SetEQ replaces a track's equalizer.
func (m *Mixer) SetEQ(trackID string, eq domain.EQ) error {
	if err := m.mutate(trackID, func(t *domain.MixerTrack) { t.EQ = &eq }); err != nil {
		return err
	}
	m.notifier.Emit(EventEQChanged, EQChangedEvent{TrackID: trackID, EQ: eq})
	return nil
}

// SetCompressor replaces a track's compressor.
func (m *Mixer) SetCompressor(trackID string, c domain.Compressor) error {
	if err := m.mutate(trackID, func(t *domain.MixerTrack) { t.Compressor = &c }); err != nil {
		return err
	}
	m.notifier.Emit(EventCompressorChanged, CompressorChangedEvent{TrackID: trackID, Compressor: c})
	return nil
}

// AddEffect appends an insert effect and returns its id.
func (m *Mixer) AddEffect(trackID string, effect domain.Effect) (string, error) {
	if effect.ID == "" {
		effect.ID = m.newID("effect")
	}
	err := m.mutate(trackID, func(t *domain.MixerTrack) {
		e := effect
		e.Params = maps.Clone(effect.Params)
		t.Effects = append(t.Effects, e)
	})
	if err != nil {
		return "", err
	}
	m.notifier.Emit(EventEffectAdded, EffectAddedEvent{TrackID: trackID, Effect: effect})
	return effect.ID, nil
}

// ClearEffects removes every insert effect from a track.
func (m *Mixer) ClearEffects(trackID string) error {
	if err := m.mutate(trackID, func(t *domain.MixerTrack) { t.Effects = []domain.Effect{} }); err != nil {
		return err
	}
	m.notifier.Emit(EventEffectsCleared, EffectsClearedEvent{TrackID: trackID})
	return nil
}

// AddAutomation appends an automation lane. Points are stored sorted by
// timestamp; points sharing a timestamp keep their input order.
func (m *Mixer) AddAutomation(trackID string, a domain.Automation) error {
	lane := domain.Automation{Parameter: a.Parameter, Points: slices.Clone(a.Points)}
	if lane.Points == nil {
		lane.Points = []domain.AutomationPoint{}
	}
	sortPoints(lane.Points)

	if err := m.mutate(trackID, func(t *domain.MixerTrack) { t.Automation = append(t.Automation, lane) }); err != nil {
		return err
	}
	m.notifier.Emit(EventAutomationAdded, AutomationAddedEvent{TrackID: trackID, Automation: lane})
	return nil
}

// AddDucking registers a ducking rule. Both tracks must exist.
func (m *Mixer) AddDucking(rule domain.DuckingRule) error {
	m.mu.Lock()
	if m.trackIndex(rule.TargetTrackID) < 0 || m.trackIndex(rule.TriggerTrackID) < 0 {
		m.mu.Unlock()
		return errors.NotFound(msgTrackNotFound)
	}
	m.cfg.Ducking = append(m.cfg.Ducking, rule)
	m.mu.Unlock()

	m.notifier.Emit(EventDuckingAdded, DuckingAddedEvent{Ducking: rule})
	return nil
}

// mutate applies fn to a track under the lock.
func (m *Mixer) mutate(trackID string, fn func(*domain.MixerTrack)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.track(trackID)
	if err != nil {
		return err
	}
	fn(t)
	return nil
}

// applyAutoDucking adds the auto-ducking rule once a voice and a music track
// exist and no rule links them yet. Caller holds m.mu.
func (m *Mixer) applyAutoDucking() (domain.DuckingRule, bool) {
	if m.autoDuck == nil {
		return domain.DuckingRule{}, false
	}
	voice := slices.IndexFunc(m.cfg.Tracks, func(t domain.MixerTrack) bool { return isVoice(t.Name) })
	music := slices.IndexFunc(m.cfg.Tracks, func(t domain.MixerTrack) bool { return isMusic(t.Name) })
	if voice < 0 || music < 0 || voice == music {
		return domain.DuckingRule{}, false
	}

	rule := *m.autoDuck
	rule.TriggerTrackID = m.cfg.Tracks[voice].ID
	rule.TargetTrackID = m.cfg.Tracks[music].ID
	exists := slices.ContainsFunc(m.cfg.Ducking, func(r domain.DuckingRule) bool {
		return r.TargetTrackID == rule.TargetTrackID && r.TriggerTrackID == rule.TriggerTrackID
	})
	if exists {
		return domain.DuckingRule{}, false
	}
	m.cfg.Ducking = append(m.cfg.Ducking, rule)
	return rule, true
}

func isVoice(name string) bool {
	return slug.HasWord(name, "voz", "voice", "narracao", "narration", "narrador", "locucao")
}

func isMusic(name string) bool {
	return slug.HasWord(name, "musica", "music", "trilha", "soundtrack", "bgm")
}

func sortPoints(points []domain.AutomationPoint) {
	slices.SortStableFunc(points, func(a, b domain.AutomationPoint) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}

func sortAutomation(lanes []domain.Automation) {
	for i := range lanes {
		sortPoints(lanes[i].Points)
	}
}
