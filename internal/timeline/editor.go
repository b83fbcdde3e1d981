// Package timeline implements the non-linear timeline editor: tracks of
// placed clips, trim/split/move editing and export-time validation.
//
// Overlaps and muted tracks are allowed while editing and only rejected when
// the timeline is validated for export.
package timeline

import (
	"context"
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
	msgTrackNotFound    = "Track não encontrada"
	msgTrackLocked      = "Track travada"
	msgClipNotFound     = "Clip não encontrado"
	msgFileNotFound     = "Arquivo não encontrado"
	msgInvalidClipTimes = "Tempos de clip inválidos"
	msgInvalidTrimTimes = "Tempos de trim inválidos"
	msgInvalidSplit     = "Ponto de divisão inválido"
	msgIncompatible     = "Tipos de track incompatíveis"
	msgInvalidTrackKind = "Tipo de track inválido"
)

// DefaultFPS and DefaultResolution apply when a timeline is created without them.
const DefaultFPS = 30

var DefaultResolution = domain.Resolution{Width: 1920, Height: 1080}

// Editor owns one timeline. It is safe for concurrent use.
type Editor struct {
	mu       sync.Mutex
	tl       domain.Timeline
	files    media.FileChecker
	notifier *events.Notifier
	renderer Renderer
	newID    func(prefix string) string
}

// Option configures an Editor.
type Option func(*Editor)

// WithFileChecker sets the collaborator used to verify clip sources.
func WithFileChecker(fc media.FileChecker) Option {
	return func(e *Editor) { e.files = fc }
}

// WithNotifier shares an existing notifier instead of creating one.
func WithNotifier(n *events.Notifier) Option {
	return func(e *Editor) { e.notifier = n }
}

// WithRenderer sets the backend that executes export plans.
func WithRenderer(r Renderer) Option {
	return func(e *Editor) { e.renderer = r }
}

// WithTimeline seeds the editor with an existing composition.
func WithTimeline(tl domain.Timeline) Option {
	return func(e *Editor) { e.tl = tl.Clone() }
}

// NewEditor creates an editor with an empty 30 fps 1920x1080 timeline.
func NewEditor(opts ...Option) *Editor {
	e := &Editor{
		tl: domain.Timeline{
			Tracks:     []domain.Track{},
			FPS:        DefaultFPS,
			Resolution: DefaultResolution,
		},
		files: media.OSFileChecker{},
		newID: func(prefix string) string { return prefix + "_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = events.New()
	}
	e.applyDefaults()
	return e
}

func (e *Editor) applyDefaults() {
	if e.tl.FPS <= 0 {
		e.tl.FPS = DefaultFPS
	}
	if e.tl.Resolution.Width <= 0 || e.tl.Resolution.Height <= 0 {
		e.tl.Resolution = DefaultResolution
	}
	if e.tl.Tracks == nil {
		e.tl.Tracks = []domain.Track{}
	}
}

// Events returns the notifier editor events are published on.
func (e *Editor) Events() *events.Notifier {
	return e.notifier
}

// Timeline returns a snapshot of the current composition.
func (e *Editor) Timeline() domain.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tl.Clone()
}

// TrackOptions configures a new track.
type TrackOptions struct {
	Volume *float64
}

// AddTrack appends an empty track and returns its id.
func (e *Editor) AddTrack(kind domain.TrackKind, opts TrackOptions) (string, error) {
	if !kind.Valid() {
		return "", errors.Validationf("%s: %q", msgInvalidTrackKind, kind)
	}
	volume := 1.0
	if opts.Volume != nil {
		volume = *opts.Volume
	}

	e.mu.Lock()
	trackID := e.newID("track")
	e.tl.Tracks = append(e.tl.Tracks, domain.Track{
		ID:     trackID,
		Kind:   kind,
		Clips:  []domain.Clip{},
		Volume: volume,
	})
	e.mu.Unlock()

	e.notifier.Emit(EventTrackAdded, TrackAddedEvent{TrackID: trackID, Type: kind})
	return trackID, nil
}

// RemoveTrack deletes a track and all of its clips.
func (e *Editor) RemoveTrack(trackID string) (bool, error) {
	e.mu.Lock()
	idx := e.trackIndex(trackID)
	if idx < 0 {
		e.mu.Unlock()
		return false, errors.NotFound(msgTrackNotFound)
	}
	if e.tl.Tracks[idx].Locked {
		e.mu.Unlock()
		return false, errors.Locked(msgTrackLocked)
	}
	e.tl.Tracks = slices.Delete(e.tl.Tracks, idx, idx+1)
	e.mu.Unlock()

	e.notifier.Emit(EventTrackRemoved, TrackEvent{TrackID: trackID})
	return true, nil
}

// SetTrackMuted mutes or unmutes a track.
func (e *Editor) SetTrackMuted(trackID string, muted bool) error {
	return e.updateTrack(trackID, func(t *domain.Track) { t.Muted = muted })
}

// SetTrackLocked locks or unlocks a track. Locked tracks reject every edit.
func (e *Editor) SetTrackLocked(trackID string, locked bool) error {
	return e.updateTrack(trackID, func(t *domain.Track) { t.Locked = locked })
}

func (e *Editor) updateTrack(trackID string, fn func(*domain.Track)) error {
	e.mu.Lock()
	track, err := e.track(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	fn(track)
	evt := TrackUpdatedEvent{TrackID: trackID, Muted: track.Muted, Locked: track.Locked}
	e.mu.Unlock()

	e.notifier.Emit(EventTrackUpdated, evt)
	return nil
}

// Duration returns the end of the last clip on any track, in seconds.
func (e *Editor) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	var end float64
	for _, t := range e.tl.Tracks {
		for _, c := range t.Clips {
			end = max(end, c.TimelineEnd)
		}
	}
	return end
}

// ClipCount returns the number of clips across all tracks.
func (e *Editor) ClipCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tl.ClipCount()
}

// Clear removes every track.
func (e *Editor) Clear() {
	e.mu.Lock()
	e.tl.Tracks = []domain.Track{}
	e.mu.Unlock()

	e.notifier.Emit(EventTimelineCleared, struct{}{})
}

// Load replaces the composition with tl. Clip durations and timeline ends are
// recomputed from the source window; a clip with an invalid window leaves the
// editor unchanged.
func (e *Editor) Load(tl domain.Timeline) error {
	tl = tl.Clone()
	if err := normalizeClips(&tl); err != nil {
		return err
	}

	e.mu.Lock()
	e.tl = tl
	e.applyDefaults()
	for i := range e.tl.Tracks {
		e.tl.Tracks[i].SortClips()
	}
	evt := TimelineLoadedEvent{Tracks: len(e.tl.Tracks), Clips: e.tl.ClipCount()}
	e.mu.Unlock()

	e.notifier.Emit(EventTimelineLoaded, evt)
	return nil
}

// normalizeClips enforces endTime > startTime >= 0 and derives duration and
// timelineEnd for every clip.
func normalizeClips(tl *domain.Timeline) error {
	for ti := range tl.Tracks {
		t := &tl.Tracks[ti]
		for ci := range t.Clips {
			c := &t.Clips[ci]
			if !(c.StartTime >= 0 && c.EndTime > c.StartTime) {
				return errors.InvalidRange(msgInvalidClipTimes).WithDetails(map[string]string{
					"trackId": t.ID,
					"clipId":  c.ID,
				})
			}
			c.TrackID = t.ID
			c.Duration = c.EndTime - c.StartTime
			c.TimelineEnd = c.TimelineStart + c.Duration
		}
	}
	return nil
}

// track returns the track with id. Caller holds e.mu.
func (e *Editor) track(trackID string) (*domain.Track, error) {
	idx := e.trackIndex(trackID)
	if idx < 0 {
		return nil, errors.NotFound(msgTrackNotFound)
	}
	return &e.tl.Tracks[idx], nil
}

// editableTrack is track plus the lock check. Caller holds e.mu.
func (e *Editor) editableTrack(trackID string) (*domain.Track, error) {
	t, err := e.track(trackID)
	if err != nil {
		return nil, err
	}
	if t.Locked {
		return nil, errors.Locked(msgTrackLocked)
	}
	return t, nil
}

func (e *Editor) trackIndex(trackID string) int {
	return slices.IndexFunc(e.tl.Tracks, func(t domain.Track) bool { return t.ID == trackID })
}

func clipIndex(t *domain.Track, clipID string) int {
	return slices.IndexFunc(t.Clips, func(c domain.Clip) bool { return c.ID == clipID })
}

// checkSource verifies a clip source outside the editor lock.
func (e *Editor) checkSource(ctx context.Context, path string) error {
	if path == "" {
		return errors.New(errors.CodeSourceNotFound, msgFileNotFound)
	}
	if err := e.files.Check(ctx, path); err != nil {
		return errors.Wrap(err, errors.CodeSourceNotFound, msgFileNotFound)
	}
	return nil
}
