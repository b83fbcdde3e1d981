package timeline

import (
	"context"
	"slices"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
)

// ClipInput describes a clip to place on a track. Times are seconds.
type ClipInput struct {
	FilePath  string
	StartTime float64
	EndTime   float64
	// TimelineStart places the clip explicitly; nil appends it after the last clip.
	TimelineStart *float64
	Transition    *domain.Transition
	Speed         float64
	Volume        *float64
}

// AddClip validates the trim window and source file, then places the clip.
// Overlaps created by an explicit TimelineStart are accepted here and rejected at export.
func (e *Editor) AddClip(ctx context.Context, trackID string, in ClipInput) (string, error) {
	if in.EndTime <= in.StartTime || in.StartTime < 0 {
		return "", errors.InvalidRange(msgInvalidClipTimes)
	}

	// Fail fast on unknown or locked tracks before touching the filesystem.
	e.mu.Lock()
	_, err := e.editableTrack(trackID)
	e.mu.Unlock()
	if err != nil {
		return "", err
	}

	if err := e.checkSource(ctx, in.FilePath); err != nil {
		return "", err
	}

	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return "", err
	}

	duration := in.EndTime - in.StartTime
	start := 0.0
	if in.TimelineStart != nil {
		start = *in.TimelineStart
	} else if n := len(track.Clips); n > 0 {
		start = track.Clips[n-1].TimelineEnd
	}

	clip := domain.Clip{
		ID:            e.newID("clip"),
		TrackID:       trackID,
		FilePath:      in.FilePath,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Duration:      duration,
		TimelineStart: start,
		TimelineEnd:   start + duration,
		Speed:         in.Speed,
	}
	if in.Volume != nil {
		v := *in.Volume
		clip.Volume = &v
	}
	if in.Transition != nil {
		tr := *in.Transition
		clip.Transition = &tr
	}
	track.Clips = append(track.Clips, clip)
	track.SortClips()
	e.mu.Unlock()

	e.notifier.Emit(EventClipAdded, ClipEvent{TrackID: trackID, ClipID: clip.ID})
	return clip.ID, nil
}

// RemoveClip deletes a clip. It reports false when the clip is not on the track.
func (e *Editor) RemoveClip(trackID, clipID string) (bool, error) {
	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return false, err
	}
	idx := clipIndex(track, clipID)
	if idx < 0 {
		e.mu.Unlock()
		return false, nil
	}
	track.Clips = slices.Delete(track.Clips, idx, idx+1)
	e.mu.Unlock()

	e.notifier.Emit(EventClipRemoved, ClipEvent{TrackID: trackID, ClipID: clipID})
	return true, nil
}

// TrimInput changes a clip's source window. Duration takes precedence over
// EndTime; when neither is set the current end is kept.
type TrimInput struct {
	StartTime *float64
	EndTime   *float64
	Duration  *float64
}

// TrimClip re-windows a clip in place; TimelineStart does not move.
func (e *Editor) TrimClip(trackID, clipID string, in TrimInput) error {
	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	idx := clipIndex(track, clipID)
	if idx < 0 {
		e.mu.Unlock()
		return errors.NotFound(msgClipNotFound)
	}
	clip := &track.Clips[idx]

	start := clip.StartTime
	if in.StartTime != nil {
		start = *in.StartTime
	}
	end := clip.EndTime
	switch {
	case in.Duration != nil:
		end = start + *in.Duration
	case in.EndTime != nil:
		end = *in.EndTime
	}
	if end <= start || start < 0 {
		e.mu.Unlock()
		return errors.InvalidRange(msgInvalidTrimTimes)
	}

	evt := ClipTrimmedEvent{ClipID: clipID, OldDuration: clip.Duration}
	clip.StartTime = start
	clip.EndTime = end
	clip.Duration = end - start
	clip.TimelineEnd = clip.TimelineStart + clip.Duration
	evt.NewDuration = clip.Duration
	e.mu.Unlock()

	e.notifier.Emit(EventClipTrimmed, evt)
	return nil
}

// SplitClip cuts a clip at offset seconds into its source window, replacing
// it with two adjacent clips that cover the same timeline span. The head clip
// keeps the transition.
func (e *Editor) SplitClip(trackID, clipID string, offset float64) ([2]string, error) {
	var ids [2]string

	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return ids, err
	}
	idx := clipIndex(track, clipID)
	if idx < 0 {
		e.mu.Unlock()
		return ids, errors.NotFound(msgClipNotFound)
	}
	orig := track.Clips[idx]
	if offset <= 0 || offset >= orig.Duration {
		e.mu.Unlock()
		return ids, errors.New(errors.CodeInvalidSplitPoint, msgInvalidSplit)
	}

	cut := orig.StartTime + offset

	head := orig.Clone()
	head.ID = e.newID("clip")
	head.EndTime = cut
	head.Duration = offset
	head.TimelineEnd = orig.TimelineStart + offset

	tail := orig.Clone()
	tail.ID = e.newID("clip")
	tail.StartTime = cut
	tail.Duration = orig.Duration - offset
	tail.TimelineStart = orig.TimelineStart + offset
	tail.TimelineEnd = orig.TimelineEnd
	tail.Transition = nil

	track.Clips = slices.Replace(track.Clips, idx, idx+1, head, tail)
	ids = [2]string{head.ID, tail.ID}
	e.mu.Unlock()

	e.notifier.Emit(EventClipSplit, ClipSplitEvent{TrackID: trackID, ClipID: clipID, ClipIDs: ids})
	return ids, nil
}

// MoveClip shifts a clip along its track. Overlaps are not checked here.
func (e *Editor) MoveClip(trackID, clipID string, newStart float64) error {
	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	idx := clipIndex(track, clipID)
	if idx < 0 {
		e.mu.Unlock()
		return errors.NotFound(msgClipNotFound)
	}
	clip := &track.Clips[idx]
	clip.TimelineStart = newStart
	clip.TimelineEnd = newStart + clip.Duration
	track.SortClips()
	e.mu.Unlock()

	e.notifier.Emit(EventClipMoved, ClipMovedEvent{ClipID: clipID, FromTrackID: trackID, ToTrackID: trackID, TimelineStart: newStart})
	return nil
}

// MoveClipToTrack moves a clip between tracks of compatible kinds, keeping its timeline position.
func (e *Editor) MoveClipToTrack(fromTrackID, toTrackID, clipID string) error {
	e.mu.Lock()
	from, err := e.editableTrack(fromTrackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	to, err := e.editableTrack(toTrackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if !from.Kind.CompatibleWith(to.Kind) {
		e.mu.Unlock()
		return errors.New(errors.CodeIncompatibleTrackType, msgIncompatible)
	}
	idx := clipIndex(from, clipID)
	if idx < 0 {
		e.mu.Unlock()
		return errors.NotFound(msgClipNotFound)
	}

	clip := from.Clips[idx]
	if fromTrackID != toTrackID {
		from.Clips = slices.Delete(from.Clips, idx, idx+1)
		clip.TrackID = toTrackID
		to.Clips = append(to.Clips, clip)
		to.SortClips()
	}
	e.mu.Unlock()

	e.notifier.Emit(EventClipMoved, ClipMovedEvent{ClipID: clipID, FromTrackID: fromTrackID, ToTrackID: toTrackID, TimelineStart: clip.TimelineStart})
	return nil
}

// ApplyTransition sets the transition at the head of a clip.
func (e *Editor) ApplyTransition(trackID, clipID string, tr domain.Transition) error {
	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	idx := clipIndex(track, clipID)
	if idx < 0 {
		e.mu.Unlock()
		return errors.NotFound(msgClipNotFound)
	}
	track.Clips[idx].Transition = &tr
	e.mu.Unlock()

	e.notifier.Emit(EventTransitionApplied, ClipEvent{TrackID: trackID, ClipID: clipID})
	return nil
}
