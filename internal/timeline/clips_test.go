package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
)

func ptr[T any](v T) *T { return &v }

func videoTrack(t *testing.T, e *Editor) string {
	t.Helper()
	id, err := e.AddTrack(domain.TrackVideo, TrackOptions{})
	require.NoError(t, err)
	return id
}

func addClip(t *testing.T, e *Editor, trackID string, in ClipInput) string {
	t.Helper()
	id, err := e.AddClip(context.Background(), trackID, in)
	require.NoError(t, err)
	return id
}

func clipByID(t *testing.T, e *Editor, clipID string) domain.Clip {
	t.Helper()
	for _, tr := range e.Timeline().Tracks {
		for _, c := range tr.Clips {
			if c.ID == clipID {
				return c
			}
		}
	}
	t.Fatalf("clip %s not found", clipID)
	return domain.Clip{}
}

func TestAddClip_SequentialPlacement(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)

	first := addClip(t, e, track, ClipInput{FilePath: "a.mp4", StartTime: 0, EndTime: 10})
	second := addClip(t, e, track, ClipInput{FilePath: "b.mp4", StartTime: 0, EndTime: 5})

	c1 := clipByID(t, e, first)
	assert.Regexp(t, `^clip_[0-9a-f-]{36}$`, c1.ID)
	assert.Equal(t, track, c1.TrackID)
	assert.Equal(t, 10.0, c1.Duration)
	assert.Equal(t, 0.0, c1.TimelineStart)
	assert.Equal(t, 10.0, c1.TimelineEnd)

	c2 := clipByID(t, e, second)
	assert.Equal(t, 10.0, c2.TimelineStart)
	assert.Equal(t, 15.0, c2.TimelineEnd)
	assert.Equal(t, 15.0, e.Duration())
}

func TestAddClip_SumOfPriorDurations(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)

	windows := [][2]float64{{0, 3}, {2, 4.5}, {10, 11}, {0, 7}}
	var sum float64
	for _, w := range windows {
		id := addClip(t, e, track, ClipInput{FilePath: "x.mp4", StartTime: w[0], EndTime: w[1]})
		c := clipByID(t, e, id)
		assert.InDelta(t, sum, c.TimelineStart, 1e-9)
		assert.InDelta(t, c.TimelineStart+c.Duration, c.TimelineEnd, 1e-9)
		sum += w[1] - w[0]
	}
}

func TestAddClip_ExplicitPlacementAndOptions(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)

	id := addClip(t, e, track, ClipInput{
		FilePath:      "a.mp4",
		StartTime:     2,
		EndTime:       6,
		TimelineStart: ptr(20.0),
		Transition:    &domain.Transition{Type: "fade", Duration: 0.5},
		Speed:         2,
		Volume:        ptr(0.8),
	})

	c := clipByID(t, e, id)
	assert.Equal(t, 20.0, c.TimelineStart)
	assert.Equal(t, 24.0, c.TimelineEnd)
	assert.Equal(t, 2.0, c.Speed)
	require.NotNil(t, c.Volume)
	assert.Equal(t, 0.8, *c.Volume)
	require.NotNil(t, c.Transition)
	assert.Equal(t, "fade", c.Transition.Type)
}

func TestAddClip_Errors(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	locked := videoTrack(t, e)
	require.NoError(t, e.SetTrackLocked(locked, true))

	tests := []struct {
		name    string
		trackID string
		in      ClipInput
		want    error
		msg     string
	}{
		{"end before start", track, ClipInput{FilePath: "a.mp4", StartTime: 5, EndTime: 2}, errors.ErrInvalidRange, "Tempos de clip inválidos"},
		{"zero length", track, ClipInput{FilePath: "a.mp4", StartTime: 3, EndTime: 3}, errors.ErrInvalidRange, "Tempos de clip inválidos"},
		{"negative start", track, ClipInput{FilePath: "a.mp4", StartTime: -1, EndTime: 3}, errors.ErrInvalidRange, "Tempos de clip inválidos"},
		{"missing file", track, ClipInput{FilePath: "missing.mp4", EndTime: 3}, errors.ErrSourceNotFound, "Arquivo não encontrado"},
		{"empty path", track, ClipInput{EndTime: 3}, errors.ErrSourceNotFound, "Arquivo não encontrado"},
		{"unknown track", "track_nope", ClipInput{FilePath: "a.mp4", EndTime: 3}, errors.ErrNotFound, "Track não encontrada"},
		{"locked track", locked, ClipInput{FilePath: "a.mp4", EndTime: 3}, errors.ErrLocked, "Track travada"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AddClip(context.Background(), tt.trackID, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
	assert.Zero(t, e.ClipCount())
}

func TestRemoveClip(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	id := addClip(t, e, track, ClipInput{FilePath: "a.mp4", EndTime: 4})

	ok, err := e.RemoveClip(track, "clip_nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.RemoveClip(track, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, e.ClipCount())
}

func TestTrimClip(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	addClip(t, e, track, ClipInput{FilePath: "a.mp4", EndTime: 5})
	id := addClip(t, e, track, ClipInput{FilePath: "b.mp4", StartTime: 0, EndTime: 10})
	got := recordEvents(e.Events())

	require.NoError(t, e.TrimClip(track, id, TrimInput{StartTime: ptr(2.0), EndTime: ptr(8.0)}))

	c := clipByID(t, e, id)
	assert.Equal(t, 2.0, c.StartTime)
	assert.Equal(t, 8.0, c.EndTime)
	assert.Equal(t, 6.0, c.Duration)
	assert.Equal(t, 5.0, c.TimelineStart, "trim keeps the timeline position")
	assert.Equal(t, 11.0, c.TimelineEnd)

	require.Len(t, *got, 1)
	assert.Equal(t, ClipTrimmedEvent{ClipID: id, OldDuration: 10, NewDuration: 6}, (*got)[0].Payload)
}

func TestTrimClip_DurationWins(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	id := addClip(t, e, track, ClipInput{FilePath: "a.mp4", StartTime: 1, EndTime: 9})

	require.NoError(t, e.TrimClip(track, id, TrimInput{EndTime: ptr(3.0), Duration: ptr(4.0)}))
	c := clipByID(t, e, id)
	assert.Equal(t, 5.0, c.EndTime)
	assert.Equal(t, 4.0, c.Duration)

	require.NoError(t, e.TrimClip(track, id, TrimInput{StartTime: ptr(2.0)}))
	c = clipByID(t, e, id)
	assert.Equal(t, 5.0, c.EndTime, "end kept when only start changes")
	assert.Equal(t, 3.0, c.Duration)
}

func TestTrimClip_InvalidLeavesClipUnchanged(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	id := addClip(t, e, track, ClipInput{FilePath: "a.mp4", StartTime: 0, EndTime: 10})
	before := clipByID(t, e, id)

	err := e.TrimClip(track, id, TrimInput{StartTime: ptr(8.0), EndTime: ptr(4.0)})
	assert.True(t, errors.Is(err, errors.ErrInvalidRange))
	assert.EqualError(t, err, "Tempos de trim inválidos")
	assert.Equal(t, before, clipByID(t, e, id))

	err = e.TrimClip(track, "clip_nope", TrimInput{EndTime: ptr(4.0)})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSplitClip(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	addClip(t, e, track, ClipInput{FilePath: "lead.mp4", EndTime: 3})
	id := addClip(t, e, track, ClipInput{
		FilePath:   "a.mp4",
		StartTime:  2,
		EndTime:    12,
		Transition: &domain.Transition{Type: "fade", Duration: 1},
	})
	orig := clipByID(t, e, id)

	ids, err := e.SplitClip(track, id, 4)
	require.NoError(t, err)

	head, tail := clipByID(t, e, ids[0]), clipByID(t, e, ids[1])
	assert.NotEqual(t, id, head.ID)
	assert.NotEqual(t, head.ID, tail.ID)

	assert.Equal(t, 4.0, head.Duration)
	assert.Equal(t, 6.0, tail.Duration)
	assert.Equal(t, orig.TimelineStart, head.TimelineStart)
	assert.Equal(t, head.TimelineEnd, tail.TimelineStart)
	assert.Equal(t, orig.TimelineEnd, tail.TimelineEnd)
	assert.Equal(t, 6.0, head.EndTime)
	assert.Equal(t, 6.0, tail.StartTime)
	assert.Equal(t, 12.0, tail.EndTime)

	assert.NotNil(t, head.Transition)
	assert.Nil(t, tail.Transition)
	assert.Equal(t, 3, e.ClipCount())
}

func TestSplitClip_InvalidPoint(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	id := addClip(t, e, track, ClipInput{FilePath: "a.mp4", EndTime: 10})

	for _, ts := range []float64{0, -1, 10, 15} {
		_, err := e.SplitClip(track, id, ts)
		assert.True(t, errors.Is(err, errors.ErrInvalidSplitPoint), "timestamp %v", ts)
		assert.EqualError(t, err, "Ponto de divisão inválido")
	}
	assert.Equal(t, 1, e.ClipCount())
}

func TestMoveClip(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	first := addClip(t, e, track, ClipInput{FilePath: "a.mp4", EndTime: 5})
	second := addClip(t, e, track, ClipInput{FilePath: "b.mp4", EndTime: 5})

	require.NoError(t, e.MoveClip(track, second, 2))

	c := clipByID(t, e, second)
	assert.Equal(t, 2.0, c.TimelineStart)
	assert.Equal(t, 7.0, c.TimelineEnd)
	assert.Equal(t, 5.0, c.Duration)
	assert.Equal(t, first, e.Timeline().Tracks[0].Clips[0].ID)
}

func TestMoveClipToTrack(t *testing.T) {
	e := newTestEditor(t)
	video := videoTrack(t, e)
	audio, err := e.AddTrack(domain.TrackAudio, TrackOptions{})
	require.NoError(t, err)
	both, err := e.AddTrack(domain.TrackBoth, TrackOptions{})
	require.NoError(t, err)

	id := addClip(t, e, video, ClipInput{FilePath: "a.mp4", EndTime: 5, TimelineStart: ptr(3.0)})

	err = e.MoveClipToTrack(video, audio, id)
	assert.True(t, errors.Is(err, errors.ErrIncompatibleTrackType))
	assert.EqualError(t, err, "Tipos de track incompatíveis")

	require.NoError(t, e.MoveClipToTrack(video, both, id))
	c := clipByID(t, e, id)
	assert.Equal(t, both, c.TrackID)
	assert.Equal(t, 3.0, c.TimelineStart)

	tl := e.Timeline()
	assert.Empty(t, tl.Tracks[0].Clips)
	assert.Len(t, tl.Tracks[2].Clips, 1)

	err = e.MoveClipToTrack(both, video, "clip_nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestLockedTrackRejectsEdits(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	other := videoTrack(t, e)
	id := addClip(t, e, track, ClipInput{FilePath: "a.mp4", EndTime: 10})
	require.NoError(t, e.SetTrackLocked(track, true))

	edits := map[string]func() error{
		"trim":       func() error { return e.TrimClip(track, id, TrimInput{EndTime: ptr(4.0)}) },
		"split":      func() error { _, err := e.SplitClip(track, id, 3); return err },
		"move":       func() error { return e.MoveClip(track, id, 1) },
		"remove":     func() error { _, err := e.RemoveClip(track, id); return err },
		"transition": func() error { return e.ApplyTransition(track, id, domain.Transition{Type: "fade"}) },
		"to track":   func() error { return e.MoveClipToTrack(track, other, id) },
		"snap":       func() error { return e.SnapClipsToBeat(track) },
	}
	for name, edit := range edits {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(edit(), errors.ErrLocked))
		})
	}
	assert.Equal(t, 10.0, clipByID(t, e, id).Duration)
}

func TestApplyTransition(t *testing.T) {
	e := newTestEditor(t)
	track := videoTrack(t, e)
	id := addClip(t, e, track, ClipInput{FilePath: "a.mp4", EndTime: 10})

	require.NoError(t, e.ApplyTransition(track, id, domain.Transition{Type: "dissolve", Duration: 0.75}))
	c := clipByID(t, e, id)
	require.NotNil(t, c.Transition)
	assert.Equal(t, domain.Transition{Type: "dissolve", Duration: 0.75}, *c.Transition)
}
