package timeline

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/events"
	"github.com/estudio-ia/studio-server/internal/media"
)

// allowFiles accepts every path except those listed as missing.
func allowFiles(missing ...string) media.FileChecker {
	return media.CheckerFunc(func(_ context.Context, path string) error {
		for _, m := range missing {
			if m == path {
				return os.ErrNotExist
			}
		}
		return nil
	})
}

func newTestEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	return NewEditor(append([]Option{WithFileChecker(allowFiles("missing.mp4"))}, opts...)...)
}

// recordEvents collects event names in emission order.
func recordEvents(n *events.Notifier) *[]events.Event {
	var got []events.Event
	n.OnAny(func(e events.Event) { got = append(got, e) })
	return &got
}

func TestNewEditor_Defaults(t *testing.T) {
	e := NewEditor()
	tl := e.Timeline()

	assert.Equal(t, float64(DefaultFPS), tl.FPS)
	assert.Equal(t, DefaultResolution, tl.Resolution)
	assert.NotNil(t, tl.Tracks)
	assert.Empty(t, tl.Tracks)
	assert.Zero(t, e.Duration())
	assert.Zero(t, e.ClipCount())
}

func TestAddTrack(t *testing.T) {
	e := newTestEditor(t)
	got := recordEvents(e.Events())

	id, err := e.AddTrack(domain.TrackVideo, TrackOptions{})
	require.NoError(t, err)
	assert.Regexp(t, `^track_[0-9a-f-]{36}$`, id)

	tl := e.Timeline()
	require.Len(t, tl.Tracks, 1)
	assert.Equal(t, domain.TrackVideo, tl.Tracks[0].Kind)
	assert.Equal(t, 1.0, tl.Tracks[0].Volume)
	assert.Empty(t, tl.Tracks[0].Clips)

	require.Len(t, *got, 1)
	assert.Equal(t, EventTrackAdded, (*got)[0].Name)
	assert.Equal(t, TrackAddedEvent{TrackID: id, Type: domain.TrackVideo}, (*got)[0].Payload)
}

func TestAddTrack_CustomVolume(t *testing.T) {
	e := newTestEditor(t)
	v := 0.4
	id, err := e.AddTrack(domain.TrackAudio, TrackOptions{Volume: &v})
	require.NoError(t, err)

	tl := e.Timeline()
	assert.Equal(t, id, tl.Tracks[0].ID)
	assert.Equal(t, 0.4, tl.Tracks[0].Volume)
}

func TestAddTrack_InvalidKind(t *testing.T) {
	e := newTestEditor(t)
	_, err := e.AddTrack("subtitle", TrackOptions{})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Empty(t, e.Timeline().Tracks)
}

func TestRemoveTrack(t *testing.T) {
	e := newTestEditor(t)
	id, err := e.AddTrack(domain.TrackVideo, TrackOptions{})
	require.NoError(t, err)
	_, err = e.AddClip(context.Background(), id, ClipInput{FilePath: "a.mp4", EndTime: 5})
	require.NoError(t, err)

	ok, err := e.RemoveTrack(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, e.Timeline().Tracks)
	assert.Zero(t, e.ClipCount())
}

func TestRemoveTrack_Errors(t *testing.T) {
	e := newTestEditor(t)

	_, err := e.RemoveTrack("track_nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.EqualError(t, err, "Track não encontrada")

	id, err := e.AddTrack(domain.TrackVideo, TrackOptions{})
	require.NoError(t, err)
	require.NoError(t, e.SetTrackLocked(id, true))

	ok, err := e.RemoveTrack(id)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, errors.ErrLocked))
	assert.EqualError(t, err, "Track travada")
	assert.Len(t, e.Timeline().Tracks, 1)
}

func TestSetTrackMuted(t *testing.T) {
	e := newTestEditor(t)
	id, err := e.AddTrack(domain.TrackAudio, TrackOptions{})
	require.NoError(t, err)
	got := recordEvents(e.Events())

	require.NoError(t, e.SetTrackMuted(id, true))
	assert.True(t, e.Timeline().Tracks[0].Muted)
	require.Len(t, *got, 1)
	assert.Equal(t, TrackUpdatedEvent{TrackID: id, Muted: true}, (*got)[0].Payload)

	assert.True(t, errors.Is(e.SetTrackMuted("track_nope", true), errors.ErrNotFound))
}

func TestTimeline_ReturnsSnapshot(t *testing.T) {
	e := newTestEditor(t)
	id, err := e.AddTrack(domain.TrackVideo, TrackOptions{})
	require.NoError(t, err)
	_, err = e.AddClip(context.Background(), id, ClipInput{FilePath: "a.mp4", EndTime: 5})
	require.NoError(t, err)

	snap := e.Timeline()
	snap.Tracks[0].Clips[0].TimelineStart = 99
	snap.Tracks[0].Muted = true

	fresh := e.Timeline()
	assert.Zero(t, fresh.Tracks[0].Clips[0].TimelineStart)
	assert.False(t, fresh.Tracks[0].Muted)
}

func TestClearAndLoad(t *testing.T) {
	e := newTestEditor(t)
	got := recordEvents(e.Events())

	require.NoError(t, e.Load(domain.Timeline{
		Tracks: []domain.Track{{
			ID:   "track_1",
			Kind: domain.TrackVideo,
			Clips: []domain.Clip{
				{ID: "clip_b", FilePath: "b.mp4", EndTime: 2, Duration: 2, TimelineStart: 5, TimelineEnd: 7},
				{ID: "clip_a", FilePath: "a.mp4", EndTime: 5, Duration: 5, TimelineStart: 0, TimelineEnd: 5},
			},
		}},
	}))

	tl := e.Timeline()
	assert.Equal(t, float64(DefaultFPS), tl.FPS, "defaults fill missing fields")
	assert.Equal(t, "clip_a", tl.Tracks[0].Clips[0].ID, "clips are sorted on load")
	assert.Equal(t, 7.0, e.Duration())
	assert.Equal(t, 2, e.ClipCount())

	e.Clear()
	assert.Empty(t, e.Timeline().Tracks)

	names := make([]string, 0, len(*got))
	for _, ev := range *got {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{EventTimelineLoaded, EventTimelineCleared}, names)
	assert.Equal(t, TimelineLoadedEvent{Tracks: 1, Clips: 2}, (*got)[0].Payload)
}

func TestLoad_DerivesClipTiming(t *testing.T) {
	e := newTestEditor(t)

	// clip_a omits duration and timelineEnd; clip_b claims a stale end.
	require.NoError(t, e.Load(domain.Timeline{
		Tracks: []domain.Track{{
			ID:   "track_1",
			Kind: domain.TrackVideo,
			Clips: []domain.Clip{
				{ID: "clip_a", FilePath: "a.mp4", StartTime: 0, EndTime: 10, TimelineStart: 0},
				{ID: "clip_b", FilePath: "b.mp4", StartTime: 2, EndTime: 4, Duration: 9, TimelineStart: 5, TimelineEnd: 10},
			},
		}},
	}))

	clips := e.Timeline().Tracks[0].Clips
	assert.Equal(t, 10.0, clips[0].Duration)
	assert.Equal(t, 10.0, clips[0].TimelineEnd)
	assert.Equal(t, "track_1", clips[0].TrackID)
	assert.Equal(t, 2.0, clips[1].Duration)
	assert.Equal(t, 7.0, clips[1].TimelineEnd)

	err := e.Validate()
	assert.True(t, errors.Is(err, errors.ErrOverlapDetected), "got %v", err)
}

func TestLoad_RejectsInvalidWindow(t *testing.T) {
	tests := []struct {
		name string
		clip domain.Clip
	}{
		{"inverted", domain.Clip{ID: "clip_x", FilePath: "x.mp4", StartTime: 8, EndTime: 3}},
		{"zero length", domain.Clip{ID: "clip_x", FilePath: "x.mp4", StartTime: 3, EndTime: 3}},
		{"negative start", domain.Clip{ID: "clip_x", FilePath: "x.mp4", StartTime: -1, EndTime: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEditor(t)
			trackID, err := e.AddTrack(domain.TrackVideo, TrackOptions{})
			require.NoError(t, err)

			err = e.Load(domain.Timeline{
				Tracks: []domain.Track{{ID: "track_1", Kind: domain.TrackVideo, Clips: []domain.Clip{tt.clip}}},
			})

			require.True(t, errors.Is(err, errors.ErrInvalidRange), "got %v", err)
			assert.Contains(t, err.Error(), msgInvalidClipTimes)
			tl := e.Timeline()
			require.Len(t, tl.Tracks, 1, "editor is unchanged")
			assert.Equal(t, trackID, tl.Tracks[0].ID)
		})
	}
}

func TestOSFileCheckerIntegration(t *testing.T) {
	e := NewEditor(WithFileChecker(media.OSFileChecker{Root: t.TempDir()}))
	id, err := e.AddTrack(domain.TrackVideo, TrackOptions{})
	require.NoError(t, err)

	_, err = e.AddClip(context.Background(), id, ClipInput{FilePath: "nope.mp4", EndTime: 1})
	assert.True(t, errors.Is(err, errors.ErrSourceNotFound))
	assert.Contains(t, err.Error(), "Arquivo não encontrado")
}
