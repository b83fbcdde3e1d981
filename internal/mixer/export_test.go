package mixer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
)

type captureRenderer struct {
	plan RenderPlan
	err  error
}

func (c *captureRenderer) Render(_ context.Context, plan RenderPlan, progress func(float64)) error {
	c.plan = plan
	if c.err != nil {
		return c.err
	}
	progress(100)
	return nil
}

func mixWithTwoTracks(t *testing.T, opts ...Option) (*Mixer, string, string) {
	t.Helper()
	m := newTestMixer(t, opts...)
	voice := addTrack(t, m, TrackInput{Name: "Voz", FilePath: "voz.mp3", Volume: ptr(1.0)})
	music := addTrack(t, m, TrackInput{Name: "Música", FilePath: "music.mp3", Volume: ptr(0.6)})
	return m, voice, music
}

func TestExport(t *testing.T) {
	m, _, _ := mixWithTwoTracks(t)
	got := record(m.Events())

	res, err := m.Export(context.Background(), ExportOptions{OutputPath: "mix.mp3"})
	require.NoError(t, err)
	assert.Equal(t, ExportResult{Success: true, OutputPath: "mix.mp3", Format: "mp3", TrackCount: 2}, res)

	require.Len(t, *got, 3)
	assert.Equal(t, ExportStartEvent{TrackCount: 2}, (*got)[0].Payload)
	assert.Equal(t, EventExportProgress, (*got)[1].Name)
	assert.Equal(t, res, (*got)[2].Payload)
}

func TestExport_Errors(t *testing.T) {
	m := newTestMixer(t)
	_, err := m.Export(context.Background(), ExportOptions{OutputPath: "mix.mp3"})
	assert.True(t, errors.Is(err, errors.ErrEmptyMixer))
	assert.EqualError(t, err, "Mixer vazio")

	m, voice, music := mixWithTwoTracks(t)
	require.NoError(t, m.SetMute(voice, true))
	require.NoError(t, m.SetMute(music, true))
	_, err = m.Export(context.Background(), ExportOptions{OutputPath: "mix.mp3"})
	assert.True(t, errors.Is(err, errors.ErrAllTracksMuted))
	assert.EqualError(t, err, "Todas as tracks estão mutadas")

	require.NoError(t, m.SetMute(voice, false))
	_, err = m.Export(context.Background(), ExportOptions{OutputPath: "mix.xyz"})
	assert.True(t, errors.Is(err, errors.ErrUnsupportedFormat))
}

func TestExport_Codecs(t *testing.T) {
	tests := []struct {
		output string
		format string
		codec  string
	}{
		{"mix.wav", "wav", "pcm_s16le"},
		{"mix.out", "flac", "flac"},
		{"mix.mp3", "", "libmp3lame"},
		{"mix.aac", "", "aac"},
		{"mix.m4a", "", "aac"},
		{"mix.ogg", "OGG", "libvorbis"},
		{"mix", "", "libmp3lame"},
	}
	for _, tt := range tests {
		t.Run(tt.output+"/"+tt.format, func(t *testing.T) {
			r := &captureRenderer{}
			m, _, _ := mixWithTwoTracks(t, WithRenderer(r))
			_, err := m.Export(context.Background(), ExportOptions{OutputPath: tt.output, Format: tt.format})
			require.NoError(t, err)
			assert.Equal(t, tt.codec, r.plan.Codec)
			assert.Equal(t, 48000, r.plan.SampleRate)
			assert.Equal(t, 2, r.plan.Channels)
		})
	}
}

func TestExport_Normalize(t *testing.T) {
	m, _, _ := mixWithTwoTracks(t)

	plan, err := m.Plan(ExportOptions{OutputPath: "mix.mp3", Normalize: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"loudnorm=I=-16:TP=-1.5:LRA=11"}, plan.AudioFilters)

	plan, err = m.Plan(ExportOptions{OutputPath: "mix.mp3", Normalize: true, TargetLUFS: ptr(-23.0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"loudnorm=I=-23:TP=-1.5:LRA=11"}, plan.AudioFilters)

	plan, err = m.Plan(ExportOptions{OutputPath: "mix.mp3"})
	require.NoError(t, err)
	assert.Empty(t, plan.AudioFilters)
}

func TestExport_RendererFailure(t *testing.T) {
	r := &captureRenderer{err: assert.AnError}
	m, _, _ := mixWithTwoTracks(t, WithRenderer(r))
	got := record(m.Events())

	_, err := m.Export(context.Background(), ExportOptions{OutputPath: "mix.mp3"})
	assert.ErrorIs(t, err, assert.AnError)
	require.Len(t, *got, 2)
	assert.Equal(t, EventExportError, (*got)[1].Name)
}

func TestBuildPlan_FilterGraph(t *testing.T) {
	m, voice, music := mixWithTwoTracks(t)
	require.NoError(t, m.SetPan(music, -0.5))
	require.NoError(t, m.SetEQ(voice, domain.EQ{LowGain: -3, MidGain: 2, MidFreq: 2500}))
	require.NoError(t, m.SetCompressor(voice, domain.Compressor{Threshold: -20, Ratio: 4, Attack: 5, Release: 50}))
	_, err := m.AddEffect(voice, domain.Effect{Type: "reverb", Mix: 0.3})
	require.NoError(t, err)
	require.NoError(t, m.UpdateTrack(music, TrackUpdate{FadeIn: ptr(2.0), FadeOut: ptr(3.0), StartTime: ptr(1.5)}))
	require.NoError(t, m.AddDucking(domain.DuckingRule{TargetTrackID: music, TriggerTrackID: voice, Threshold: -20, Reduction: -12}))
	require.NoError(t, m.SetMasterVolume(0.8))

	plan, err := m.Plan(ExportOptions{OutputPath: "mix.wav"})
	require.NoError(t, err)

	require.Len(t, plan.Inputs, 2)
	assert.Equal(t, "voz.mp3", plan.Inputs[0].Path)
	assert.Equal(t, 1.5, plan.Inputs[1].StartTime)

	assert.Equal(t, []string{
		"[0:a]volume=1,equalizer=f=100:t=q:w=1:g=-3,equalizer=f=2500:t=q:w=1:g=2," +
			"acompressor=threshold=0.1:ratio=4:attack=5:release=50:makeup=1,aecho=0.8:0.88:60:0.3[t0]",
		"[1:a]volume=0.6,pan=stereo|c0=1*c0|c1=0.5*c1,afade=t=in:st=0:d=2,afade=t=out:st=117:d=3,adelay=1500|1500[t1]",
		"[t0]asplit=2[t0m][k0]",
		"[t1][k0]sidechaincompress=threshold=0.1:ratio=4:attack=10:release=100[d0]",
		"[t0m][d0]amix=inputs=2:duration=longest:normalize=0,volume=0.8[out]",
	}, plan.ComplexFilter)
	assert.Equal(t, "out", plan.OutputLabel)
}

func TestBuildPlan_SkipsMutedTracks(t *testing.T) {
	m, voice, music := mixWithTwoTracks(t)
	require.NoError(t, m.AddDucking(domain.DuckingRule{TargetTrackID: music, TriggerTrackID: voice}))
	require.NoError(t, m.SetMute(voice, true))

	plan, err := m.Plan(ExportOptions{OutputPath: "mix.mp3"})
	require.NoError(t, err)
	require.Len(t, plan.Inputs, 1)
	assert.Equal(t, music, plan.Inputs[0].TrackID)
	for _, f := range plan.ComplexFilter {
		assert.False(t, strings.Contains(f, "sidechaincompress"), "ducking needs both tracks audible")
	}
}

func TestAnalyzeTrack(t *testing.T) {
	m := newTestMixer(t)
	id := addTrack(t, m, TrackInput{Name: "Test", FilePath: "test.mp3"})

	a, err := m.AnalyzeTrack(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 120.0, a.Duration)
	assert.Equal(t, -1.0, a.PeakLevel)
	assert.Equal(t, -13.0, a.RMSLevel)

	require.NoError(t, m.SetVolume(id, 0.5))
	quieter, err := m.AnalyzeTrack(context.Background(), id)
	require.NoError(t, err)
	assert.Less(t, quieter.PeakLevel, a.PeakLevel)

	require.NoError(t, m.SetMute(id, true))
	silent, err := m.AnalyzeTrack(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, silenceFloorDB, silent.PeakLevel)

	_, err = m.AnalyzeTrack(context.Background(), "nope")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestAnalyzeTrack_Compressor(t *testing.T) {
	m := newTestMixer(t)
	id := addTrack(t, m, TrackInput{
		Name:       "Voz",
		FilePath:   "voz.mp3",
		Compressor: &domain.Compressor{Threshold: -11, Ratio: 2, MakeupGain: 2},
	})

	a, err := m.AnalyzeTrack(context.Background(), id)
	require.NoError(t, err)
	// Peak -1 dB over a -11 dB threshold at 2:1 lands at -6, plus 2 dB makeup.
	assert.Equal(t, -4.0, a.PeakLevel)
	// RMS -13 dB is below threshold, only makeup applies.
	assert.Equal(t, -11.0, a.RMSLevel)
}

func TestFactories(t *testing.T) {
	assert.NotNil(t, NewBasicMixer(testOptions()...))

	podcast, cfg := NewPodcastMixer(testOptions()...)
	assert.NotNil(t, podcast)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 2, cfg.Channels)

	course, presets := NewCourseMixer(testOptions()...)
	assert.NotNil(t, course)
	assert.NotNil(t, presets.Voice.EQ)
	assert.NotNil(t, presets.Voice.Compressor)
	assert.Less(t, presets.Music.Volume, presets.Voice.Volume)

	id := addTrack(t, course, presets.Voice.Apply(TrackInput{Name: "Narração", FilePath: "voz.mp3"}))
	tr := course.Config().Tracks[0]
	assert.Equal(t, id, tr.ID)
	assert.Equal(t, *presets.Voice.Compressor, *tr.Compressor)
}

func TestDuckingMixer(t *testing.T) {
	m := NewDuckingMixer(testOptions()...)
	got := record(m.Events())

	voice := addTrack(t, m, TrackInput{Name: "Voz Principal", FilePath: "voz.mp3"})
	assert.Empty(t, m.Config().Ducking)

	music := addTrack(t, m, TrackInput{Name: "Música de Fundo", FilePath: "music.mp3"})
	addTrack(t, m, TrackInput{Name: "Efeitos", FilePath: "sfx.mp3"})

	cfg := m.Config()
	require.Len(t, cfg.Ducking, 1)
	assert.Equal(t, voice, cfg.Ducking[0].TriggerTrackID)
	assert.Equal(t, music, cfg.Ducking[0].TargetTrackID)
	assert.Equal(t, DefaultDucking.Reduction, cfg.Ducking[0].Reduction)

	var ducked int
	for _, e := range *got {
		if e.Name == EventDuckingAdded {
			ducked++
		}
	}
	assert.Equal(t, 1, ducked)
}

func TestSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"aac", "flac", "m4a", "mp3", "ogg", "wav"}, SupportedFormats())
}
