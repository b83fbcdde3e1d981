package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/export"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestFormatsCommand(t *testing.T) {
	out, err := run(t, "formats")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, len(export.Formats()))
	assert.True(t, strings.HasPrefix(lines[0], "mp4"), "first line: %q", lines[0])
}

func TestPresetsCommand(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		out, err := run(t, "presets")
		require.NoError(t, err)

		var presets []export.NamedPreset
		require.NoError(t, json.Unmarshal([]byte(out), &presets))
		assert.NotEmpty(t, presets)
	})

	t.Run("one", func(t *testing.T) {
		out, err := run(t, "presets", "youtube")
		require.NoError(t, err)

		var preset export.NamedPreset
		require.NoError(t, json.Unmarshal([]byte(out), &preset))
		assert.Equal(t, domain.PlatformYouTube, preset.Platform)
		assert.True(t, preset.Builtin)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := run(t, "presets", "myspace")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "myspace")
	})
}

func TestEDLCommand(t *testing.T) {
	tl := domain.Timeline{
		FPS:        25,
		Resolution: domain.Resolution{Width: 1920, Height: 1080},
		Tracks: []domain.Track{{
			ID:     "v1",
			Kind:   domain.TrackVideo,
			Volume: 1,
			Clips: []domain.Clip{{
				ID: "c1", TrackID: "v1", FilePath: "/media/a.mp4",
				StartTime: 0, EndTime: 4, Duration: 4,
				TimelineStart: 0, TimelineEnd: 4,
			}},
		}},
	}
	data, err := json.Marshal(tl)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "timeline.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := run(t, "edl", "--title", "Demo", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "TITLE: Demo\nFCM: NON-DROP FRAME\n"), out)

	t.Run("empty timeline", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(empty, []byte(`{"tracks":[],"fps":30,"resolution":{"width":1,"height":1}}`), 0o600))
		_, err := run(t, "edl", empty)
		require.Error(t, err)
	})

	t.Run("inverted clip window", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		doc := `{"tracks":[{"id":"v1","type":"video","clips":[{"id":"c1","filePath":"a.mp4","startTime":5,"endTime":2}]}]}`
		require.NoError(t, os.WriteFile(bad, []byte(doc), 0o600))
		_, err := run(t, "edl", bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Tempos de clip inválidos")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "edl", filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
	})
}
