package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   ExportStatus
		expected bool
	}{
		{ExportStatusPending, false},
		{ExportStatusProcessing, false},
		{ExportStatusCompleted, true},
		{ExportStatusFailed, true},
		{ExportStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsTerminal())
		})
	}
}

func TestExportJob_LogKeepsMostRecentEntries(t *testing.T) {
	job := NewExportJob("export-1", "p1", "u1", ExportOptions{Format: FormatMP4})

	for i := range MaxJobLogEntries + 5 {
		job.Log(fmt.Sprintf("entry %d", i), LogInfo)
	}

	require.Len(t, job.Logs, MaxJobLogEntries)
	assert.Equal(t, "entry 5", job.Logs[0].Message)
	assert.Equal(t, fmt.Sprintf("entry %d", MaxJobLogEntries+4), job.Logs[len(job.Logs)-1].Message)
}

func TestExportJob_SetProgressNeverDecreases(t *testing.T) {
	job := NewExportJob("export-1", "p1", "u1", ExportOptions{Format: FormatMP4})

	job.SetProgress(40)
	job.SetProgress(20)
	assert.Equal(t, 40, job.Progress)

	job.SetProgress(150)
	assert.Equal(t, 100, job.Progress)
}

func TestExportJob_MarkCancelledCapsProgress(t *testing.T) {
	job := NewExportJob("export-1", "p1", "u1", ExportOptions{Format: FormatMP4})
	job.MarkProcessing()
	job.SetProgress(98)

	job.MarkCancelled("Job cancelled by user.")

	assert.Equal(t, ExportStatusCancelled, job.Status)
	assert.Equal(t, CancelledProgressCap, job.Progress)
	assert.Equal(t, PhaseFinalizing, job.CurrentPhase)
	assert.Equal(t, "Job cancelled by user.", job.Error)
	assert.NotNil(t, job.CompletedAt)
}

func TestExportJob_CloneIsIndependent(t *testing.T) {
	job := NewExportJob("export-1", "p1", "u1", ExportOptions{
		Format:           FormatMP4,
		IncludeThumbnail: Bool(true),
		Filters:          map[string]any{"denoise": true},
	})
	job.Log("Export job started.", LogInfo)

	cp := job.Clone()
	*cp.Options.IncludeThumbnail = false
	cp.Options.Filters["denoise"] = false
	cp.Logs[0].Message = "changed"
	cp.Progress = 50

	assert.True(t, *job.Options.IncludeThumbnail)
	assert.Equal(t, true, job.Options.Filters["denoise"])
	assert.Equal(t, "Export job started.", job.Logs[0].Message)
	assert.Equal(t, 0, job.Progress)
}

func TestTrackKind_CompatibleWith(t *testing.T) {
	tests := []struct {
		from, to TrackKind
		expected bool
	}{
		{TrackVideo, TrackVideo, true},
		{TrackVideo, TrackAudio, false},
		{TrackAudio, TrackVideo, false},
		{TrackVideo, TrackBoth, true},
		{TrackBoth, TrackAudio, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CompatibleWith(tt.to))
		})
	}
}
