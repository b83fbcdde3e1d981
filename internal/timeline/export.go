package timeline

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
)

const (
	msgEmptyTimeline = "Timeline vazia"
	msgAllMuted      = "Todas as tracks estão mutadas"
	msgOverlap       = "Overlap detectado"
)

// overlapEpsilon absorbs float drift so touching clips never count as overlapping.
const overlapEpsilon = 1e-9

// ExportOptions controls a timeline render.
type ExportOptions struct {
	OutputPath   string `json:"outputPath"`
	VideoCodec   string `json:"videoCodec,omitempty"`
	AudioCodec   string `json:"audioCodec,omitempty"`
	Preset       string `json:"preset,omitempty"`
	CRF          int    `json:"crf,omitempty"`
	AudioBitrate string `json:"audioBitrate,omitempty"`
	EnableFlow   bool   `json:"enableFlow,omitempty"`
}

// RenderTrack is an audible or visible track handed to the renderer.
type RenderTrack struct {
	ID     string           `json:"id"`
	Kind   domain.TrackKind `json:"type"`
	Volume float64          `json:"volume"`
	Clips  []domain.Clip    `json:"clips"`
}

// RenderPlan is everything an encoder needs to produce the output file.
type RenderPlan struct {
	OutputPath    string            `json:"outputPath"`
	VideoCodec    string            `json:"videoCodec,omitempty"`
	AudioCodec    string            `json:"audioCodec,omitempty"`
	OutputOptions []string          `json:"outputOptions,omitempty"`
	AudioFilters  []string          `json:"audioFilters,omitempty"`
	FPS           float64           `json:"fps"`
	Resolution    domain.Resolution `json:"resolution"`
	Duration      float64           `json:"duration"`
	Tracks        []RenderTrack     `json:"tracks"`
}

// Renderer executes a plan, reporting progress in percent.
type Renderer interface {
	Render(ctx context.Context, plan RenderPlan, progress func(percent float64)) error
}

// ExportResult summarizes a finished render.
type ExportResult struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"outputPath"`
	ClipCount  int    `json:"clipCount"`
	TrackCount int    `json:"trackCount"`
}

// PreviewResult describes a generated preview frame.
type PreviewResult struct {
	Success       bool    `json:"success"`
	ThumbnailPath string  `json:"thumbnailPath,omitempty"`
	Timestamp     float64 `json:"timestamp"`
}

// Validate runs the export-time structural checks on the current timeline.
func (e *Editor) Validate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ValidateTimeline(e.tl)
}

// ValidateTimeline checks, in order: at least one clip, at least one unmuted
// track, and no overlapping clips within any track.
func ValidateTimeline(tl domain.Timeline) error {
	if len(tl.Tracks) == 0 || tl.ClipCount() == 0 {
		return errors.New(errors.CodeEmptyTimeline, msgEmptyTimeline)
	}
	if !slices.ContainsFunc(tl.Tracks, func(t domain.Track) bool { return !t.Muted }) {
		return errors.New(errors.CodeAllTracksMuted, msgAllMuted)
	}
	for _, t := range tl.Tracks {
		if a, b, ok := findOverlap(t.Clips); ok {
			return errors.New(errors.CodeOverlapDetected, msgOverlap).WithDetails(map[string]string{
				"trackId": t.ID,
				"clipA":   a.ID,
				"clipB":   b.ID,
			})
		}
	}
	return nil
}

// findOverlap sorts a copy of clips by start and compares neighbours.
// Half-open ranges mean touching clips are fine.
func findOverlap(clips []domain.Clip) (domain.Clip, domain.Clip, bool) {
	sorted := slices.Clone(clips)
	slices.SortStableFunc(sorted, func(a, b domain.Clip) int {
		switch {
		case a.TimelineStart < b.TimelineStart:
			return -1
		case a.TimelineStart > b.TimelineStart:
			return 1
		}
		return 0
	})
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].TimelineEnd-sorted[i+1].TimelineStart > overlapEpsilon {
			return sorted[i], sorted[i+1], true
		}
	}
	return domain.Clip{}, domain.Clip{}, false
}

// Plan validates the timeline and builds the render plan for opts.
func (e *Editor) Plan(opts ExportOptions) (RenderPlan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ValidateTimeline(e.tl); err != nil {
		return RenderPlan{}, err
	}
	return e.buildPlan(opts), nil
}

// buildPlan assumes a validated timeline. Caller holds e.mu.
func (e *Editor) buildPlan(opts ExportOptions) RenderPlan {
	plan := RenderPlan{
		OutputPath: opts.OutputPath,
		VideoCodec: opts.VideoCodec,
		AudioCodec: opts.AudioCodec,
		FPS:        e.tl.FPS,
		Resolution: e.tl.Resolution,
		Tracks:     []RenderTrack{},
	}
	if opts.Preset != "" {
		plan.OutputOptions = append(plan.OutputOptions, "-preset "+opts.Preset)
	}
	if opts.CRF > 0 {
		plan.OutputOptions = append(plan.OutputOptions, "-crf "+strconv.Itoa(opts.CRF))
	}
	if opts.AudioBitrate != "" {
		plan.OutputOptions = append(plan.OutputOptions, "-b:a "+opts.AudioBitrate)
	}
	if opts.EnableFlow {
		if f := e.sidechainFilter(); f != "" {
			plan.AudioFilters = append(plan.AudioFilters, f)
		}
	}

	for _, t := range e.tl.Tracks {
		if t.Muted || len(t.Clips) == 0 {
			continue
		}
		clips := make([]domain.Clip, len(t.Clips))
		for i, c := range t.Clips {
			clips[i] = c.Clone()
			plan.Duration = max(plan.Duration, c.TimelineEnd)
		}
		plan.Tracks = append(plan.Tracks, RenderTrack{ID: t.ID, Kind: t.Kind, Volume: t.Volume, Clips: clips})
	}
	return plan
}

// Export validates the timeline and renders it. Without a renderer the plan
// is only built, which is enough for dry runs and tests.
func (e *Editor) Export(ctx context.Context, opts ExportOptions) (ExportResult, error) {
	e.mu.Lock()
	if err := ValidateTimeline(e.tl); err != nil {
		e.mu.Unlock()
		return ExportResult{}, err
	}
	plan := e.buildPlan(opts)
	result := ExportResult{
		Success:    true,
		OutputPath: opts.OutputPath,
		ClipCount:  e.tl.ClipCount(),
		TrackCount: len(e.tl.Tracks),
	}
	renderer := e.renderer
	e.mu.Unlock()

	e.notifier.Emit(EventExportStart, ExportStartEvent{Tracks: result.TrackCount})

	if renderer == nil {
		e.notifier.Emit(EventExportProgress, ExportProgressEvent{Percent: 50})
	} else {
		err := renderer.Render(ctx, plan, func(p float64) {
			e.notifier.Emit(EventExportProgress, ExportProgressEvent{Percent: p})
		})
		if err != nil {
			e.notifier.Emit(EventExportError, ExportErrorEvent{Error: err.Error()})
			return ExportResult{}, errors.Wrap(err, errors.CodeInternal, "render failed")
		}
	}

	e.notifier.Emit(EventExportComplete, result)
	return result, nil
}

// GeneratePreview produces a preview frame reference for timestamp seconds.
func (e *Editor) GeneratePreview(ctx context.Context, timestamp float64) (PreviewResult, error) {
	if err := ctx.Err(); err != nil {
		return PreviewResult{}, err
	}
	e.notifier.Emit(EventPreviewStart, PreviewStartEvent{Timestamp: timestamp})

	result := PreviewResult{
		Success:       true,
		ThumbnailPath: fmt.Sprintf("preview_%s_%s.jpg", formatFloat(timestamp), uuid.NewString()),
		Timestamp:     timestamp,
	}

	e.notifier.Emit(EventPreviewComplete, result)
	return result, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
