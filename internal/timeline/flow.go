package timeline

import (
	"math"

	"github.com/estudio-ia/studio-server/internal/domain"
)

// Continuous flow defaults.
const (
	fallbackBPM            = 100.0
	defaultBeatToleranceMs = 25.0
	defaultCrossfadeRatio  = 0.35
	defaultSidechainThresh = 0.015
	defaultSidechainRatio  = 4.0
	transitionFade         = "fade"
)

// SetContinuousFlow replaces the flow settings.
func (e *Editor) SetContinuousFlow(flow domain.ContinuousFlow) {
	e.mu.Lock()
	f := flow
	if flow.Sidechain != nil {
		sc := *flow.Sidechain
		f.Sidechain = &sc
	}
	e.tl.Flow = &f
	evt := FlowUpdatedEvent{Flow: f}
	e.mu.Unlock()

	e.notifier.Emit(EventFlowUpdated, evt)
}

// beatPeriodMs uses the manual BPM when set. Tempo detection is not
// implemented, so auto falls back to 100 BPM. Caller holds e.mu.
func (e *Editor) beatPeriodMs() float64 {
	if f := e.tl.Flow; f != nil && f.BPMSource == domain.BPMSourceManual && f.BPMManual > 0 {
		return 60_000 / f.BPMManual
	}
	return 60_000 / fallbackBPM
}

// SnapClipsToBeat moves clip edges that fall within the beat tolerance onto the beat grid.
func (e *Editor) SnapClipsToBeat(trackID string) error {
	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	period := e.beatPeriodMs()
	tolerance := defaultBeatToleranceMs
	if e.tl.Flow != nil && e.tl.Flow.BeatToleranceMs > 0 {
		tolerance = e.tl.Flow.BeatToleranceMs
	}

	for i := range track.Clips {
		c := &track.Clips[i]
		startMs := c.TimelineStart * 1000
		if beat := math.Round(startMs/period) * period; math.Abs(beat-startMs) <= tolerance {
			c.TimelineStart = beat / 1000
			c.TimelineEnd = c.TimelineStart + c.Duration
		}
		endMs := c.TimelineEnd * 1000
		if beat := math.Round(endMs/period) * period; math.Abs(beat-endMs) <= tolerance && beat/1000 > c.TimelineStart {
			c.TimelineEnd = beat / 1000
			c.Duration = c.TimelineEnd - c.TimelineStart
			c.EndTime = c.StartTime + c.Duration
		}
	}
	track.SortClips()
	e.mu.Unlock()

	e.notifier.Emit(EventClipsSnapped, TrackEvent{TrackID: trackID})
	return nil
}

// ApplyAdaptiveCrossfades sets a beat-relative fade on every clip after the first.
func (e *Editor) ApplyAdaptiveCrossfades(trackID string) error {
	e.mu.Lock()
	track, err := e.editableTrack(trackID)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	ratio := defaultCrossfadeRatio
	if e.tl.Flow != nil && e.tl.Flow.CrossfadeRatio > 0 {
		ratio = e.tl.Flow.CrossfadeRatio
	}
	durationSec := e.beatPeriodMs() * ratio / 1000

	for i := 1; i < len(track.Clips); i++ {
		track.Clips[i].Transition = &domain.Transition{Type: transitionFade, Duration: durationSec}
	}
	e.mu.Unlock()

	e.notifier.Emit(EventCrossfadesApplied, CrossfadesAppliedEvent{TrackID: trackID, DurationSec: durationSec})
	return nil
}

// sidechainFilter returns the flow compressor filter, or "" when flow is off. Caller holds e.mu.
func (e *Editor) sidechainFilter() string {
	f := e.tl.Flow
	if f == nil || !f.Enabled {
		return ""
	}
	threshold, ratio := defaultSidechainThresh, defaultSidechainRatio
	if f.Sidechain != nil {
		if f.Sidechain.Threshold > 0 {
			threshold = f.Sidechain.Threshold
		}
		if f.Sidechain.Ratio > 0 {
			ratio = f.Sidechain.Ratio
		}
	}
	return "sidechaincompress=threshold=" + formatFloat(threshold) + ":ratio=" + formatFloat(ratio)
}
