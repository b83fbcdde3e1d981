package mixer

import (
	"context"
	"log/slog"
	"math"
)

// Level floor reported for silent tracks, in dBFS.
const silenceFloorDB = -96.0

// Nominal source levels assumed by the estimator, in dBFS.
const (
	nominalPeakDB  = -1.0
	nominalCrestDB = 12.0
)

// Analysis describes a track's levels and length.
type Analysis struct {
	TrackID   string  `json:"trackId"`
	PeakLevel float64 `json:"peakLevel"`
	RMSLevel  float64 `json:"rmsLevel"`
	Duration  float64 `json:"duration"`
}

// AnalyzeTrack reports a track's duration and its estimated output levels.
//
// Levels are derived from gain staging (track volume, master volume and the
// compressor curve) applied to a nominal source peaking at -1 dBFS with a
// 12 dB crest factor. They are not measured from decoded samples.
func (m *Mixer) AnalyzeTrack(ctx context.Context, trackID string) (Analysis, error) {
	m.mu.Lock()
	t, err := m.track(trackID)
	if err != nil {
		m.mu.Unlock()
		return Analysis{}, err
	}
	track := t.Clone()
	master := m.cfg.MasterVolume
	m.mu.Unlock()

	duration := track.Duration
	if duration <= 0 {
		if d, err := m.prober.Duration(ctx, track.FilePath); err == nil {
			duration = d.Seconds()
		} else {
			m.logger.Debug("analysis probe failed", slog.String("trackId", trackID), slog.String("error", err.Error()))
		}
	}

	gain := track.Volume * master
	if track.Muted || gain <= 0 {
		return Analysis{TrackID: trackID, PeakLevel: silenceFloorDB, RMSLevel: silenceFloorDB, Duration: duration}, nil
	}

	peak := nominalPeakDB + 20*math.Log10(gain)
	rms := peak - nominalCrestDB
	if c := track.Compressor; c != nil && c.Ratio > 1 {
		peak = compress(peak, c.Threshold, c.Ratio) + c.MakeupGain
		rms = compress(rms, c.Threshold, c.Ratio) + c.MakeupGain
	}

	return Analysis{
		TrackID:   trackID,
		PeakLevel: round1(math.Max(peak, silenceFloorDB)),
		RMSLevel:  round1(math.Max(rms, silenceFloorDB)),
		Duration:  duration,
	}, nil
}

// compress applies a hard-knee static curve to a level in dB.
func compress(level, threshold, ratio float64) float64 {
	if level <= threshold {
		return level
	}
	return threshold + (level-threshold)/ratio
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
