package export

import (
	"math"
	"math/rand/v2"

	"github.com/estudio-ia/studio-server/internal/domain"
)

// Defaults used by metadata synthesis.
const (
	defaultMaxDuration  = 180.0
	defaultBitrate      = 4000
	defaultColorProfile = "bt709"
)

// SynthesizeMetadata fabricates output metadata for a finished job.
//
// This is a stand-in for values a real encoder reports. The duration is drawn
// from [45, 225) seconds and capped by MaxDuration (180 when unset), and the
// file size is derived from bitrate and duration. Only the shape of the result
// is meaningful; production encoders must return measured values from
// Encoder.Finalize instead.
func SynthesizeMetadata(job *domain.ExportJob, rnd *rand.Rand) *domain.ExportMetadata {
	o := job.Options

	maxDuration := o.MaxDuration
	if maxDuration <= 0 {
		maxDuration = defaultMaxDuration
	}
	duration := math.Min(maxDuration, float64(45+rnd.IntN(180)))

	bitrate := o.Bitrate
	if bitrate <= 0 {
		bitrate = o.TargetBitrate
	}
	if bitrate <= 0 {
		bitrate = defaultBitrate
	}

	fps := o.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}

	processing := duration * 0.1
	if job.StartedAt != nil && job.CompletedAt != nil {
		processing = job.CompletedAt.Sub(*job.StartedAt).Seconds()
	}

	colorProfile := o.ColorProfile
	if colorProfile == "" {
		colorProfile = defaultColorProfile
	}

	return &domain.ExportMetadata{
		Duration:       duration,
		FileSize:       EstimateFileSize(bitrate, duration),
		Format:         o.Format,
		Codec:          o.Codec,
		AudioCodec:     o.AudioCodec,
		Resolution:     o.Resolution,
		Bitrate:        bitrate,
		FPS:            fps,
		HasAudio:       !nonAudioFormats[o.Format],
		HasSubtitles:   o.IncludeSubtitles,
		ProcessingTime: processing,
		ColorProfile:   colorProfile,
	}
}

// EstimateFileSize returns the size in whole megabytes (at least 1) of a
// stream at bitrate kbps lasting seconds.
func EstimateFileSize(bitrate int, seconds float64) int {
	bytes := float64(bitrate) * 1000 * seconds / 8
	return max(1, int(math.Round(bytes/(1024*1024))))
}

// QualityScore rates finished options: 95 for ultra, 90 for high and 80
// otherwise, +4 for best optimization, -2 for fast and +3 above 8000 kbps,
// capped at 100.
func QualityScore(o domain.ExportOptions) int {
	score := 80
	switch o.Quality {
	case domain.QualityUltra:
		score = 95
	case domain.QualityHigh:
		score = 90
	}

	switch o.Optimization {
	case domain.OptimizationBest:
		score += 4
	case domain.OptimizationFast:
		score -= 2
	}

	if o.Bitrate > 8000 {
		score += 3
	}
	return min(100, score)
}
