package export

import (
	"math"
	"strconv"
	"strings"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/validation"
)

// MaxFPS is the highest frame rate Validate accepts.
const MaxFPS = 120.0

var validator = validation.New()

// Normalize fills unset options with format-based defaults. It is idempotent.
//
// Bitrate resolves to bitrate, then targetBitrate, then a suggestion derived
// from the resolution; targetBitrate then defaults to the resolved bitrate.
func Normalize(o domain.ExportOptions) domain.ExportOptions {
	n := o.Clone()

	if n.Quality == "" {
		n.Quality = domain.QualityHigh
	}
	if n.Optimization == "" {
		n.Optimization = domain.OptimizationBalanced
	}
	if n.IncludeMetadata == nil {
		n.IncludeMetadata = domain.Bool(true)
	}
	if n.IncludeThumbnail == nil {
		n.IncludeThumbnail = domain.Bool(true)
	}
	if n.IncludeWatermark == nil {
		n.IncludeWatermark = domain.Bool(false)
	}
	if n.Compression == nil {
		n.Compression = domain.Bool(true)
	}

	if n.Codec == "" {
		n.Codec = DefaultCodec(n.Format)
	}
	if n.AudioCodec == "" && !nonAudioFormats[n.Format] {
		n.AudioCodec = DefaultAudioCodec
	}
	if n.Resolution == "" {
		n.Resolution = DefaultResolution
	}
	if n.FPS == 0 {
		n.FPS = DefaultFPS
	}
	if n.Bitrate == 0 {
		n.Bitrate = n.TargetBitrate
	}
	if n.Bitrate == 0 {
		n.Bitrate = SuggestBitrate(n.Format, n.Resolution)
	}
	if n.TargetBitrate == 0 {
		n.TargetBitrate = n.Bitrate
	}
	return n
}

// Validate checks normalized options, reporting the first problem found.
// Enum fields are then checked against their struct tags.
func Validate(o domain.ExportOptions) error {
	if !IsSupported(o.Format) {
		return errors.Newf(errors.CodeUnsupportedFormat, "Unsupported export format: %s", o.Format)
	}
	if o.Resolution != "" && !validation.IsResolution(o.Resolution) {
		return errors.Newf(errors.CodeInvalidResolution, "Invalid resolution provided: %s", o.Resolution)
	}
	if o.FPS <= 0 || o.FPS > MaxFPS {
		return errors.New(errors.CodeInvalidFrameRate, "Frames per second must be between 1 and 120.")
	}
	if o.Bitrate <= 0 {
		return errors.New(errors.CodeInvalidBitrate, "Bitrate must be a positive value.")
	}
	if !validFileName(o.CustomFileName) {
		return errors.Newf(errors.CodeValidation, "Invalid custom file name: %s", o.CustomFileName)
	}
	return validator.Validate(o)
}

// validFileName reports whether name is empty or a single path element that
// stays inside the output directory.
func validFileName(name string) bool {
	if name == "" {
		return true
	}
	return name != "." && !strings.Contains(name, "..") && !strings.ContainsAny(name, "/\\\x00")
}

// SuggestBitrate returns a bitrate in kbps for format at resolution:
// 4x the base at 4K and above, 2x at 1080p, 1.2x at 720p and 0.7x below.
// The base is 2800 for webm and 3200 for everything else.
func SuggestBitrate(format domain.ExportFormat, resolution string) int {
	base := 3200.0
	if format == domain.FormatWebM {
		base = 2800
	}

	pixels := 0
	if w, h, ok := strings.Cut(resolution, "x"); ok {
		width, errW := strconv.Atoi(w)
		height, errH := strconv.Atoi(h)
		if errW == nil && errH == nil {
			pixels = width * height
		}
	}

	switch {
	case pixels >= 3840*2160:
		return int(base * 4)
	case pixels >= 1920*1080:
		return int(base * 2)
	case pixels >= 1280*720:
		return int(math.Round(base * 1.2))
	default:
		return int(math.Round(base * 0.7))
	}
}

// optionsFromPreset builds the request a quick export submits for a preset.
func optionsFromPreset(platform domain.Platform, p domain.PlatformPreset) domain.ExportOptions {
	o := domain.ExportOptions{
		Format:           p.Format,
		Codec:            p.Codec,
		AudioCodec:       p.AudioCodec,
		Resolution:       p.Resolution,
		FPS:              p.FPS,
		TargetBitrate:    p.TargetBitrate,
		MaxBitrate:       p.MaxBitrate,
		Quality:          p.Quality,
		AspectRatio:      p.AspectRatio,
		MaxDuration:      p.MaxDuration,
		MaxFileSize:      p.MaxFileSize,
		ColorProfile:     p.ColorProfile,
		Optimization:     p.Optimization,
		IncludeThumbnail: domain.Bool(true),
		IncludeMetadata:  domain.Bool(true),
		IncludeWatermark: domain.Bool(false),
		TargetPlatform:   platform,
		PresetName:       p.Name,
	}
	if o.Optimization == "" {
		o.Optimization = domain.OptimizationBalanced
	}
	if len(p.RecommendedFilters) > 0 {
		filters := make([]any, len(p.RecommendedFilters))
		for i, f := range p.RecommendedFilters {
			filters[i] = f
		}
		o.Filters = map[string]any{"presetFilters": filters}
	}
	return o
}
