// Package export drives project exports through the processing pipeline.
//
// A Service accepts export requests, normalizes and validates their options
// against the format catalog, queues them FIFO and runs at most
// MaxConcurrent of them at a time through six fixed phases. Job state is
// written through to a JobStore on every transition and every read returns a
// deep copy, so status polling never observes a job mid-mutation.
package export

import (
	"slices"

	"github.com/estudio-ia/studio-server/internal/domain"
)

// Defaults applied by Normalize.
const (
	DefaultAudioCodec = "aac"
	DefaultResolution = "1920x1080"
	DefaultFPS        = 30.0
)

var supportedFormats = []domain.ExportFormat{
	domain.FormatMP4,
	domain.FormatWebM,
	domain.FormatMOV,
	domain.FormatAVI,
	domain.FormatMKV,
	domain.FormatGIF,
	domain.FormatAPNG,
	domain.FormatMP3,
	domain.FormatWAV,
	domain.FormatAAC,
	domain.FormatOGG,
	domain.FormatZIP,
	domain.FormatPDF,
	domain.FormatPPTX,
}

var defaultCodecs = map[domain.ExportFormat]string{
	domain.FormatMP4:  "h264",
	domain.FormatWebM: "vp9",
	domain.FormatMOV:  "h264",
	domain.FormatAVI:  "h264",
	domain.FormatMKV:  "h265",
	domain.FormatGIF:  "gif",
	domain.FormatAPNG: "apng",
	domain.FormatMP3:  "mp3",
	domain.FormatWAV:  "pcm_s16le",
	domain.FormatAAC:  "aac",
	domain.FormatOGG:  "opus",
	domain.FormatZIP:  "zip",
	domain.FormatPDF:  "pdf",
	domain.FormatPPTX: "pptx",
}

// Formats that never carry an audio stream.
var nonAudioFormats = map[domain.ExportFormat]bool{
	domain.FormatGIF:  true,
	domain.FormatAPNG: true,
	domain.FormatPDF:  true,
	domain.FormatPPTX: true,
	domain.FormatZIP:  true,
}

// SupportedFormats returns every format the pipeline accepts, in catalog order.
func SupportedFormats() []domain.ExportFormat {
	return slices.Clone(supportedFormats)
}

// IsSupported reports whether f is in the format catalog.
func IsSupported(f domain.ExportFormat) bool {
	_, ok := defaultCodecs[f]
	return ok
}

// HasAudio reports whether outputs in format f can carry audio.
func HasAudio(f domain.ExportFormat) bool {
	return IsSupported(f) && !nonAudioFormats[f]
}

// DefaultCodec returns the codec Normalize picks for f, or "" for unknown formats.
func DefaultCodec(f domain.ExportFormat) string {
	return defaultCodecs[f]
}

// FormatInfo describes one catalog entry.
type FormatInfo struct {
	Format     domain.ExportFormat `json:"format"`
	Codec      string              `json:"codec"`
	AudioCodec string              `json:"audioCodec,omitempty"`
	HasAudio   bool                `json:"hasAudio"`
}

// Formats describes the catalog with default codecs.
func Formats() []FormatInfo {
	out := make([]FormatInfo, 0, len(supportedFormats))
	for _, f := range supportedFormats {
		info := FormatInfo{Format: f, Codec: defaultCodecs[f], HasAudio: HasAudio(f)}
		if info.HasAudio {
			info.AudioCodec = DefaultAudioCodec
		}
		out = append(out, info)
	}
	return out
}
