package timeline

import "github.com/estudio-ia/studio-server/internal/domain"

// Config is the frame format an editor is created with.
type Config struct {
	FPS        float64           `json:"fps"`
	Resolution domain.Resolution `json:"resolution"`
}

// Setup bundles a preconfigured editor with the export options it is meant to use.
type Setup struct {
	Editor        *Editor
	Config        Config
	ExportOptions ExportOptions
}

// NewBasicEditor returns an editor with default settings.
func NewBasicEditor(opts ...Option) *Editor {
	return NewEditor(opts...)
}

// NewHighQualityEditor targets archival masters: HEVC, slow preset, CRF 18.
func NewHighQualityEditor(opts ...Option) Setup {
	return newSetup(Config{FPS: DefaultFPS, Resolution: DefaultResolution}, ExportOptions{
		OutputPath:   "output.mp4",
		VideoCodec:   "libx265",
		AudioCodec:   "aac",
		Preset:       "slow",
		CRF:          18,
		AudioBitrate: "320k",
	}, opts)
}

// NewSocialMediaEditor targets vertical 1080x1920 video with a fast encode.
func NewSocialMediaEditor(opts ...Option) Setup {
	return newSetup(Config{FPS: 30, Resolution: domain.Resolution{Width: 1080, Height: 1920}}, ExportOptions{
		OutputPath:   "output.mp4",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "fast",
		CRF:          23,
		AudioBitrate: "128k",
	}, opts)
}

// NewCourseEditor targets 1080p lessons with clean narration.
func NewCourseEditor(opts ...Option) Setup {
	return newSetup(Config{FPS: 30, Resolution: domain.Resolution{Width: 1920, Height: 1080}}, ExportOptions{
		OutputPath:   "output.mp4",
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "medium",
		CRF:          20,
		AudioBitrate: "192k",
	}, opts)
}

func newSetup(cfg Config, exp ExportOptions, opts []Option) Setup {
	base := WithTimeline(domain.Timeline{FPS: cfg.FPS, Resolution: cfg.Resolution})
	return Setup{
		Editor:        NewEditor(append([]Option{base}, opts...)...),
		Config:        cfg,
		ExportOptions: exp,
	}
}
