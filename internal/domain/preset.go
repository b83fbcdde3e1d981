package domain

// Platform names a delivery target with a known encoding preset.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformVimeo     Platform = "vimeo"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformSnapchat  Platform = "snapchat"
	PlatformPinterest Platform = "pinterest"
	PlatformMobile    Platform = "mobile"
	PlatformWeb       Platform = "web"
)

// PlatformPreset is the encoding profile for a platform.
type PlatformPreset struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Format             ExportFormat      `json:"format"`
	Codec              string            `json:"codec"`
	AudioCodec         string            `json:"audioCodec,omitempty"`
	Quality            QualityTier       `json:"quality"`
	Resolution         string            `json:"resolution"`
	AspectRatio        string            `json:"aspectRatio"`
	FPS                float64           `json:"fps"`
	TargetBitrate      int               `json:"targetBitrate"`
	MaxBitrate         int               `json:"maxBitrate,omitempty"`
	MinBitrate         int               `json:"minBitrate,omitempty"`
	MaxDuration        float64           `json:"maxDuration,omitempty"`
	MaxResolution      string            `json:"maxResolution,omitempty"`
	MaxFileSize        int               `json:"maxFileSize,omitempty"`
	ColorProfile       string            `json:"colorProfile,omitempty"`
	Optimization       OptimizationLevel `json:"optimization,omitempty"`
	RecommendedFilters []string          `json:"recommendedFilters,omitempty"`
	Notes              string            `json:"notes,omitempty"`
}
