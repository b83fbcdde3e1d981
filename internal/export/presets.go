package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/slug"
	"github.com/estudio-ia/studio-server/internal/watcher"
)

// platformOrder is the display order of the built-in presets.
var platformOrder = []domain.Platform{
	domain.PlatformYouTube,
	domain.PlatformVimeo,
	domain.PlatformFacebook,
	domain.PlatformInstagram,
	domain.PlatformTikTok,
	domain.PlatformLinkedIn,
	domain.PlatformTwitter,
	domain.PlatformWhatsApp,
	domain.PlatformSnapchat,
	domain.PlatformPinterest,
	domain.PlatformMobile,
	domain.PlatformWeb,
}

var builtinPresets = map[domain.Platform]domain.PlatformPreset{
	domain.PlatformYouTube: {
		Name:          "YouTube HD",
		Description:   "Preset otimizado para upload no YouTube em 1080p.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityHigh,
		Resolution:    "1920x1080",
		AspectRatio:   "16:9",
		FPS:           30,
		TargetBitrate: 8000,
		MaxBitrate:    12000,
		MaxDuration:   7200,
		ColorProfile:  "bt709",
		Optimization:  domain.OptimizationBalanced,
	},
	domain.PlatformVimeo: {
		Name:          "Vimeo Pro",
		Description:   "Perfil de alta qualidade com margem para pós-processamento.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityHigh,
		Resolution:    "1920x1080",
		AspectRatio:   "16:9",
		FPS:           30,
		TargetBitrate: 10000,
		MaxBitrate:    20000,
		ColorProfile:  "bt709",
		Optimization:  domain.OptimizationBest,
	},
	domain.PlatformFacebook: {
		Name:          "Facebook Feed",
		Description:   "Entrega equilibrada para feed do Facebook.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityMedium,
		Resolution:    "1080x1080",
		AspectRatio:   "1:1",
		FPS:           30,
		TargetBitrate: 4500,
		MaxBitrate:    6000,
		MaxDuration:   240,
		MaxResolution: "1080x1080",
		Optimization:  domain.OptimizationFast,
	},
	domain.PlatformInstagram: {
		Name:          "Instagram Feed",
		Description:   "Vídeos quadrados otimizados para o feed.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityMedium,
		Resolution:    "1080x1080",
		AspectRatio:   "1:1",
		FPS:           30,
		TargetBitrate: 3500,
		MaxBitrate:    5000,
		MaxDuration:   60,
		MaxResolution: "1080x1080",
		Optimization:  domain.OptimizationBalanced,
	},
	domain.PlatformTikTok: {
		Name:          "TikTok Vertical",
		Description:   "Preset vertical com foco em dispositivos móveis.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityHigh,
		Resolution:    "1080x1920",
		AspectRatio:   "9:16",
		FPS:           30,
		TargetBitrate: 4000,
		MaxBitrate:    6000,
		MaxDuration:   180,
		Optimization:  domain.OptimizationBalanced,
	},
	domain.PlatformLinkedIn: {
		Name:          "LinkedIn HD",
		Description:   "Conteúdo corporativo com foco em clareza.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityHigh,
		Resolution:    "1920x1080",
		AspectRatio:   "16:9",
		FPS:           30,
		TargetBitrate: 6500,
		MaxBitrate:    9000,
		MaxDuration:   600,
		Optimization:  domain.OptimizationBalanced,
	},
	domain.PlatformTwitter: {
		Name:          "Twitter/X",
		Description:   "Compatibilidade garantida com limite de tamanho.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityMedium,
		Resolution:    "1280x720",
		AspectRatio:   "16:9",
		FPS:           30,
		TargetBitrate: 3000,
		MaxBitrate:    5000,
		MaxFileSize:   512,
		MaxDuration:   140,
		Optimization:  domain.OptimizationFast,
	},
	domain.PlatformWhatsApp: {
		Name:          "WhatsApp Share",
		Description:   "Foco em arquivo leve para compartilhamento rápido.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityLow,
		Resolution:    "854x480",
		AspectRatio:   "16:9",
		FPS:           24,
		TargetBitrate: 1000,
		MaxBitrate:    1500,
		MaxFileSize:   16,
		Optimization:  domain.OptimizationFast,
	},
	domain.PlatformSnapchat: {
		Name:          "Snapchat Stories",
		Description:   "Vertical rápido com limite curto.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityMedium,
		Resolution:    "1080x1920",
		AspectRatio:   "9:16",
		FPS:           30,
		TargetBitrate: 3800,
		MaxDuration:   60,
		Optimization:  domain.OptimizationBalanced,
	},
	domain.PlatformPinterest: {
		Name:          "Pinterest Video Pin",
		Description:   "Vídeos verticais para pins patrocinados.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityMedium,
		Resolution:    "1080x1920",
		AspectRatio:   "9:16",
		FPS:           30,
		TargetBitrate: 3500,
		MaxBitrate:    5000,
		Optimization:  domain.OptimizationBalanced,
	},
	domain.PlatformMobile: {
		Name:          "Mobile Universal",
		Description:   "Preset geral para smartphones e tablets.",
		Format:        domain.FormatMP4,
		Codec:         "h264",
		AudioCodec:    "aac",
		Quality:       domain.QualityMedium,
		Resolution:    "1280x720",
		AspectRatio:   "16:9",
		FPS:           30,
		TargetBitrate: 2500,
		MaxBitrate:    4000,
		MaxFileSize:   200,
		Optimization:  domain.OptimizationBalanced,
	},
	domain.PlatformWeb: {
		Name:          "Web Streaming",
		Description:   "Compressão avançada para streaming em navegadores.",
		Format:        domain.FormatWebM,
		Codec:         "vp9",
		AudioCodec:    "opus",
		Quality:       domain.QualityHigh,
		Resolution:    "1920x1080",
		AspectRatio:   "16:9",
		FPS:           30,
		TargetBitrate: 3500,
		MaxBitrate:    6000,
		ColorProfile:  "bt709",
		Optimization:  domain.OptimizationBest,
	},
}

// BuiltinPreset returns the built-in preset for p.
func BuiltinPreset(p domain.Platform) (domain.PlatformPreset, bool) {
	preset, ok := builtinPresets[p]
	if ok {
		preset.RecommendedFilters = slices.Clone(preset.RecommendedFilters)
	}
	return preset, ok
}

// NamedPreset pairs a preset with its catalog key.
type NamedPreset struct {
	Platform domain.Platform       `json:"platform"`
	Builtin  bool                  `json:"builtin"`
	Preset   domain.PlatformPreset `json:"preset"`
}

// Catalog resolves platform presets: the built-in table plus optional custom
// presets read from a JSON object file keyed by name. Custom keys are
// slugified and may not shadow a built-in platform.
type Catalog struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	custom map[domain.Platform]domain.PlatformPreset
}

// NewCatalog creates a catalog. An empty path means built-ins only.
func NewCatalog(path string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{path: path, logger: logger, custom: map[domain.Platform]domain.PlatformPreset{}}
}

// Get returns the preset for p, built-in first.
func (c *Catalog) Get(p domain.Platform) (domain.PlatformPreset, bool) {
	if preset, ok := BuiltinPreset(p); ok {
		return preset, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	preset, ok := c.custom[p]
	if ok {
		preset.RecommendedFilters = slices.Clone(preset.RecommendedFilters)
	}
	return preset, ok
}

// List returns the built-in presets in display order followed by custom presets sorted by key.
func (c *Catalog) List() []NamedPreset {
	out := make([]NamedPreset, 0, len(platformOrder))
	for _, p := range platformOrder {
		preset, _ := BuiltinPreset(p)
		out = append(out, NamedPreset{Platform: p, Builtin: true, Preset: preset})
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range slices.Sorted(maps.Keys(c.custom)) {
		preset := c.custom[p]
		preset.RecommendedFilters = slices.Clone(preset.RecommendedFilters)
		out = append(out, NamedPreset{Platform: p, Preset: preset})
	}
	return out
}

// Load replaces the custom presets with the file's contents. A missing file
// clears them. Invalid entries are skipped with a warning; a malformed file
// leaves the previous set in place and returns an error.
func (c *Catalog) Load() error {
	if c.path == "" {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		c.mu.Lock()
		c.custom = map[domain.Platform]domain.PlatformPreset{}
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read presets file: %w", err)
	}

	var raw map[string]domain.PlatformPreset
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse presets file %s: %w", c.path, err)
	}

	custom := make(map[domain.Platform]domain.PlatformPreset, len(raw))
	for name, preset := range raw {
		key := domain.Platform(slug.Make(name))
		if key == "" {
			c.logger.Warn("skipping custom preset with empty key", slog.String("name", name))
			continue
		}
		if _, builtin := builtinPresets[key]; builtin {
			c.logger.Warn("custom preset cannot override built-in", slog.String("platform", string(key)))
			continue
		}
		if err := validatePreset(preset); err != nil {
			c.logger.Warn("skipping invalid custom preset",
				slog.String("platform", string(key)),
				slog.String("error", err.Error()))
			continue
		}
		if preset.Name == "" {
			preset.Name = name
		}
		custom[key] = preset
	}

	c.mu.Lock()
	c.custom = custom
	c.mu.Unlock()

	c.logger.Info("custom presets loaded", slog.String("path", c.path), slog.Int("count", len(custom)))
	return nil
}

// Watch reloads the presets file whenever it changes, until ctx is done.
// It returns immediately when no file is configured or the file does not exist yet.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	if _, err := os.Stat(c.path); err != nil {
		c.logger.Info("presets file not found, hot reload disabled", slog.String("path", c.path))
		return nil
	}

	w, err := watcher.New(c.logger, watcher.Options{})
	if err != nil {
		return err
	}
	defer w.Stop() //nolint:errcheck // Closing an fsnotify handle on shutdown
	if err := w.Watch(c.path); err != nil {
		return err
	}
	go w.Start(ctx) //nolint:errcheck // Start only returns when ctx is done

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			c.logger.Debug("presets file changed", slog.String("event", ev.Type.String()))
			if err := c.Load(); err != nil {
				c.logger.Error("failed to reload presets", slog.String("error", err.Error()))
			}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			c.logger.Warn("presets watcher error", slog.String("error", err.Error()))
		}
	}
}

func validatePreset(p domain.PlatformPreset) error {
	opts := Normalize(optionsFromPreset("", p))
	return Validate(opts)
}
