package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/simonhull/audiometa"
)

// Prober reads technical properties of an audio file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// AudiometaProber reads durations from container metadata.
type AudiometaProber struct {
	logger *slog.Logger
}

// NewAudiometaProber creates a prober backed by audiometa.
func NewAudiometaProber(logger *slog.Logger) *AudiometaProber {
	return &AudiometaProber{logger: logger}
}

// Duration returns the playback length recorded in the file's metadata.
func (p *AudiometaProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	file, err := audiometa.OpenContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close() //nolint:errcheck // read-only handle

	p.logger.Debug("probed audio file",
		slog.String("path", path),
		slog.String("format", file.Format.String()),
		slog.Duration("duration", file.Audio.Duration),
	)
	return file.Audio.Duration, nil
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (time.Duration, error)

// Duration implements Prober.
func (f ProberFunc) Duration(ctx context.Context, path string) (time.Duration, error) {
	return f(ctx, path)
}

// FixedProber reports the same duration for every file.
type FixedProber time.Duration

// Duration implements Prober.
func (f FixedProber) Duration(context.Context, string) (time.Duration, error) {
	return time.Duration(f), nil
}
