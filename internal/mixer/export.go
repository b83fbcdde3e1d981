package mixer

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
)

// DefaultTargetLUFS is the loudness target used when normalizing without an explicit target.
const DefaultTargetLUFS = -16.0

// Default equalizer band centres in Hz.
const (
	defaultLowFreq  = 100.0
	defaultMidFreq  = 1000.0
	defaultHighFreq = 10000.0
)

var audioCodecs = map[string]string{
	"wav":  "pcm_s16le",
	"flac": "flac",
	"mp3":  "libmp3lame",
	"aac":  "aac",
	"m4a":  "aac",
	"ogg":  "libvorbis",
}

// SupportedFormats lists the formats Export accepts, sorted.
func SupportedFormats() []string {
	out := make([]string, 0, len(audioCodecs))
	for f := range audioCodecs {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// ExportOptions controls a mixdown. Format defaults to the output file extension, then mp3.
type ExportOptions struct {
	OutputPath string   `json:"outputPath"`
	Format     string   `json:"format,omitempty"`
	Normalize  bool     `json:"normalize,omitempty"`
	TargetLUFS *float64 `json:"targetLUFS,omitempty"`
	Bitrate    string   `json:"bitrate,omitempty"`
}

// PlanInput is one source file fed to the mixdown.
type PlanInput struct {
	TrackID    string              `json:"trackId"`
	Path       string              `json:"path"`
	StartTime  float64             `json:"startTime"`
	Automation []domain.Automation `json:"automation,omitempty"`
}

// RenderPlan is an ffmpeg-style description of the mixdown.
type RenderPlan struct {
	OutputPath    string      `json:"outputPath"`
	Format        string      `json:"format"`
	Codec         string      `json:"codec"`
	SampleRate    int         `json:"sampleRate"`
	Channels      int         `json:"channels"`
	Bitrate       string      `json:"bitrate,omitempty"`
	Inputs        []PlanInput `json:"inputs"`
	ComplexFilter []string    `json:"complexFilter"`
	AudioFilters  []string    `json:"audioFilters,omitempty"`
	OutputLabel   string      `json:"outputLabel"`
}

// Renderer bounces a plan to disk, reporting progress in percent.
type Renderer interface {
	Render(ctx context.Context, plan RenderPlan, progress func(percent float64)) error
}

// ExportResult summarizes a finished mixdown.
type ExportResult struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"outputPath"`
	Format     string `json:"format"`
	TrackCount int    `json:"trackCount"`
}

// Validate runs the export-time checks on the current mix.
func (m *Mixer) Validate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ValidateConfig(m.cfg)
}

// ValidateConfig fails when the mix has no tracks or every track is muted.
func ValidateConfig(cfg domain.MixerConfig) error {
	if len(cfg.Tracks) == 0 {
		return errors.New(errors.CodeEmptyMixer, msgEmptyMixer)
	}
	if !slices.ContainsFunc(cfg.Tracks, func(t domain.MixerTrack) bool { return !t.Muted }) {
		return errors.New(errors.CodeAllTracksMuted, msgAllTracksMuted)
	}
	return nil
}

// Plan validates the mix and builds its render plan.
func (m *Mixer) Plan(opts ExportOptions) (RenderPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ValidateConfig(m.cfg); err != nil {
		return RenderPlan{}, err
	}
	return BuildPlan(m.cfg, opts)
}

// Export validates the mix and bounces it. Without a renderer only the plan is built.
func (m *Mixer) Export(ctx context.Context, opts ExportOptions) (ExportResult, error) {
	m.mu.Lock()
	if err := ValidateConfig(m.cfg); err != nil {
		m.mu.Unlock()
		return ExportResult{}, err
	}
	plan, err := BuildPlan(m.cfg, opts)
	trackCount := len(m.cfg.Tracks)
	renderer := m.renderer
	m.mu.Unlock()
	if err != nil {
		return ExportResult{}, err
	}

	m.notifier.Emit(EventExportStart, ExportStartEvent{TrackCount: trackCount})

	if renderer == nil {
		m.notifier.Emit(EventExportProgress, ExportProgressEvent{Percent: 50})
	} else {
		err := renderer.Render(ctx, plan, func(p float64) {
			m.notifier.Emit(EventExportProgress, ExportProgressEvent{Percent: p})
		})
		if err != nil {
			m.notifier.Emit(EventExportError, ExportErrorEvent{Error: err.Error()})
			return ExportResult{}, errors.Wrap(err, errors.CodeInternal, "mixdown failed")
		}
	}

	result := ExportResult{Success: true, OutputPath: opts.OutputPath, Format: plan.Format, TrackCount: trackCount}
	m.notifier.Emit(EventExportComplete, result)
	return result, nil
}

// BuildPlan translates a validated mix into a filter graph. Each unmuted track
// becomes an input chain labelled [tN]; ducking rules sidechain their target
// chain against the trigger; the chains are summed with amix and scaled by
// the master volume.
func BuildPlan(cfg domain.MixerConfig, opts ExportOptions) (RenderPlan, error) {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.OutputPath)), ".")
	}
	if format == "" {
		format = "mp3"
	}
	codec, ok := audioCodecs[format]
	if !ok {
		return RenderPlan{}, errors.New(errors.CodeUnsupportedFormat, msgUnsupportedFormat).
			WithDetails(map[string]string{"format": format})
	}

	plan := RenderPlan{
		OutputPath:    opts.OutputPath,
		Format:        format,
		Codec:         codec,
		SampleRate:    cfg.SampleRate,
		Channels:      cfg.Channels,
		Bitrate:       opts.Bitrate,
		Inputs:        []PlanInput{},
		ComplexFilter: []string{},
	}

	labels := make(map[string]string)
	var order []string
	for _, t := range cfg.Tracks {
		if t.Muted {
			continue
		}
		idx := len(plan.Inputs)
		plan.Inputs = append(plan.Inputs, PlanInput{
			TrackID:    t.ID,
			Path:       t.FilePath,
			StartTime:  t.StartTime,
			Automation: t.Clone().Automation,
		})
		label := fmt.Sprintf("t%d", idx)
		chain := trackChain(t)
		plan.ComplexFilter = append(plan.ComplexFilter,
			fmt.Sprintf("[%d:a]%s[%s]", idx, strings.Join(chain, ","), label))
		labels[t.ID] = label
		order = append(order, t.ID)
	}

	for i, r := range cfg.Ducking {
		target, okT := labels[r.TargetTrackID]
		trigger, okG := labels[r.TriggerTrackID]
		if !okT || !okG {
			continue
		}
		key := fmt.Sprintf("k%d", i)
		ducked := fmt.Sprintf("d%d", i)
		plan.ComplexFilter = append(plan.ComplexFilter,
			fmt.Sprintf("[%s]asplit=2[%s][%s]", trigger, trigger+"m", key),
			fmt.Sprintf("[%s][%s]%s[%s]", target, key, duckingFilter(r), ducked),
		)
		labels[r.TriggerTrackID] = trigger + "m"
		labels[r.TargetTrackID] = ducked
	}

	var mixIn strings.Builder
	for _, id := range order {
		mixIn.WriteString("[" + labels[id] + "]")
	}
	plan.ComplexFilter = append(plan.ComplexFilter,
		fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0,volume=%s[out]", mixIn.String(), len(order), ff(cfg.MasterVolume)))
	plan.OutputLabel = "out"

	if opts.Normalize {
		target := DefaultTargetLUFS
		if opts.TargetLUFS != nil {
			target = *opts.TargetLUFS
		}
		plan.AudioFilters = append(plan.AudioFilters, "loudnorm=I="+ff(target)+":TP=-1.5:LRA=11")
	}
	return plan, nil
}

// trackChain returns the per-track filters in signal order.
func trackChain(t domain.MixerTrack) []string {
	chain := []string{"volume=" + ff(t.Volume)}
	if t.Pan != 0 {
		left, right := math.Min(1, 1-t.Pan), math.Min(1, 1+t.Pan)
		chain = append(chain, fmt.Sprintf("pan=stereo|c0=%s*c0|c1=%s*c1", ff(left), ff(right)))
	}
	if eq := t.EQ; eq != nil {
		for _, band := range []struct{ freq, def, gain float64 }{
			{eq.LowFreq, defaultLowFreq, eq.LowGain},
			{eq.MidFreq, defaultMidFreq, eq.MidGain},
			{eq.HighFreq, defaultHighFreq, eq.HighGain},
		} {
			if band.gain == 0 {
				continue
			}
			f := band.freq
			if f <= 0 {
				f = band.def
			}
			chain = append(chain, fmt.Sprintf("equalizer=f=%s:t=q:w=1:g=%s", ff(f), ff(band.gain)))
		}
	}
	if c := t.Compressor; c != nil {
		chain = append(chain, compressorFilter(*c))
	}
	for _, e := range t.Effects {
		if f := effectFilter(e); f != "" {
			chain = append(chain, f)
		}
	}
	if t.FadeIn > 0 {
		chain = append(chain, "afade=t=in:st=0:d="+ff(t.FadeIn))
	}
	if t.FadeOut > 0 && t.Duration > t.FadeOut {
		chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s", ff(t.Duration-t.FadeOut), ff(t.FadeOut)))
	}
	if t.StartTime > 0 {
		ms := strconv.FormatInt(int64(math.Round(t.StartTime*1000)), 10)
		chain = append(chain, "adelay="+ms+"|"+ms)
	}
	return chain
}

func compressorFilter(c domain.Compressor) string {
	ratio := c.Ratio
	if ratio < 1 {
		ratio = 1
	}
	attack, release := c.Attack, c.Release
	if attack <= 0 {
		attack = 20
	}
	if release <= 0 {
		release = 250
	}
	return fmt.Sprintf("acompressor=threshold=%s:ratio=%s:attack=%s:release=%s:makeup=%s",
		ff(round3(dbToLinear(c.Threshold))), ff(ratio), ff(attack), ff(release), ff(round3(math.Max(1, dbToLinear(c.MakeupGain)))))
}

// duckingFilter maps a reduction in dB to a compression ratio of 1 + |dB|/4,
// so the default -12 dB reduction compresses at 4:1.
func duckingFilter(r domain.DuckingRule) string {
	threshold := r.Threshold
	if threshold == 0 {
		threshold = -25
	}
	reduction := r.Reduction
	if reduction == 0 {
		reduction = -12
	}
	attack, release := r.Attack, r.Release
	if attack <= 0 {
		attack = 10
	}
	if release <= 0 {
		release = 100
	}
	return fmt.Sprintf("sidechaincompress=threshold=%s:ratio=%s:attack=%s:release=%s",
		ff(round3(dbToLinear(threshold))), ff(1+math.Abs(reduction)/4), ff(attack), ff(release))
}

func effectFilter(e domain.Effect) string {
	mix := e.Mix
	if mix <= 0 {
		return ""
	}
	param := func(name string, def float64) float64 {
		if v, ok := e.Params[name]; ok {
			return v
		}
		return def
	}
	switch e.Type {
	case "reverb":
		return fmt.Sprintf("aecho=0.8:%s:%s:%s", ff(0.88), ff(param("delay", 60)), ff(round3(mix)))
	case "echo", "delay":
		return fmt.Sprintf("aecho=0.8:0.9:%s:%s", ff(param("delay", 500)), ff(round3(mix)))
	case "chorus":
		return fmt.Sprintf("chorus=0.5:0.9:%s:%s:0.25:2", ff(param("delay", 50)), ff(round3(mix)))
	case "highpass":
		return "highpass=f=" + ff(param("frequency", 80))
	case "lowpass":
		return "lowpass=f=" + ff(param("frequency", 12000))
	case "denoise":
		return "afftdn=nr=" + ff(param("reduction", 12))
	}
	return ""
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
