package domain

import (
	"maps"
	"slices"
	"time"
)

// ExportFormat is a container or document format the export pipeline can produce.
type ExportFormat string

const (
	FormatMP4  ExportFormat = "mp4"
	FormatWebM ExportFormat = "webm"
	FormatMOV  ExportFormat = "mov"
	FormatAVI  ExportFormat = "avi"
	FormatMKV  ExportFormat = "mkv"
	FormatGIF  ExportFormat = "gif"
	FormatAPNG ExportFormat = "apng"
	FormatMP3  ExportFormat = "mp3"
	FormatWAV  ExportFormat = "wav"
	FormatAAC  ExportFormat = "aac"
	FormatOGG  ExportFormat = "ogg"
	FormatZIP  ExportFormat = "zip"
	FormatPDF  ExportFormat = "pdf"
	FormatPPTX ExportFormat = "pptx"
)

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
	ExportStatusCancelled  ExportStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s.
func (s ExportStatus) IsTerminal() bool {
	return s == ExportStatusCompleted || s == ExportStatusFailed || s == ExportStatusCancelled
}

// ExportPhase is a stage of the processing pipeline.
type ExportPhase string

const (
	PhaseInitializing  ExportPhase = "initializing"
	PhasePreprocessing ExportPhase = "preprocessing"
	PhaseEncoding      ExportPhase = "encoding"
	PhaseOptimizing    ExportPhase = "optimizing"
	PhaseWatermarking  ExportPhase = "watermarking"
	PhaseFinalizing    ExportPhase = "finalizing"
)

// Phases lists the pipeline stages in execution order.
var Phases = []ExportPhase{
	PhaseInitializing,
	PhasePreprocessing,
	PhaseEncoding,
	PhaseOptimizing,
	PhaseWatermarking,
	PhaseFinalizing,
}

// Valid reports whether p is a pipeline stage.
func (p ExportPhase) Valid() bool {
	return slices.Contains(Phases, p)
}

// QualityTier is the requested output quality.
type QualityTier string

const (
	QualityLow    QualityTier = "low"
	QualityMedium QualityTier = "medium"
	QualityHigh   QualityTier = "high"
	QualityUltra  QualityTier = "ultra"
)

// OptimizationLevel trades encode time for output quality.
type OptimizationLevel string

const (
	OptimizationNone     OptimizationLevel = "none"
	OptimizationFast     OptimizationLevel = "fast"
	OptimizationBalanced OptimizationLevel = "balanced"
	OptimizationBest     OptimizationLevel = "best"
)

// JobPriority is informational; the queue is strictly FIFO.
type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
)

// WatermarkConfig describes an overlay applied during the watermarking phase.
type WatermarkConfig struct {
	Enabled   bool    `json:"enabled"`
	ImagePath string  `json:"imagePath,omitempty"`
	Position  string  `json:"position,omitempty" enum:"top-left,top-right,bottom-left,bottom-right,center"`
	Opacity   float64 `json:"opacity,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
	Text      string  `json:"text,omitempty"`
}

// ThumbnailConfig describes the thumbnails produced alongside the output.
type ThumbnailConfig struct {
	Enabled bool   `json:"enabled"`
	Format  string `json:"format,omitempty" enum:"jpg,png"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// ExportOptions is the encoding request attached to a job.
// Zero numeric values and nil toggles mean "not set" and are filled in by normalization.
type ExportOptions struct {
	Format               ExportFormat      `json:"format" validate:"required"`
	Codec                string            `json:"codec,omitempty"`
	AudioCodec           string            `json:"audioCodec,omitempty"`
	Resolution           string            `json:"resolution,omitempty" validate:"omitempty,resolution"`
	FPS                  float64           `json:"fps,omitempty"`
	Bitrate              int               `json:"bitrate,omitempty"`
	MaxBitrate           int               `json:"maxBitrate,omitempty"`
	MinBitrate           int               `json:"minBitrate,omitempty"`
	TargetBitrate        int               `json:"targetBitrate,omitempty"`
	Quality              QualityTier       `json:"quality,omitempty" validate:"omitempty,oneof=low medium high ultra"`
	Optimization         OptimizationLevel `json:"optimization,omitempty" validate:"omitempty,oneof=none fast balanced best"`
	IncludeSubtitles     bool              `json:"includeSubtitles,omitempty"`
	IncludeStoryboard    bool              `json:"includeStoryboard,omitempty"`
	IncludeMetadata      *bool             `json:"includeMetadata,omitempty"`
	IncludeThumbnail     *bool             `json:"includeThumbnail,omitempty"`
	IncludeWatermark     *bool             `json:"includeWatermark,omitempty"`
	Watermark            *WatermarkConfig  `json:"watermark,omitempty"`
	Thumbnail            *ThumbnailConfig  `json:"thumbnail,omitempty"`
	Compression          *bool             `json:"compression,omitempty"`
	Filters              map[string]any    `json:"filters,omitempty"`
	Fields               []string          `json:"fields,omitempty"`
	AspectRatio          string            `json:"aspectRatio,omitempty"`
	ColorProfile         string            `json:"colorProfile,omitempty"`
	MaxDuration          float64           `json:"maxDuration,omitempty"`
	MaxFileSize          int               `json:"maxFileSize,omitempty"`
	AudioBitrate         int               `json:"audioBitrate,omitempty"`
	HardwareAcceleration bool              `json:"hardwareAcceleration,omitempty"`
	TwoPass              bool              `json:"twoPass,omitempty"`
	TargetPlatform       Platform          `json:"targetPlatform,omitempty"`
	PresetName           string            `json:"presetName,omitempty"`
	Priority             JobPriority       `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	CustomFileName       string            `json:"customFileName,omitempty"`
	MetadataOverrides    map[string]any    `json:"metadataOverrides,omitempty"`
}

// Clone returns a deep copy of the options.
func (o ExportOptions) Clone() ExportOptions {
	cp := o
	cp.IncludeMetadata = cloneBool(o.IncludeMetadata)
	cp.IncludeThumbnail = cloneBool(o.IncludeThumbnail)
	cp.IncludeWatermark = cloneBool(o.IncludeWatermark)
	cp.Compression = cloneBool(o.Compression)
	if o.Watermark != nil {
		w := *o.Watermark
		cp.Watermark = &w
	}
	if o.Thumbnail != nil {
		th := *o.Thumbnail
		cp.Thumbnail = &th
	}
	cp.Filters = maps.Clone(o.Filters)
	cp.Fields = slices.Clone(o.Fields)
	cp.MetadataOverrides = maps.Clone(o.MetadataOverrides)
	return cp
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

// BoolValue dereferences p, treating nil as false.
func BoolValue(p *bool) bool {
	return p != nil && *p
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ExportMetadata describes a finished output.
type ExportMetadata struct {
	Duration       float64      `json:"duration"`
	FileSize       int          `json:"fileSize"` // megabytes
	Format         ExportFormat `json:"format"`
	Codec          string       `json:"codec,omitempty"`
	AudioCodec     string       `json:"audioCodec,omitempty"`
	Resolution     string       `json:"resolution,omitempty"`
	Bitrate        int          `json:"bitrate,omitempty"`
	FPS            float64      `json:"fps,omitempty"`
	HasAudio       bool         `json:"hasAudio"`
	HasSubtitles   bool         `json:"hasSubtitles"`
	ProcessingTime float64      `json:"processingTime"` // seconds
	ColorProfile   string       `json:"colorProfile,omitempty"`
}

// LogLevel is the severity of a job log entry.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// MaxJobLogEntries bounds the per-job log; older entries are dropped first.
const MaxJobLogEntries = 100

// JobLogEntry is a single line in a job's log.
type JobLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     LogLevel  `json:"level"`
}

// JobMetrics holds per-job counters.
type JobMetrics struct {
	Retries      int       `json:"retries"`
	AverageFPS   float64   `json:"averageFps,omitempty"`
	QualityScore int       `json:"qualityScore,omitempty"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// ExportJob is a unit of asynchronous export work for one project.
type ExportJob struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"projectId"`
	UserID        string          `json:"userId"`
	Status        ExportStatus    `json:"status"`
	Progress      int             `json:"progress"`
	CurrentPhase  ExportPhase     `json:"currentPhase"`
	Options       ExportOptions   `json:"options"`
	Platform      Platform        `json:"platform,omitempty"`
	OutputPath    string          `json:"outputPath,omitempty"`
	ThumbnailPath string          `json:"thumbnailPath,omitempty"`
	Metadata      *ExportMetadata `json:"metadata,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	StartedAt     *time.Time      `json:"startedAt,omitempty"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	Metrics       JobMetrics      `json:"metrics"`
	Logs          []JobLogEntry   `json:"logs"`
}

// NewExportJob creates a pending job.
func NewExportJob(id, projectID, userID string, opts ExportOptions) *ExportJob {
	now := time.Now()
	return &ExportJob{
		ID:           id,
		ProjectID:    projectID,
		UserID:       userID,
		Status:       ExportStatusPending,
		CurrentPhase: PhaseInitializing,
		Options:      opts,
		Platform:     opts.TargetPlatform,
		CreatedAt:    now,
		Metrics:      JobMetrics{LastUpdated: now},
		Logs:         []JobLogEntry{},
	}
}

// Log appends an entry, keeping at most MaxJobLogEntries.
func (j *ExportJob) Log(message string, level LogLevel) {
	j.Logs = append(j.Logs, JobLogEntry{Timestamp: time.Now(), Message: message, Level: level})
	if over := len(j.Logs) - MaxJobLogEntries; over > 0 {
		j.Logs = slices.Delete(j.Logs, 0, over)
	}
}

// MarkProcessing transitions a claimed job to processing.
func (j *ExportJob) MarkProcessing() {
	now := time.Now()
	j.Status = ExportStatusProcessing
	j.StartedAt = &now
	j.Metrics.LastUpdated = now
}

// EnterPhase records the phase the job is currently in.
func (j *ExportJob) EnterPhase(phase ExportPhase) {
	j.CurrentPhase = phase
	j.Metrics.LastUpdated = time.Now()
}

// SetProgress updates progress; it never moves backwards.
func (j *ExportJob) SetProgress(percent int) {
	percent = max(0, min(100, percent))
	if percent < j.Progress {
		return
	}
	j.Progress = percent
	j.Metrics.LastUpdated = time.Now()
}

// MarkCompleted transitions the job to completed with 100% progress.
func (j *ExportJob) MarkCompleted() {
	now := time.Now()
	j.Status = ExportStatusCompleted
	j.Progress = 100
	j.CompletedAt = &now
	j.Metrics.LastUpdated = now
}

// MarkFailed transitions the job to failed with an error message.
func (j *ExportJob) MarkFailed(msg string) {
	now := time.Now()
	j.Status = ExportStatusFailed
	j.Error = msg
	j.CompletedAt = &now
	j.Metrics.LastUpdated = now
}

// CancelledProgressCap is the highest progress a cancelled job may report.
const CancelledProgressCap = 95

// MarkCancelled transitions the job to cancelled, keeping partial progress.
func (j *ExportJob) MarkCancelled(reason string) {
	now := time.Now()
	j.Status = ExportStatusCancelled
	j.Error = reason
	j.Progress = min(j.Progress, CancelledProgressCap)
	j.CurrentPhase = PhaseFinalizing
	j.CompletedAt = &now
	j.Metrics.LastUpdated = now
}

// Clone returns a deep copy safe to hand to callers.
func (j *ExportJob) Clone() *ExportJob {
	cp := *j
	cp.Options = j.Options.Clone()
	if j.Metadata != nil {
		m := *j.Metadata
		cp.Metadata = &m
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Logs = slices.Clone(j.Logs)
	if cp.Logs == nil {
		cp.Logs = []JobLogEntry{}
	}
	return &cp
}

// SystemMetrics aggregates job counts across the orchestrator.
type SystemMetrics struct {
	TotalJobs  int `json:"totalJobs"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	// AverageDuration is the mean wall time in milliseconds of completed jobs, nil when none.
	AverageDuration *float64 `json:"averageDuration"`
}
