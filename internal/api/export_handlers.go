package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/export"
)

func (s *Server) registerExportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listExportFormats",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/formats",
		Summary:     "List export formats",
		Description: "Returns every supported output format with its default codecs",
		Tags:        []string{"Export"},
	}, s.handleListFormats)

	huma.Register(s.api, huma.Operation{
		OperationID: "listExportPresets",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/presets",
		Summary:     "List platform presets",
		Description: "Returns built-in and custom platform presets",
		Tags:        []string{"Export"},
	}, s.handleListPresets)

	huma.Register(s.api, huma.Operation{
		OperationID: "getExportPreset",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/presets/{platform}",
		Summary:     "Get platform preset",
		Description: "Returns the preset for one platform",
		Tags:        []string{"Export"},
	}, s.handleGetPreset)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createExportJob",
		Method:        http.MethodPost,
		Path:          "/api/v1/export/jobs",
		Summary:       "Create export job",
		Description:   "Validates the options and queues an export job",
		Tags:          []string{"Export"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateExportJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "listExportJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/jobs",
		Summary:     "List export jobs",
		Description: "Returns jobs oldest first, optionally filtered by project, user, status or activity",
		Tags:        []string{"Export"},
	}, s.handleListExportJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "getExportJob",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/jobs/{id}",
		Summary:     "Get export job",
		Description: "Returns an export job by ID",
		Tags:        []string{"Export"},
	}, s.handleGetExportJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelExportJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/export/jobs/{id}/cancel",
		Summary:     "Cancel export job",
		Description: "Cancels a pending or processing job. Finished jobs are left untouched.",
		Tags:        []string{"Export"},
	}, s.handleCancelExportJob)

	huma.Register(s.api, huma.Operation{
		OperationID:   "retryExportJob",
		Method:        http.MethodPost,
		Path:          "/api/v1/export/jobs/{id}/retry",
		Summary:       "Retry export job",
		Description:   "Queues a new job with the same project, user and options",
		Tags:          []string{"Export"},
		DefaultStatus: http.StatusCreated,
	}, s.handleRetryExportJob)

	huma.Register(s.api, huma.Operation{
		OperationID:   "quickExport",
		Method:        http.MethodPost,
		Path:          "/api/v1/export/quick",
		Summary:       "Quick export",
		Description:   "Queues an export job using a platform preset",
		Tags:          []string{"Export"},
		DefaultStatus: http.StatusCreated,
	}, s.handleQuickExport)

	huma.Register(s.api, huma.Operation{
		OperationID:   "batchExport",
		Method:        http.MethodPost,
		Path:          "/api/v1/export/batch",
		Summary:       "Batch export",
		Description:   "Queues one job per project with shared options",
		Tags:          []string{"Export"},
		DefaultStatus: http.StatusCreated,
	}, s.handleBatchExport)

	huma.Register(s.api, huma.Operation{
		OperationID: "getExportMetrics",
		Method:      http.MethodGet,
		Path:        "/api/v1/export/metrics",
		Summary:     "Export metrics",
		Description: "Returns job counts per status and the mean duration of completed jobs",
		Tags:        []string{"Export"},
	}, s.handleGetExportMetrics)
}

// === DTOs ===

// FormatsOutput lists supported formats.
type FormatsOutput struct {
	Body struct {
		Formats []export.FormatInfo `json:"formats" doc:"Supported output formats"`
	}
}

// PresetsOutput lists platform presets.
type PresetsOutput struct {
	Body struct {
		Presets []export.NamedPreset `json:"presets" doc:"Platform presets"`
	}
}

// GetPresetInput identifies a platform.
type GetPresetInput struct {
	Platform string `path:"platform" doc:"Platform key, e.g. youtube or instagram-reels"`
}

// PresetOutput wraps a single preset.
type PresetOutput struct {
	Body export.NamedPreset
}

// CreateExportJobRequest is the request body for creating an export job.
type CreateExportJobRequest struct {
	ProjectID string               `json:"projectId" validate:"required" doc:"Project to export"`
	UserID    string               `json:"userId" validate:"required" doc:"Requesting user"`
	Options   domain.ExportOptions `json:"options" validate:"-" doc:"Export options, checked by the export service"`
}

// CreateExportJobInput wraps the create request for Huma.
type CreateExportJobInput struct {
	Body CreateExportJobRequest
}

// JobOutput wraps a single job.
type JobOutput struct {
	Body *domain.ExportJob
}

// ListExportJobsInput carries the list filters.
type ListExportJobsInput struct {
	ProjectID string `query:"projectId" doc:"Only jobs of this project"`
	UserID    string `query:"userId" doc:"Only jobs of this user"`
	Status    string `query:"status" enum:"pending,processing,completed,failed,cancelled" doc:"Only jobs in this status"`
	Active    bool   `query:"active" doc:"Only pending and processing jobs"`
}

// JobsOutput wraps a list of jobs.
type JobsOutput struct {
	Body struct {
		Jobs []*domain.ExportJob `json:"jobs" doc:"Matching jobs, oldest first"`
	}
}

// JobIDInput identifies a job.
type JobIDInput struct {
	ID string `path:"id" doc:"Export job ID"`
}

// CancelOutput reports whether a cancel took effect.
type CancelOutput struct {
	Body struct {
		Cancelled bool              `json:"cancelled" doc:"False when the job had already finished"`
		Job       *domain.ExportJob `json:"job" doc:"Job after the request"`
	}
}

// QuickExportRequest is the request body for a preset export.
type QuickExportRequest struct {
	ProjectID string `json:"projectId" validate:"required" doc:"Project to export"`
	UserID    string `json:"userId" validate:"required" doc:"Requesting user"`
	Platform  string `json:"platform" validate:"required" doc:"Platform preset key"`
}

// QuickExportInput wraps the quick export request for Huma.
type QuickExportInput struct {
	Body QuickExportRequest
}

// BatchExportRequest is the request body for a batch export.
type BatchExportRequest struct {
	ProjectIDs []string             `json:"projectIds" doc:"Projects to export"`
	UserID     string               `json:"userId" doc:"Requesting user"`
	Options    domain.ExportOptions `json:"options" doc:"Options shared by every job"`
}

// BatchExportInput wraps the batch request for Huma.
type BatchExportInput struct {
	Body BatchExportRequest
}

// MetricsOutput wraps the system metrics.
type MetricsOutput struct {
	Body domain.SystemMetrics
}

// === Handlers ===

func (s *Server) exportService() (*export.Service, error) {
	if s.services.Export == nil {
		return nil, errors.Internal("export service not configured")
	}
	return s.services.Export, nil
}

func (s *Server) handleListFormats(_ context.Context, _ *struct{}) (*FormatsOutput, error) {
	out := &FormatsOutput{}
	out.Body.Formats = export.Formats()
	return out, nil
}

func (s *Server) handleListPresets(_ context.Context, _ *struct{}) (*PresetsOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	out := &PresetsOutput{}
	out.Body.Presets = svc.Presets()
	return out, nil
}

func (s *Server) handleGetPreset(_ context.Context, input *GetPresetInput) (*PresetOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	platform := domain.Platform(input.Platform)
	preset, err := svc.Preset(platform)
	if err != nil {
		return nil, err
	}
	_, builtin := export.BuiltinPreset(platform)
	return &PresetOutput{Body: export.NamedPreset{Platform: platform, Builtin: builtin, Preset: preset}}, nil
}

func (s *Server) handleCreateExportJob(ctx context.Context, input *CreateExportJobInput) (*JobOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}

	job, err := svc.CreateExportJob(ctx, input.Body.ProjectID, input.Body.UserID, input.Body.Options)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleListExportJobs(_ context.Context, input *ListExportJobsInput) (*JobsOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}

	jobs := svc.ListJobs(export.JobFilter{
		ProjectID:  input.ProjectID,
		UserID:     input.UserID,
		Status:     domain.ExportStatus(input.Status),
		ActiveOnly: input.Active,
	})
	if jobs == nil {
		jobs = []*domain.ExportJob{}
	}

	out := &JobsOutput{}
	out.Body.Jobs = jobs
	return out, nil
}

func (s *Server) handleGetExportJob(_ context.Context, input *JobIDInput) (*JobOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	job, err := svc.GetJob(input.ID)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleCancelExportJob(ctx context.Context, input *JobIDInput) (*CancelOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	if _, err := svc.GetJob(input.ID); err != nil {
		return nil, err
	}

	cancelled := svc.CancelJob(ctx, input.ID)
	job, err := svc.GetJob(input.ID)
	if err != nil {
		return nil, err
	}

	out := &CancelOutput{}
	out.Body.Cancelled = cancelled
	out.Body.Job = job
	return out, nil
}

func (s *Server) handleRetryExportJob(ctx context.Context, input *JobIDInput) (*JobOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	job, err := svc.RetryJob(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleQuickExport(ctx context.Context, input *QuickExportInput) (*JobOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	job, err := svc.QuickExport(ctx, input.Body.ProjectID, input.Body.UserID, domain.Platform(input.Body.Platform))
	if err != nil {
		return nil, err
	}
	return &JobOutput{Body: job}, nil
}

func (s *Server) handleBatchExport(ctx context.Context, input *BatchExportInput) (*JobsOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	// The service owns the batch validation messages.
	jobs, err := svc.BatchExport(ctx, input.Body.ProjectIDs, input.Body.UserID, input.Body.Options)
	if err != nil {
		return nil, err
	}
	out := &JobsOutput{}
	out.Body.Jobs = jobs
	return out, nil
}

func (s *Server) handleGetExportMetrics(_ context.Context, _ *struct{}) (*MetricsOutput, error) {
	svc, err := s.exportService()
	if err != nil {
		return nil, err
	}
	return &MetricsOutput{Body: svc.GetSystemMetrics()}, nil
}
