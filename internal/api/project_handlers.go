package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/mixer"
	"github.com/estudio-ia/studio-server/internal/store"
	"github.com/estudio-ia/studio-server/internal/timeline"
)

func (s *Server) registerProjectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "saveTimeline",
		Method:      http.MethodPut,
		Path:        "/api/v1/projects/{projectId}/timeline",
		Summary:     "Save timeline",
		Description: "Replaces the project's timeline. Clips are sorted and defaults applied.",
		Tags:        []string{"Projects"},
	}, s.handleSaveTimeline)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTimeline",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/{projectId}/timeline",
		Summary:     "Get timeline",
		Description: "Returns the project's saved timeline",
		Tags:        []string{"Projects"},
	}, s.handleGetTimeline)

	huma.Register(s.api, huma.Operation{
		OperationID: "validateTimeline",
		Method:      http.MethodPost,
		Path:        "/api/v1/projects/{projectId}/timeline/validate",
		Summary:     "Validate timeline",
		Description: "Runs the export-time checks: clips present, an unmuted track, no overlaps",
		Tags:        []string{"Projects"},
	}, s.handleValidateTimeline)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTimelineEDL",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/{projectId}/timeline/edl",
		Summary:     "Timeline EDL",
		Description: "Returns the validated timeline as a CMX3600 edit decision list",
		Tags:        []string{"Projects"},
	}, s.handleGetTimelineEDL)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveMix",
		Method:      http.MethodPut,
		Path:        "/api/v1/projects/{projectId}/mix",
		Summary:     "Save mix",
		Description: "Replaces the project's mixer configuration after range checks",
		Tags:        []string{"Projects"},
	}, s.handleSaveMix)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMix",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/{projectId}/mix",
		Summary:     "Get mix",
		Description: "Returns the project's saved mixer configuration",
		Tags:        []string{"Projects"},
	}, s.handleGetMix)

	huma.Register(s.api, huma.Operation{
		OperationID: "validateMix",
		Method:      http.MethodPost,
		Path:        "/api/v1/projects/{projectId}/mix/validate",
		Summary:     "Validate mix",
		Description: "Runs the mixdown checks and returns the render plan",
		Tags:        []string{"Projects"},
	}, s.handleValidateMix)
}

// === DTOs ===

// ProjectInput identifies a project.
type ProjectInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
}

// SaveTimelineInput wraps a timeline document for Huma.
type SaveTimelineInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
	Body      domain.Timeline
}

// TimelineOutput wraps a timeline document.
type TimelineOutput struct {
	Body domain.Timeline
}

// EDLInput selects the EDL title.
type EDLInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
	Title     string `query:"title" doc:"EDL title, defaults to the project ID"`
}

// EDLOutput is a plain-text edit decision list.
type EDLOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// ValidationResult reports the outcome of an export-time check.
type ValidationResult struct {
	Valid      bool                 `json:"valid" doc:"True when the document can be exported"`
	Code       string               `json:"code,omitempty" doc:"Error code when invalid"`
	Message    string               `json:"message,omitempty" doc:"Error message when invalid"`
	Details    any                  `json:"details,omitempty" doc:"Error details when invalid"`
	Duration   float64              `json:"duration,omitempty" doc:"Timeline duration in seconds"`
	TrackCount int                  `json:"trackCount" doc:"Number of tracks"`
	ClipCount  int                  `json:"clipCount,omitempty" doc:"Number of clips"`
	Plan       *mixer.RenderPlan    `json:"plan,omitempty" doc:"Mixdown plan when valid"`
	Render     *timeline.RenderPlan `json:"render,omitempty" doc:"Render plan when valid"`
}

// ValidationOutput wraps a validation result.
type ValidationOutput struct {
	Body ValidationResult
}

// SaveMixInput wraps a mixer configuration for Huma.
type SaveMixInput struct {
	ProjectID string `path:"projectId" doc:"Project ID"`
	Body      domain.MixerConfig
}

// MixOutput wraps a mixer configuration.
type MixOutput struct {
	Body domain.MixerConfig
}

// ValidateMixInput selects the mixdown format.
type ValidateMixInput struct {
	ProjectID  string  `path:"projectId" doc:"Project ID"`
	Format     string  `query:"format" doc:"Output format (wav, flac, mp3, aac, m4a, ogg)"`
	Normalize  bool    `query:"normalize" doc:"Add a loudness normalization stage"`
	TargetLUFS float64 `query:"targetLUFS" doc:"Loudness target, defaults to -16"`
}

// === Handlers ===

func (s *Server) projectStore() (store.Backend, error) {
	if s.services.Store == nil {
		return nil, errors.Internal("project store not configured")
	}
	return s.services.Store, nil
}

func (s *Server) handleSaveTimeline(ctx context.Context, input *SaveTimelineInput) (*TimelineOutput, error) {
	st, err := s.projectStore()
	if err != nil {
		return nil, err
	}
	for _, t := range input.Body.Tracks {
		if !t.Kind.Valid() {
			return nil, errors.ValidationWithDetails("invalid track type", map[string]string{"trackId": t.ID, "type": string(t.Kind)})
		}
	}

	// Loading through the editor checks clip windows, sorts clips and fills defaults.
	editor := timeline.NewEditor()
	if err := editor.Load(input.Body); err != nil {
		return nil, err
	}
	tl := editor.Timeline()

	if _, err := st.UpdateProjectDocument(ctx, input.ProjectID, func(doc *domain.ProjectDocument) error {
		doc.Timeline = &tl
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("timeline saved",
		"project_id", input.ProjectID,
		"tracks", len(tl.Tracks),
		"clips", tl.ClipCount())
	return &TimelineOutput{Body: tl}, nil
}

func (s *Server) loadTimeline(ctx context.Context, projectID string) (domain.Timeline, error) {
	st, err := s.projectStore()
	if err != nil {
		return domain.Timeline{}, err
	}
	doc, err := st.GetProjectDocument(ctx, projectID)
	if err != nil {
		return domain.Timeline{}, err
	}
	if doc.Timeline == nil {
		return domain.Timeline{}, errors.NotFoundf("No timeline saved for project %s", projectID)
	}
	return *doc.Timeline, nil
}

func (s *Server) handleGetTimeline(ctx context.Context, input *ProjectInput) (*TimelineOutput, error) {
	tl, err := s.loadTimeline(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	return &TimelineOutput{Body: tl}, nil
}

func (s *Server) handleValidateTimeline(ctx context.Context, input *ProjectInput) (*ValidationOutput, error) {
	tl, err := s.loadTimeline(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}

	editor := timeline.NewEditor()
	if err := editor.Load(tl); err != nil {
		return nil, err
	}
	result := ValidationResult{
		TrackCount: len(tl.Tracks),
		ClipCount:  tl.ClipCount(),
		Duration:   editor.Duration(),
	}

	plan, err := editor.Plan(timeline.ExportOptions{})
	if err != nil {
		return &ValidationOutput{Body: invalidResult(result, err)}, nil
	}
	result.Valid = true
	result.Render = &plan
	return &ValidationOutput{Body: result}, nil
}

func (s *Server) handleGetTimelineEDL(ctx context.Context, input *EDLInput) (*EDLOutput, error) {
	tl, err := s.loadTimeline(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	editor := timeline.NewEditor()
	if err := editor.Load(tl); err != nil {
		return nil, err
	}
	if err := editor.Validate(); err != nil {
		return nil, err
	}

	title := input.Title
	if title == "" {
		title = input.ProjectID
	}
	return &EDLOutput{
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(editor.RenderEDL(title)),
	}, nil
}

func (s *Server) handleSaveMix(ctx context.Context, input *SaveMixInput) (*MixOutput, error) {
	st, err := s.projectStore()
	if err != nil {
		return nil, err
	}

	// LoadConfig enforces the volume and pan ranges and fills bus defaults.
	m := mixer.New(mixer.WithLogger(s.logger))
	if err := m.LoadConfig(input.Body); err != nil {
		return nil, err
	}
	cfg := m.Config()

	if _, err := st.UpdateProjectDocument(ctx, input.ProjectID, func(doc *domain.ProjectDocument) error {
		doc.Mixer = &cfg
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("mix saved",
		"project_id", input.ProjectID,
		"tracks", len(cfg.Tracks))
	return &MixOutput{Body: cfg}, nil
}

func (s *Server) loadMix(ctx context.Context, projectID string) (domain.MixerConfig, error) {
	st, err := s.projectStore()
	if err != nil {
		return domain.MixerConfig{}, err
	}
	doc, err := st.GetProjectDocument(ctx, projectID)
	if err != nil {
		return domain.MixerConfig{}, err
	}
	if doc.Mixer == nil {
		return domain.MixerConfig{}, errors.NotFoundf("No mix saved for project %s", projectID)
	}
	return *doc.Mixer, nil
}

func (s *Server) handleGetMix(ctx context.Context, input *ProjectInput) (*MixOutput, error) {
	cfg, err := s.loadMix(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}
	return &MixOutput{Body: cfg}, nil
}

func (s *Server) handleValidateMix(ctx context.Context, input *ValidateMixInput) (*ValidationOutput, error) {
	cfg, err := s.loadMix(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}

	result := ValidationResult{TrackCount: len(cfg.Tracks)}
	if err := mixer.ValidateConfig(cfg); err != nil {
		return &ValidationOutput{Body: invalidResult(result, err)}, nil
	}

	opts := mixer.ExportOptions{Format: input.Format, Normalize: input.Normalize}
	if input.TargetLUFS != 0 {
		target := input.TargetLUFS
		opts.TargetLUFS = &target
	}
	plan, err := mixer.BuildPlan(cfg, opts)
	if err != nil {
		return &ValidationOutput{Body: invalidResult(result, err)}, nil
	}

	result.Valid = true
	result.Plan = &plan
	return &ValidationOutput{Body: result}, nil
}

// invalidResult fills result from a domain error. Other errors are reported as internal.
func invalidResult(result ValidationResult, err error) ValidationResult {
	result.Valid = false
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		result.Code = string(domainErr.Code)
		result.Message = domainErr.Message
		result.Details = domainErr.Details
		return result
	}
	result.Code = string(errors.CodeInternal)
	result.Message = err.Error()
	return result
}
