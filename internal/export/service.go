package export

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/events"
	"github.com/estudio-ia/studio-server/internal/id"
	"github.com/estudio-ia/studio-server/internal/logger"
)

// DefaultMaxConcurrent is the number of jobs processed at once when Config leaves it unset.
const DefaultMaxConcurrent = 3

// DefaultOutputDir is where output paths are rooted when Config leaves it unset.
const DefaultOutputDir = "/exports"

// CancelReason is recorded as the error of a job cancelled through CancelJob.
const CancelReason = "Job cancelled by user."

// processingProgressCap keeps a running job below 100 so that 100 always means completed.
const processingProgressCap = 99

// Config tunes a Service.
type Config struct {
	MaxConcurrent int
	OutputDir     string
	// PhaseDeadlines bounds individual phases. A phase that overruns its
	// deadline fails the job with a TIMEOUT error. Absent or zero entries
	// leave the phase unbounded.
	PhaseDeadlines map[domain.ExportPhase]time.Duration
}

// JobStore persists job snapshots. SaveExportJob is an upsert.
type JobStore interface {
	SaveExportJob(ctx context.Context, job *domain.ExportJob) error
	ListExportJobs(ctx context.Context) ([]*domain.ExportJob, error)
}

type nopStore struct{}

func (nopStore) SaveExportJob(context.Context, *domain.ExportJob) error { return nil }

func (nopStore) ListExportJobs(context.Context) ([]*domain.ExportJob, error) { return nil, nil }

// JobFilter selects jobs in ListJobs. Zero fields match everything.
type JobFilter struct {
	ProjectID  string
	UserID     string
	Status     domain.ExportStatus
	ActiveOnly bool
}

func (f JobFilter) match(j *domain.ExportJob) bool {
	switch {
	case f.ProjectID != "" && j.ProjectID != f.ProjectID:
		return false
	case f.UserID != "" && j.UserID != f.UserID:
		return false
	case f.Status != "" && j.Status != f.Status:
		return false
	case f.ActiveOnly && j.Status.IsTerminal():
		return false
	}
	return true
}

// Service is the export job orchestrator.
//
// Jobs are admitted FIFO and processed by MaxConcurrent workers, so at most
// MaxConcurrent jobs are ever in processing. Cancellation is cooperative: the
// worker checks for it before every step and every phase, so a cancelled job
// advances by at most one more step. A user cancel does not interrupt the
// encoder mid-step; Stop does, leaving in-flight jobs in processing to be
// recovered by the next Start.
type Service struct {
	cfg      Config
	store    JobStore
	encoder  Encoder
	catalog  *Catalog
	notifier events.Emitter
	logger   *slog.Logger

	mu    sync.Mutex
	jobs  map[string]*domain.ExportJob
	queue []string

	// persistMu orders snapshots with their writes so the store never regresses.
	persistMu sync.Mutex

	ctx     context.Context //nolint:containedctx // Worker lifecycle
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	notify  chan struct{}
	started bool
}

// NewService creates an orchestrator. A nil store disables persistence, a nil
// encoder uses an instant SimulatedEncoder and a nil catalog serves built-in
// presets only.
func NewService(
	cfg Config,
	store JobStore,
	encoder Encoder,
	catalog *Catalog,
	notifier events.Emitter,
	log *slog.Logger,
) *Service {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if store == nil {
		store = nopStore{}
	}
	if encoder == nil {
		encoder = NewSimulatedEncoder(0)
	}
	if catalog == nil {
		catalog = NewCatalog("", log)
	}
	if notifier == nil {
		notifier = events.Noop{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		store:    store,
		encoder:  encoder,
		catalog:  catalog,
		notifier: notifier,
		logger:   log,
		jobs:     make(map[string]*domain.ExportJob),
		ctx:      ctx,
		cancel:   cancel,
		notify:   make(chan struct{}, 1),
	}
}

// Start recovers persisted jobs and launches the workers.
//
// Jobs found in processing were interrupted by a shutdown; they return to
// pending and are queued with the other pending jobs in creation order,
// keeping the progress they had reached.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.recover(ctx); err != nil {
		return err
	}

	s.logger.Info("starting export workers", slog.Int("workers", s.cfg.MaxConcurrent))
	for i := range s.cfg.MaxConcurrent {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.signal()
	return nil
}

// Stop halts the workers and waits for them to return.
func (s *Service) Stop() {
	s.logger.Info("stopping export service")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("export service stopped")
}

// Shutdown implements do.Shutdowner.
func (s *Service) Shutdown() error {
	s.Stop()
	return nil
}

func (s *Service) recover(ctx context.Context) error {
	stored, err := s.store.ListExportJobs(ctx)
	if err != nil {
		return fmt.Errorf("load export jobs: %w", err)
	}

	slices.SortStableFunc(stored, func(a, b *domain.ExportJob) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	var requeued []string
	s.mu.Lock()
	for _, job := range stored {
		if _, exists := s.jobs[job.ID]; exists {
			continue
		}
		if job.Logs == nil {
			job.Logs = []domain.JobLogEntry{}
		}
		if job.Status == domain.ExportStatusProcessing {
			job.Status = domain.ExportStatusPending
			job.Log("Export job recovered after restart.", domain.LogWarn)
			requeued = append(requeued, job.ID)
		}
		s.jobs[job.ID] = job
		if job.Status == domain.ExportStatusPending {
			s.queue = append(s.queue, job.ID)
		}
	}
	s.mu.Unlock()

	for _, jobID := range requeued {
		s.persist(jobID)
	}
	if len(stored) > 0 {
		s.logger.Info("recovered export jobs",
			slog.Int("total", len(stored)),
			slog.Int("requeued", len(requeued)))
	}
	return nil
}

// CreateExportJob validates opts and queues a job for projectID.
func (s *Service) CreateExportJob(ctx context.Context, projectID, userID string, opts domain.ExportOptions) (*domain.ExportJob, error) {
	return s.create(ctx, projectID, userID, opts, 0)
}

func (s *Service) create(ctx context.Context, projectID, userID string, opts domain.ExportOptions, retries int) (*domain.ExportJob, error) {
	if projectID == "" || userID == "" {
		return nil, errors.Validation("Both projectId and userId are required to create an export job.")
	}

	normalized := Normalize(opts)
	if err := Validate(normalized); err != nil {
		return nil, err
	}

	jobID, err := id.Generate(id.PrefixExport)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate job id")
	}

	job := domain.NewExportJob(jobID, projectID, userID, normalized)
	job.Metrics.Retries = retries

	if err := s.store.SaveExportJob(ctx, job.Clone()); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "persist export job")
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.queue = append(s.queue, job.ID)
	snapshot := job.Clone()
	s.mu.Unlock()

	logger.ForJob(s.logger, job.ID, projectID).Info("export job queued",
		slog.String("format", string(normalized.Format)),
		slog.Int("retries", retries))
	s.notifier.Emit(EventJobQueued, JobQueuedEvent{JobID: job.ID, ProjectID: projectID, UserID: userID})
	s.signal()
	return snapshot, nil
}

// QuickExport queues a job configured from the platform's preset.
func (s *Service) QuickExport(ctx context.Context, projectID, userID string, platform domain.Platform) (*domain.ExportJob, error) {
	preset, ok := s.catalog.Get(platform)
	if !ok {
		return nil, errors.Newf(errors.CodeUnsupportedPlatform, "Unsupported platform: %s", platform)
	}
	return s.CreateExportJob(ctx, projectID, userID, optionsFromPreset(platform, preset))
}

// BatchExport queues one job per project with shared options. Options are
// validated once up front so that either every job is queued or none is.
func (s *Service) BatchExport(ctx context.Context, projectIDs []string, userID string, opts domain.ExportOptions) ([]*domain.ExportJob, error) {
	if len(projectIDs) == 0 {
		return nil, errors.Validation("At least one projectId must be provided for batch export.")
	}
	if slices.Contains(projectIDs, "") || userID == "" {
		return nil, errors.Validation("Both projectId and userId are required to create an export job.")
	}
	if err := Validate(Normalize(opts)); err != nil {
		return nil, err
	}

	jobs := make([]*domain.ExportJob, 0, len(projectIDs))
	for _, projectID := range projectIDs {
		job, err := s.CreateExportJob(ctx, projectID, userID, opts)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// CancelJob cancels a pending or processing job. It returns false when the
// job does not exist or has already finished.
func (s *Service) CancelJob(ctx context.Context, jobID string) bool {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	job.MarkCancelled(CancelReason)
	job.Log("Export job cancelled.", domain.LogInfo)
	s.removeFromQueue(jobID)
	progress := job.Progress
	userID, projectID := job.UserID, job.ProjectID
	s.mu.Unlock()

	logger.ForJob(s.logger, jobID, projectID).Info("export job cancelled", slog.Int("progress", progress))
	s.persistCtx(ctx, jobID)
	s.notifier.Emit(EventJobCancelled, JobCancelledEvent{owner: owner{userID}, JobID: jobID, Progress: progress})
	return true
}

// RetryJob queues a fresh job with the options of jobID and one more retry.
func (s *Service) RetryJob(ctx context.Context, jobID string) (*domain.ExportJob, error) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return nil, errors.NotFoundf("Export job not found: %s", jobID)
	}
	projectID, userID := job.ProjectID, job.UserID
	opts := job.Options.Clone()
	retries := job.Metrics.Retries + 1
	s.mu.Unlock()

	return s.create(ctx, projectID, userID, opts, retries)
}

// GetJob returns a snapshot of a job.
func (s *Service) GetJob(jobID string) (*domain.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, errors.NotFoundf("Export job not found: %s", jobID)
	}
	return job.Clone(), nil
}

// GetJobsByProject returns snapshots of a project's jobs, oldest first.
func (s *Service) GetJobsByProject(projectID string) []*domain.ExportJob {
	return s.ListJobs(JobFilter{ProjectID: projectID})
}

// GetJobsByUser returns snapshots of a user's jobs, oldest first.
func (s *Service) GetJobsByUser(userID string) []*domain.ExportJob {
	return s.ListJobs(JobFilter{UserID: userID})
}

// ListActiveJobs returns snapshots of pending and processing jobs, oldest first.
func (s *Service) ListActiveJobs() []*domain.ExportJob {
	return s.ListJobs(JobFilter{ActiveOnly: true})
}

// ListJobs returns snapshots of the jobs matching f, oldest first.
func (s *Service) ListJobs(f JobFilter) []*domain.ExportJob {
	s.mu.Lock()
	out := make([]*domain.ExportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if f.match(job) {
			out = append(out, job.Clone())
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b *domain.ExportJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// GetSystemMetrics counts jobs per status and averages completed-job wall time.
func (s *Service) GetSystemMetrics() domain.SystemMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := domain.SystemMetrics{TotalJobs: len(s.jobs)}
	var total time.Duration
	var completed int
	for _, job := range s.jobs {
		switch job.Status {
		case domain.ExportStatusPending:
			m.Pending++
		case domain.ExportStatusProcessing:
			m.Processing++
		case domain.ExportStatusCompleted:
			m.Completed++
			if job.StartedAt != nil && job.CompletedAt != nil {
				total += job.CompletedAt.Sub(*job.StartedAt)
				completed++
			}
		case domain.ExportStatusFailed:
			m.Failed++
		case domain.ExportStatusCancelled:
			m.Cancelled++
		}
	}
	if completed > 0 {
		avg := float64(total.Milliseconds()) / float64(completed)
		m.AverageDuration = &avg
	}
	return m
}

// SupportedFormats returns the export format catalog.
func (s *Service) SupportedFormats() []domain.ExportFormat {
	return SupportedFormats()
}

// Presets returns every preset the service can quick-export with.
func (s *Service) Presets() []NamedPreset {
	return s.catalog.List()
}

// Preset returns one platform preset.
func (s *Service) Preset(platform domain.Platform) (domain.PlatformPreset, error) {
	preset, ok := s.catalog.Get(platform)
	if !ok {
		return domain.PlatformPreset{}, errors.Newf(errors.CodeUnsupportedPlatform, "Unsupported platform: %s", platform)
	}
	return preset, nil
}

func (s *Service) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Service) removeFromQueue(jobID string) {
	if i := slices.Index(s.queue, jobID); i >= 0 {
		s.queue = slices.Delete(s.queue, i, i+1)
	}
}

func (s *Service) worker(n int) {
	defer s.wg.Done()

	s.logger.Debug("export worker started", slog.Int("worker_id", n))
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("export worker stopping", slog.Int("worker_id", n))
			return
		case <-s.notify:
		case <-time.After(5 * time.Second):
			// Periodic check in case a signal was missed.
		}

		for {
			jobID, ok := s.claim()
			if !ok {
				break
			}
			s.process(jobID)
			if s.ctx.Err() != nil {
				return
			}
		}
	}
}

// claim pops the head of the queue and marks it processing in one step.
func (s *Service) claim() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return "", false
	}
	for len(s.queue) > 0 {
		jobID := s.queue[0]
		s.queue = s.queue[1:]
		job, ok := s.jobs[jobID]
		if !ok || job.Status != domain.ExportStatusPending {
			continue
		}
		job.MarkProcessing()
		job.Log("Export job started.", domain.LogInfo)
		if len(s.queue) > 0 {
			s.signal()
		}
		return jobID, true
	}
	return "", false
}

// mutate applies fn while the job is still processing and returns a snapshot.
func (s *Service) mutate(jobID string, fn func(*domain.ExportJob)) (*domain.ExportJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.ExportStatusProcessing {
		return nil, false
	}
	fn(job)
	return job.Clone(), true
}

func (s *Service) snapshot(jobID string) *domain.ExportJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		return job.Clone()
	}
	return nil
}

func (s *Service) persist(jobID string) {
	s.persistCtx(s.ctx, jobID)
}

// persistCtx writes the job's current state. Failures are logged; the
// in-memory record stays authoritative until the next successful write.
func (s *Service) persistCtx(ctx context.Context, jobID string) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	job := s.snapshot(jobID)
	if job == nil {
		return
	}
	if err := s.store.SaveExportJob(context.WithoutCancel(ctx), job); err != nil {
		logger.ForJob(s.logger, jobID, job.ProjectID).Error("failed to persist export job",
			slog.String("status", string(job.Status)),
			slog.String("error", err.Error()))
	}
}

func (s *Service) process(jobID string) {
	start := s.snapshot(jobID)
	if start == nil {
		return
	}
	log := logger.ForJob(s.logger, jobID, start.ProjectID)
	owned := owner{start.UserID}

	log.Info("export job started", slog.String("format", string(start.Options.Format)))
	s.persist(jobID)
	s.notifier.Emit(EventJobStarted, JobStartedEvent{owner: owned, JobID: jobID})

	for _, ps := range Pipeline {
		entered, ok := s.mutate(jobID, func(j *domain.ExportJob) {
			j.EnterPhase(ps.Phase)
			j.Log(fmt.Sprintf("Phase %s started.", ps.Phase), domain.LogInfo)
		})
		if !ok {
			s.stopped(jobID, ps.Phase, log)
			return
		}
		s.persist(jobID)
		s.notifier.Emit(EventJobPhase, JobPhaseEvent{owner: owned, JobID: jobID, Phase: ps.Phase})

		if err := s.runPhase(entered, ps, owned); err != nil {
			if s.ctx.Err() != nil {
				log.Info("export job interrupted by shutdown", slog.String("phase", string(ps.Phase)))
				return
			}
			s.fail(jobID, err, log)
			return
		}
	}

	if _, ok := s.mutate(jobID, func(*domain.ExportJob) {}); !ok {
		s.mutateAny(jobID, func(j *domain.ExportJob) {
			j.Log("Job cancelled during finalization.", domain.LogWarn)
		})
		s.persist(jobID)
		return
	}

	s.complete(jobID, log)
}

// runPhase advances progress through the phase's steps. It returns nil
// early when the job is no longer processing.
func (s *Service) runPhase(job *domain.ExportJob, ps PhaseSpec, owned owner) error {
	ctx := s.ctx
	deadline := s.cfg.PhaseDeadlines[ps.Phase]
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	increment := float64(ps.MaxProgress-ps.MinProgress) / StepsPerPhase
	for step := 1; step <= StepsPerPhase; step++ {
		progress := min(ps.MaxProgress, int(float64(ps.MinProgress)+increment*float64(step)+0.5))
		progress = min(progress, processingProgressCap)

		snap, ok := s.mutate(job.ID, func(j *domain.ExportJob) { j.SetProgress(progress) })
		if !ok {
			return nil
		}
		s.notifier.Emit(EventJobProgress, JobProgressEvent{owner: owned, JobID: job.ID, Phase: ps.Phase, Progress: snap.Progress})

		if err := s.encoder.Step(ctx, snap, ps, step); err != nil {
			if deadline > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) && s.ctx.Err() == nil {
				return errors.Newf(errors.CodeTimeout, "Phase %s exceeded its %s deadline.", ps.Phase, deadline)
			}
			return err
		}
	}
	return nil
}

// stopped records that a cancelled job's worker noticed the cancellation at a phase boundary.
func (s *Service) stopped(jobID string, phase domain.ExportPhase, log *slog.Logger) {
	if s.mutateAny(jobID, func(j *domain.ExportJob) {
		j.Log(fmt.Sprintf("Processing stopped during %s.", phase), domain.LogWarn)
	}) {
		log.Info("export job stopped", slog.String("phase", string(phase)))
		s.persist(jobID)
	}
}

// mutateAny applies fn regardless of status.
func (s *Service) mutateAny(jobID string, fn func(*domain.ExportJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if ok {
		fn(job)
	}
	return ok
}

func (s *Service) fail(jobID string, cause error, log *slog.Logger) {
	msg := cause.Error()
	snap, ok := s.mutate(jobID, func(j *domain.ExportJob) {
		j.MarkFailed(msg)
		j.Log("Export job failed: "+msg, domain.LogError)
	})
	if !ok {
		return
	}
	log.Error("export job failed", slog.String("error", msg))
	s.persist(jobID)
	s.notifier.Emit(EventJobFailed, JobFailedEvent{owner: owner{snap.UserID}, JobID: jobID, Error: msg})
}

func (s *Service) complete(jobID string, log *slog.Logger) {
	finishing := s.snapshot(jobID)
	if finishing == nil {
		return
	}
	now := time.Now()
	finishing.CompletedAt = &now

	meta, err := s.encoder.Finalize(s.ctx, finishing)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.fail(jobID, err, log)
		return
	}

	snap, ok := s.mutate(jobID, func(j *domain.ExportJob) {
		j.MarkCompleted()
		j.OutputPath = s.outputPath(j)
		j.ThumbnailPath = s.thumbnailPath(j)
		j.Metadata = meta
		j.Metrics.QualityScore = QualityScore(j.Options)
		if meta != nil {
			j.Metrics.AverageFPS = meta.FPS
		}
		j.Log("Export job completed successfully.", domain.LogInfo)
	})
	if !ok {
		s.mutateAny(jobID, func(j *domain.ExportJob) {
			j.Log("Job cancelled during finalization.", domain.LogWarn)
		})
		s.persist(jobID)
		return
	}

	log.Info("export job completed",
		slog.String("output", snap.OutputPath),
		slog.Duration("elapsed", snap.CompletedAt.Sub(*snap.StartedAt)))
	s.persist(jobID)
	s.notifier.Emit(EventJobCompleted, JobCompletedEvent{
		owner:         owner{snap.UserID},
		JobID:         jobID,
		OutputPath:    snap.OutputPath,
		ThumbnailPath: snap.ThumbnailPath,
	})
}

func (s *Service) outputPath(j *domain.ExportJob) string {
	base := j.Options.CustomFileName
	if base == "" {
		base = j.ID
	}
	// Jobs recovered from older records skipped the file name check.
	return path.Join(s.cfg.OutputDir, path.Base(base)+"."+string(j.Options.Format))
}

func (s *Service) thumbnailPath(j *domain.ExportJob) string {
	if !domain.BoolValue(j.Options.IncludeThumbnail) || j.Options.Format == domain.FormatZIP {
		return ""
	}
	return path.Join(s.cfg.OutputDir, j.ID+".thumbnail.jpg")
}
