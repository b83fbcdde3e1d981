package export

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/events"
)

// gateEncoder blocks every step until gate is closed. A nil gate makes steps instant.
type gateEncoder struct {
	gate      chan struct{}
	failPhase domain.ExportPhase
	failErr   error
	// gatePhase limits the gate to one phase.
	gatePhase domain.ExportPhase
	// hangPhase blocks steps of that phase until ctx is done.
	hangPhase domain.ExportPhase

	mu    sync.Mutex
	steps map[string]int
}

func newGateEncoder(blocking bool) *gateEncoder {
	e := &gateEncoder{steps: make(map[string]int)}
	if blocking {
		e.gate = make(chan struct{})
	}
	return e
}

func (e *gateEncoder) Step(ctx context.Context, job *domain.ExportJob, phase PhaseSpec, _ int) error {
	e.mu.Lock()
	e.steps[job.ID]++
	e.mu.Unlock()

	if e.failPhase != "" && phase.Phase == e.failPhase {
		return e.failErr
	}
	if e.hangPhase != "" && phase.Phase == e.hangPhase {
		<-ctx.Done()
		return ctx.Err()
	}
	if e.gate == nil || (e.gatePhase != "" && phase.Phase != e.gatePhase) {
		return ctx.Err()
	}
	select {
	case <-e.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *gateEncoder) Finalize(_ context.Context, job *domain.ExportJob) (*domain.ExportMetadata, error) {
	return SynthesizeMetadata(job, rand.New(rand.NewPCG(1, 2))), nil //nolint:gosec // Test
}

func (e *gateEncoder) stepCount(jobID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps[jobID]
}

func (e *gateEncoder) release() {
	close(e.gate)
}

// memStore records every saved snapshot.
type memStore struct {
	mu      sync.Mutex
	jobs    map[string]*domain.ExportJob
	history map[string][]domain.ExportStatus
}

func newMemStore(jobs ...*domain.ExportJob) *memStore {
	s := &memStore{jobs: make(map[string]*domain.ExportJob), history: make(map[string][]domain.ExportStatus)}
	for _, j := range jobs {
		s.jobs[j.ID] = j.Clone()
	}
	return s
}

func (s *memStore) SaveExportJob(_ context.Context, job *domain.ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	s.history[job.ID] = append(s.history[job.ID], job.Status)
	return nil
}

func (s *memStore) ListExportJobs(context.Context) ([]*domain.ExportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ExportJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

func (s *memStore) get(id string) *domain.ExportJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j.Clone()
	}
	return nil
}

func (s *memStore) statuses(id string) []domain.ExportStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history[id])
}

type failingStore struct{ memStore }

func (*failingStore) SaveExportJob(context.Context, *domain.ExportJob) error {
	return stderrors.New("disk full")
}

func newTestService(t *testing.T, cfg Config, store JobStore, enc Encoder, n *events.Notifier) *Service {
	t.Helper()
	if n == nil {
		n = events.New()
	}
	svc := NewService(cfg, store, enc, nil, n, nil)
	require.NoError(t, svc.Start(t.Context()))
	t.Cleanup(svc.Stop)
	return svc
}

func waitForStatus(t *testing.T, svc *Service, jobID string, want domain.ExportStatus) *domain.ExportJob {
	t.Helper()
	var job *domain.ExportJob
	require.Eventually(t, func() bool {
		j, err := svc.GetJob(jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", jobID, want)
	return job
}

func logMessages(j *domain.ExportJob) []string {
	out := make([]string, len(j.Logs))
	for i, l := range j.Logs {
		out[i] = l.Message
	}
	return out
}

func mp4() domain.ExportOptions {
	return domain.ExportOptions{Format: domain.FormatMP4}
}

func TestCreateExportJob_Completes(t *testing.T) {
	svc := newTestService(t, Config{}, nil, NewSimulatedEncoder(0), nil)

	job, err := svc.CreateExportJob(t.Context(), "proj-1", "user-1", mp4())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(job.ID, "export-"))
	assert.Equal(t, domain.ExportStatusPending, job.Status)
	assert.Equal(t, "h264", job.Options.Codec, "stored options are normalized")

	done := waitForStatus(t, svc, job.ID, domain.ExportStatusCompleted)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "/exports/"+job.ID+".mp4", done.OutputPath)
	assert.Equal(t, "/exports/"+job.ID+".thumbnail.jpg", done.ThumbnailPath)
	require.NotNil(t, done.Metadata)
	assert.True(t, done.Metadata.HasAudio)
	assert.Equal(t, 6400, done.Metadata.Bitrate)
	assert.Equal(t, 90, done.Metrics.QualityScore)
	assert.InDelta(t, 30.0, done.Metrics.AverageFPS, 0.001)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)

	msgs := logMessages(done)
	assert.Equal(t, "Export job started.", msgs[0])
	assert.Contains(t, msgs, "Phase encoding started.")
	assert.Equal(t, "Export job completed successfully.", msgs[len(msgs)-1])
}

func TestCreateExportJob_Paths(t *testing.T) {
	svc := newTestService(t, Config{OutputDir: "/data/out"}, nil, NewSimulatedEncoder(0), nil)

	named, err := svc.CreateExportJob(t.Context(), "p", "u", domain.ExportOptions{
		Format:         domain.FormatWebM,
		CustomFileName: "meu-video",
	})
	require.NoError(t, err)
	archive, err := svc.CreateExportJob(t.Context(), "p", "u", domain.ExportOptions{Format: domain.FormatZIP})
	require.NoError(t, err)
	noThumb, err := svc.CreateExportJob(t.Context(), "p", "u", domain.ExportOptions{
		Format:           domain.FormatMP4,
		IncludeThumbnail: domain.Bool(false),
	})
	require.NoError(t, err)

	j := waitForStatus(t, svc, named.ID, domain.ExportStatusCompleted)
	assert.Equal(t, "/data/out/meu-video.webm", j.OutputPath)
	assert.Equal(t, "/data/out/"+named.ID+".thumbnail.jpg", j.ThumbnailPath)

	j = waitForStatus(t, svc, archive.ID, domain.ExportStatusCompleted)
	assert.Equal(t, "/data/out/"+archive.ID+".zip", j.OutputPath)
	assert.Empty(t, j.ThumbnailPath)
	assert.False(t, j.Metadata.HasAudio)

	j = waitForStatus(t, svc, noThumb.ID, domain.ExportStatusCompleted)
	assert.Empty(t, j.ThumbnailPath)
}

func TestCreateExportJob_Invalid(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, Config{}, store, NewSimulatedEncoder(0), nil)

	tests := []struct {
		name      string
		projectID string
		userID    string
		opts      domain.ExportOptions
		code      errors.Code
		msg       string
	}{
		{"missing project", "", "u", mp4(), errors.CodeValidation, "Both projectId and userId are required to create an export job."},
		{"missing user", "p", "", mp4(), errors.CodeValidation, "Both projectId and userId are required to create an export job."},
		{"bad format", "p", "u", domain.ExportOptions{Format: "flv"}, errors.CodeUnsupportedFormat, "Unsupported export format: flv"},
		{"bad fps", "p", "u", domain.ExportOptions{Format: domain.FormatMP4, FPS: 500}, errors.CodeInvalidFrameRate, "Frames per second must be between 1 and 120."},
		{"file name escapes output dir", "p", "u", domain.ExportOptions{Format: domain.FormatMP4, CustomFileName: "../etc/cron.d/x"}, errors.CodeValidation, "Invalid custom file name: ../etc/cron.d/x"},
		{"file name with backslash", "p", "u", domain.ExportOptions{Format: domain.FormatMP4, CustomFileName: `a\b`}, errors.CodeValidation, `Invalid custom file name: a\b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := svc.CreateExportJob(t.Context(), tt.projectID, tt.userID, tt.opts)
			require.Error(t, err)
			assert.Nil(t, job)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	assert.Empty(t, svc.ListJobs(JobFilter{}))
	jobs, _ := store.ListExportJobs(t.Context())
	assert.Empty(t, jobs)
}

func TestCreateExportJob_StoreFailure(t *testing.T) {
	svc := newTestService(t, Config{}, &failingStore{}, NewSimulatedEncoder(0), nil)

	_, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInternal, errors.CodeOf(err))
	assert.Empty(t, svc.ListJobs(JobFilter{}))
}

func TestConcurrencyLimit(t *testing.T) {
	enc := newGateEncoder(true)
	n := events.New()
	svc := newTestService(t, Config{MaxConcurrent: 3}, nil, enc, n)

	var mu sync.Mutex
	peak := 0
	n.OnAny(func(events.Event) {
		m := svc.GetSystemMetrics()
		mu.Lock()
		peak = max(peak, m.Processing)
		mu.Unlock()
	})

	ids := make([]string, 0, 5)
	for range 5 {
		job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.Eventually(t, func() bool {
		return svc.GetSystemMetrics().Processing == 3
	}, 5*time.Second, 5*time.Millisecond)

	m := svc.GetSystemMetrics()
	assert.Equal(t, 5, m.TotalJobs)
	assert.Equal(t, 2, m.Pending)

	// FIFO: the first three claimed
	for _, jobID := range ids[:3] {
		j, err := svc.GetJob(jobID)
		require.NoError(t, err)
		assert.Equal(t, domain.ExportStatusProcessing, j.Status)
	}

	enc.release()
	for _, jobID := range ids {
		waitForStatus(t, svc, jobID, domain.ExportStatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 3)
	assert.Equal(t, 3, peak)
}

func TestCancelJob_Pending(t *testing.T) {
	enc := newGateEncoder(true)
	n := events.New()
	svc := newTestService(t, Config{MaxConcurrent: 1}, nil, enc, n)

	var cancelled []JobCancelledEvent
	var mu sync.Mutex
	n.On(EventJobCancelled, func(e events.Event) {
		mu.Lock()
		cancelled = append(cancelled, e.Payload.(JobCancelledEvent))
		mu.Unlock()
	})

	running, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)
	waitForStatus(t, svc, running.ID, domain.ExportStatusProcessing)

	queued, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)

	assert.True(t, svc.CancelJob(t.Context(), queued.ID))
	j, err := svc.GetJob(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCancelled, j.Status)
	assert.Equal(t, CancelReason, j.Error)
	assert.Equal(t, domain.PhaseFinalizing, j.CurrentPhase)
	assert.NotNil(t, j.CompletedAt)
	assert.Contains(t, logMessages(j), "Export job cancelled.")

	assert.False(t, svc.CancelJob(t.Context(), queued.ID), "already terminal")
	assert.False(t, svc.CancelJob(t.Context(), "export-missing"))

	enc.release()
	waitForStatus(t, svc, running.ID, domain.ExportStatusCompleted)

	j, err = svc.GetJob(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCancelled, j.Status)
	assert.Nil(t, j.StartedAt, "cancelled pending job never starts")
	assert.Equal(t, 0, enc.stepCount(queued.ID))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, cancelled, 1)
	assert.Equal(t, queued.ID, cancelled[0].JobID)
	assert.Equal(t, "u", cancelled[0].Owner())
}

func TestCancelJob_Processing(t *testing.T) {
	enc := newGateEncoder(true)
	store := newMemStore()
	svc := newTestService(t, Config{MaxConcurrent: 1}, store, enc, nil)

	job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return enc.stepCount(job.ID) == 1 }, 5*time.Second, 5*time.Millisecond)

	require.True(t, svc.CancelJob(t.Context(), job.ID))
	cancelledAt, err := svc.GetJob(job.ID)
	require.NoError(t, err)

	enc.release()

	require.Eventually(t, func() bool {
		j, err := svc.GetJob(job.ID)
		return err == nil && slices.Contains(logMessages(j), "Processing stopped during preprocessing.")
	}, 5*time.Second, 5*time.Millisecond)

	final, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCancelled, final.Status)
	assert.Equal(t, cancelledAt.Progress, final.Progress, "progress halts at cancellation")
	assert.LessOrEqual(t, final.Progress, domain.CancelledProgressCap)
	assert.Equal(t, 1, enc.stepCount(job.ID), "no step starts after cancellation")
	assert.Empty(t, final.OutputPath)

	require.Eventually(t, func() bool {
		stored := store.get(job.ID)
		return stored != nil && slices.Contains(logMessages(stored), "Processing stopped during preprocessing.")
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ExportStatusCancelled, store.get(job.ID).Status)
}

func TestCancelJob_DuringFinalizing(t *testing.T) {
	enc := newGateEncoder(true)
	enc.gatePhase = domain.PhaseFinalizing
	svc := newTestService(t, Config{MaxConcurrent: 1}, nil, enc, nil)

	job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := svc.GetJob(job.ID)
		return err == nil && j.CurrentPhase == domain.PhaseFinalizing && enc.stepCount(job.ID) == 26
	}, 5*time.Second, 5*time.Millisecond)

	require.True(t, svc.CancelJob(t.Context(), job.ID))
	enc.release()

	require.Eventually(t, func() bool {
		j, err := svc.GetJob(job.ID)
		return err == nil && slices.Contains(logMessages(j), "Job cancelled during finalization.")
	}, 5*time.Second, 5*time.Millisecond)

	j, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCancelled, j.Status)
	assert.Equal(t, 92, j.Progress)
	assert.Empty(t, j.OutputPath)
	assert.Nil(t, j.Metadata)
}

func TestProgress_MonotonicAndCapped(t *testing.T) {
	n := events.New()
	svc := newTestService(t, Config{}, nil, NewSimulatedEncoder(0), n)

	var mu sync.Mutex
	var progress []int
	var phases []domain.ExportPhase
	n.On(EventJobProgress, func(e events.Event) {
		mu.Lock()
		progress = append(progress, e.Payload.(JobProgressEvent).Progress)
		mu.Unlock()
	})
	n.On(EventJobPhase, func(e events.Event) {
		mu.Lock()
		phases = append(phases, e.Payload.(JobPhaseEvent).Phase)
		mu.Unlock()
	})

	job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)
	waitForStatus(t, svc, job.ID, domain.ExportStatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.Phases, phases)
	require.Len(t, progress, len(Pipeline)*StepsPerPhase)
	assert.True(t, slices.IsSorted(progress))
	assert.Equal(t, 2, progress[0])
	assert.Equal(t, 10, progress[StepsPerPhase-1])
	assert.Equal(t, 99, progress[len(progress)-1], "100 is reserved for completion")
}

func TestPhaseDeadline(t *testing.T) {
	enc := newGateEncoder(false)
	enc.hangPhase = domain.PhaseEncoding
	n := events.New()

	var failed []JobFailedEvent
	var mu sync.Mutex
	n.On(EventJobFailed, func(e events.Event) {
		mu.Lock()
		failed = append(failed, e.Payload.(JobFailedEvent))
		mu.Unlock()
	})

	svc := newTestService(t, Config{
		PhaseDeadlines: map[domain.ExportPhase]time.Duration{domain.PhaseEncoding: 20 * time.Millisecond},
	}, nil, enc, n)

	job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)

	j := waitForStatus(t, svc, job.ID, domain.ExportStatusFailed)
	assert.Equal(t, "Phase encoding exceeded its 20ms deadline.", j.Error)
	assert.Equal(t, domain.PhaseEncoding, j.CurrentPhase)
	assert.Contains(t, logMessages(j), "Export job failed: Phase encoding exceeded its 20ms deadline.")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failed, 1)
	assert.Equal(t, j.Error, failed[0].Error)
}

func TestEncoderFailure(t *testing.T) {
	enc := newGateEncoder(false)
	enc.failPhase = domain.PhaseOptimizing
	enc.failErr = stderrors.New("ffmpeg exploded")
	svc := newTestService(t, Config{}, nil, enc, nil)

	job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)

	j := waitForStatus(t, svc, job.ID, domain.ExportStatusFailed)
	assert.Equal(t, "ffmpeg exploded", j.Error)
	assert.Equal(t, 64, j.Progress)
	assert.NotNil(t, j.CompletedAt)
	assert.Contains(t, logMessages(j), "Export job failed: ffmpeg exploded")
	assert.False(t, svc.CancelJob(t.Context(), job.ID))
}

func TestQuickExport(t *testing.T) {
	svc := newTestService(t, Config{}, nil, NewSimulatedEncoder(0), nil)

	job, err := svc.QuickExport(t.Context(), "p", "u", domain.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformTikTok, job.Platform)
	assert.Equal(t, domain.PlatformTikTok, job.Options.TargetPlatform)
	assert.Equal(t, "TikTok Vertical", job.Options.PresetName)
	assert.Equal(t, "1080x1920", job.Options.Resolution)
	assert.Equal(t, 4000, job.Options.TargetBitrate)
	assert.Equal(t, 4000, job.Options.Bitrate)
	assert.Equal(t, domain.QualityHigh, job.Options.Quality)
	assert.True(t, domain.BoolValue(job.Options.IncludeThumbnail))

	_, err = svc.QuickExport(t.Context(), "p", "u", "myspace")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnsupportedPlatform, errors.CodeOf(err))
	assert.Equal(t, "Unsupported platform: myspace", err.Error())

	preset, err := svc.Preset(domain.PlatformWeb)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatWebM, preset.Format)
	assert.Len(t, svc.Presets(), len(platformOrder))
}

func TestBatchExport(t *testing.T) {
	svc := newTestService(t, Config{}, nil, NewSimulatedEncoder(0), nil)

	jobs, err := svc.BatchExport(t.Context(), []string{"a", "b", "c"}, "u", mp4())
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "a", jobs[0].ProjectID)
	assert.Equal(t, "c", jobs[2].ProjectID)
	assert.NotEqual(t, jobs[0].ID, jobs[1].ID)

	for _, j := range jobs {
		waitForStatus(t, svc, j.ID, domain.ExportStatusCompleted)
	}

	_, err = svc.BatchExport(t.Context(), nil, "u", mp4())
	require.Error(t, err)
	assert.Equal(t, "At least one projectId must be provided for batch export.", err.Error())

	_, err = svc.BatchExport(t.Context(), []string{"d", "e"}, "u", domain.ExportOptions{Format: "flv"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnsupportedFormat, errors.CodeOf(err))
	assert.Empty(t, svc.GetJobsByProject("d"), "no partial batch")
}

func TestRetryJob(t *testing.T) {
	enc := newGateEncoder(false)
	enc.failPhase = domain.PhaseInitializing
	enc.failErr = stderrors.New("boom")
	svc := newTestService(t, Config{}, nil, enc, nil)

	opts := domain.ExportOptions{Format: domain.FormatMOV, Resolution: "1280x720", CustomFileName: "take"}
	job, err := svc.CreateExportJob(t.Context(), "p", "u", opts)
	require.NoError(t, err)
	waitForStatus(t, svc, job.ID, domain.ExportStatusFailed)

	retry, err := svc.RetryJob(t.Context(), job.ID)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, retry.ID)
	assert.Equal(t, 1, retry.Metrics.Retries)
	assert.Equal(t, job.Options, retry.Options)
	assert.Equal(t, "p", retry.ProjectID)

	again, err := svc.RetryJob(t.Context(), retry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Metrics.Retries)

	_, err = svc.RetryJob(t.Context(), "export-missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestQueries(t *testing.T) {
	enc := newGateEncoder(true)
	svc := newTestService(t, Config{MaxConcurrent: 1}, nil, enc, nil)

	a, err := svc.CreateExportJob(t.Context(), "proj-a", "alice", mp4())
	require.NoError(t, err)
	b, err := svc.CreateExportJob(t.Context(), "proj-b", "alice", mp4())
	require.NoError(t, err)
	c, err := svc.CreateExportJob(t.Context(), "proj-a", "bob", mp4())
	require.NoError(t, err)
	require.True(t, svc.CancelJob(t.Context(), c.ID))

	byProject := svc.GetJobsByProject("proj-a")
	require.Len(t, byProject, 2)
	assert.Equal(t, a.ID, byProject[0].ID)
	assert.Equal(t, c.ID, byProject[1].ID)

	byUser := svc.GetJobsByUser("alice")
	require.Len(t, byUser, 2)
	assert.Equal(t, b.ID, byUser[1].ID)

	active := svc.ListActiveJobs()
	require.Len(t, active, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{active[0].ID, active[1].ID})

	cancelled := svc.ListJobs(JobFilter{Status: domain.ExportStatusCancelled})
	require.Len(t, cancelled, 1)
	assert.Equal(t, c.ID, cancelled[0].ID)

	_, err = svc.GetJob("export-missing")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// Snapshots are detached from service state.
	snap, err := svc.GetJob(a.ID)
	require.NoError(t, err)
	snap.Status = domain.ExportStatusFailed
	snap.Logs = append(snap.Logs, domain.JobLogEntry{Message: "tampered"})
	fresh, err := svc.GetJob(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, domain.ExportStatusFailed, fresh.Status)
	assert.NotContains(t, logMessages(fresh), "tampered")

	enc.release()
}

func TestGetSystemMetrics(t *testing.T) {
	svc := newTestService(t, Config{}, nil, NewSimulatedEncoder(0), nil)

	m := svc.GetSystemMetrics()
	assert.Equal(t, 0, m.TotalJobs)
	assert.Nil(t, m.AverageDuration)

	job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)
	waitForStatus(t, svc, job.ID, domain.ExportStatusCompleted)

	m = svc.GetSystemMetrics()
	assert.Equal(t, 1, m.TotalJobs)
	assert.Equal(t, 1, m.Completed)
	require.NotNil(t, m.AverageDuration)
	assert.GreaterOrEqual(t, *m.AverageDuration, 0.0)
}

func TestWriteThrough(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, Config{}, store, NewSimulatedEncoder(0), nil)

	job, err := svc.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)
	waitForStatus(t, svc, job.ID, domain.ExportStatusCompleted)

	require.Eventually(t, func() bool {
		s := store.get(job.ID)
		return s != nil && s.Status == domain.ExportStatusCompleted
	}, 5*time.Second, 5*time.Millisecond)

	history := store.statuses(job.ID)
	assert.Equal(t, domain.ExportStatusPending, history[0])
	assert.Contains(t, history, domain.ExportStatusProcessing)
	assert.Equal(t, domain.ExportStatusCompleted, history[len(history)-1])
	// created, started, six phases, completed
	assert.Len(t, history, 1+1+len(Pipeline)+1)

	stored := store.get(job.ID)
	assert.Equal(t, 100, stored.Progress)
	assert.NotEmpty(t, stored.OutputPath)
}

func TestStopAndRecover(t *testing.T) {
	store := newMemStore()
	enc := newGateEncoder(true)

	first := NewService(Config{MaxConcurrent: 1}, store, enc, nil, nil, nil)
	require.NoError(t, first.Start(t.Context()))

	running, err := first.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)
	queued, err := first.CreateExportJob(t.Context(), "p", "u", mp4())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return enc.stepCount(running.ID) == 1 }, 5*time.Second, 5*time.Millisecond)

	first.Stop()

	interrupted, err := first.GetJob(running.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusProcessing, interrupted.Status, "shutdown leaves the job for recovery")
	assert.Equal(t, domain.ExportStatusProcessing, store.get(running.ID).Status)
	stoppedProgress := interrupted.Progress

	second := newTestService(t, Config{}, store, NewSimulatedEncoder(0), nil)

	recovered := waitForStatus(t, second, running.ID, domain.ExportStatusCompleted)
	assert.Contains(t, logMessages(recovered), "Export job recovered after restart.")
	assert.GreaterOrEqual(t, recovered.Progress, stoppedProgress)
	waitForStatus(t, second, queued.ID, domain.ExportStatusCompleted)
}

func TestRecover_TerminalJobsUntouched(t *testing.T) {
	done := domain.NewExportJob("export-done", "p", "u", Normalize(mp4()))
	done.MarkProcessing()
	done.MarkCompleted()
	done.OutputPath = "/exports/export-done.mp4"
	store := newMemStore(done)

	svc := newTestService(t, Config{}, store, NewSimulatedEncoder(0), nil)

	j, err := svc.GetJob("export-done")
	require.NoError(t, err)
	assert.Equal(t, domain.ExportStatusCompleted, j.Status)
	assert.Equal(t, "/exports/export-done.mp4", j.OutputPath)
	assert.Empty(t, store.statuses("export-done"), "terminal jobs are not rewritten")
	assert.Equal(t, 1, svc.GetSystemMetrics().Completed)
}

func TestSimulatedEncoder(t *testing.T) {
	enc := NewSimulatedEncoder(0.01)
	job := domain.NewExportJob("export-x", "p", "u", Normalize(mp4()))

	start := time.Now()
	require.NoError(t, enc.Step(t.Context(), job, Pipeline[2], 1))
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	slow := NewSimulatedEncoder(100)
	assert.ErrorIs(t, slow.Step(ctx, job, Pipeline[2], 1), context.Canceled)

	assert.Equal(t, 140*time.Millisecond, StepDelay(Pipeline[2]))
	assert.Equal(t, minStepDelay, StepDelay(PhaseSpec{Duration: 100 * time.Millisecond}))

	meta, err := enc.Finalize(t.Context(), job)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, meta.Duration, 45.0)
	assert.LessOrEqual(t, meta.Duration, 180.0)
	assert.Equal(t, "bt709", meta.ColorProfile)
	assert.Positive(t, meta.FileSize)
}
