package export

import "github.com/estudio-ia/studio-server/internal/domain"

// Event names emitted by the Service.
const (
	EventJobQueued    = "export-job-queued"
	EventJobStarted   = "export-job-started"
	EventJobPhase     = "export-job-phase"
	EventJobProgress  = "export-job-progress"
	EventJobCompleted = "export-job-completed"
	EventJobFailed    = "export-job-failed"
	EventJobCancelled = "export-job-cancelled"
)

// EventNames lists every event the Service emits.
var EventNames = []string{
	EventJobQueued,
	EventJobStarted,
	EventJobPhase,
	EventJobProgress,
	EventJobCompleted,
	EventJobFailed,
	EventJobCancelled,
}

// Owned is implemented by payloads that belong to a user. The owner is not
// part of the serialized payload.
type Owned interface {
	Owner() string
}

type owner struct {
	userID string
}

func (o owner) Owner() string { return o.userID }

// JobQueuedEvent is the export-job-queued payload.
type JobQueuedEvent struct {
	JobID     string `json:"jobId"`
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

// Owner implements Owned.
func (e JobQueuedEvent) Owner() string { return e.UserID }

// JobStartedEvent is the export-job-started payload.
type JobStartedEvent struct {
	owner
	JobID string `json:"jobId"`
}

// JobPhaseEvent is the export-job-phase payload.
type JobPhaseEvent struct {
	owner
	JobID string             `json:"jobId"`
	Phase domain.ExportPhase `json:"phase"`
}

// JobProgressEvent is the export-job-progress payload.
type JobProgressEvent struct {
	owner
	JobID    string             `json:"jobId"`
	Phase    domain.ExportPhase `json:"phase"`
	Progress int                `json:"progress"`
}

// JobCompletedEvent is the export-job-completed payload.
type JobCompletedEvent struct {
	owner
	JobID         string `json:"jobId"`
	OutputPath    string `json:"outputPath"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
}

// JobFailedEvent is the export-job-failed payload.
type JobFailedEvent struct {
	owner
	JobID string `json:"jobId"`
	Error string `json:"error"`
}

// JobCancelledEvent is the export-job-cancelled payload.
type JobCancelledEvent struct {
	owner
	JobID    string `json:"jobId"`
	Progress int    `json:"progress"`
}
