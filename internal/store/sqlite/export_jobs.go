package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/store"
)

// exportJobColumns is the ordered list of columns selected in export job queries.
// Must match the scan order in scanExportJob.
const exportJobColumns = `id, project_id, user_id,
	status, progress, current_phase, platform,
	output_path, thumbnail_path, error,
	options, metadata, metrics, logs,
	created_at, started_at, completed_at`

// scanExportJob scans a sql.Row (or sql.Rows via its Scan method) into a domain.ExportJob.
func scanExportJob(scanner interface{ Scan(dest ...any) error }) (*domain.ExportJob, error) {
	var j domain.ExportJob

	var (
		platform      sql.NullString
		outputPath    sql.NullString
		thumbnailPath sql.NullString
		errMsg        sql.NullString
		options       string
		metadata      sql.NullString
		metrics       string
		logs          string
		createdAt     string
		startedAt     sql.NullString
		completedAt   sql.NullString
	)

	err := scanner.Scan(
		&j.ID,
		&j.ProjectID,
		&j.UserID,
		&j.Status,
		&j.Progress,
		&j.CurrentPhase,
		&platform,
		&outputPath,
		&thumbnailPath,
		&errMsg,
		&options,
		&metadata,
		&metrics,
		&logs,
		&createdAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Platform = domain.Platform(platform.String)
	j.OutputPath = outputPath.String
	j.ThumbnailPath = thumbnailPath.String
	j.Error = errMsg.String

	if err := json.Unmarshal([]byte(options), &j.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if metadata.Valid {
		j.Metadata = &domain.ExportMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), j.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(metrics), &j.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(logs), &j.Logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	if j.Logs == nil {
		j.Logs = []domain.JobLogEntry{}
	}

	j.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	j.StartedAt, err = parseNullableTime(startedAt)
	if err != nil {
		return nil, err
	}
	j.CompletedAt, err = parseNullableTime(completedAt)
	if err != nil {
		return nil, err
	}

	return &j, nil
}

// SaveExportJob inserts a job or replaces every column of an existing one.
func (s *Store) SaveExportJob(ctx context.Context, job *domain.ExportJob) error {
	if job == nil || job.ID == "" {
		return store.ErrInvalidInput.WithMessage("export job id is required")
	}

	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	var metadata sql.NullString
	if job.Metadata != nil {
		raw, err := json.Marshal(job.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}
	metrics, err := json.Marshal(job.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	logs := job.Logs
	if logs == nil {
		logs = []domain.JobLogEntry{}
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO export_jobs (`+exportJobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			user_id = excluded.user_id,
			status = excluded.status,
			progress = excluded.progress,
			current_phase = excluded.current_phase,
			platform = excluded.platform,
			output_path = excluded.output_path,
			thumbnail_path = excluded.thumbnail_path,
			error = excluded.error,
			options = excluded.options,
			metadata = excluded.metadata,
			metrics = excluded.metrics,
			logs = excluded.logs,
			created_at = excluded.created_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		job.ID,
		job.ProjectID,
		job.UserID,
		string(job.Status),
		job.Progress,
		string(job.CurrentPhase),
		nullString(string(job.Platform)),
		nullString(job.OutputPath),
		nullString(job.ThumbnailPath),
		nullString(job.Error),
		string(options),
		metadata,
		string(metrics),
		string(logsJSON),
		formatTime(job.CreatedAt),
		nullTimeString(job.StartedAt),
		nullTimeString(job.CompletedAt),
	)
	return err
}

// GetExportJob retrieves an export job by ID.
// Returns store.ErrNotFound if the job does not exist.
func (s *Store) GetExportJob(ctx context.Context, id string) (*domain.ExportJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+exportJobColumns+` FROM export_jobs WHERE id = ?`, id)

	job, err := scanExportJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("export job not found")
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// DeleteExportJob deletes a job by ID. Deleting a missing job is a no-op.
func (s *Store) DeleteExportJob(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM export_jobs WHERE id = ?`, id)
	return err
}

// ListExportJobs returns every stored job, oldest first.
func (s *Store) ListExportJobs(ctx context.Context) ([]*domain.ExportJob, error) {
	return s.queryJobs(ctx, `SELECT `+exportJobColumns+` FROM export_jobs ORDER BY created_at, id`)
}

// ListExportJobsByProject returns a project's jobs, oldest first.
func (s *Store) ListExportJobsByProject(ctx context.Context, projectID string) ([]*domain.ExportJob, error) {
	return s.queryJobs(ctx,
		`SELECT `+exportJobColumns+` FROM export_jobs WHERE project_id = ? ORDER BY created_at, id`, projectID)
}

// ListExportJobsByUser returns a user's jobs, oldest first.
func (s *Store) ListExportJobsByUser(ctx context.Context, userID string) ([]*domain.ExportJob, error) {
	return s.queryJobs(ctx,
		`SELECT `+exportJobColumns+` FROM export_jobs WHERE user_id = ? ORDER BY created_at, id`, userID)
}

// ListExportJobsByStatus returns jobs in the given status, oldest first.
func (s *Store) ListExportJobsByStatus(ctx context.Context, status domain.ExportStatus) ([]*domain.ExportJob, error) {
	return s.queryJobs(ctx,
		`SELECT `+exportJobColumns+` FROM export_jobs WHERE status = ? ORDER BY created_at, id`, string(status))
}

// CountExportJobs returns the number of stored jobs per status.
func (s *Store) CountExportJobs(ctx context.Context) (map[domain.ExportStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM export_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ExportStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.ExportStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.ExportJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.ExportJob
	for rows.Next() {
		job, err := scanExportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
