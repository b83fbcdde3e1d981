package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/store"
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProjectDocument(ctx context.Context, q queryer, projectID string) (*domain.ProjectDocument, error) {
	var (
		timeline  sql.NullString
		mixer     sql.NullString
		updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT timeline, mixer, updated_at FROM project_documents WHERE project_id = ?`, projectID).
		Scan(&timeline, &mixer, &updatedAt)
	if err != nil {
		return nil, err
	}

	doc := &domain.ProjectDocument{ProjectID: projectID}
	if timeline.Valid {
		doc.Timeline = &domain.Timeline{}
		if err := json.Unmarshal([]byte(timeline.String), doc.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline: %w", err)
		}
	}
	if mixer.Valid {
		doc.Mixer = &domain.MixerConfig{}
		if err := json.Unmarshal([]byte(mixer.String), doc.Mixer); err != nil {
			return nil, fmt.Errorf("decode mixer: %w", err)
		}
	}
	doc.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetProjectDocument retrieves the saved editing state of a project.
// Returns store.ErrNotFound if nothing was saved.
func (s *Store) GetProjectDocument(ctx context.Context, projectID string) (*domain.ProjectDocument, error) {
	doc, err := getProjectDocument(ctx, s.db, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("project document not found")
	}
	return doc, err
}

// UpdateProjectDocument applies fn to the project's document inside a
// transaction, creating it when missing. An error from fn rolls back.
func (s *Store) UpdateProjectDocument(ctx context.Context, projectID string, fn func(*domain.ProjectDocument) error) (*domain.ProjectDocument, error) {
	if projectID == "" {
		return nil, store.ErrInvalidInput.WithMessage("project id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	doc, err := getProjectDocument(ctx, tx, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		doc = &domain.ProjectDocument{ProjectID: projectID}
	} else if err != nil {
		return nil, err
	}

	if err := fn(doc); err != nil {
		return nil, err
	}
	doc.ProjectID = projectID
	doc.UpdatedAt = time.Now().UTC()

	var timeline, mixer sql.NullString
	if doc.Timeline != nil {
		raw, err := json.Marshal(doc.Timeline)
		if err != nil {
			return nil, fmt.Errorf("encode timeline: %w", err)
		}
		timeline = sql.NullString{String: string(raw), Valid: true}
	}
	if doc.Mixer != nil {
		raw, err := json.Marshal(doc.Mixer)
		if err != nil {
			return nil, fmt.Errorf("encode mixer: %w", err)
		}
		mixer = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO project_documents (project_id, timeline, mixer, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			timeline = excluded.timeline,
			mixer = excluded.mixer,
			updated_at = excluded.updated_at`,
		projectID, timeline, mixer, formatTime(doc.UpdatedAt))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return doc, nil
}

// DeleteProjectDocument removes a project's saved state. Deleting a missing document is a no-op.
func (s *Store) DeleteProjectDocument(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM project_documents WHERE project_id = ?`, projectID)
	return err
}
