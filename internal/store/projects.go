package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/estudio-ia/studio-server/internal/domain"
)

const projectPrefix = "project:"

// GetProjectDocument retrieves the saved editing state of a project.
func (s *Store) GetProjectDocument(ctx context.Context, projectID string) (*domain.ProjectDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildKey(projectPrefix, projectID)
	defer releaseKey(key)

	var doc domain.ProjectDocument
	if err := s.get(key, &doc); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound.WithMessage("project document not found")
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &doc, nil
}

// HasProjectDocument reports whether a project has saved state.
func (s *Store) HasProjectDocument(ctx context.Context, projectID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := buildKey(projectPrefix, projectID)
	defer releaseKey(key)
	return s.exists(key)
}

// UpdateProjectDocument applies fn to the project's document inside a single
// transaction, creating the document when it does not exist yet. UpdatedAt is
// set after fn returns. An error from fn aborts the update.
func (s *Store) UpdateProjectDocument(ctx context.Context, projectID string, fn func(*domain.ProjectDocument) error) (*domain.ProjectDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if projectID == "" {
		return nil, ErrInvalidInput.WithMessage("project id is required")
	}

	var doc domain.ProjectDocument
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(projectPrefix + projectID)

		err := getTxn(txn, key, &doc)
		if errors.Is(err, ErrNotFound) {
			doc = domain.ProjectDocument{ProjectID: projectID}
		} else if err != nil {
			return fmt.Errorf("get project: %w", err)
		}

		if err := fn(&doc); err != nil {
			return err
		}
		doc.ProjectID = projectID
		doc.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&doc)
		if err != nil {
			return fmt.Errorf("marshal project: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteProjectDocument removes a project's saved state. Deleting a missing document is a no-op.
func (s *Store) DeleteProjectDocument(ctx context.Context, projectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete([]byte(projectPrefix + projectID))
}
