package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/estudio-ia/studio-server/internal/domain"
)

const exportPrefix = "export:"

// Export job indexes.
const (
	indexProject = "project"
	indexUser    = "user"
	indexStatus  = "status"
)

// SaveExportJob inserts or replaces a job and rewrites its indexes.
func (s *Store) SaveExportJob(ctx context.Context, job *domain.ExportJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job == nil || job.ID == "" {
		return ErrInvalidInput.WithMessage("export job id is required")
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal export job: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(exportPrefix + job.ID)

		var old domain.ExportJob
		err := getTxn(txn, key, &old)
		switch {
		case err == nil:
			if err := deleteExportIndexes(txn, &old); err != nil {
				return err
			}
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("get existing: %w", err)
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set job: %w", err)
		}
		return setExportIndexes(txn, job)
	})
}

// GetExportJob retrieves a job by ID.
func (s *Store) GetExportJob(ctx context.Context, id string) (*domain.ExportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildKey(exportPrefix, id)
	defer releaseKey(key)

	var job domain.ExportJob
	if err := s.get(key, &job); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound.WithMessage("export job not found")
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// DeleteExportJob deletes a job and its indexes. Deleting a missing job is a no-op.
func (s *Store) DeleteExportJob(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(exportPrefix + id)

		var job domain.ExportJob
		err := getTxn(txn, key, &job)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}

		if err := deleteExportIndexes(txn, &job); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ListExportJobs returns every stored job, oldest first.
func (s *Store) ListExportJobs(ctx context.Context) ([]*domain.ExportJob, error) {
	var jobs []*domain.ExportJob
	for job, err := range s.AllExportJobs(ctx) {
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	sortByCreation(jobs)
	return jobs, nil
}

// ListExportJobsByProject returns a project's jobs, oldest first.
func (s *Store) ListExportJobsByProject(ctx context.Context, projectID string) ([]*domain.ExportJob, error) {
	return s.listByIndex(ctx, indexProject, projectID)
}

// ListExportJobsByUser returns a user's jobs, oldest first.
func (s *Store) ListExportJobsByUser(ctx context.Context, userID string) ([]*domain.ExportJob, error) {
	return s.listByIndex(ctx, indexUser, userID)
}

// ListExportJobsByStatus returns jobs in the given status, oldest first.
func (s *Store) ListExportJobsByStatus(ctx context.Context, status domain.ExportStatus) ([]*domain.ExportJob, error) {
	return s.listByIndex(ctx, indexStatus, string(status))
}

func (s *Store) listByIndex(ctx context.Context, name, value string) ([]*domain.ExportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := buildIndexKey(exportPrefix, name, value, "")
	defer releaseKey(prefix)

	var jobs []*domain.ExportJob
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := scanIndex(txn, prefix)
		if err != nil {
			return err
		}
		for _, id := range ids {
			var job domain.ExportJob
			err := getTxn(txn, []byte(exportPrefix+id), &job)
			if errors.Is(err, ErrNotFound) {
				// Dangling index entry
				continue
			}
			if err != nil {
				return err
			}
			jobs = append(jobs, &job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortByCreation(jobs)
	return jobs, nil
}

// AllExportJobs returns an iterator over every stored job in key order.
func (s *Store) AllExportJobs(ctx context.Context) iter.Seq2[*domain.ExportJob, error] {
	return func(yield func(*domain.ExportJob, error) bool) {
		_ = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(exportPrefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek([]byte(exportPrefix)); it.ValidForPrefix([]byte(exportPrefix)); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				if strings.HasPrefix(string(it.Item().Key()[len(exportPrefix):]), "idx:") {
					continue
				}

				var job domain.ExportJob
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &job)
				})
				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&job, nil) {
					return nil
				}
			}
			return nil
		})
	}
}

// CountExportJobs returns the number of stored jobs per status.
func (s *Store) CountExportJobs(ctx context.Context) (map[domain.ExportStatus]int, error) {
	counts := make(map[domain.ExportStatus]int)
	for job, err := range s.AllExportJobs(ctx) {
		if err != nil {
			return nil, err
		}
		counts[job.Status]++
	}
	return counts, nil
}

func exportIndexEntries(job *domain.ExportJob) [][2]string {
	return [][2]string{
		{indexProject, job.ProjectID},
		{indexUser, job.UserID},
		{indexStatus, string(job.Status)},
	}
}

func setExportIndexes(txn *badger.Txn, job *domain.ExportJob) error {
	for _, e := range exportIndexEntries(job) {
		// Badger keeps the key until commit, so index keys are not pooled.
		key := []byte(exportPrefix + "idx:" + e[0] + ":" + e[1] + ":" + job.ID)
		if err := txn.Set(key, []byte(job.ID)); err != nil {
			return fmt.Errorf("set %s index: %w", e[0], err)
		}
	}
	return nil
}

func deleteExportIndexes(txn *badger.Txn, job *domain.ExportJob) error {
	for _, e := range exportIndexEntries(job) {
		key := []byte(exportPrefix + "idx:" + e[0] + ":" + e[1] + ":" + job.ID)
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("delete %s index: %w", e[0], err)
		}
	}
	return nil
}

func sortByCreation(jobs []*domain.ExportJob) {
	slices.SortStableFunc(jobs, func(a, b *domain.ExportJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
