// Package store persists export jobs and project documents in Badger.
//
// Records are JSON values under a type prefix ("export:", "project:").
// Secondary indexes live beside them as "<prefix>idx:<name>:<value>:<id>"
// keys whose value is the primary id, and are rewritten in the same
// transaction as the record they point at.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/estudio-ia/studio-server/internal/domain"
)

// Backend is the persistence surface shared by the Badger and SQLite stores.
type Backend interface {
	SaveExportJob(ctx context.Context, job *domain.ExportJob) error
	GetExportJob(ctx context.Context, id string) (*domain.ExportJob, error)
	ListExportJobs(ctx context.Context) ([]*domain.ExportJob, error)
	DeleteExportJob(ctx context.Context, id string) error

	GetProjectDocument(ctx context.Context, projectID string) (*domain.ProjectDocument, error)
	UpdateProjectDocument(ctx context.Context, projectID string, fn func(*domain.ProjectDocument) error) (*domain.ProjectDocument, error)
	DeleteProjectDocument(ctx context.Context, projectID string) error

	Close() error
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ Backend = (*Store)(nil)

// New opens the database at path. An empty path opens an in-memory database.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Job transitions must survive a crash
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("Badger database opened successfully", "path", path)

	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("Closing database connection")
	return s.db.Close()
}

// Shutdown implements do.Shutdowner.
func (s *Store) Shutdown() error {
	return s.Close()
}

// get retrieves a value by key.
func (s *Store) get(key []byte, dest any) error {
	return s.db.View(func(txn *badger.Txn) error {
		return getTxn(txn, key, dest)
	})
}

func getTxn(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

// delete removes a key from the database.
func (s *Store) delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// exists checks if a key exists.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanIndex returns the ids stored under an index prefix.
func scanIndex(txn *badger.Txn, prefix []byte) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(func(val []byte) error {
			ids = append(ids, string(val))
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
