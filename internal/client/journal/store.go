// Package journal implements the local record store: durable CRUD over journal
// records with a lazily opened, process-wide connection handle.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/models"
)

// Opener opens (or creates) the record container
type Opener func(ctx context.Context) (storage.JournalStorage, error)

// Store is the record store. The underlying handle is opened on first use and
// cached until Close; concurrent first callers share a single open.
type Store struct {
	handle storage.JournalStorage
	open   Opener
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
	mu     sync.RWMutex
}

// NewStore creates a record store that opens its container with open
func NewStore(open Opener, logger *slog.Logger) *Store {
	return &Store{
		open:   open,
		logger: logger,
		now:    time.Now,
	}
}

// Initialize opens the container if it is not open yet.
// Returns an error wrapping storage.ErrStoreUnavailable if the container cannot be opened.
func (s *Store) Initialize(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

// conn возвращает открытый handle, открывая контейнер при первом обращении
func (s *Store) conn(ctx context.Context) (storage.JournalStorage, error) {
	s.mu.RLock()
	handle := s.handle
	s.mu.RUnlock()
	if handle != nil {
		return handle, nil
	}

	v, err, _ := s.group.Do("open", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.handle != nil {
			return s.handle, nil
		}

		handle, err := s.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrStoreUnavailable, err)
		}

		s.handle = handle
		s.logger.Debug("record store opened")
		return handle, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(storage.JournalStorage), nil
}

// Create assigns a new identifier to the record, stores it and returns the identifier.
// The record is stored as given; only the identifier is assigned.
func (s *Store) Create(ctx context.Context, record *models.JournalRecord) (int64, error) {
	if record == nil {
		return 0, fmt.Errorf("%w: record is nil", storage.ErrWrite)
	}

	handle, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	id, err := handle.CreateRecord(ctx, record.Clone())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", storage.ErrWrite, err)
	}

	return id, nil
}

// ReadAll returns every record, newest first. An empty store yields an empty slice.
func (s *Store) ReadAll(ctx context.Context) ([]*models.JournalRecord, error) {
	handle, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	records, err := handle.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// ReadByLocation returns records tagged with the given location name, newest first
func (s *Store) ReadByLocation(ctx context.Context, name string) ([]*models.JournalRecord, error) {
	handle, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	records, err := handle.ListRecordsByLocation(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read records by location: %w", err)
	}
	return records, nil
}

// ReadOne returns the record with the given id. Absence is reported by ok == false,
// never by an error.
func (s *Store) ReadOne(ctx context.Context, id int64) (record *models.JournalRecord, ok bool, err error) {
	handle, err := s.conn(ctx)
	if err != nil {
		return nil, false, err
	}

	record, err = handle.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read record: %w", err)
	}
	return record, true, nil
}

// Update replaces the full record stored under record.ID. It is a replace, not a
// patch: callers fetch the record first and change only the fields they edit.
// Fails with storage.ErrWrite if the identifier does not exist.
func (s *Store) Update(ctx context.Context, record *models.JournalRecord) error {
	if record == nil || record.ID <= 0 {
		return fmt.Errorf("%w: record id is required", storage.ErrWrite)
	}

	handle, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := handle.UpdateRecord(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrWrite, err)
	}
	return nil
}

// Delete removes the record. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, id int64) error {
	handle, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := handle.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrWrite, err)
	}
	return nil
}

// ClearAll irreversibly deletes every record
func (s *Store) ClearAll(ctx context.Context) error {
	handle, err := s.conn(ctx)
	if err != nil {
		return err
	}

	if err := handle.ClearRecords(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrWrite, err)
	}

	s.logger.Info("journal cleared")
	return nil
}

// SchemaVersion reports the structural version of the open container
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	handle, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	return handle.SchemaVersion(ctx)
}

// Close closes the handle if it was opened. A later operation reopens it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}
