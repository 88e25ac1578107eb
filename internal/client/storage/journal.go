package storage

import (
	"context"

	"github.com/iudanet/geojournal/internal/models"
)

//go:generate moq -out journalstorage_mock.go . JournalStorage

// SchemaVersion is the current structural version of the record container.
// Version 1: records keyed by auto-increment id plus the timestamp index.
// Version 2: adds the location index.
const SchemaVersion = 2

// JournalStorage defines interface for the local record container.
// Each method runs in its own short-lived transaction.
type JournalStorage interface {
	// CreateRecord assigns a new unique identifier, stores the record and returns the identifier.
	// The record's own ID field is ignored.
	CreateRecord(ctx context.Context, record *models.JournalRecord) (int64, error)

	// GetRecord retrieves a record by ID
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, id int64) (*models.JournalRecord, error)

	// ListRecords returns every record ordered by timestamp descending
	ListRecords(ctx context.Context) ([]*models.JournalRecord, error)

	// ListRecordsByLocation returns records whose location name equals name,
	// ordered by timestamp descending
	ListRecordsByLocation(ctx context.Context, name string) ([]*models.JournalRecord, error)

	// UpdateRecord replaces the full record stored under record.ID
	// Returns ErrRecordNotFound if record doesn't exist
	UpdateRecord(ctx context.Context, record *models.JournalRecord) error

	// DeleteRecord removes the record. Deleting a missing ID is not an error.
	DeleteRecord(ctx context.Context, id int64) error

	// ClearRecords removes every record. Identifiers are not reused afterwards.
	ClearRecords(ctx context.Context) error

	// SchemaVersion returns the structural version the container was brought up to
	SchemaVersion(ctx context.Context) (int, error)

	// Close releases the underlying database handle
	Close() error
}
