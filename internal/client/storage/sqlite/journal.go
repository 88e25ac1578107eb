package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/models"
)

const selectColumns = `
	SELECT id, photo, has_location, latitude, longitude,
	       location_name, accuracy, timestamp, notes
	FROM journal_entries
`

// CreateRecord inserts a record; AUTOINCREMENT never reuses ids, even after a clear
func (s *Storage) CreateRecord(ctx context.Context, record *models.JournalRecord) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	query := `
		INSERT INTO journal_entries (
			photo, has_location, latitude, longitude,
			location_name, accuracy, timestamp, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := locationArgs(record.Location)
	res, err := s.db.ExecContext(ctx, query,
		record.Photo,
		args.has,
		args.latitude,
		args.longitude,
		args.name,
		args.accuracy,
		record.Timestamp,
		record.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get record id: %w", err)
	}

	return id, nil
}

// GetRecord retrieves a single record by ID
func (s *Storage) GetRecord(ctx context.Context, id int64) (*models.JournalRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	record, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return record, nil
}

// ListRecords returns every record, newest first
func (s *Storage) ListRecords(ctx context.Context) ([]*models.JournalRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	return s.queryRecords(ctx, selectColumns+` ORDER BY timestamp DESC, id DESC`)
}

// ListRecordsByLocation uses the location index
func (s *Storage) ListRecordsByLocation(ctx context.Context, name string) ([]*models.JournalRecord, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	if name == "" {
		return make([]*models.JournalRecord, 0), nil
	}

	return s.queryRecords(ctx, selectColumns+` WHERE location_name = ? ORDER BY timestamp DESC, id DESC`, name)
}

// UpdateRecord replaces every column of an existing record
func (s *Storage) UpdateRecord(ctx context.Context, record *models.JournalRecord) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	query := `
		UPDATE journal_entries
		SET photo = ?, has_location = ?, latitude = ?, longitude = ?,
		    location_name = ?, accuracy = ?, timestamp = ?, notes = ?
		WHERE id = ?
	`

	args := locationArgs(record.Location)
	res, err := s.db.ExecContext(ctx, query,
		record.Photo,
		args.has,
		args.latitude,
		args.longitude,
		args.name,
		args.accuracy,
		record.Timestamp,
		record.Notes,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrRecordNotFound
	}

	return nil
}

// DeleteRecord removes a record; a missing id is not an error
func (s *Storage) DeleteRecord(ctx context.Context, id int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// ClearRecords removes every record
func (s *Storage) ClearRecords(ctx context.Context) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

func (s *Storage) queryRecords(ctx context.Context, query string, args ...any) ([]*models.JournalRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*models.JournalRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.JournalRecord, error) {
	record := &models.JournalRecord{}
	var hasLocation int
	var latitude, longitude, accuracy sql.NullFloat64
	var locationName string

	err := row.Scan(
		&record.ID,
		&record.Photo,
		&hasLocation,
		&latitude,
		&longitude,
		&locationName,
		&accuracy,
		&record.Timestamp,
		&record.Notes,
	)
	if err != nil {
		return nil, err
	}

	if hasLocation != 0 {
		record.Location = &models.Location{
			Latitude:     latitude.Float64,
			Longitude:    longitude.Float64,
			LocationName: locationName,
			Accuracy:     accuracy.Float64,
		}
	}

	return record, nil
}

// locationColumns значения колонок геопозиции; NULL, если позиции нет
type locationColumns struct {
	latitude  sql.NullFloat64
	longitude sql.NullFloat64
	accuracy  sql.NullFloat64
	name      string
	has       int
}

func locationArgs(loc *models.Location) locationColumns {
	if loc == nil {
		return locationColumns{}
	}
	return locationColumns{
		has:       1,
		latitude:  sql.NullFloat64{Float64: loc.Latitude, Valid: true},
		longitude: sql.NullFloat64{Float64: loc.Longitude, Valid: true},
		accuracy:  sql.NullFloat64{Float64: loc.Accuracy, Valid: true},
		name:      loc.LocationName,
	}
}
