package boltdb

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/geojournal/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketMeta        = []byte("meta")
	bucketRecords     = []byte("records")
	bucketByTimestamp = []byte("idx_timestamp")
	bucketByLocation  = []byte("idx_location")
)

// openTimeout ограничивает ожидание file lock, если база открыта другим процессом
const openTimeout = time.Second

// Storage represents BoltDB implementation of the journal record container
type Storage struct {
	db *bbolt.DB
}

var _ storage.JournalStorage = (*Storage)(nil)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}

	// Приводим схему к текущей версии
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// open открывает файл BoltDB с таймаутом на блокировку
func open(ctx context.Context, dbPath string) (*bbolt.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(dbPath), 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют.
// Миграции аддитивные: существующие записи никогда не удаляются.
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create meta bucket: %w", err)
		}

		current := readSchemaVersion(meta)
		if current > storage.SchemaVersion {
			return fmt.Errorf("schema version %d is newer than supported %d", current, storage.SchemaVersion)
		}

		for v := current; v < storage.SchemaVersion; v++ {
			if err := schemaMigrations[v](tx); err != nil {
				return fmt.Errorf("failed to migrate schema to version %d: %w", v+1, err)
			}
		}

		return writeSchemaVersion(meta, storage.SchemaVersion)
	})
}

// schemaMigrations[i] поднимает схему с версии i до i+1
var schemaMigrations = []func(tx *bbolt.Tx) error{
	migrateRecordsAndTimestampIndex,
	migrateLocationIndex,
}

// migrateRecordsAndTimestampIndex создает основной контейнер и индекс по времени
func migrateRecordsAndTimestampIndex(tx *bbolt.Tx) error {
	if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
		return fmt.Errorf("failed to create records bucket: %w", err)
	}
	if _, err := tx.CreateBucketIfNotExists(bucketByTimestamp); err != nil {
		return fmt.Errorf("failed to create timestamp index bucket: %w", err)
	}
	return nil
}

// migrateLocationIndex создает индекс по месту и заполняет его из существующих записей
func migrateLocationIndex(tx *bbolt.Tx) error {
	index, err := tx.CreateBucketIfNotExists(bucketByLocation)
	if err != nil {
		return fmt.Errorf("failed to create location index bucket: %w", err)
	}

	records := tx.Bucket(bucketRecords)
	if records == nil {
		return fmt.Errorf("records bucket not found")
	}

	return records.ForEach(func(k, v []byte) error {
		record, err := decodeRecord(v)
		if err != nil {
			return err
		}
		if key := locationKey(record); key != nil {
			return index.Put(key, nil)
		}
		return nil
	})
}
