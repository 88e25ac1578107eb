package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/geojournal/internal/client/storage"
)

const (
	keySchemaVersion = "schema_version"
)

// SchemaVersion returns the structural version stored in the meta bucket
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var version int
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}
		version = readSchemaVersion(bucket)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}

	return version, nil
}

// readSchemaVersion возвращает 0, если версия еще не записана (новая база)
func readSchemaVersion(bucket *bbolt.Bucket) int {
	versionBytes := bucket.Get([]byte(keySchemaVersion))
	if len(versionBytes) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(versionBytes))
}

func writeSchemaVersion(bucket *bbolt.Bucket, version int) error {
	// Конвертируем int в bytes
	versionBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(versionBytes, uint64(version))

	if err := bucket.Put([]byte(keySchemaVersion), versionBytes); err != nil {
		return fmt.Errorf("failed to save schema version: %w", err)
	}
	return nil
}
