package boltdb

import (
	"bytes"
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"

	"go.etcd.io/bbolt"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/models"
)

// signBit сдвигает int64 так, чтобы порядок байт совпадал с числовым порядком
const signBit = uint64(1) << 63

// CreateRecord stores a new record under the next sequence number of the records bucket
func (s *Storage) CreateRecord(ctx context.Context, record *models.JournalRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := recordBuckets(tx)
		if err != nil {
			return err
		}

		// NextSequence монотонно растет и не сбрасывается при очистке
		seq, err := b.records.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate record id: %w", err)
		}

		stored := record.Clone()
		stored.ID = int64(seq)

		if err := b.put(stored); err != nil {
			return err
		}

		id = stored.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction failed: %w", err)
	}

	return id, nil
}

// GetRecord retrieves a record by ID
func (s *Storage) GetRecord(ctx context.Context, id int64) (*models.JournalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var record *models.JournalRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		if bucket == nil {
			return fmt.Errorf("records bucket not found")
		}

		data := bucket.Get(idKey(id))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		var err error
		record, err = decodeRecord(data)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ListRecords walks the timestamp index from newest to oldest
func (s *Storage) ListRecords(ctx context.Context) ([]*models.JournalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	records := make([]*models.JournalRecord, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		index := tx.Bucket(bucketByTimestamp)
		if bucket == nil || index == nil {
			return fmt.Errorf("records buckets not found")
		}

		// Обходим индекс в обратном порядке: новые записи первыми
		c := index.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if len(k) != 16 {
				return fmt.Errorf("malformed timestamp index key")
			}
			data := bucket.Get(k[8:])
			if data == nil {
				// Индекс без записи - пропускаем
				continue
			}
			record, err := decodeRecord(data)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

// ListRecordsByLocation scans the location index for the given name
func (s *Storage) ListRecordsByLocation(ctx context.Context, name string) ([]*models.JournalRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	records := make([]*models.JournalRecord, 0)
	if name == "" {
		return records, nil
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)
		index := tx.Bucket(bucketByLocation)
		if bucket == nil || index == nil {
			return fmt.Errorf("records buckets not found")
		}

		prefix := append([]byte(name), 0)
		c := index.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			data := bucket.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			record, err := decodeRecord(data)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records by location: %w", err)
	}

	slices.SortStableFunc(records, func(a, b *models.JournalRecord) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})

	return records, nil
}

// UpdateRecord replaces an existing record and re-indexes it
func (s *Storage) UpdateRecord(ctx context.Context, record *models.JournalRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := recordBuckets(tx)
		if err != nil {
			return err
		}

		// Получаем существующую запись
		existing, err := b.get(record.ID)
		if err != nil {
			return err
		}

		if err := b.unindex(existing); err != nil {
			return err
		}

		return b.put(record.Clone())
	})
	if err != nil {
		return fmt.Errorf("update transaction failed: %w", err)
	}

	return nil
}

// DeleteRecord removes a record together with its index entries
func (s *Storage) DeleteRecord(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := recordBuckets(tx)
		if err != nil {
			return err
		}

		existing, err := b.get(id)
		if err != nil {
			// Удаление несуществующей записи не является ошибкой
			if err == storage.ErrRecordNotFound {
				return nil
			}
			return err
		}

		if err := b.unindex(existing); err != nil {
			return err
		}

		if err := b.records.Delete(idKey(id)); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete transaction failed: %w", err)
	}

	return nil
}

// ClearRecords removes every record but keeps the id sequence of the records bucket
func (s *Storage) ClearRecords(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		if records == nil {
			return fmt.Errorf("records bucket not found")
		}

		// Собираем ключи отдельно: удалять во время ForEach нельзя
		var keys [][]byte
		if err := records.ForEach(func(k, _ []byte) error {
			keys = append(keys, bytes.Clone(k))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := records.Delete(k); err != nil {
				return fmt.Errorf("failed to delete record: %w", err)
			}
		}

		// Индексы пересоздаем целиком
		for _, name := range [][]byte{bucketByTimestamp, bucketByLocation} {
			if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
				return fmt.Errorf("failed to delete index bucket: %w", err)
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create index bucket: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear transaction failed: %w", err)
	}

	return nil
}

// txRecords groups the record container and its indexes inside one write transaction
type txRecords struct {
	records     *bbolt.Bucket
	byTimestamp *bbolt.Bucket
	byLocation  *bbolt.Bucket
}

func recordBuckets(tx *bbolt.Tx) (*txRecords, error) {
	r := &txRecords{
		records:     tx.Bucket(bucketRecords),
		byTimestamp: tx.Bucket(bucketByTimestamp),
		byLocation:  tx.Bucket(bucketByLocation),
	}
	if r.records == nil || r.byTimestamp == nil || r.byLocation == nil {
		return nil, fmt.Errorf("records buckets not found")
	}
	return r, nil
}

func (r *txRecords) get(id int64) (*models.JournalRecord, error) {
	data := r.records.Get(idKey(id))
	if data == nil {
		return nil, storage.ErrRecordNotFound
	}
	return decodeRecord(data)
}

// put сохраняет запись и добавляет ее в оба индекса
func (r *txRecords) put(record *models.JournalRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := r.records.Put(idKey(record.ID), data); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	if err := r.byTimestamp.Put(timestampKey(record.Timestamp, record.ID), nil); err != nil {
		return fmt.Errorf("failed to index record timestamp: %w", err)
	}
	if key := locationKey(record); key != nil {
		if err := r.byLocation.Put(key, nil); err != nil {
			return fmt.Errorf("failed to index record location: %w", err)
		}
	}
	return nil
}

// unindex удаляет записи индексов для старой версии записи
func (r *txRecords) unindex(record *models.JournalRecord) error {
	if err := r.byTimestamp.Delete(timestampKey(record.Timestamp, record.ID)); err != nil {
		return fmt.Errorf("failed to unindex record timestamp: %w", err)
	}
	if key := locationKey(record); key != nil {
		if err := r.byLocation.Delete(key); err != nil {
			return fmt.Errorf("failed to unindex record location: %w", err)
		}
	}
	return nil
}

func decodeRecord(data []byte) (*models.JournalRecord, error) {
	record := &models.JournalRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return record, nil
}

// idKey кодирует ID в big-endian, чтобы порядок ключей совпадал с порядком ID
func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

// timestampKey = timestamp(8 байт) + id(8 байт); id разводит записи с равным временем
func timestampKey(timestamp, id int64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[:8], uint64(timestamp)^signBit)
	binary.BigEndian.PutUint64(key[8:], uint64(id))
	return key
}

// locationKey = name + 0x00 + id; nil для записей без названия места
func locationKey(record *models.JournalRecord) []byte {
	name := record.LocationKey()
	if name == "" {
		return nil
	}
	key := make([]byte, 0, len(name)+9)
	key = append(key, name...)
	key = append(key, 0)
	return append(key, idKey(record.ID)...)
}
