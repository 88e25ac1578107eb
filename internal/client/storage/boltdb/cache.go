package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/models"
)

// bucketCaches хранит по одному вложенному bucket на каждый именованный кэш
var bucketCaches = []byte("caches")

// CacheStorage represents BoltDB implementation of the response cache buckets
type CacheStorage struct {
	db *bbolt.DB
}

var _ storage.CacheStorage = (*CacheStorage)(nil)

// NewCacheStorage opens the cache database at dbPath
func NewCacheStorage(ctx context.Context, dbPath string) (*CacheStorage, error) {
	db, err := open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCaches); err != nil {
			return fmt.Errorf("failed to create caches bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return &CacheStorage{db: db}, nil
}

// Close closes the database connection
func (s *CacheStorage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// OpenCache creates the named bucket lazily and returns a handle to it
func (s *CacheStorage) OpenCache(ctx context.Context, name string) (storage.Cache, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}
	if name == "" {
		return nil, fmt.Errorf("cache name is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCaches)
		if root == nil {
			return fmt.Errorf("caches bucket not found")
		}
		if _, err := root.CreateBucketIfNotExists([]byte(name)); err != nil {
			return fmt.Errorf("failed to create cache %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	return &cache{storage: s, name: name}, nil
}

// CacheNames lists the nested buckets under the caches bucket
func (s *CacheStorage) CacheNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	names := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCaches)
		if root == nil {
			return fmt.Errorf("caches bucket not found")
		}
		// Вложенные buckets приходят с nil значением
		return root.ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	return names, nil
}

// DeleteCache drops the named bucket with every entry in it
func (s *CacheStorage) DeleteCache(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.db == nil {
		return false, storage.ErrStorageClosed
	}

	deleted := true
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCaches)
		if root == nil {
			return fmt.Errorf("caches bucket not found")
		}
		if err := root.DeleteBucket([]byte(name)); err != nil {
			if errors.Is(err, bbolt.ErrBucketNotFound) {
				deleted = false
				return nil
			}
			return fmt.Errorf("failed to delete cache %q: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	return deleted, nil
}

// cache is a handle to one named bucket
type cache struct {
	storage *CacheStorage
	name    string
}

func (c *cache) Name() string {
	return c.name
}

// Match returns the snapshot stored for the request identity
func (c *cache) Match(ctx context.Context, key string) (*models.CachedResponse, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	db := c.storage.db
	if db == nil {
		return nil, false, storage.ErrStorageClosed
	}

	var entry *models.CachedResponse
	err := db.View(func(tx *bbolt.Tx) error {
		bucket := c.bucket(tx)
		if bucket == nil {
			// Bucket удален после открытия - это промах
			return nil
		}

		data := bucket.Get(entryKey(key))
		if data == nil {
			return nil
		}

		entry = &models.CachedResponse{}
		if err := json.Unmarshal(data, entry); err != nil {
			return fmt.Errorf("failed to unmarshal cached response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	return entry, entry != nil, nil
}

// Put stores the snapshot, replacing any previous entry for the identity
func (c *cache) Put(ctx context.Context, key string, entry *models.CachedResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := c.storage.db
	if db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cached response: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCaches)
		if root == nil {
			return fmt.Errorf("caches bucket not found")
		}
		bucket, err := root.CreateBucketIfNotExists([]byte(c.name))
		if err != nil {
			return fmt.Errorf("failed to create cache %q: %w", c.name, err)
		}
		return bucket.Put(entryKey(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	return nil
}

// Stats counts entries in the bucket and sums their sizes
func (c *cache) Stats(ctx context.Context) (storage.CacheStats, error) {
	var stats storage.CacheStats
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	db := c.storage.db
	if db == nil {
		return stats, storage.ErrStorageClosed
	}

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := c.bucket(tx)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, data []byte) error {
			var entry models.CachedResponse
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal cached response: %w", err)
			}
			stats.Entries++
			stats.Bytes += entry.Size()
			return nil
		})
	})
	if err != nil {
		return storage.CacheStats{}, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	return stats, nil
}

func (c *cache) bucket(tx *bbolt.Tx) *bbolt.Bucket {
	root := tx.Bucket(bucketCaches)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(c.name))
}

// entryKey хеширует идентичность запроса: длина ключа не зависит от длины URL
func entryKey(identity string) []byte {
	sum := blake2b.Sum256([]byte(identity))
	return sum[:]
}
