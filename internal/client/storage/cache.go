package storage

import (
	"context"

	"github.com/iudanet/geojournal/internal/models"
)

//go:generate moq -out cachestorage_mock.go . CacheStorage Cache

// CacheStorage defines interface for the named response cache buckets.
// Buckets are created lazily on first open and persist until deleted.
type CacheStorage interface {
	// OpenCache opens (creating if needed) the bucket with the given name
	OpenCache(ctx context.Context, name string) (Cache, error)

	// CacheNames lists every existing bucket
	CacheNames(ctx context.Context) ([]string, error)

	// DeleteCache removes the bucket with all its entries.
	// Returns false if the bucket did not exist.
	DeleteCache(ctx context.Context, name string) (bool, error)
}

// Cache is a single bucket mapping request identity to a response snapshot.
type Cache interface {
	// Name returns the bucket name
	Name() string

	// Match looks up the snapshot stored for the request identity.
	// The second return value is false on a miss.
	Match(ctx context.Context, key string) (*models.CachedResponse, bool, error)

	// Put stores the snapshot, replacing any previous entry for the same identity
	Put(ctx context.Context, key string, entry *models.CachedResponse) error

	// Stats returns the number of entries and their total size
	Stats(ctx context.Context) (CacheStats, error)
}

// CacheStats describes the contents of a bucket
type CacheStats struct {
	Entries int
	Bytes   int64 // Bytes сумма CachedResponse.Size по всем записям
}
