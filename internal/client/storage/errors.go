package storage

import "errors"

// Common client storage errors
var (
	// ErrStoreUnavailable indicates that the record container could not be opened
	// (storage disabled, file locked by another process, quota exhausted)
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrWrite indicates a constraint violation or I/O failure on create/update/delete
	ErrWrite = errors.New("record write failed")

	// ErrRecordNotFound indicates that journal record was not found.
	// The record store reports absence as a normal result, not as a failure.
	ErrRecordNotFound = errors.New("journal record not found")

	// ErrCacheUnavailable indicates that a cache bucket could not be opened, matched or written
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrNetworkUnavailable indicates that the network fetch was rejected or timed out
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
