package journal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/client/storage/boltdb"
	"github.com/iudanet/geojournal/internal/models"
	"github.com/iudanet/geojournal/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore создает Store поверх временной BoltDB базы
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	store := NewStore(func(ctx context.Context) (storage.JournalStorage, error) {
		return boltdb.New(ctx, dbPath)
	}, setupTestLogger())
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

// mockJournalStorage - hand-written mock для JournalStorage интерфейса
type mockJournalStorage struct {
	createErr error
	listErr   error
	getErr    error
	updateErr error
	deleteErr error
	clearErr  error
	closed    bool
}

func (m *mockJournalStorage) CreateRecord(ctx context.Context, record *models.JournalRecord) (int64, error) {
	return 1, m.createErr
}

func (m *mockJournalStorage) GetRecord(ctx context.Context, id int64) (*models.JournalRecord, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.JournalRecord{ID: id}, nil
}

func (m *mockJournalStorage) ListRecords(ctx context.Context) ([]*models.JournalRecord, error) {
	return nil, m.listErr
}

func (m *mockJournalStorage) ListRecordsByLocation(ctx context.Context, name string) ([]*models.JournalRecord, error) {
	return nil, m.listErr
}

func (m *mockJournalStorage) UpdateRecord(ctx context.Context, record *models.JournalRecord) error {
	return m.updateErr
}

func (m *mockJournalStorage) DeleteRecord(ctx context.Context, id int64) error {
	return m.deleteErr
}

func (m *mockJournalStorage) ClearRecords(ctx context.Context) error {
	return m.clearErr
}

func (m *mockJournalStorage) SchemaVersion(ctx context.Context) (int, error) {
	return storage.SchemaVersion, nil
}

func (m *mockJournalStorage) Close() error {
	m.closed = true
	return nil
}

func TestStore_CreateThenReadAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Create(ctx, &models.JournalRecord{Photo: "p1", Timestamp: 1000})
	require.NoError(t, err)
	_, err = store.Create(ctx, &models.JournalRecord{Photo: "p2", Timestamp: 2000})
	require.NoError(t, err)

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "p2", records[0].Photo)
	assert.Equal(t, "p1", records[1].Photo)
	assert.Nil(t, records[0].Location)
	assert.Empty(t, records[0].Notes)
}

func TestStore_ReadAllEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestStore_CreateAssignsIDs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Create(ctx, &models.JournalRecord{Photo: "p1", Timestamp: 1234})
	require.NoError(t, err)
	second, err := store.Create(ctx, &models.JournalRecord{Photo: "p2", Timestamp: 1234})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	record, ok, err := store.ReadOne(ctx, first)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1234), record.Timestamp)
}

func TestStore_CreateStoresRecordAsGiven(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// нулевые и отрицательные timestamp, пустое фото сохраняются без изменений
	input := []*models.JournalRecord{
		{Photo: "p0", Timestamp: 0},
		{Photo: "", Timestamp: 5},
		{Photo: "neg", Timestamp: -1000},
	}
	for _, r := range input {
		_, err := store.Create(ctx, r)
		require.NoError(t, err)
	}

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, recordTuple{Photo: "", Timestamp: 5}, withoutIDs(records)[0])
	assert.Equal(t, recordTuple{Photo: "p0", Timestamp: 0}, withoutIDs(records)[1])
	assert.Equal(t, recordTuple{Photo: "neg", Timestamp: -1000}, withoutIDs(records)[2])
}

func TestStore_CreateRejectsNil(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Create(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrWrite)
}

func TestStore_ReadOneNotFoundIsNotAnError(t *testing.T) {
	store := newTestStore(t)

	record, ok, err := store.ReadOne(context.Background(), 42)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, record)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Create(ctx, &models.JournalRecord{Photo: "p1", Timestamp: 1000})
	require.NoError(t, err)

	record, ok, err := store.ReadOne(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	record.Notes = "new notes"
	record.Location = &models.Location{LocationName: "Riga", Latitude: 56.9, Longitude: 24.1}
	require.NoError(t, store.Update(ctx, record))

	updated, ok, err := store.ReadOne(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p1", updated.Photo)
	assert.Equal(t, "new notes", updated.Notes)
	assert.Equal(t, "Riga", updated.Location.LocationName)

	byLocation, err := store.ReadByLocation(ctx, "Riga")
	require.NoError(t, err)
	assert.Len(t, byLocation, 1)
}

func TestStore_UpdateMissingFailsWithWriteError(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(context.Background(), &models.JournalRecord{ID: 99, Photo: "ghost"})
	assert.ErrorIs(t, err, storage.ErrWrite)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	err = store.Update(context.Background(), &models.JournalRecord{Photo: "no id"})
	assert.ErrorIs(t, err, storage.ErrWrite)
}

func TestStore_DeleteMissingSucceeds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Create(ctx, &models.JournalRecord{Photo: "p1", Timestamp: 1})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, id))
	assert.NoError(t, store.Delete(ctx, id))
	assert.NoError(t, store.Delete(ctx, 1000))

	_, ok, err := store.ReadOne(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ClearAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, &models.JournalRecord{Photo: "p", Timestamp: int64(i + 1)})
		require.NoError(t, err)
	}

	require.NoError(t, store.ClearAll(ctx))

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_SequenceOfCreatesIsPreserved(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	timestamps := []int64{5, 3, 9, 3, 1, 9, 7}
	for _, ts := range timestamps {
		_, err := store.Create(ctx, &models.JournalRecord{Photo: "p", Timestamp: ts})
		require.NoError(t, err)
	}

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, len(timestamps))

	ids := make(map[int64]bool)
	for i, r := range records {
		assert.False(t, ids[r.ID], "record %d returned twice", r.ID)
		ids[r.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, records[i-1].Timestamp, r.Timestamp)
		}
	}
}

func TestStore_ExportAll(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.now = func() time.Time { return time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC) }

	_, err := store.Create(ctx, &models.JournalRecord{Photo: "p1", Timestamp: 1000})
	require.NoError(t, err)
	_, err = store.Create(ctx, &models.JournalRecord{Photo: "p2", Timestamp: 2000, Notes: "n"})
	require.NoError(t, err)

	data, err := store.ExportAll(ctx)
	require.NoError(t, err)

	var export api.Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, api.ExportFormatVersion, export.Version)
	assert.Equal(t, "2026-10-17T12:00:00Z", export.ExportDate)
	assert.Equal(t, 2, export.TotalEntries)
	assert.NotEmpty(t, export.ExportID)
	require.Len(t, export.Entries, 2)
	assert.Equal(t, "p2", export.Entries[0].Photo)

	// Экспорт не меняет хранилище
	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStore_ExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	originals := []*models.JournalRecord{
		{Photo: "p1", Timestamp: 1000},
		{Photo: "p2", Timestamp: 2000, Notes: "second"},
		{Photo: "p3", Timestamp: 1500, Location: &models.Location{Latitude: 1.5, Longitude: 2.5, LocationName: "Somewhere", Accuracy: 10}},
		{Photo: "p4", Timestamp: 1500, Location: &models.Location{Latitude: -3, Longitude: 4}},
	}
	for _, r := range originals {
		_, err := store.Create(ctx, r)
		require.NoError(t, err)
	}

	before, err := store.ReadAll(ctx)
	require.NoError(t, err)

	data, err := store.ExportAll(ctx)
	require.NoError(t, err)

	require.NoError(t, store.ClearAll(ctx))

	imported, err := store.ImportAll(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, len(originals), imported)

	after, err := store.ReadAll(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, withoutIDs(before), withoutIDs(after))
}

func TestStore_ImportRejectsUnknownVersion(t *testing.T) {
	store := newTestStore(t)

	_, err := store.ImportAll(context.Background(), []byte(`{"version":"2.0","entries":[]}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export version")

	_, err = store.ImportAll(context.Background(), []byte(`not json`))
	assert.Error(t, err)
}

func TestStore_OpenFailureIsStoreUnavailable(t *testing.T) {
	openErr := errors.New("storage disabled")
	store := NewStore(func(ctx context.Context) (storage.JournalStorage, error) {
		return nil, openErr
	}, setupTestLogger())

	err := store.Initialize(context.Background())
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
	assert.ErrorIs(t, err, openErr)

	_, err = store.ReadAll(context.Background())
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)

	_, err = store.Create(context.Background(), &models.JournalRecord{Photo: "p"})
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
}

func TestStore_OpensOnceForConcurrentCallers(t *testing.T) {
	var opens atomic.Int32
	mock := &mockJournalStorage{}
	store := NewStore(func(ctx context.Context) (storage.JournalStorage, error) {
		opens.Add(1)
		time.Sleep(10 * time.Millisecond)
		return mock, nil
	}, setupTestLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ReadAll(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())

	require.NoError(t, store.Close())
	assert.True(t, mock.closed)

	// После Close следующая операция открывает контейнер заново
	require.NoError(t, store.Initialize(context.Background()))
	assert.Equal(t, int32(2), opens.Load())
}

func TestStore_StorageFailuresAreWriteErrors(t *testing.T) {
	ctx := context.Background()
	ioErr := errors.New("disk full")
	mock := &mockJournalStorage{
		createErr: ioErr,
		deleteErr: ioErr,
		clearErr:  ioErr,
		updateErr: ioErr,
		getErr:    ioErr,
		listErr:   ioErr,
	}
	store := NewStore(func(ctx context.Context) (storage.JournalStorage, error) {
		return mock, nil
	}, setupTestLogger())

	_, err := store.Create(ctx, &models.JournalRecord{Photo: "p"})
	assert.ErrorIs(t, err, storage.ErrWrite)
	assert.ErrorIs(t, err, ioErr)

	assert.ErrorIs(t, store.Update(ctx, &models.JournalRecord{ID: 1, Photo: "p"}), storage.ErrWrite)
	assert.ErrorIs(t, store.Delete(ctx, 1), storage.ErrWrite)
	assert.ErrorIs(t, store.ClearAll(ctx), storage.ErrWrite)

	// Ошибки чтения пробрасываются, но не как "не найдено"
	_, ok, err := store.ReadOne(ctx, 1)
	assert.ErrorIs(t, err, ioErr)
	assert.False(t, ok)

	_, err = store.ReadAll(ctx)
	assert.ErrorIs(t, err, ioErr)

	_, err = store.ExportAll(ctx)
	assert.ErrorIs(t, err, ioErr)
}

// recordTuple - запись без ID для сравнения множеств
type recordTuple struct {
	Location  models.Location
	Photo     string
	Notes     string
	Timestamp int64
	HasLoc    bool
}

func withoutIDs(records []*models.JournalRecord) []recordTuple {
	tuples := make([]recordTuple, 0, len(records))
	for _, r := range records {
		tuple := recordTuple{Photo: r.Photo, Notes: r.Notes, Timestamp: r.Timestamp}
		if r.Location != nil {
			tuple.Location = *r.Location
			tuple.HasLoc = true
		}
		tuples = append(tuples, tuple)
	}
	return tuples
}
