package journal

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/geojournal/internal/models"
	"github.com/iudanet/geojournal/pkg/api"
)

// ExportAll serializes every record together with the export metadata envelope.
// It has no side effects on the store.
func (s *Store) ExportAll(ctx context.Context) ([]byte, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	export := api.Export{
		ExportID:     uuid.NewString(),
		ExportDate:   s.now().UTC().Format(time.RFC3339),
		Version:      api.ExportFormatVersion,
		TotalEntries: len(records),
		Entries:      make([]models.JournalRecord, 0, len(records)),
	}
	for _, r := range records {
		export.Entries = append(export.Entries, *r)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}

// ImportAll re-inserts every record of an export through Create and returns the
// number of records created. Identifiers are reassigned by the store; records are
// inserted oldest first so new identifiers follow the original chronology.
func (s *Store) ImportAll(ctx context.Context, data []byte) (int, error) {
	var export api.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return 0, fmt.Errorf("failed to unmarshal export: %w", err)
	}

	if !compatibleExportVersion(export.Version) {
		return 0, fmt.Errorf("unsupported export version %q", export.Version)
	}

	entries := slices.Clone(export.Entries)
	slices.SortStableFunc(entries, func(a, b models.JournalRecord) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	imported := 0
	for i := range entries {
		entry := entries[i]
		originalID := entry.ID
		entry.ID = 0
		if _, err := s.Create(ctx, &entry); err != nil {
			return imported, fmt.Errorf("failed to import record %d: %w", originalID, err)
		}
		imported++
	}

	s.logger.Info("journal imported", "records", imported, "export_id", export.ExportID)
	return imported, nil
}

// compatibleExportVersion принимает все версии с тем же major номером
func compatibleExportVersion(version string) bool {
	major, _, _ := strings.Cut(api.ExportFormatVersion, ".")
	return strings.HasPrefix(version, major+".")
}
