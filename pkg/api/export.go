package api

import "github.com/iudanet/geojournal/internal/models"

// ExportFormatVersion версия формата экспорта журнала
const ExportFormatVersion = "1.0"

// Export представляет выгрузку всего журнала с метаданными
type Export struct {
	ExportID     string                 `json:"exportId"`     // ExportID уникальный идентификатор выгрузки
	ExportDate   string                 `json:"exportDate"`   // ExportDate время выгрузки (RFC3339)
	Version      string                 `json:"version"`      // Version версия формата
	Entries      []models.JournalRecord `json:"entries"`      // Entries записи, от новых к старым
	TotalEntries int                    `json:"totalEntries"` // TotalEntries количество записей
}
