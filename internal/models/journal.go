package models

import "fmt"

// Location представляет геопозицию, к которой привязана запись журнала.
// LocationName может быть пустым, если обратное геокодирование не удалось:
// в этом случае клиент показывает сырые координаты.
type Location struct {
	LocationName string  `json:"locationName,omitempty"` // LocationName человекочитаемое название места
	Latitude     float64 `json:"latitude"`               // Latitude широта в градусах
	Longitude    float64 `json:"longitude"`              // Longitude долгота в градусах
	Accuracy     float64 `json:"accuracy,omitempty"`     // Accuracy точность в метрах
}

// DisplayName returns the location name or, when it is unknown, the raw coordinates.
func (l *Location) DisplayName() string {
	if l == nil {
		return ""
	}
	if l.LocationName != "" {
		return l.LocationName
	}
	return fmt.Sprintf("%.5f, %.5f", l.Latitude, l.Longitude)
}

// JournalRecord представляет одну запись фотожурнала.
// ID назначается хранилищем и монотонно растет, Timestamp - момент создания в epoch millis.
type JournalRecord struct {
	Location  *Location `json:"location"`        // Location опциональная геопозиция
	Photo     string    `json:"photo"`           // Photo фото в виде data URL (бинарные данные как текст)
	Notes     string    `json:"notes,omitempty"` // Notes опциональные заметки пользователя
	ID        int64     `json:"id"`              // ID уникальный идентификатор, назначается хранилищем
	Timestamp int64     `json:"timestamp"`       // Timestamp время создания (epoch millis)
}

// Clone creates a deep copy of the record
func (r *JournalRecord) Clone() *JournalRecord {
	clone := *r
	if r.Location != nil {
		loc := *r.Location
		clone.Location = &loc
	}
	return &clone
}

// LocationKey returns the value indexed by the location index.
// Records without a location (or without a resolved name) are not indexed.
func (r *JournalRecord) LocationKey() string {
	if r.Location == nil {
		return ""
	}
	return r.Location.LocationName
}
