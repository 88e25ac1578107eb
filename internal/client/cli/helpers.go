package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iudanet/geojournal/internal/models"
)

// parseID parses a record identifier argument
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}

// writeJSON печатает значение как JSON с отступами
func (c *Cli) writeJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	c.io.Println(string(data))
	return nil
}

// printRecordLine печатает запись одной строкой для list
func (c *Cli) printRecordLine(r *models.JournalRecord) {
	when := time.UnixMilli(r.Timestamp)
	place := r.Location.DisplayName()
	if place == "" {
		place = "-"
	}
	c.io.Printf("#%-5d %-16s %-32s %8s", r.ID, humanize.Time(when), place, humanize.Bytes(uint64(len(r.Photo))))
	if r.Notes != "" {
		c.io.Printf("  %s", truncate(r.Notes, 40))
	}
	c.io.Println()
}

// printRecord печатает запись полностью для get
func (c *Cli) printRecord(r *models.JournalRecord) {
	when := time.UnixMilli(r.Timestamp)

	c.io.Printf("Record #%d\n", r.ID)
	c.io.Printf("  Taken:    %s (%s)\n", when.Format(time.RFC3339), humanize.Time(when))
	if r.Location != nil {
		c.io.Printf("  Location: %s\n", r.Location.DisplayName())
		c.io.Printf("  Coords:   %.6f, %.6f\n", r.Location.Latitude, r.Location.Longitude)
		if r.Location.Accuracy > 0 {
			c.io.Printf("  Accuracy: %s m\n", humanize.Ftoa(r.Location.Accuracy))
		}
	} else {
		c.io.Println("  Location: unknown")
	}
	c.io.Printf("  Photo:    %s\n", humanize.Bytes(uint64(len(r.Photo))))
	if r.Notes != "" {
		c.io.Printf("  Notes:    %s\n", r.Notes)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
