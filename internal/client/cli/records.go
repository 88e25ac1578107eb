package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/geojournal/internal/client/capture"
	"github.com/iudanet/geojournal/internal/client/position"
	"github.com/iudanet/geojournal/internal/models"
)

const locateTimeout = 10 * time.Second

// locationFlags - общие флаги геопозиции для add и update
type locationFlags struct {
	name      string
	lat       float64
	lon       float64
	accuracy  float64
	noGeocode bool
}

func (f *locationFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "Latitude of the photo")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "Longitude of the photo")
	cmd.Flags().Float64Var(&f.accuracy, "accuracy", 0, "Position accuracy in meters")
	cmd.Flags().StringVar(&f.name, "name", "", "Place name (resolved by reverse geocoding when empty)")
	cmd.Flags().BoolVar(&f.noGeocode, "no-geocode", false, "Do not resolve the place name")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
}

func (f *locationFlags) changed(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("lat")
}

// resolveLocation получает позицию и, если имя не задано, название места
func (c *Cli) resolveLocation(ctx context.Context, f *locationFlags) (*models.Location, error) {
	provider, err := position.NewStatic(f.lat, f.lon, f.accuracy)
	if err != nil {
		return nil, err
	}

	locateCtx, cancel := context.WithTimeout(ctx, locateTimeout)
	defer cancel()

	pos, err := position.Locate(locateCtx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	name := f.name
	if name == "" && !f.noGeocode && c.app.Geocoder != nil {
		c.register(ctx)
		name = c.app.Geocoder.LocationName(ctx, pos.Latitude, pos.Longitude)
	}
	return pos.Location(name), nil
}

func (c *Cli) addCommand() *cobra.Command {
	var (
		photo string
		notes string
		loc   locationFlags
	)

	cmd := &cobra.Command{
		Use:   "add --photo FILE",
		Short: "Add a photo to the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dataURL, err := capture.EncodeFile(photo)
			if err != nil {
				return err
			}

			record := &models.JournalRecord{
				Photo:     dataURL,
				Notes:     notes,
				Timestamp: time.Now().UnixMilli(),
			}
			if loc.changed(cmd) {
				record.Location, err = c.resolveLocation(ctx, &loc)
				if err != nil {
					return err
				}
			}

			id, err := c.app.Journal.Create(ctx, record)
			if err != nil {
				return fmt.Errorf("failed to save record: %w", err)
			}

			c.io.Printf("Record #%d saved", id)
			if record.Location != nil {
				c.io.Printf(" at %s", record.Location.DisplayName())
			}
			c.io.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&photo, "photo", "", "Image file to add")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes for the record")
	loc.register(cmd)
	_ = cmd.MarkFlagRequired("photo")

	return cmd
}

func (c *Cli) listCommand() *cobra.Command {
	var (
		location string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List journal records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				records []*models.JournalRecord
				err     error
			)
			if location != "" {
				records, err = c.app.Journal.ReadByLocation(ctx, location)
			} else {
				records, err = c.app.Journal.ReadAll(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}

			if asJSON {
				return c.writeJSON(records)
			}

			if len(records) == 0 {
				c.io.Println("No records found.")
				c.io.Println("Use 'journal add --photo FILE' to add your first photo.")
				return nil
			}

			c.io.Printf("Found %d record(s):\n", len(records))
			for _, r := range records {
				c.printRecordLine(r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "Only records taken at this place name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}

func (c *Cli) getCommand() *cobra.Command {
	var (
		photoOut string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show a single record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			record, ok, err := c.app.Journal.ReadOne(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to read record: %w", err)
			}
			if !ok {
				return fmt.Errorf("record #%d not found", id)
			}

			if photoOut != "" {
				_, data, err := capture.Decode(record.Photo)
				if err != nil {
					return fmt.Errorf("failed to decode photo: %w", err)
				}
				if err := os.WriteFile(photoOut, data, 0o600); err != nil {
					return fmt.Errorf("failed to write photo: %w", err)
				}
			}

			if asJSON {
				return c.writeJSON(record)
			}
			c.printRecord(record)
			if photoOut != "" {
				c.io.Printf("Photo written to %s\n", photoOut)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&photoOut, "photo-out", "", "Write the photo to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")

	return cmd
}

func (c *Cli) updateCommand() *cobra.Command {
	var (
		notes         string
		clearLocation bool
		loc           locationFlags
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the location or notes of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			notesChanged := cmd.Flags().Changed("notes")
			if !notesChanged && !clearLocation && !loc.changed(cmd) {
				return errors.New("nothing to update: pass --notes, --lat/--lon or --clear-location")
			}

			// Update заменяет запись целиком, поэтому сначала читаем текущую
			record, ok, err := c.app.Journal.ReadOne(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to read record: %w", err)
			}
			if !ok {
				return fmt.Errorf("record #%d not found", id)
			}

			if notesChanged {
				record.Notes = notes
			}
			switch {
			case clearLocation:
				record.Location = nil
			case loc.changed(cmd):
				record.Location, err = c.resolveLocation(ctx, &loc)
				if err != nil {
					return err
				}
			}

			if err := c.app.Journal.Update(ctx, record); err != nil {
				return fmt.Errorf("failed to update record: %w", err)
			}

			c.io.Printf("Record #%d updated\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "New notes (empty string clears them)")
	cmd.Flags().BoolVar(&clearLocation, "clear-location", false, "Remove the location")
	loc.register(cmd)
	cmd.MarkFlagsMutuallyExclusive("clear-location", "lat")

	return cmd
}

func (c *Cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := c.app.Journal.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete record: %w", err)
			}

			c.io.Printf("Record #%d deleted\n", id)
			return nil
		},
	}
}
