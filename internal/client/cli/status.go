package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func (c *Cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the journal and cache state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.app.Config

			version, err := c.app.Journal.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}
			records, err := c.app.Journal.ReadAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to read journal: %w", err)
			}

			c.io.Println("=== Journal ===")
			c.io.Printf("Storage: %s (%s)\n", cfg.Storage.Driver, cfg.JournalPath())
			c.io.Printf("Schema:  v%d\n", version)
			c.io.Printf("Records: %s\n", humanize.Comma(int64(len(records))))
			c.io.Println()

			c.io.Println("=== Cache ===")
			if c.app.Worker == nil {
				c.io.Printf("Unavailable: %s could not be opened\n", cfg.CachePath())
				return nil
			}

			buckets, err := c.app.Worker.Buckets(ctx)
			if err != nil {
				return err
			}
			var total int64
			for _, b := range buckets {
				total += b.Bytes
			}
			c.io.Printf("Buckets: %d (%s)\n", len(buckets), humanize.Bytes(uint64(total)))
			return nil
		},
	}
}
