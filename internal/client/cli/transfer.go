package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func (c *Cli) exportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole journal as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.app.Journal.ExportAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to export journal: %w", err)
			}

			if output == "" || output == "-" {
				c.io.Println(string(data))
				return nil
			}

			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			c.io.Printf("Journal exported to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the export to this file instead of stdout")

	return cmd
}

func (c *Cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import records from a journal export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read export: %w", err)
			}

			n, err := c.app.Journal.ImportAll(cmd.Context(), data)
			if err != nil {
				if n > 0 {
					c.io.Printf("Imported %d record(s) before the failure\n", n)
				}
				return err
			}

			c.io.Printf("Imported %d record(s)\n", n)
			return nil
		},
	}
}

func (c *Cli) clearCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !c.io.IsInteractive() {
					return errors.New("refusing to clear the journal without --yes")
				}
				ok, err := c.io.Confirm("Delete ALL journal records? This cannot be undone")
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if !ok {
					c.io.Println("Aborted.")
					return nil
				}
			}

			if err := c.app.Journal.ClearAll(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear journal: %w", err)
			}
			c.io.Println("Journal cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
