package cli

import "github.com/spf13/cobra"

func (c *Cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipAppAnnotation: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			c.io.Printf("journal %s\n", c.build.Version)
			c.io.Printf("  build date: %s\n", c.build.BuildDate)
			c.io.Printf("  git commit: %s\n", c.build.GitCommit)
		},
	}
}
