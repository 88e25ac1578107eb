package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iudanet/geojournal/internal/client/offline"
	"github.com/iudanet/geojournal/internal/proxy"
)

func (c *Cli) fetchCommand() *cobra.Command {
	var (
		output  string
		include bool
	)

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a URL through the offline cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c.register(ctx)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, args[0], nil)
			if err != nil {
				return fmt.Errorf("invalid url: %w", err)
			}

			resp, err := c.app.HTTPClient.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			if include {
				c.io.Printf("%s %s\n", resp.Proto, resp.Status)
				for name, values := range resp.Header {
					c.io.Printf("%s: %s\n", name, strings.Join(values, ", "))
				}
				c.io.Println()
			}

			var dst io.Writer = c.io
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				dst = f
			}

			n, err := io.Copy(dst, resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			c.app.Logger.Info("fetched",
				"url", args[0],
				"status", resp.StatusCode,
				"cache", resp.Header.Get(offline.HeaderCache),
				"size", humanize.Bytes(uint64(n)),
			)

			if offline.IsOffline(resp) {
				return fmt.Errorf("%s is not available offline", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the body to this file")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "Print the status line and headers")

	return cmd
}

func (c *Cli) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the offline cache",
	}

	cmd.AddCommand(c.cacheStatusCommand(), c.cacheInstallCommand())
	return cmd
}

func (c *Cli) cacheStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache buckets and worker phase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := c.app.RequireWorker()
			if err != nil {
				return err
			}

			buckets, err := w.Buckets(cmd.Context())
			if err != nil {
				return err
			}

			cfg := w.Config()
			c.io.Printf("Origin:  %s\n", cfg.Origin)
			c.io.Printf("Version: %s\n", cfg.Version)
			c.io.Printf("Phase:   %s\n", w.Phase())
			c.io.Println()

			if len(buckets) == 0 {
				c.io.Println("No cache buckets. Run 'journal cache install' to populate the static bucket.")
				return nil
			}

			for _, b := range buckets {
				mark := " "
				if !b.Current {
					mark = "!"
				}
				c.io.Printf("%s %-32s %s entries, %s\n", mark, b.Name, humanize.Comma(int64(b.Entries)), humanize.Bytes(uint64(b.Bytes)))
			}
			return nil
		},
	}
}

func (c *Cli) cacheInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Re-download the static manifest and drop stale buckets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			w, err := c.app.RequireWorker()
			if err != nil {
				return err
			}

			if err := w.Install(ctx); err != nil {
				return err
			}
			deleted, err := w.Activate(ctx)
			if err != nil {
				return err
			}

			c.io.Printf("Installed %d static asset(s) into %s\n", len(w.Config().StaticAssets), w.Config().StaticBucket())
			for _, name := range deleted {
				c.io.Printf("Deleted stale bucket %s\n", name)
			}
			return nil
		},
	}
}

func (c *Cli) serveCommand() *cobra.Command {
	var (
		addr      string
		rateLimit int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local caching proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			w, err := c.app.RequireWorker()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("addr") {
				addr = c.app.Config.Proxy.Addr
			}
			if !cmd.Flags().Changed("rate-limit") {
				rateLimit = c.app.Config.Proxy.RateLimit
			}

			c.register(ctx)

			health := proxy.NewHealthHandler(w, c.build.Version, c.app.Logger)
			srv := proxy.NewServer(addr, rateLimit, w, health, c.app.Logger)

			c.io.Printf("Serving on http://%s (health at %s)\n", addr, proxy.HealthPath)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "Requests per minute per client, 0 disables (default from config)")

	return cmd
}
