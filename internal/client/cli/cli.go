// Package cli implements the journal command-line interface on top of the
// application context.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iudanet/geojournal/internal/client/app"
	"github.com/iudanet/geojournal/internal/client/iocli"
	"github.com/iudanet/geojournal/internal/config"
	"github.com/iudanet/geojournal/internal/logging"
)

// BuildInfo is set via ldflags during build
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// AppFactory builds the application context for a command
type AppFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error)

// skipAppAnnotation помечает команды, которым не нужен App
const skipAppAnnotation = "geojournal/skip-app"

type globalFlags struct {
	configPath string
	dataDir    string
	driver     string
	origin     string
	logLevel   string
	logFormat  string
}

type Cli struct {
	io     iocli.IO
	stderr io.Writer
	app    *app.App
	newApp AppFactory
	build  BuildInfo
	flags  globalFlags
}

// New creates the CLI. Command output goes to stdio, logs go to stderr.
func New(stdio iocli.IO, stderr io.Writer, build BuildInfo) *Cli {
	return &Cli{
		io:     stdio,
		stderr: stderr,
		build:  build,
		newApp: app.New,
	}
}

// Execute runs the command line given by args
func (c *Cli) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(c.io)
	root.SetErr(c.stderr)

	err := root.ExecuteContext(ctx)

	if c.app != nil {
		if closeErr := c.app.Close(context.WithoutCancel(ctx)); closeErr != nil {
			c.app.Logger.Error("failed to close application", "error", closeErr)
		}
		c.app = nil
	}
	return err
}

// RootCommand builds the command tree
func (c *Cli) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "journal",
		Short: "Offline-first photo journal",
		Long: `Capture photos tagged with a location, keep them in a local journal and
browse through an interception cache that keeps working offline.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "Path to config file (default "+config.DefaultConfigPath()+")")
	pf.StringVar(&c.flags.dataDir, "data-dir", "", "Directory for the journal and cache databases")
	pf.StringVar(&c.flags.driver, "storage", "", "Record store driver: bolt or sqlite")
	pf.StringVar(&c.flags.origin, "origin", "", "Origin the static manifest is fetched from")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&c.flags.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		c.addCommand(),
		c.listCommand(),
		c.getCommand(),
		c.updateCommand(),
		c.deleteCommand(),
		c.exportCommand(),
		c.importCommand(),
		c.clearCommand(),
		c.fetchCommand(),
		c.cacheCommand(),
		c.statusCommand(),
		c.serveCommand(),
		c.versionCommand(),
	)

	return root
}

// setup загружает конфигурацию и создает App перед выполнением команды
func (c *Cli) setup(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipAppAnnotation] == "true" {
		return nil
	}

	cfg, err := config.Load(c.flags.configPath)
	if err != nil {
		return err
	}

	// Флаги имеют наивысший приоритет
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = c.flags.dataDir
	}
	if flags.Changed("storage") {
		cfg.Storage.Driver = c.flags.driver
	}
	if flags.Changed("origin") {
		cfg.Cache.Origin = c.flags.origin
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = c.flags.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = c.flags.logFormat
	}

	logger, err := logging.New(c.stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	a, err := c.newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	c.app = a
	return nil
}

// register активирует кэш для команд, которые ходят в сеть.
// Ошибка не фатальна: запросы идут в сеть напрямую.
func (c *Cli) register(ctx context.Context) {
	if err := c.app.Register(ctx); err != nil {
		c.app.Logger.Warn("offline cache is not active", "error", err)
	}
}
