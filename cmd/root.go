package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"songdwh/internal/catalog"
	"songdwh/internal/config"
	"songdwh/internal/observability"
	"songdwh/internal/ui"
)

type rootOptions struct {
	configFile string
}

// session bundles what a command needs once configuration is resolved
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	catalog *catalog.Catalog
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "songdwh",
		Short: "Build and load the song play analytics warehouse",
		Long: `songdwh creates the staging and star schema tables of the song play
warehouse, bulk loads the raw event and song JSON into staging and
populates the fact and dimension tables from it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (YAML, or INI such as dwh.cfg)")
	flags.String("dialect", "", "warehouse dialect: "+strings.Join(catalog.DialectNames(), ", "))
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	cmd.AddCommand(
		newCreateTablesCmd(opts),
		newETLCmd(opts),
		newRunCmd(opts),
		newRenderCmd(opts),
		newStatusCmd(opts),
		newCredentialsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		ui.ShowError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	return config.Load(config.LoadOptions{Path: opts.configFile, Flags: cmd.Flags()})
}

func newSession(cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cmd.ErrOrStderr(),
		Service: "songdwh",
		Version: Version,
	})
	if err != nil {
		return nil, err
	}

	dialect, err := catalog.DialectByName(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	c, err := catalog.New(dialect, cfg.LoadParams())
	if err != nil {
		return nil, err
	}
	logger.Debug("Catalog rendered",
		zap.String("dialect", dialect.Name()),
		zap.Int("statements", len(c.All())))

	return &session{cfg: cfg, logger: logger, catalog: c}, nil
}
