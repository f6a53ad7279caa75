// Package commands implements the skyscan command line interface.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/skyscan/internal/app"
	"github.com/Sternrassler/skyscan/internal/config"
	"github.com/Sternrassler/skyscan/pkg/logging"
	"github.com/Sternrassler/skyscan/pkg/metrics"
)

// CLI represents the skyscan command line interface.
type CLI struct {
	rootCmd *cobra.Command
	flags   globalFlags
	getenv  func(string) string
	appOpts []app.Option

	app     *app.App
	logger  zerolog.Logger
	metrics chan error
	stop    context.CancelFunc
}

type globalFlags struct {
	configPath  string
	logLevel    string
	pretty      bool
	output      string
	limit       int
	maxPerHost  int
	pageSize    int
	maxRetries  int
	userAgent   string
	redisAddr   string
	redisKey    string
	metricsAddr string
}

// New creates the CLI. appOpts are passed to app.New for every command that
// talks to the network.
func New(appOpts ...app.Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "skyscan",
		Short:         "Stream block relationships and records from the atproto network",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		rootCmd: rootCmd,
		getenv:  os.Getenv,
		appOpts: appOpts,
		logger:  zerolog.Nop(),
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&c.flags.configPath, "config", "c", "", "Path to a YAML config file")
	pf.StringVar(&c.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&c.flags.pretty, "pretty", false, "Human-readable logs")
	pf.StringVarP(&c.flags.output, "output", "o", app.FormatText, "Output format (text or json)")
	pf.IntVarP(&c.flags.limit, "limit", "n", 0, "Stop after this many values (0 means all)")
	pf.IntVar(&c.flags.maxPerHost, "max-per-host", 0, "Concurrent requests per host (0 selects the default of 5)")
	pf.IntVar(&c.flags.pageSize, "page-size", 0, "Records per listRecords page")
	pf.IntVar(&c.flags.maxRetries, "max-retries", 0, "Retries for failed requests")
	pf.StringVar(&c.flags.userAgent, "user-agent", "", "User-Agent sent to remote services")
	pf.StringVar(&c.flags.redisAddr, "redis-addr", "", "Also add streamed values to Redis sets at this address")
	pf.StringVar(&c.flags.redisKey, "redis-key", "", "Prefix of the Redis set keys")
	pf.StringVar(&c.flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(c.newBlocksCmd())
	rootCmd.AddCommand(c.newBlockedByCmd())
	rootCmd.AddCommand(c.newLinksCmd())
	rootCmd.AddCommand(c.newRecordsCmd())
	rootCmd.AddCommand(c.newResolveCmd())
	rootCmd.AddCommand(c.newScanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context and releases the
// application afterwards.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	err := c.rootCmd.Execute()
	return errors.Join(err, c.shutdown())
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// SetEnv replaces the environment lookup used for SKYSCAN_* overrides.
func (c *CLI) SetEnv(getenv func(string) string) {
	c.getenv = getenv
}

// config loads the config file and environment, then applies the flags
// that were set explicitly.
func (c *CLI) config() (config.Config, error) {
	cfg, err := config.LoadWithEnv(c.flags.configPath, c.getenv)
	if err != nil {
		return config.Config{}, err
	}

	pf := c.rootCmd.PersistentFlags()
	if pf.Changed("log-level") {
		cfg.LogLevel = c.flags.logLevel
	}
	if pf.Changed("pretty") {
		cfg.LogPretty = c.flags.pretty
	}
	if pf.Changed("max-per-host") {
		cfg.MaxPerHost = c.flags.maxPerHost
	}
	if pf.Changed("page-size") {
		cfg.PageSize = c.flags.pageSize
	}
	if pf.Changed("max-retries") {
		cfg.MaxRetries = c.flags.maxRetries
	}
	if pf.Changed("user-agent") {
		cfg.UserAgent = c.flags.userAgent
	}
	if pf.Changed("redis-addr") {
		cfg.RedisAddr = c.flags.redisAddr
	}
	if pf.Changed("redis-key") {
		cfg.RedisKey = c.flags.redisKey
	}
	if pf.Changed("metrics-addr") {
		cfg.MetricsAddr = c.flags.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// setup builds the application for cmd: logging to stderr, the wired
// components writing to stdout and, if configured, the metrics server.
func (c *CLI) setup(cmd *cobra.Command) (*app.App, error) {
	if c.flags.limit < 0 {
		return nil, fmt.Errorf("--limit must be >= 0 (got %d)", c.flags.limit)
	}

	cfg, err := c.config()
	if err != nil {
		return nil, err
	}

	if _, err := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: cmd.ErrOrStderr(),
	}); err != nil {
		return nil, err
	}
	c.logger = logging.NewLogger("cli")

	opts := append([]app.Option{app.WithOutput(cmd.OutOrStdout(), c.flags.output)}, c.appOpts...)
	a, err := app.New(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, err
	}
	c.app = a

	if cfg.MetricsAddr != "" {
		ctx, stop := context.WithCancel(context.Background())
		c.stop = stop
		c.metrics = make(chan error, 1)
		go func() {
			c.metrics <- metrics.Serve(ctx, cfg.MetricsAddr, c.logger)
		}()
	}

	return a, nil
}

// shutdown stops the metrics server and closes the application.
func (c *CLI) shutdown() error {
	var errs []error
	if c.stop != nil {
		c.stop()
		if err := <-c.metrics; err != nil {
			c.logger.Warn().Err(err).Msg("Metrics server failed")
		}
		c.stop = nil
	}
	if c.app != nil {
		errs = append(errs, c.app.Close())
		c.app = nil
	}
	return errors.Join(errs...)
}

// withApp adapts fn to a cobra RunE that builds the application first.
func (c *CLI) withApp(fn func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := c.setup(cmd)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), a, args)
	}
}
