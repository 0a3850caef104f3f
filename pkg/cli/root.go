// Package cli is the providerdesk command line: list screens, submit
// mutations and run the sandbox data service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	cliopenapi "github.com/nimburion/providerdesk/pkg/cli/openapi"
	"github.com/nimburion/providerdesk/pkg/config"
	"github.com/nimburion/providerdesk/pkg/dashboard"
	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/i18n"
	"github.com/nimburion/providerdesk/pkg/mutation"
	"github.com/nimburion/providerdesk/pkg/observability/logger"
	"github.com/nimburion/providerdesk/pkg/observability/metrics"
	"github.com/nimburion/providerdesk/pkg/observability/tracing"
	"github.com/nimburion/providerdesk/pkg/query"
	"github.com/nimburion/providerdesk/pkg/version"
)

// flagBindings maps persistent flags onto config keys.
var flagBindings = map[string]string{
	"api-url":   "api.base_url",
	"scope":     "api.scope",
	"token":     "api.token",
	"locale":    "locale",
	"log-level": "log.level",
	"media-url": "media.base_url",
}

// Options configures the root command.
type Options struct {
	EnvPrefix  string
	ConfigPath string
	Stdout     io.Writer
	Stderr     io.Writer
	// Catalog defaults to i18n.Default().
	Catalog *i18n.Catalog
}

// NewRootCommand builds the providerdesk command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.EnvPrefix
	}
	if opts.Catalog == nil {
		opts.Catalog = i18n.Default()
	}

	root := &cobra.Command{
		Use:           version.Name,
		Short:         "Provider dashboard for the travel marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if opts.Stdout != nil {
		root.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		root.SetErr(opts.Stderr)
	}

	var cfgPath string
	pf := root.PersistentFlags()
	pf.StringVarP(&cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	pf.String("api-url", "", "data service base url")
	pf.String("scope", "", "data service path scope")
	pf.String("token", "", "bearer token for the data service")
	pf.String("media-url", "", "base url that relative image paths resolve against")
	pf.String("locale", "", "message locale, e.g. en or it")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		return config.NewLoader(cfgPath, opts.EnvPrefix).WithFlags(cmd.Flags(), flagBindings).Load()
	}
	start := func(cmd *cobra.Command) (*app, error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		return newApp(cmd.Context(), cfg, opts.Catalog, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	root.AddCommand(
		newListCommand(start),
		newCreateCommand(start),
		newUpdateCommand(start),
		newDeleteCommand(start),
		newEntitiesCommand(),
		newSandboxCommand(loadConfig),
		newConfigCommand(loadConfig),
		cliopenapi.NewCommand(cliopenapi.CommandOptions{ServiceVersion: version.Current().DocumentVersion()}),
		newVersionCommand(),
	)
	return root
}

// app is the wired runtime of one command invocation.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	tr      i18n.Translator
	client  *dataservice.Client
	queries *query.Client
	coord   *mutation.Coordinator
	media   *dataservice.MediaResolver
	images  int
	out     io.Writer
	errOut  io.Writer
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, catalog *i18n.Catalog, out, errOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, tr: catalog.ForLocale(cfg.Locale), out: out, errOut: errOut, images: cfg.Media.ImageRetries}

	log, err := newLogger(cfg.Log, errOut)
	if err != nil {
		return nil, err
	}
	a.log = log

	if err := a.startTelemetry(ctx); err != nil {
		a.close()
		return nil, err
	}

	info := version.Current()
	a.client, err = dataservice.New(dataservice.Config{
		BaseURL:         cfg.API.BaseURL,
		Scope:           cfg.API.Scope,
		Timeout:         cfg.API.Timeout,
		RateLimit:       cfg.API.RateLimit,
		Burst:           cfg.API.Burst,
		BreakerFailures: cfg.API.BreakerFailures,
		BreakerCooldown: cfg.API.BreakerCooldown,
		UserAgent:       info.UserAgent(),
	},
		dataservice.WithTokenSource(dataservice.NewStaticToken(cfg.API.Token)),
		dataservice.WithLogger(log),
	)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Media.BaseURL != "" {
		if a.media, err = dataservice.NewMediaResolver(cfg.Media.BaseURL); err != nil {
			a.close()
			return nil, err
		}
	}

	store, err := newSnapshotStore(cfg.Cache)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	a.queries = query.NewClient(query.WithStore(store, cfg.Cache.TTL), query.WithLogger(log))

	validator := mutation.NewJSONSchemaValidator()
	if err := dashboard.RegisterSchemas(validator); err != nil {
		a.close()
		return nil, fmt.Errorf("register form schemas: %w", err)
	}
	a.coord = mutation.NewCoordinator(a.client, a.queries,
		mutation.WithValidator(validator),
		mutation.WithTimeout(cfg.API.MutationTimeout),
		mutation.WithLogger(log),
		mutation.WithNotifier(mutation.NotifierFunc(func(_ context.Context, msg i18n.Message) {
			fmt.Fprintln(a.out, msg.Localize(a.tr))
		})),
		mutation.WithAuthHook(func(context.Context, error) {
			fmt.Fprintln(a.errOut, i18n.NewMessage(i18n.CodeUnauthorized, nil).Localize(a.tr))
		}),
	)
	return a, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return logger.NewZapLogger(logger.Config{Level: level, Format: format, Output: out})
}

func newSnapshotStore(cfg config.CacheConfig) (query.Store, error) {
	if cfg.Backend != config.CacheBackendRedis {
		return query.NewInMemoryStore(), nil
	}
	return query.NewRedisStore(query.RedisConfig{
		URL:              cfg.RedisURL,
		Prefix:           cfg.Prefix,
		OperationTimeout: 2 * time.Second,
	})
}

// startTelemetry installs the tracer provider and serves metrics when
// enabled.
func (a *app) startTelemetry(ctx context.Context) error {
	tp, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    a.cfg.Tracing.ServiceName,
		ServiceVersion: version.Current().Version,
		Environment:    a.cfg.Tracing.Environment,
		Endpoint:       a.cfg.Tracing.Endpoint,
		SampleRate:     a.cfg.Tracing.SampleRate,
		Enabled:        a.cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	if !a.cfg.Metrics.Enabled {
		return nil
	}
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           metrics.NewRegistry().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", "addr", srv.Addr, "error", err)
		}
	}()
	a.closers = append(a.closers, srv.Shutdown)
	return nil
}

// close releases everything newApp started, newest first.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.log != nil {
			a.log.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
	if z, ok := a.log.(*logger.ZapLogger); ok {
		_ = z.Sync()
	}
}

// Execute runs the root command with the process arguments and exits
// non-zero on failure.
func Execute() {
	root := NewRootCommand(Options{})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		os.Exit(1)
	}
}
