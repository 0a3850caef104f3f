package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/nimburion/providerdesk/pkg/config"
	"github.com/nimburion/providerdesk/pkg/configschema"
	"github.com/nimburion/providerdesk/pkg/migrate"
	"github.com/nimburion/providerdesk/pkg/sandbox"
	"github.com/nimburion/providerdesk/pkg/version"
)

type configLoader func(cmd *cobra.Command) (*config.Config, error)

func newSandboxCommand(load configLoader) *cobra.Command {
	var (
		addr, db, token string
		loadSandbox     configLoader
	)
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run the local data service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSandbox(cmd)
			if err != nil {
				return err
			}
			return runSandbox(cmd, cfg)
		},
	}
	// loadSandbox applies the sandbox flags the user set over the loaded
	// configuration.
	loadSandbox = func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := load(cmd)
		if err != nil {
			return nil, err
		}
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Sandbox.Addr = addr
		}
		if flags.Changed("db") {
			cfg.Sandbox.DBPath = db
		}
		if flags.Changed("sandbox-token") {
			cfg.Sandbox.Token = token
		}
		return cfg, nil
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&addr, "addr", "", "listen address (default from config)")
	pf.StringVar(&db, "db", "", `SQLite database path, ":memory:" for a throwaway store`)
	pf.StringVar(&token, "sandbox-token", "", "bearer token clients must send")
	cmd.AddCommand(newMigrateCommand(loadSandbox))
	return cmd
}

func newMigrateCommand(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status] [steps]",
		Short: "Apply, revert or list the sandbox schema migrations",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, steps, err := migrate.ParseArgs(args)
			if err != nil {
				return err
			}
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			db, err := sandbox.OpenDB(cfg.Sandbox.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			m, err := sandbox.NewMigrator(db)
			if err != nil {
				return err
			}
			status, err := migrate.Run(cmd.Context(), m, direction, steps, migrate.Options{Logger: log})
			if err != nil {
				return err
			}
			return printMigrations(cmd.OutOrStdout(), status)
		},
	}
}

func printMigrations(out io.Writer, status *migrate.Status) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE\tAPPLIED AT")
	for _, a := range status.Applied {
		fmt.Fprintf(w, "%d\t%s\tapplied\t%s\n", a.Version, a.Name, a.AppliedAt.Format(time.RFC3339))
	}
	for _, p := range status.Pending {
		fmt.Fprintf(w, "%d\t%s\tpending\t-\n", p.Version, p.Name)
	}
	return w.Flush()
}

func runSandbox(cmd *cobra.Command, cfg *config.Config) error {
	log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, err := sandbox.Open(cfg.Sandbox.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := sandbox.NewServer(store, sandbox.DashboardResources(), sandbox.Config{
		Token:          cfg.Sandbox.Token,
		MaxUploadBytes: cfg.Sandbox.MaxUploadBytes,
		Version:        version.Current().DocumentVersion(),
	}, log)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Sandbox.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("sandbox data service listening", "addr", httpServer.Addr, "db", cfg.Sandbox.DBPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("sandbox data service shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func newConfigCommand(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()
			out, err := yaml.Marshal(configschema.Values(&redacted))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := configschema.Build()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schema)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := load(cmd); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	})
	return cmd
}

func newVersionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Current()
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(info)
			}
			fmt.Fprintf(out, "Name:       %s\n", info.Name)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "Go:         %s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
