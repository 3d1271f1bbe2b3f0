package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	auth "github.com/goliatone/go-auth-gate"
	"github.com/goliatone/go-auth-gate/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"pkt.systems/pslog"
)

type serveOptions struct {
	Listen          string        `env:"AUTHGATE_LISTEN"           envDefault:"127.0.0.1:8080"`
	DSN             string        `env:"AUTHGATE_DSN"              envDefault:"file:authgate.db?cache=shared"`
	ShutdownTimeout time.Duration `env:"AUTHGATE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func newRootCommand(logger pslog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "authgate",
		Short:         "Bearer credential gate over a primary and a custom identity store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newUserCommand(logger))
	return root
}

func newServeCommand(logger pslog.Logger) *cobra.Command {
	opts := serveOptions{}
	if err := env.Parse(&opts); err != nil {
		logger.Warn("serve defaults not parsed from env", "error", err)
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := auth.LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cmd.Context(), logger, cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Listen, "listen", "l", opts.Listen, "listen address")
	flags.StringVar(&opts.DSN, "dsn", opts.DSN, "SQLite DSN for the identity stores")
	flags.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", opts.ShutdownTimeout, "graceful shutdown timeout")
	return cmd
}

func runServe(ctx context.Context, logger pslog.Logger, cfg *auth.EnvConfig, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.Open(opts.DSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.CreateSchema(ctx, db); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := newServer(serverDeps{
		Config:   cfg,
		Primary:  store.NewPrimaryStore(db).WithLogger(logger),
		Custom:   store.NewCustomStore(db).WithLogger(logger),
		Logger:   logger,
		Registry: registry,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.Listen)
		errCh <- srv.Serve(opts.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	return srv.app.ShutdownWithContext(shutdownCtx)
}

func newUserCommand(logger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts in the identity stores",
	}

	var (
		dsn      string
		source   string
		acct     store.Account
		password string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account in the primary or custom store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := store.Open(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.CreateSchema(ctx, db); err != nil {
				return err
			}

			var s *store.Store
			switch auth.Source(source) {
			case auth.SourcePrimary:
				s = store.NewPrimaryStore(db)
			case auth.SourceCustom:
				s = store.NewCustomStore(db)
			default:
				return errors.New("--store must be primary or custom")
			}

			created, err := s.WithLogger(logger).Create(ctx, acct, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s account %d (%s)\n", source, created.ID, created.Username)
			return nil
		},
	}

	flags := create.Flags()
	flags.StringVar(&dsn, "dsn", "file:authgate.db?cache=shared", "SQLite DSN for the identity stores")
	flags.StringVar(&source, "store", string(auth.SourceCustom), "target store: primary or custom")
	flags.Int64Var(&acct.ID, "id", 0, "explicit account id (0 assigns one)")
	flags.StringVar(&acct.Username, "username", "", "username")
	flags.StringVar(&acct.Email, "email", "", "email")
	flags.StringVar(&acct.Role, "role", "authenticated", "role")
	flags.StringVar(&password, "password", "", "password")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}
