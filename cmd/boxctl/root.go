package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/nsendoda/suggestion-box/internal/cryptox"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/config"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
	"github.com/nsendoda/suggestion-box/internal/server/services"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	driver     string
	dsn        string
}

// env is what every subcommand works against.
type env struct {
	cfg   *config.Config
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func (e *env) Close() error { return e.db.Close() }

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadBase(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.DatabaseDriver = o.driver
	}
	if o.dsn != "" {
		cfg.DatabaseDSN = o.dsn
	}
	return cfg, nil
}

func (o *rootOptions) open(ctx context.Context) (*env, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	db, repos, err := repomanager.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return &env{cfg: cfg, db: db, repos: repos}, nil
}

func (e *env) authService(logger logging.Logger) (*services.AuthService, error) {
	vault, err := cryptox.NewVault(e.cfg.PasswordScheme)
	if err != nil {
		return nil, err
	}
	sessions := services.NewSessionStore(e.db, e.repos, time.Now)
	return services.NewAuthService(e.db, e.repos, vault, sessions, e.cfg, logger, time.Now), nil
}

func (e *env) ownerDirectory() *services.OwnerDirectory {
	return services.NewOwnerDirectory(e.db, e.repos, e.cfg.SignupsEnabled)
}

// withEnv opens the database for the duration of fn.
func (o *rootOptions) withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "boxctl",
		Short:         "Administer a suggestion box database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("SB_CONFIG"), "path to the JSON config file")
	root.PersistentFlags().StringVar(&opts.driver, "driver", "", "database driver (pgx or sqlite)")
	root.PersistentFlags().StringVarP(&opts.dsn, "dsn", "d", "", "database DSN")

	root.AddCommand(
		newMigrateCmd(opts),
		newOwnerCmd(opts),
		newSignupsCmd(opts),
		newSessionsCmd(opts),
	)
	return root
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, e *env) error {
				logger, err := logging.New("slog", "text", cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				if err := e.repos.RunMigrations(ctx, e.db, logger); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", e.repos.Dialect().Name())
				return nil
			})
		},
	}
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Manage login sessions",
	}
	sessions.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, e *env) error {
				n, err := services.NewSessionStore(e.db, e.repos, time.Now).PurgeExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d expired sessions removed\n", n)
				return nil
			})
		},
	})
	return sessions
}

func newSignupsCmd(opts *rootOptions) *cobra.Command {
	signups := &cobra.Command{
		Use:   "signups",
		Short: "Open or close self-service signups",
	}
	set := func(enabled bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, e *env) error {
				dir := e.ownerDirectory()
				if err := dir.SetSignupsEnabled(ctx, enabled); err != nil {
					return err
				}
				on, err := dir.SignupsEnabled(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signups enabled: %t\n", on)
				return nil
			})
		}
	}
	signups.AddCommand(
		&cobra.Command{Use: "enable", Short: "Allow new owners to sign up", Args: cobra.NoArgs, RunE: set(true)},
		&cobra.Command{Use: "disable", Short: "Stop accepting signups", Args: cobra.NoArgs, RunE: set(false)},
	)
	return signups
}
