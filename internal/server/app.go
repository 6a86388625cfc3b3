// Package server assembles the suggestion box: it opens storage, runs
// migrations, builds the services and serves the HTTP API until the
// process is signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nsendoda/suggestion-box/internal/cryptox"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/config"
	"github.com/nsendoda/suggestion-box/internal/server/httpapi"
	"github.com/nsendoda/suggestion-box/internal/server/metrics"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
	"github.com/nsendoda/suggestion-box/internal/server/services"
)

const sessionPurgeInterval = time.Hour

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions *services.SessionStore
	server   *httpapi.Server
}

// NewApp opens the database named by c, migrates it and wires every
// service. The caller owns the returned App and must call Close.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(c.LogBackend, c.LogFormat, logOut)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, repos, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	vault, err := cryptox.NewVault(c.PasswordScheme)
	if err != nil {
		db.Close()
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		db.Close()
		return nil, err
	}

	now := time.Now
	sessions := services.NewSessionStore(db, repos, now)
	authSvc := services.NewAuthService(db, repos, vault, sessions, c, logger, now)
	owners := services.NewOwnerDirectory(db, repos, c.SignupsEnabled)
	quota := services.NewQuotaEngine(db, repos, now, c.AllowReopen)
	draw := services.NewDrawSelector(db, repos, now)
	letters := services.NewLetterService(db, repos, quota, draw, logger, now, services.LetterServiceOptions{
		Location:      loc,
		AllowReopen:   c.AllowReopen,
		ReceiptSecret: []byte(c.ReceiptSecret),
		ReceiptTTL:    c.ReceiptTTL,
	})

	router := httpapi.NewRouter(authSvc, letters, owners, logger, metrics.New(true), httpapi.Options{
		CookieSecure:        c.CookieSecure,
		AllowedOrigins:      c.AllowedOrigins,
		SubmitRatePerMinute: c.SubmitRatePerMinute,
		TrustProxyHeaders:   c.TrustProxyHeaders,
		Ping:                db.PingContext,
	})

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		sessions: sessions,
		server:   httpapi.NewServer(c.ListenAddr, router, logger),
	}, nil
}

func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// purgeSessions deletes expired sessions until ctx is done.
func (app *App) purgeSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.sessions.PurgeExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "session purge failed", "err", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired sessions purged", "count", n)
			}
		}
	}
}

// Run serves until ctx is cancelled or the process receives SIGINT,
// SIGTERM or SIGQUIT.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "driver", app.config.DatabaseDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.purgeSessions(ctx)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
}
