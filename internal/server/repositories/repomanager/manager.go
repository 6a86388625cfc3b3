// Package repomanager vends repositories for one SQL backend and owns its
// schema migrations (goose, embedded SQL).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/nsendoda/suggestion-box/internal/dbx"
	"github.com/nsendoda/suggestion-box/internal/filex"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/migrations"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/letters"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/owners"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/sessions"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/settings"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// RepositoryManager builds repositories bound to a DBTX so services can run
// several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB, logger logging.Logger) error
	Dialect() dbx.Dialect
	Owners(db dbx.DBTX) owners.Repository
	Letters(db dbx.DBTX) letters.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Settings(db dbx.DBTX) settings.Repository
}

type SQLRepositoryManager struct {
	dialect dbx.Dialect
}

func NewPostgresRepositoryManager() *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dbx.Postgres}
}

func NewSQLiteRepositoryManager() *SQLRepositoryManager {
	return &SQLRepositoryManager{dialect: dbx.SQLite}
}

func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.dialect }

func (m *SQLRepositoryManager) Owners(db dbx.DBTX) owners.Repository {
	return owners.NewRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Letters(db dbx.DBTX) letters.Repository {
	return letters.NewRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewRepository(db, m.dialect)
}

func (m *SQLRepositoryManager) Settings(db dbx.DBTX) settings.Repository {
	return settings.NewRepository(db, m.dialect)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// gooseLogger routes goose's progress lines into a Logger.
type gooseLogger struct {
	ctx context.Context
	l   logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Info(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Error(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// RunMigrations applies the embedded migrations for the manager's dialect,
// reporting goose's progress to logger. goose keeps its base FS, dialect and
// logger in package state, so concurrent calls must not race.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB, logger logging.Logger) error {
	goose.SetLogger(gooseLogger{ctx: ctx, l: logger.With("module", "migrations")})
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.Name()); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, m.dialect.Name())
}

// Open connects to the database named by driver and dsn and returns the
// matching manager. SQLite is limited to a single connection so that every
// transaction runs alone.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var m *SQLRepositoryManager
	switch driver {
	case DriverPostgres, "postgres":
		driver = DriverPostgres
		m = NewPostgresRepositoryManager()
	case DriverSQLite, "sqlite3":
		driver = DriverSQLite
		m = NewSQLiteRepositoryManager()
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if m.dialect == dbx.SQLite {
		if path := filex.SQLitePath(dsn); path != "" {
			if err := filex.EnsureParentDir(path); err != nil {
				return nil, nil, err
			}
		}
	}
	if m.dialect == dbx.SQLite && !strings.Contains(dsn, "_time_format=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_time_format=sqlite"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}

	if m.dialect == dbx.SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, m, nil
}
