package services

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nsendoda/suggestion-box/internal/cryptox"
	"github.com/nsendoda/suggestion-box/internal/logging"
	"github.com/nsendoda/suggestion-box/internal/server/config"
	"github.com/nsendoda/suggestion-box/internal/server/models"
	"github.com/nsendoda/suggestion-box/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	clock    *fakeClock
	cfg      *config.Config
	vault    *cryptox.Vault
	sessions *SessionStore
	auth     *AuthService
	owners   *OwnerDirectory
	quota    *QuotaEngine
	draw     *DrawSelector
	letters  *LetterService
}

var testArgon = cryptox.Argon2Params{Time: 1, Memory: 1024, Threads: 1}

// newTestEnv wires every service over a fresh migrated SQLite file.
func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	return openTestEnv(t, repomanager.DriverSQLite, filepath.Join(t.TempDir(), "box.db"), mutate...)
}

// newPostgresTestEnv wires every service over the Postgres server named by
// SB_TEST_POSTGRES_DSN, inside a schema that is dropped afterwards. The
// test is skipped when the variable is unset.
func newPostgresTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	dsn := os.Getenv("SB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SB_TEST_POSTGRES_DSN not set")
	}

	admin, err := sql.Open(repomanager.DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { admin.Close() })

	schema := "box_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(`CREATE SCHEMA ` + schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`)
	})

	return openTestEnv(t, repomanager.DriverPostgres, withSearchPath(dsn, schema), mutate...)
}

// withSearchPath adds a search_path runtime parameter to a URL or
// key/value DSN.
func withSearchPath(dsn, schema string) string {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&search_path=" + schema
	}
	return dsn + "?search_path=" + schema
}

func openTestEnv(t *testing.T, driver, dsn string, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ReceiptSecret = "test-receipt-secret"
	for _, m := range mutate {
		m(cfg)
	}

	db, repos, err := repomanager.Open(ctx, driver, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repos.RunMigrations(ctx, db, logging.Nop()))

	vault, err := cryptox.NewVault(cryptox.SchemeArgon2id, cryptox.WithArgon2Params(testArgon))
	require.NoError(t, err)

	loc, err := cfg.Location()
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	logger := logging.Nop()

	env := &testEnv{db: db, repos: repos, clock: clock, cfg: cfg, vault: vault}
	env.sessions = NewSessionStore(db, repos, clock.Now)
	env.auth = NewAuthService(db, repos, vault, env.sessions, cfg, logger, clock.Now)
	env.owners = NewOwnerDirectory(db, repos, cfg.SignupsEnabled)
	env.quota = NewQuotaEngine(db, repos, clock.Now, cfg.AllowReopen)
	env.draw = NewDrawSelector(db, repos, clock.Now)
	env.letters = NewLetterService(db, repos, env.quota, env.draw, logger, clock.Now, LetterServiceOptions{
		Location:      loc,
		AllowReopen:   cfg.AllowReopen,
		ReceiptSecret: []byte(cfg.ReceiptSecret),
		ReceiptTTL:    cfg.ReceiptTTL,
	})
	return env
}

func (e *testEnv) signup(t *testing.T, id string) *models.Session {
	t.Helper()
	s, err := e.auth.Signup(context.Background(), id, "password1", "")
	require.NoError(t, err)
	return s
}

func (e *testEnv) submit(t *testing.T, ownerID string, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		l, err := e.letters.Submit(context.Background(), ownerID, "letter")
		require.NoError(t, err)
		ids = append(ids, l.ID)
		e.clock.Advance(time.Second)
	}
	return ids
}

func (e *testEnv) status(t *testing.T, id int64) models.Status {
	t.Helper()
	l, err := e.repos.Letters(e.db).Get(context.Background(), id)
	require.NoError(t, err)
	return l.Status
}

func (e *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func (e *testEnv) setStatusDirect(t *testing.T, id int64, st models.Status) {
	t.Helper()
	_, err := e.db.Exec(e.repos.Dialect().Rebind(`UPDATE letters SET status = ? WHERE id = ?`), string(st), id)
	require.NoError(t, err)
}
