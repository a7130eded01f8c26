package directory

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/privdir/internal/audit"
	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/schema"
	"github.com/roach88/privdir/internal/store"
	"github.com/roach88/privdir/internal/testutil"
)

type fixture struct {
	store    *store.Store
	recorder *audit.Recorder
	dir      *Directory
}

// newFixture opens an in-memory store with both tables and seeds the
// classic trio: admin 200, bob 50, eve 10.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.CreateTable(ctx, schema.LogTable()))
	require.NoError(t, s.CreateTable(ctx, schema.UsersTable()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := audit.NewRecorder(s.DB(),
		audit.WithSink(audit.NopSink{}),
		audit.WithClock(testutil.NewStepClock().Now),
		audit.WithLogger(logger),
	)
	opts = append([]Option{
		WithLogger(logger),
		WithIDGenerator(testutil.NewConstantIDGenerator("id-1")),
	}, opts...)

	f := &fixture{store: s, recorder: rec, dir: New(s.DB(), rec, opts...)}
	f.seed(t, "admin", 200)
	f.seed(t, "bob", 50)
	f.seed(t, "eve", 10)
	return f
}

// seed inserts a row directly, bypassing the policy.
func (f *fixture) seed(t *testing.T, userID string, privilege int) {
	t.Helper()
	_, err := f.store.DB().Exec("INSERT INTO users (userID, privilege) VALUES (?, ?)", userID, privilege)
	require.NoError(t, err)
}

func (f *fixture) exec(t *testing.T, query string) {
	t.Helper()
	_, err := f.store.DB().Exec(query)
	require.NoError(t, err)
}

// rawCount counts rows without going through the directory or the audit log.
func (f *fixture) rawCount(t *testing.T, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.DB().QueryRow("SELECT COUNT(*) FROM users WHERE userID = ?", userID).Scan(&n))
	return n
}

func (f *fixture) rawPrivilege(t *testing.T, userID string) int {
	t.Helper()
	var p int
	require.NoError(t, f.store.DB().QueryRow("SELECT privilege FROM users WHERE userID = ?", userID).Scan(&p))
	return p
}

func (f *fixture) auditCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.store.DB().QueryRow("SELECT COUNT(*) FROM Log").Scan(&n))
	return n
}

func (f *fixture) lastAudit(t *testing.T) audit.Entry {
	t.Helper()
	entries, err := f.recorder.Entries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return entries[0]
}

func requireStatus(t *testing.T, res result.Result, status int) {
	t.Helper()
	require.Equal(t, status, res.Status, "trace: %s, err: %v", res.Trace, res.Err)
}
