package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/privdir/internal/audit"
	"github.com/roach88/privdir/internal/schema"
	"github.com/roach88/privdir/internal/store"
	"github.com/roach88/privdir/internal/testutil"
)

type fixture struct {
	store    *store.Store
	recorder *audit.Recorder
	checker  *Checker
}

// newFixture opens an in-memory store with a Log table and a checker over it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateTable(context.Background(), schema.LogTable()))
	return newFixtureOn(t, s, s)
}

func newFixtureOn(t *testing.T, s *store.Store, catalog Catalog) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := audit.NewRecorder(s.DB(),
		audit.WithSink(audit.NopSink{}),
		audit.WithClock(testutil.NewStepClock().Now),
		audit.WithLogger(logger),
	)
	return &fixture{
		store:    s,
		recorder: rec,
		checker: NewChecker(catalog, rec,
			WithLogger(logger),
			WithIDGenerator(testutil.NewConstantIDGenerator("id-1")),
		),
	}
}

func (f *fixture) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := f.store.DB().Exec(query, args...)
	require.NoError(t, err)
}

func (f *fixture) auditRows(t *testing.T) []audit.Entry {
	t.Helper()
	entries, err := f.recorder.Entries(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func (f *fixture) columns(t *testing.T, table string) []schema.Column {
	t.Helper()
	cols, err := f.store.Columns(context.Background(), table)
	require.NoError(t, err)
	return cols
}

// faultyCatalog fails the configured calls and delegates the rest.
type faultyCatalog struct {
	*store.Store
	existsErr  error
	columnsErr error
	createErr  error
	dropErr    error
}

func (c *faultyCatalog) TableExists(ctx context.Context, name string) (bool, error) {
	if c.existsErr != nil {
		return false, c.existsErr
	}
	return c.Store.TableExists(ctx, name)
}

func (c *faultyCatalog) Columns(ctx context.Context, name string) ([]schema.Column, error) {
	if c.columnsErr != nil {
		return nil, c.columnsErr
	}
	return c.Store.Columns(ctx, name)
}

func (c *faultyCatalog) CreateTable(ctx context.Context, t schema.Table) error {
	if c.createErr != nil {
		return c.createErr
	}
	return c.Store.CreateTable(ctx, t)
}

func (c *faultyCatalog) DropTable(ctx context.Context, name string) error {
	if c.dropErr != nil {
		return c.dropErr
	}
	return c.Store.DropTable(ctx, name)
}

// names strips primary-key flags so live and declared columns compare.
func names(cols []schema.Column) []schema.Column {
	out := make([]schema.Column, len(cols))
	for i, c := range cols {
		out[i] = schema.Column{Name: c.Name, Type: c.Type}
	}
	return out
}
