package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/privdir/internal/schema"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	assert.Equal(t, path, s.Path())
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	mustExec(t, s1, "CREATE TABLE kept (a TEXT)")
	s1.Close()

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	exists, err := s2.TableExists(context.Background(), "kept")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.ErrorContains(t, err, "database path is required")
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_MemoryIsSingleDatabase(t *testing.T) {
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE t (a TEXT)")

	// A second pooled connection would see an empty database
	for i := 0; i < 5; i++ {
		exists, err := s.TableExists(ctx, "t")
		require.NoError(t, err)
		assert.True(t, exists)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}

	var nilStore *Store
	assert.NoError(t, nilStore.Close())
}

func TestPragma_JournalMode(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := createTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := createTestStore(t)
	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestTableExists(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	exists, err := s.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.False(t, exists)

	mustExec(t, s, "CREATE TABLE users (id INTEGER)")
	exists, err = s.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.True(t, exists)

	// Views do not count
	mustExec(t, s, "CREATE VIEW v AS SELECT 1")
	exists, err = s.TableExists(ctx, "v")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTableExists_IgnoresCase(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustExec(t, s, "CREATE TABLE USERS (id INTEGER PRIMARY KEY, userID TEXT, privilege INTEGER)")

	for _, name := range []string{"users", "Users", "USERS"} {
		exists, err := s.TableExists(ctx, name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}

	cols, err := s.Columns(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, cols, 3)
}

func TestColumns_PreservesOrderAndTypeTags(t *testing.T) {
	s := createTestStore(t)
	mustExec(t, s, "CREATE TABLE t (b int, a TEXT, c VARCHAR(10), d)")

	cols, err := s.Columns(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, []schema.Column{
		{Name: "b", Type: "int"},
		{Name: "a", Type: "TEXT"},
		{Name: "c", Type: "VARCHAR(10)"},
		{Name: "d", Type: ""},
	}, cols)
}

func TestColumns_MissingTable(t *testing.T) {
	s := createTestStore(t)
	cols, err := s.Columns(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestCreateAndDropTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTable(ctx, schema.UsersTable()))

	cols, err := s.Columns(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []schema.Column{
		{Name: "id", Type: "INTEGER"},
		{Name: "userID", Type: "TEXT"},
		{Name: "privilege", Type: "INTEGER"},
	}, cols)

	// id is the rowid alias and autogenerates
	mustExec(t, s, "INSERT INTO users (userID, privilege) VALUES (?, ?)", "alice", 1)
	var id int64
	require.NoError(t, s.db.QueryRow("SELECT id FROM users WHERE userID = ?", "alice").Scan(&id))
	assert.Equal(t, int64(1), id)

	err = s.CreateTable(ctx, schema.UsersTable())
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, s.DropTable(ctx, "users"))
	exists, err := s.TableExists(ctx, "users")
	require.NoError(t, err)
	assert.False(t, exists)

	// Dropping an absent table is not an error
	assert.NoError(t, s.DropTable(ctx, "users"))
}

func TestCreateTable_RejectsInvalidMetadata(t *testing.T) {
	s := createTestStore(t)
	err := s.CreateTable(context.Background(), schema.Table{
		Name:    "t",
		Columns: []schema.Column{{Name: "a", Type: "TEXT); DROP TABLE users; --"}},
	})
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)

	err = s.DropTable(context.Background(), "users; --")
	require.ErrorAs(t, err, &verr)
}
