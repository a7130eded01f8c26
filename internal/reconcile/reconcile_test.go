package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/schema"
)

func TestCheck_Missing(t *testing.T) {
	f := newFixture(t)

	rep, res := f.checker.Check(context.Background(), schema.UsersTable())

	require.True(t, res.OK())
	assert.Equal(t, Missing, rep.Outcome)
	assert.Nil(t, rep.Err())
	assert.Equal(t, "_Log-OK_checkTable-OK(WARN):table does not exist", res.Trace.String())
	assert.Equal(t, "id-1", res.ID)

	rows := f.auditRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "checkTable", rows[0].EventName)
	assert.Equal(t, "TABLE:users", rows[0].Object)
	assert.Equal(t, "SYSTEM", rows[0].Subject)
	assert.Equal(t, "OK(WARN):table does not exist", rows[0].Status)
}

func TestCheck_Valid(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "CREATE TABLE users (id INTEGER PRIMARY KEY, userID TEXT, privilege INTEGER)")

	rep, res := f.checker.Check(context.Background(), schema.UsersTable())

	require.True(t, res.OK())
	assert.Equal(t, Valid, rep.Outcome)
	assert.Equal(t, -1, rep.Index)
	assert.Equal(t, "_Log-OK_checkTable-OK", res.Trace.String())
}

func TestCheck_Divergence(t *testing.T) {
	tests := []struct {
		name     string
		ddl      string
		outcome  Outcome
		index    int
		observed string
		expected string
		status   string
	}{
		{
			name:     "too few columns",
			ddl:      "CREATE TABLE users (id INTEGER, userID TEXT)",
			outcome:  TooFewColumns,
			index:    -1,
			observed: "2",
			expected: "3",
			status:   "FAIL:the number of columns is lesser than expected",
		},
		{
			name:     "column name",
			ddl:      "CREATE TABLE users (id INTEGER, name TEXT, privilege INTEGER)",
			outcome:  ColumnNameMismatch,
			index:    1,
			observed: "name",
			expected: "userID",
			status:   `FAIL:column name is not equal to expected("name" != "userID")`,
		},
		{
			name:     "column type",
			ddl:      "CREATE TABLE users (id INTEGER, userID TEXT, privilege INT)",
			outcome:  ColumnTypeMismatch,
			index:    2,
			observed: "INT",
			expected: "INTEGER",
			status:   `FAIL:column type is not equal to expected("INT" != "INTEGER")`,
		},
		{
			name:     "type compare is case sensitive",
			ddl:      "CREATE TABLE users (id integer, userID TEXT, privilege INTEGER)",
			outcome:  ColumnTypeMismatch,
			index:    0,
			observed: "integer",
			expected: "INTEGER",
			status:   `FAIL:column type is not equal to expected("integer" != "INTEGER")`,
		},
		{
			name:     "name checked before type",
			ddl:      "CREATE TABLE users (id INTEGER, login BLOB, privilege INTEGER)",
			outcome:  ColumnNameMismatch,
			index:    1,
			observed: "login",
			expected: "userID",
			status:   `FAIL:column name is not equal to expected("login" != "userID")`,
		},
		{
			name:     "too many columns",
			ddl:      "CREATE TABLE users (id INTEGER, userID TEXT, privilege INTEGER, extra TEXT)",
			outcome:  TooManyColumns,
			index:    -1,
			observed: "4",
			expected: "3",
			status:   "FAIL:the number of columns is greater than expected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.exec(t, tt.ddl)

			rep, res := f.checker.Check(context.Background(), schema.UsersTable())

			require.True(t, res.OK(), "divergence is not a failed result")
			assert.Equal(t, tt.outcome, rep.Outcome)
			assert.Equal(t, tt.index, rep.Index)
			assert.Equal(t, tt.observed, rep.Observed)
			assert.Equal(t, tt.expected, rep.Expected)
			assert.Equal(t, tt.status, rep.Status())
			assert.True(t, rep.Outcome.Diverged())
			assert.True(t, result.IsSchemaMismatch(rep.Err()))
			assert.Equal(t, "_Log-OK_checkTable-"+tt.status, res.Trace.String())

			rows := f.auditRows(t)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.status, rows[0].Status)
		})
	}
}

func TestCheck_DifferentColumnListsNeverValid(t *testing.T) {
	lists := [][]schema.Column{
		{{Name: "a", Type: "TEXT"}},
		{{Name: "a", Type: "INTEGER"}},
		{{Name: "b", Type: "TEXT"}},
		{{Name: "a", Type: "text"}},
		{{Name: "a", Type: "TEXT"}, {Name: "b", Type: "TEXT"}},
		{{Name: "b", Type: "TEXT"}, {Name: "a", Type: "TEXT"}},
		{{Name: "a", Type: "TEXT"}, {Name: "b", Type: "INTEGER"}},
		{{Name: "a", Type: "TEXT"}, {Name: "b", Type: "TEXT"}, {Name: "c", Type: "REAL"}},
		{{Name: "a", Type: "VARCHAR(10)"}},
		{{Name: "a", Type: "VARCHAR(20)"}},
	}

	for i, c1 := range lists {
		for j, c2 := range lists {
			t.Run(fmt.Sprintf("%d_vs_%d", i, j), func(t *testing.T) {
				f := newFixture(t)
				ctx := context.Background()
				require.NoError(t, f.store.CreateTable(ctx, schema.Table{Name: "t", Columns: c1}))

				rep, res := f.checker.Check(ctx, schema.Table{Name: "t", Columns: c2})
				require.True(t, res.OK())

				if i == j {
					assert.Equal(t, Valid, rep.Outcome)
				} else {
					assert.NotEqual(t, Valid, rep.Outcome)
					assert.True(t, rep.Outcome.Diverged())
				}
			})
		}
	}
}

func TestCheck_StoreError(t *testing.T) {
	f := newFixture(t)
	engineErr := errors.New("disk I/O error")
	faulty := newFixtureOn(t, f.store, &faultyCatalog{Store: f.store, columnsErr: engineErr})
	f.exec(t, "CREATE TABLE users (id INTEGER)")

	rep, res := faulty.checker.Check(context.Background(), schema.UsersTable())

	assert.Equal(t, Unknown, rep.Outcome)
	assert.Equal(t, CheckStoreError, res.Status)
	assert.True(t, result.IsStoreError(res.Err))
	assert.ErrorIs(t, res.Err, engineErr)
	assert.Equal(t, "_Log-OK_checkTable-FAIL_ERROR-SQLite:disk I/O error", res.Trace.String())
}

func TestCheck_WithoutLogTableStillChecks(t *testing.T) {
	f := newFixture(t)
	f.exec(t, "DROP TABLE Log")

	rep, res := f.checker.Check(context.Background(), schema.UsersTable())

	require.True(t, res.OK(), "audit failure never vetoes the check")
	assert.Equal(t, Missing, rep.Outcome)
	require.Len(t, res.Trace, 2)
	assert.Contains(t, res.Trace[0].Status, "FAIL_ERROR-SQLite:no such table: Log")
	assert.Equal(t, "checkTable", res.Trace[1].Op)
}

func TestEnsure_CreatesMissingTableAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := schema.UsersTable()

	action, res := f.checker.Ensure(ctx, users)
	require.True(t, res.OK(), res.Trace.String())
	assert.Equal(t, Created, action)
	assert.Equal(t,
		"_Log-OK_checkTable-OK(WARN):table does not exist_Log-OK_createTable-OK",
		res.Trace.String())
	assert.Equal(t, names(users.Columns), f.columns(t, "users"))

	f.exec(t, "INSERT INTO users (userID, privilege) VALUES ('admin', 200)")

	action, res = f.checker.Ensure(ctx, users)
	require.True(t, res.OK())
	assert.Equal(t, Kept, action)
	assert.Equal(t, "_Log-OK_checkTable-OK_Log-OK_createTable-OK", res.Trace.String())

	rep, res := f.checker.Check(ctx, users)
	require.True(t, res.OK())
	assert.Equal(t, Valid, rep.Outcome)

	// A kept table keeps its rows
	var count int
	require.NoError(t, f.store.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnsure_RecreatesDivergentTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exec(t, "CREATE TABLE users (id INTEGER, name TEXT, privilege INTEGER)")
	f.exec(t, "INSERT INTO users (name, privilege) VALUES ('old', 1)")

	action, res := f.checker.Ensure(ctx, schema.UsersTable())

	require.True(t, res.OK(), res.Trace.String())
	assert.Equal(t, Recreated, action)
	assert.Equal(t,
		`_Log-OK_checkTable-FAIL:column name is not equal to expected("name" != "userID")`+
			"_Log-OK_dropTable-OK_Log-OK_createTable-OK",
		res.Trace.String())
	assert.Equal(t, names(schema.UsersTable().Columns), f.columns(t, "users"))

	var count int
	require.NoError(t, f.store.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Zero(t, count, "recreation discards rows")

	var events []string
	for _, row := range f.auditRows(t) {
		events = append(events, row.EventName)
	}
	assert.Equal(t, []string{"checkTable", "dropTable", "createTable"}, events)
}

func TestEnsure_InvalidSchemaTouchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bad := schema.Table{
		Name:    "users",
		Columns: []schema.Column{{Name: "id", Type: "INTEGER); DROP TABLE Log; --"}},
	}
	f.exec(t, "CREATE TABLE users (id INTEGER)")

	_, res := f.checker.Ensure(ctx, bad)

	assert.Equal(t, EnsureInvalidSchema, res.Status)
	assert.ErrorIs(t, res.Err, result.ErrInvalidSchema)
	var verr *schema.ValidationError
	assert.ErrorAs(t, res.Err, &verr)

	exists, err := f.store.TableExists(ctx, "Log")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []schema.Column{{Name: "id", Type: "INTEGER"}}, f.columns(t, "users"))
}

func TestEnsure_PaddedTypeTagIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	padded := schema.Table{Name: "extra", Columns: []schema.Column{
		{Name: "id", Type: "INTEGER", PrimaryKey: true},
		{Name: "v", Type: "TEXT "},
	}}

	action, res := f.checker.Ensure(ctx, padded)

	assert.Equal(t, EnsureInvalidSchema, res.Status)
	assert.Equal(t, Kept, action)
	exists, err := f.store.TableExists(ctx, "extra")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEnsure_MultiWordTypeTagsKeepRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	extra := schema.Table{Name: "extra", Columns: []schema.Column{
		{Name: "id", Type: "INTEGER", PrimaryKey: true},
		{Name: "ratio", Type: "DOUBLE PRECISION"},
		{Name: "amount", Type: "DECIMAL(10, 2)"},
		{Name: "label", Type: "VARCHAR (10)"},
	}}

	action, res := f.checker.Ensure(ctx, extra)
	require.True(t, res.OK(), res.Trace.String())
	assert.Equal(t, Created, action)

	f.exec(t, "INSERT INTO extra (ratio, amount, label) VALUES (0.5, 1.25, 'x')")

	for i := 0; i < 2; i++ {
		action, res = f.checker.Ensure(ctx, extra)
		require.True(t, res.OK(), res.Trace.String())
		assert.Equal(t, Kept, action, res.Trace.String())
	}

	var count int
	require.NoError(t, f.store.DB().QueryRow("SELECT COUNT(*) FROM extra").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnsure_LiveTableNameInOtherCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exec(t, "CREATE TABLE USERS (id INTEGER PRIMARY KEY, userID TEXT, privilege INTEGER)")
	f.exec(t, "INSERT INTO USERS (userID, privilege) VALUES ('admin', 200)")

	rep, res := f.checker.Check(ctx, schema.UsersTable())
	require.True(t, res.OK(), res.Trace.String())
	assert.Equal(t, Valid, rep.Outcome)

	action, res := f.checker.Ensure(ctx, schema.UsersTable())
	require.True(t, res.OK(), res.Trace.String())
	assert.Equal(t, Kept, action)

	var count int
	require.NoError(t, f.store.DB().QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnsure_FailureCodes(t *testing.T) {
	engineErr := errors.New("database is locked")

	tests := []struct {
		name    string
		ddl     string
		catalog func(f *fixture) *faultyCatalog
		code    int
		trail   string
	}{
		{
			name:    "check failed",
			catalog: func(f *fixture) *faultyCatalog { return &faultyCatalog{Store: f.store, existsErr: engineErr} },
			code:    EnsureCheckFailed,
			trail:   "_Log-OK_createTable-FAIL_ERROR-checkTable:-1",
		},
		{
			name:    "drop failed",
			ddl:     "CREATE TABLE users (id INTEGER)",
			catalog: func(f *fixture) *faultyCatalog { return &faultyCatalog{Store: f.store, dropErr: engineErr} },
			code:    EnsureDropFailed,
			trail:   "_Log-OK_createTable-FAIL_ERROR-dropTable:-1",
		},
		{
			name:    "create failed",
			catalog: func(f *fixture) *faultyCatalog { return &faultyCatalog{Store: f.store, createErr: engineErr} },
			code:    EnsureCreateFailed,
			trail:   "_Log-OK_createTable-FAIL_ERROR-SQLite:database is locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newFixture(t)
			if tt.ddl != "" {
				base.exec(t, tt.ddl)
			}
			f := newFixtureOn(t, base.store, tt.catalog(base))

			_, res := f.checker.Ensure(context.Background(), schema.UsersTable())

			assert.Equal(t, tt.code, res.Status)
			assert.True(t, result.IsStoreError(res.Err))
			assert.ErrorIs(t, res.Err, engineErr)
			assert.True(t, res.Trace.Contains(tt.trail), res.Trace.String())
		})
	}
}

func TestDrop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.exec(t, "CREATE TABLE scratch (a TEXT)")

	res := f.checker.Drop(ctx, "scratch")
	require.True(t, res.OK())
	assert.Equal(t, "_Log-OK_dropTable-OK", res.Trace.String())

	exists, err := f.store.TableExists(ctx, "scratch")
	require.NoError(t, err)
	assert.False(t, exists)

	// Absent tables drop cleanly
	assert.True(t, f.checker.Drop(ctx, "scratch").OK())
}

func TestDrop_InvalidName(t *testing.T) {
	f := newFixture(t)

	res := f.checker.Drop(context.Background(), "Log; --")

	assert.Equal(t, DropInvalidName, res.Status)
	assert.ErrorIs(t, res.Err, result.ErrInvalidSchema)
	assert.Equal(t, "_Log-OK_dropTable-FAIL:invalid table name", res.Trace.String())
}

func TestDrop_StoreError(t *testing.T) {
	base := newFixture(t)
	f := newFixtureOn(t, base.store, &faultyCatalog{Store: base.store, dropErr: errors.New("boom")})

	res := f.checker.Drop(context.Background(), "scratch")

	assert.Equal(t, DropStoreError, res.Status)
	assert.True(t, result.IsStoreError(res.Err))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "column_type_mismatch", ColumnTypeMismatch.String())
	assert.Equal(t, "unknown", Outcome(99).String())
	assert.False(t, Missing.Diverged())
	assert.False(t, Valid.Diverged())
	assert.Equal(t, "recreated", Recreated.String())
}
