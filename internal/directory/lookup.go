package directory

import (
	"context"
	"fmt"

	"github.com/roach88/privdir/internal/result"
)

// Count status codes.
const (
	CountStoreError = -1
)

// Privilege status codes.
const (
	PrivilegeNotFound   = -1
	PrivilegeAmbiguous  = -2
	PrivilegeStoreError = -3
)

// Lookup statuses shared with the mutations.
const (
	statusUserNotFound  = result.TagFail + "user not found"
	statusAmbiguousUser = result.TagFail + "there are a few users with that userID"
)

// lookup is the outcome of a read before it is audited or nested.
type lookup struct {
	value  int
	status string

	// trace holds the entries of nested reads, not the lookup's own.
	trace result.Trace
	err   *result.Error
}

// Count returns the number of rows with userID. Any count is a successful
// result; only storage failures fail, returning CountStoreError.
func (d *Directory) Count(ctx context.Context, userID string) (int, result.Result) {
	id := normalize(userID)
	l := d.count(ctx, id)
	res := d.finish(ctx, l.trace, OpCount, id, "", l.status, l.err)
	if l.err != nil {
		return CountStoreError, res
	}
	return l.value, res
}

// Privilege returns the privilege of the single row with userID. On failure
// the returned value is the failure's status code.
func (d *Directory) Privilege(ctx context.Context, userID string) (int, result.Result) {
	id := normalize(userID)
	l := d.privilege(ctx, id)
	res := d.finish(ctx, l.trace, OpPrivilege, id, "", l.status, l.err)
	if l.err != nil {
		return l.err.Code, res
	}
	return l.value, res
}

func (d *Directory) count(ctx context.Context, userID string) lookup {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE userID = ?", userID).Scan(&n)
	if err != nil {
		return lookup{
			value:  CountStoreError,
			status: result.TagFailSQLite + err.Error(),
			err:    result.Store(CountStoreError, OpCount, err),
		}
	}
	return lookup{value: n, status: result.TagOK}
}

func (d *Directory) privilege(ctx context.Context, userID string) lookup {
	c := d.count(ctx, userID)
	l := lookup{trace: result.Trace{}.Add(OpCount, c.status)}

	switch {
	case c.err != nil:
		l.status = fmt.Sprintf("%suserCount:%d", result.TagFailError, c.value)
		l.err = &result.Error{
			Kind:    result.KindStore,
			Code:    PrivilegeStoreError,
			Op:      OpPrivilege,
			Message: "user count failed",
			Err:     c.err,
		}
		return l
	case c.value == 0:
		l.status = statusUserNotFound
		l.err = result.Newf(result.KindNotFound, PrivilegeNotFound, OpPrivilege, "user %q not found", userID)
		return l
	case c.value > 1:
		l.status = statusAmbiguousUser
		l.err = result.Newf(result.KindAmbiguous, PrivilegeAmbiguous, OpPrivilege, "%d users with userID %q", c.value, userID)
		return l
	}

	var p int
	err := d.db.QueryRowContext(ctx, "SELECT privilege FROM users WHERE userID = ?", userID).Scan(&p)
	if err != nil {
		l.status = result.TagFailSQLite + err.Error()
		l.err = result.Store(PrivilegeStoreError, OpPrivilege, err)
		return l
	}
	l.value = p
	l.status = result.TagOK
	return l
}

// nest appends a lookup made on behalf of another operation.
func nest(tr result.Trace, op string, l lookup) result.Trace {
	return tr.Extend(l.trace).Add(op, l.status)
}
