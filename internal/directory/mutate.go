package directory

import (
	"context"
	"fmt"

	"github.com/roach88/privdir/internal/result"
)

// Mutation status codes, shared by AddUser, ModUser and DeleteUser.
const (
	StatusOK              = 0
	SubjectStoreError     = -1
	SubjectNotFound       = -2
	SubjectAmbiguous      = -3
	ObjectStoreError      = -4
	ObjectNotFound        = -5
	ObjectAmbiguous       = -6
	InsufficientPrivilege = -7
	AlreadyExists         = -8
	MutationStoreError    = -9
	InvalidUserID         = -10
)

const (
	statusSubjectMissing = result.TagFail + "user is not exist"
	statusObjectMissing  = result.TagFail + "object is not exist"
	statusNotEnough      = result.TagFail + "the user does not have enough privileges"
	statusInUse          = result.TagFail + "this userID is already in use"
	statusEmptyUserID    = result.TagFail + "userID is empty"
)

// party identifies which side of a mutation a lookup resolved.
type party int

const (
	subjectParty party = iota
	objectParty
)

// lookupFailure maps a failed privilege lookup to the mutation's status and
// error.
func lookupFailure(op string, who party, l lookup) (string, *result.Error) {
	codes := [3]int{SubjectStoreError, SubjectNotFound, SubjectAmbiguous}
	name, missing := "subject", statusSubjectMissing
	if who == objectParty {
		codes = [3]int{ObjectStoreError, ObjectNotFound, ObjectAmbiguous}
		name, missing = "object", statusObjectMissing
	}

	var status string
	var code int
	switch l.err.Kind {
	case result.KindNotFound:
		code = codes[1]
		status = missing
	case result.KindAmbiguous:
		code = codes[2]
		status = statusAmbiguousUser
	default:
		code = codes[0]
		status = fmt.Sprintf("%sgetUserPrivilege:%d", result.TagFailError, l.err.Code)
	}
	return status, &result.Error{
		Kind:    l.err.Kind,
		Code:    code,
		Op:      op,
		Message: name + " lookup failed",
		Err:     l.err,
	}
}

func emptyUserID(op string) (string, *result.Error) {
	return statusEmptyUserID, result.Newf(result.KindNotFound, InvalidUserID, op, "userID must not be empty")
}

func refused(op, format string, args ...any) (string, *result.Error) {
	return statusNotEnough, result.Newf(result.KindInsufficientPrivilege, InsufficientPrivilege, op, format, args...)
}

// AddUser creates object with privilege on behalf of subject. The subject
// must reach the add threshold and hold at least the granted privilege.
func (d *Directory) AddUser(ctx context.Context, object, subject string, privilege int) result.Result {
	object, subject = normalize(object), normalize(subject)
	tr, status, err := d.addUser(ctx, object, subject, privilege)
	return d.finish(ctx, tr, OpAdd, object, subject, status, err)
}

func (d *Directory) addUser(ctx context.Context, object, subject string, privilege int) (result.Trace, string, *result.Error) {
	var tr result.Trace
	if object == "" || subject == "" {
		status, err := emptyUserID(OpAdd)
		return tr, status, err
	}

	sp := d.privilege(ctx, subject)
	tr = nest(tr, OpPrivilege, sp)
	if sp.err != nil {
		status, err := lookupFailure(OpAdd, subjectParty, sp)
		return tr, status, err
	}

	if !d.thresholds.canAdd(sp.value, privilege) {
		status, err := refused(OpAdd, "subject %q (%d) cannot grant %d (threshold %d)",
			subject, sp.value, privilege, d.thresholds.Add)
		return tr, status, err
	}

	oc := d.count(ctx, object)
	tr = nest(tr, OpCount, oc)
	if oc.err != nil {
		status := fmt.Sprintf("%suserCount:%d", result.TagFailError, oc.value)
		return tr, status, &result.Error{
			Kind:    result.KindStore,
			Code:    ObjectStoreError,
			Op:      OpAdd,
			Message: "object lookup failed",
			Err:     oc.err,
		}
	}
	if oc.value > 0 {
		return tr, statusInUse, result.Newf(result.KindAlreadyExists, AlreadyExists, OpAdd, "userID %q is already in use", object)
	}

	_, dbErr := d.db.ExecContext(ctx,
		"INSERT INTO users (userID, privilege) VALUES (?, ?)",
		object, privilege,
	)
	if dbErr != nil {
		return tr, result.TagFailSQLite + dbErr.Error(), result.Store(MutationStoreError, OpAdd, dbErr)
	}
	return tr, result.TagOK, nil
}

// ModUser sets object's privilege to newPrivilege on behalf of subject.
func (d *Directory) ModUser(ctx context.Context, object, subject string, newPrivilege int) result.Result {
	object, subject = normalize(object), normalize(subject)
	tr, status, err := d.modUser(ctx, object, subject, newPrivilege)
	return d.finish(ctx, tr, OpModify, object, subject, status, err)
}

func (d *Directory) modUser(ctx context.Context, object, subject string, newPrivilege int) (result.Trace, string, *result.Error) {
	var tr result.Trace
	if object == "" || subject == "" {
		status, err := emptyUserID(OpModify)
		return tr, status, err
	}

	sp := d.privilege(ctx, subject)
	tr = nest(tr, OpPrivilege, sp)
	if sp.err != nil {
		status, err := lookupFailure(OpModify, subjectParty, sp)
		return tr, status, err
	}

	ol := d.privilege(ctx, object)
	tr = nest(tr, OpPrivilege, ol)
	if ol.err != nil {
		status, err := lookupFailure(OpModify, objectParty, ol)
		return tr, status, err
	}

	if !d.thresholds.canModify(object == subject, sp.value, ol.value, newPrivilege) {
		status, err := refused(OpModify, "subject %q (%d) cannot set %q (%d) to %d (threshold %d)",
			subject, sp.value, object, ol.value, newPrivilege, d.thresholds.Modify)
		return tr, status, err
	}

	_, dbErr := d.db.ExecContext(ctx,
		"UPDATE users SET privilege = ? WHERE userID = ?",
		newPrivilege, object,
	)
	if dbErr != nil {
		return tr, result.TagFailSQLite + dbErr.Error(), result.Store(MutationStoreError, OpModify, dbErr)
	}
	return tr, result.TagOK, nil
}

// DeleteUser removes object on behalf of subject. The subject must reach
// the delete threshold and hold at least the object's privilege.
func (d *Directory) DeleteUser(ctx context.Context, object, subject string) result.Result {
	object, subject = normalize(object), normalize(subject)
	tr, status, err := d.deleteUser(ctx, object, subject)
	return d.finish(ctx, tr, OpDelete, object, subject, status, err)
}

func (d *Directory) deleteUser(ctx context.Context, object, subject string) (result.Trace, string, *result.Error) {
	var tr result.Trace
	if object == "" || subject == "" {
		status, err := emptyUserID(OpDelete)
		return tr, status, err
	}

	sp := d.privilege(ctx, subject)
	tr = nest(tr, OpPrivilege, sp)
	if sp.err != nil {
		status, err := lookupFailure(OpDelete, subjectParty, sp)
		return tr, status, err
	}

	ol := d.privilege(ctx, object)
	tr = nest(tr, OpPrivilege, ol)
	if ol.err != nil {
		status, err := lookupFailure(OpDelete, objectParty, ol)
		return tr, status, err
	}

	if !d.thresholds.canDelete(sp.value, ol.value) {
		status, err := refused(OpDelete, "subject %q (%d) cannot delete %q (%d) (threshold %d)",
			subject, sp.value, object, ol.value, d.thresholds.Delete)
		return tr, status, err
	}

	_, dbErr := d.db.ExecContext(ctx, "DELETE FROM users WHERE userID = ?", object)
	if dbErr != nil {
		return tr, result.TagFailSQLite + dbErr.Error(), result.Store(MutationStoreError, OpDelete, dbErr)
	}
	return tr, result.TagOK, nil
}
