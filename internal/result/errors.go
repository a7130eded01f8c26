package result

import (
	"errors"
	"fmt"
)

// Kind categorizes operation failures.
type Kind string

const (
	// KindStore indicates a prepare/bind/step failure from the storage engine.
	KindStore Kind = "STORE_ERROR"

	// KindSchemaMismatch indicates a live table diverges from its declaration.
	KindSchemaMismatch Kind = "SCHEMA_MISMATCH"

	// KindInvalidSchema indicates table metadata that is unsafe to put in SQL.
	KindInvalidSchema Kind = "INVALID_SCHEMA"

	// KindNotFound indicates zero rows for a unique-key lookup.
	KindNotFound Kind = "NOT_FOUND"

	// KindAmbiguous indicates more than one row for a unique-key lookup.
	KindAmbiguous Kind = "AMBIGUOUS"

	// KindInsufficientPrivilege indicates the privilege policy refused the call.
	KindInsufficientPrivilege Kind = "INSUFFICIENT_PRIVILEGE"

	// KindAlreadyExists indicates a duplicate-key insert was rejected.
	KindAlreadyExists Kind = "ALREADY_EXISTS"
)

// Error is the typed failure carried by a Result.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Code is the stable negative status of the failure branch.
	Code int

	// Op names the operation that failed (e.g. "addUser").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying engine error, if any.
	Err error
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrStore                 = &Error{Kind: KindStore}
	ErrSchemaMismatch        = &Error{Kind: KindSchemaMismatch}
	ErrInvalidSchema         = &Error{Kind: KindInvalidSchema}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrAmbiguous             = &Error{Kind: KindAmbiguous}
	ErrInsufficientPrivilege = &Error{Kind: KindInsufficientPrivilege}
	ErrAlreadyExists         = &Error{Kind: KindAlreadyExists}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying engine error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Newf creates an Error for op with a formatted message.
func Newf(kind Kind, code int, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Store wraps an engine failure in a STORE_ERROR.
func Store(code int, op string, err error) *Error {
	return &Error{Kind: KindStore, Code: code, Op: op, Message: "storage engine failure", Err: err}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsStoreError returns true if err is a storage engine failure.
func IsStoreError(err error) bool { return KindOf(err) == KindStore }

// IsNotFound returns true if err reports a missing unique-key row.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsAmbiguous returns true if err reports duplicate unique-key rows.
func IsAmbiguous(err error) bool { return KindOf(err) == KindAmbiguous }

// IsInsufficientPrivilege returns true if err is a policy refusal.
func IsInsufficientPrivilege(err error) bool { return KindOf(err) == KindInsufficientPrivilege }

// IsSchemaMismatch returns true if err reports a divergent live table.
func IsSchemaMismatch(err error) bool { return KindOf(err) == KindSchemaMismatch }

// EngineMessage returns the storage engine's own message for trail entries:
// the wrapped cause of an *Error, or err's text.
func EngineMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
