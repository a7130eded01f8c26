// Package result defines the caller-facing outcome of every privdir
// operation.
//
// An operation returns a Result: a signed Status (0 on success, a stable
// negative code per failure branch), a typed *Error when it failed, and the
// diagnostic Trace of everything it did on the way. Traces are values.
// Nested calls hand their trace back up and the caller folds it into its
// own with Extend, so no layer mutates another layer's trail.
//
// # Trail format
//
// A rendered trace keeps the format consumers of the audit trail already
// grep for:
//
//	_userCount-OK_getUserPrivilege-OK_addUser-FAIL:the user does not have enough privileges
//
// # Error kinds
//
//   - STORE_ERROR: the storage engine failed; carries the engine message
//   - SCHEMA_MISMATCH: a live table diverges from its declaration
//   - INVALID_SCHEMA: a declaration cannot be turned into SQL safely
//   - NOT_FOUND / AMBIGUOUS: 0 or more than 1 rows for a unique key
//   - INSUFFICIENT_PRIVILEGE: the privilege policy rejected the call
//   - ALREADY_EXISTS: a duplicate key insert was refused
package result
