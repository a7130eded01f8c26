// Package reconcile compares live tables against their declarations and
// rebuilds the ones that diverge.
//
// # Validation
//
// Check walks the live column list and the declared one in lockstep and
// stops at the first divergence. Outcomes, in priority order:
//
//   - Missing: the table does not exist (a signal, not an error)
//   - TooFewColumns: the live table ran out of columns
//   - ColumnNameMismatch / ColumnTypeMismatch: column i differs
//   - Valid: every declared column matched and nothing is left over
//   - TooManyColumns: the live table has extra trailing columns
//
// Type tags are compared as exact, case-sensitive strings. "INT" and
// "INTEGER" are different tags here even though SQLite gives them the same
// affinity.
//
// # Reconciliation
//
// Ensure creates a missing table and drops and re-creates a divergent one.
// The drop discards every row; there is no transaction around the pair and
// nothing is retried.
//
// Every outcome of Check, Ensure and Drop is written to the audit log with
// subject SYSTEM and object "TABLE:<name>".
package reconcile
