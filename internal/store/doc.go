// Package store opens the SQLite database behind privdir and exposes the raw
// catalog operations the reconciler builds on.
//
// The store deliberately knows nothing about audit logging or privileges:
// it answers "does this table exist", "what columns does it have", and runs
// single CREATE/DROP statements. Every data statement elsewhere in privdir
// goes through DBTX with bound parameters.
//
// # Database Configuration
//
//   - One open connection: single logical writer, and ":memory:" databases
//     stay one database across calls
//   - WAL mode for file databases (":memory:" stays in memory mode)
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks held by other processes
//   - foreign_keys=ON
//
// No statement here is wrapped in a transaction. Each CREATE or DROP is its
// own atomic unit.
package store
