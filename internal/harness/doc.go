// Package harness runs directory conformance scenarios.
//
// A scenario seeds users, calls directory operations and checks both the
// per-step outcome and the final state of the users and Log tables.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	thresholds: { add: 100, modify: 100, delete: 100 }
//	setup:
//	  - user: admin
//	    privilege: 200
//	flow:
//	  - op: add
//	    object: bob
//	    subject: admin
//	    privilege: 50
//	  - op: privilege
//	    user: bob
//	    expect:
//	      status: 0
//	      value: 50
//	assertions:
//	  - type: trace_contains
//	    op: add
//	    args: { object: bob }
//	  - type: final_state
//	    table: users
//	    where: { userID: bob }
//	    expect: { privilege: 50 }
//
// Flow ops are count, privilege, add, mod and delete. A step without an
// expect clause must succeed.
//
// # Assertion Types
//
//   - trace_contains: a step with the op, matching args and optional status
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: a table row matches expected values, or is absent
//   - audit_count: the number of Log rows, optionally for one eventName
//
// # Deterministic Testing
//
// Every run bootstraps a fresh in-memory database with a stepping clock and
// a constant correlation ID, so traces compare byte for byte against the
// golden files in testdata/golden.
package harness
