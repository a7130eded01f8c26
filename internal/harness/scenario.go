package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/privdir/internal/directory"
)

// Scenario defines a directory conformance scenario.
// Scenarios seed users, run a flow of directory operations and assert on
// the resulting trace and final table state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Thresholds overrides the directory defaults for this run.
	Thresholds *directory.Thresholds `yaml:"thresholds,omitempty"`

	// Setup seeds users directly, bypassing the privilege policy and the
	// audit log.
	Setup []SeedUser `yaml:"setup,omitempty"`

	// Flow contains the directory calls, each with an optional expectation.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, audit_count
	Assertions []Assertion `yaml:"assertions"`

	// CorrelationID is the fixed result ID for deterministic output.
	// If empty, defaults to "test-id-default".
	CorrelationID string `yaml:"correlation_id,omitempty"`
}

// SeedUser is a users row inserted before the flow runs.
type SeedUser struct {
	UserID    string `yaml:"user"`
	Privilege int    `yaml:"privilege"`
}

// FlowStep is one directory call.
type FlowStep struct {
	// Op is one of count, privilege, add, mod, delete.
	Op string `yaml:"op"`

	// User is the userID looked up by count and privilege.
	User string `yaml:"user,omitempty"`

	// Object and Subject are the parties of a mutation.
	Object  string `yaml:"object,omitempty"`
	Subject string `yaml:"subject,omitempty"`

	// Privilege is the granted (add) or new (mod) privilege.
	Privilege int `yaml:"privilege,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Status is the expected status code. Nil skips the check.
	Status *int `yaml:"status,omitempty"`

	// Kind is the expected failure kind (e.g. "NOT_FOUND").
	Kind string `yaml:"kind,omitempty"`

	// Value is the expected count or privilege returned by a lookup.
	Value *int `yaml:"value,omitempty"`

	// Trail must appear verbatim in the rendered trail.
	Trail string `yaml:"trail,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an op appears in the trace with args
	// - "trace_order": Check ops appear in order
	// - "trace_count": Check an op appears exactly N times
	// - "final_state": Query a table and verify expected values
	// - "audit_count": Check the number of Log rows
	Type string `yaml:"type"`

	// Op is the step op (used by trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args are the expected step arguments (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Status is the expected step status (used by trace_contains).
	Status *int `yaml:"status,omitempty"`

	// Table is the table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	// A final_state with absent: true expects no matching row instead.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent inverts final_state: no row may match Where.
	Absent bool `yaml:"absent,omitempty"`

	// Event filters audit_count by eventName. Empty counts every row.
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences (trace_count, audit_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected op order (used by trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertAuditCount    = "audit_count"
)

// Flow step ops.
const (
	OpCount     = "count"
	OpPrivilege = "privilege"
	OpAdd       = "add"
	OpModify    = "mod"
	OpDelete    = "delete"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML from memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// userIDs are not required: empty ones are a legitimate failure case.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Setup))
	for i, seed := range s.Setup {
		if seed.UserID == "" {
			return fmt.Errorf("setup[%d]: user is required", i)
		}
		if seen[seed.UserID] {
			return fmt.Errorf("setup[%d]: user %q seeded twice", i, seed.UserID)
		}
		seen[seed.UserID] = true
	}

	for i, step := range s.Flow {
		switch step.Op {
		case OpCount, OpPrivilege, OpAdd, OpModify, OpDelete:
		case "":
			return fmt.Errorf("flow[%d]: op is required", i)
		default:
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if e := step.Expect; e != nil && e.Status == nil && e.Kind == "" && e.Value == nil && e.Trail == "" {
			return fmt.Errorf("flow[%d].expect: at least one of status, kind, value, trail is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if a.Absent {
			if len(a.Where) == 0 {
				return fmt.Errorf("assertions[%d]: where is required for an absent final_state", index)
			}
		} else if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertAuditCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for audit_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
