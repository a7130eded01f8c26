package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/privdir/internal/directory"
)

func intPtr(v int) *int { return &v }

func TestRun_TestdataScenariosPass(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Count an unknown user",
		Flow:        []FlowStep{{Op: OpCount, User: "nobody", Expect: &ExpectClause{Value: intPtr(0)}}},
		Assertions:  []Assertion{{Type: AssertTraceContains, Op: OpCount}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, StepFlow, ev.Type)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, "_Log-OK_userCount-OK", ev.Trail)
	require.NotNil(t, ev.Value)
	assert.Equal(t, 0, *ev.Value)
}

func TestRun_SetupSeedsWithoutAudit(t *testing.T) {
	scenario := &Scenario{
		Name:        "seed",
		Description: "Seeds are not audited",
		Setup:       []SeedUser{{UserID: "admin", Privilege: 200}, {UserID: "bob", Privilege: 5}},
		Flow:        []FlowStep{{Op: OpPrivilege, User: "bob", Expect: &ExpectClause{Value: intPtr(5)}}},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Op: "seed", Count: 2},
			{Type: AssertAuditCount, Event: directory.OpPrivilege, Count: 1},
			{Type: AssertAuditCount, Event: directory.OpCount, Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, StepSetup, result.Trace[0].Type)
	assert.Equal(t, map[string]any{"user": "admin", "privilege": 200}, result.Trace[0].Args)
	assert.Empty(t, result.Trace[0].Trail)
}

func TestRun_ExpectationMismatchIsReported(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Every divergent expectation is reported and the flow continues",
		Setup:       []SeedUser{{UserID: "bob", Privilege: 5}},
		Flow: []FlowStep{
			{Op: OpAdd, Object: "eve", Subject: "bob", Privilege: 1},
			{Op: OpPrivilege, User: "bob", Expect: &ExpectClause{Status: intPtr(-1), Kind: "NOT_FOUND", Value: intPtr(6)}},
			{Op: OpAdd, Object: "eve", Subject: "bob", Privilege: 1, Expect: &ExpectClause{Trail: "_addUser-OK"}},
			{Op: OpDelete, Object: "eve", Subject: "bob", Expect: &ExpectClause{Value: intPtr(1)}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Op: OpAdd, Count: 2}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 4)
	assert.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "flow[0] add: expected success, got status -7 (INSUFFICIENT_PRIVILEGE)")
	assert.Contains(t, result.Errors[1], "expected status -1, got 0")
	assert.Contains(t, result.Errors[2], `expected kind NOT_FOUND, got ""`)
	assert.Contains(t, result.Errors[3], "expected value 6, got 5")
	assert.Contains(t, result.Errors[4], `expected trail to contain "_addUser-OK"`)
	assert.Contains(t, result.Errors[5], "expected value 1, op returns none")
}

func TestRun_Thresholds(t *testing.T) {
	scenario := &Scenario{
		Name:        "thresholds",
		Description: "Lower thresholds let a low-privilege user manage lower ranks",
		Thresholds:  &directory.Thresholds{Add: 5, Modify: 5, Delete: 5},
		Setup:       []SeedUser{{UserID: "bob", Privilege: 5}},
		Flow: []FlowStep{
			{Op: OpAdd, Object: "eve", Subject: "bob", Privilege: 3},
			{Op: OpModify, Object: "eve", Subject: "bob", Privilege: 4},
			{Op: OpDelete, Object: "eve", Subject: "bob"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceOrder, Ops: []string{OpAdd, OpModify, OpDelete}},
			{Type: AssertFinalState, Table: "users", Absent: true, Where: map[string]any{"userID": "eve"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_NormalizedUserIDs(t *testing.T) {
	scenario := &Scenario{
		Name:        "nfc",
		Description: "Composed and decomposed spellings name one user",
		Setup:       []SeedUser{{UserID: "admin", Privilege: 200}},
		Flow: []FlowStep{
			{Op: OpAdd, Object: "cafe\u0301", Subject: "admin", Privilege: 1},
			{Op: OpAdd, Object: "caf\u00e9", Subject: "admin", Privilege: 1, Expect: &ExpectClause{Status: intPtr(directory.AlreadyExists)}},
			{Op: OpCount, User: "cafe\u0301", Expect: &ExpectClause{Value: intPtr(1)}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Table: "users", Where: map[string]any{"userID": "caf\u00e9"}, Expect: map[string]any{"privilege": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DuplicateSeedsAreAmbiguous(t *testing.T) {
	scenario := &Scenario{
		Name:        "dup",
		Description: "Seeds may deliberately create ambiguous users",
		Setup:       []SeedUser{{UserID: "twin", Privilege: 1}, {UserID: "twin", Privilege: 2}},
		Flow: []FlowStep{
			{Op: OpPrivilege, User: "twin", Expect: &ExpectClause{
				Status: intPtr(directory.PrivilegeAmbiguous),
				Kind:   "AMBIGUOUS",
				Value:  intPtr(directory.PrivilegeAmbiguous),
			}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Op: "seed", Count: 2}},
	}

	// Run does not validate, so in-code scenarios can seed duplicates
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownOp(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown",
		Description: "Unknown ops are reported, not executed",
		Flow:        []FlowStep{{Op: "rename"}},
		Assertions:  []Assertion{{Type: AssertTraceCount, Op: "rename", Count: 0}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `unknown op "rename"`)
	assert.Empty(t, result.Trace)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "rank_rules.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
}
