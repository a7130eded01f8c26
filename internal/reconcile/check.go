package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/schema"
)

// Check status codes.
const (
	CheckStoreError = -1

	// CheckSchemaMismatch is the code of Report.Err. Check itself reports
	// divergence through the Report, not the Result.
	CheckSchemaMismatch = -2
)

// Outcome is the result of comparing a live table with its declaration.
type Outcome int

const (
	// Unknown means the check could not complete.
	Unknown Outcome = iota
	Valid
	Missing
	TooFewColumns
	ColumnNameMismatch
	ColumnTypeMismatch
	TooManyColumns
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Missing:
		return "missing"
	case TooFewColumns:
		return "too_few_columns"
	case ColumnNameMismatch:
		return "column_name_mismatch"
	case ColumnTypeMismatch:
		return "column_type_mismatch"
	case TooManyColumns:
		return "too_many_columns"
	default:
		return "unknown"
	}
}

// Diverged reports whether the live table exists but has the wrong shape.
func (o Outcome) Diverged() bool {
	switch o {
	case TooFewColumns, ColumnNameMismatch, ColumnTypeMismatch, TooManyColumns:
		return true
	}
	return false
}

// Report describes how a live table compares with its declaration.
type Report struct {
	Table   string
	Outcome Outcome

	// Index is the offending column for name/type mismatches, -1 otherwise.
	Index int

	// Observed and Expected hold the differing values. For arity outcomes
	// they hold the column counts.
	Observed string
	Expected string
}

// Status renders the report as an audit status.
func (r Report) Status() string {
	switch r.Outcome {
	case Valid:
		return result.TagOK
	case Missing:
		return "OK(WARN):table does not exist"
	case TooFewColumns:
		return result.TagFail + "the number of columns is lesser than expected"
	case ColumnNameMismatch:
		return fmt.Sprintf("%scolumn name is not equal to expected(%q != %q)", result.TagFail, r.Observed, r.Expected)
	case ColumnTypeMismatch:
		return fmt.Sprintf("%scolumn type is not equal to expected(%q != %q)", result.TagFail, r.Observed, r.Expected)
	case TooManyColumns:
		return result.TagFail + "the number of columns is greater than expected"
	default:
		return ""
	}
}

// Err returns a SCHEMA_MISMATCH error for a diverged table, nil otherwise.
func (r Report) Err() error {
	if !r.Outcome.Diverged() {
		return nil
	}
	return result.Newf(result.KindSchemaMismatch, CheckSchemaMismatch, OpCheck,
		"table %q: %s: observed %q, expected %q", r.Table, r.Outcome, r.Observed, r.Expected)
}

// Check compares the live table t.Name with t's columns. Schema divergence
// is reported in the Report with a successful Result; only storage failures
// fail the Result.
func (c *Checker) Check(ctx context.Context, t schema.Table) (Report, result.Result) {
	rep, res := c.check(ctx, t)
	return rep, c.finish(OpCheck, t.Name, res)
}

func (c *Checker) check(ctx context.Context, t schema.Table) (Report, result.Result) {
	rep := Report{Table: t.Name, Index: -1}

	exists, err := c.catalog.TableExists(ctx, t.Name)
	if err != nil {
		return rep, c.checkFailed(ctx, t.Name, err)
	}
	if !exists {
		rep.Outcome = Missing
		return rep, result.Ok(c.note(ctx, nil, OpCheck, t.Name, rep.Status()))
	}

	live, err := c.catalog.Columns(ctx, t.Name)
	if err != nil {
		return rep, c.checkFailed(ctx, t.Name, err)
	}

	rep = compare(rep, live, t.Columns)
	return rep, result.Ok(c.note(ctx, nil, OpCheck, t.Name, rep.Status()))
}

// compare walks live and expected in lockstep.
func compare(rep Report, live, expected []schema.Column) Report {
	for i, want := range expected {
		if i >= len(live) {
			rep.Outcome = TooFewColumns
			rep.Observed = strconv.Itoa(len(live))
			rep.Expected = strconv.Itoa(len(expected))
			return rep
		}
		got := live[i]
		if got.Name != want.Name {
			rep.Outcome = ColumnNameMismatch
			rep.Index = i
			rep.Observed = got.Name
			rep.Expected = want.Name
			return rep
		}
		if got.Type != want.Type {
			rep.Outcome = ColumnTypeMismatch
			rep.Index = i
			rep.Observed = got.Type
			rep.Expected = want.Type
			return rep
		}
	}
	if len(live) > len(expected) {
		rep.Outcome = TooManyColumns
		rep.Observed = strconv.Itoa(len(live))
		rep.Expected = strconv.Itoa(len(expected))
		return rep
	}
	rep.Outcome = Valid
	return rep
}

func (c *Checker) checkFailed(ctx context.Context, table string, err error) result.Result {
	tr := c.note(ctx, nil, OpCheck, table, result.TagFailSQLite+err.Error())
	return result.Fail(result.Store(CheckStoreError, OpCheck, err), tr)
}
