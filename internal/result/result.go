package result

import (
	"encoding/json"
	"slices"
	"strings"
)

// Status tags shared by every operation.
const (
	TagOK         = "OK"
	TagFail       = "FAIL:"
	TagFailError  = "FAIL_ERROR-"
	TagFailSQLite = "FAIL_ERROR-SQLite:"
)

// Entry is one step of a diagnostic trail.
type Entry struct {
	Op     string `json:"op"`
	Status string `json:"status"`
}

// String renders the entry in trail form: "_op-status".
func (e Entry) String() string {
	return "_" + e.Op + "-" + e.Status
}

// Trace is an ordered, append-only diagnostic trail.
type Trace []Entry

// Add returns t with a new entry appended. t itself is never written to,
// so two traces added to the same base stay independent.
func (t Trace) Add(op, status string) Trace {
	return append(slices.Clip(t), Entry{Op: op, Status: status})
}

// Extend returns t followed by every entry of other.
func (t Trace) Extend(other Trace) Trace {
	return append(slices.Clip(t), other...)
}

// Last returns the final entry, or the zero Entry for an empty trace.
func (t Trace) Last() Entry {
	if len(t) == 0 {
		return Entry{}
	}
	return t[len(t)-1]
}

// String renders the whole trail.
func (t Trace) String() string {
	var b strings.Builder
	for _, e := range t {
		b.WriteString(e.String())
	}
	return b.String()
}

// Contains reports whether the rendered trail contains s.
func (t Trace) Contains(s string) bool {
	return strings.Contains(t.String(), s)
}

// Result is returned by every public operation.
type Result struct {
	// Status is 0 on success, otherwise the stable code of the failure branch.
	Status int

	// Err is the typed failure, nil on success.
	Err error

	// Trace is the diagnostic trail, including nested calls.
	Trace Trace

	// ID correlates the result with structured log lines.
	ID string
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == 0 && r.Err == nil
}

// Ok builds a successful Result.
func Ok(trace Trace) Result {
	return Result{Trace: trace}
}

// Fail builds a failed Result from a typed error.
func Fail(err *Error, trace Trace) Result {
	return Result{Status: err.Code, Err: err, Trace: trace}
}

// MarshalJSON renders the result for CLI output.
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Status int    `json:"status"`
		Kind   Kind   `json:"kind,omitempty"`
		Error  string `json:"error,omitempty"`
		Trail  string `json:"trail"`
		Trace  Trace  `json:"trace"`
		ID     string `json:"id,omitempty"`
	}{
		Status: r.Status,
		Trail:  r.Trace.String(),
		Trace:  r.Trace,
		ID:     r.ID,
	}
	if r.Err != nil {
		out.Kind = KindOf(r.Err)
		out.Error = r.Err.Error()
	}
	if out.Trace == nil {
		out.Trace = Trace{}
	}
	return json.Marshal(out)
}
