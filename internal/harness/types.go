package harness

// Step kinds recorded in the trace.
const (
	StepSetup = "setup"
	StepFlow  = "flow"
)

// TraceEvent is one executed step: the call made and what it returned.
type TraceEvent struct {
	Type   string         `json:"type"` // "setup" or "flow"
	Op     string         `json:"op"`
	Args   map[string]any `json:"args,omitempty"`
	Status int            `json:"status"`
	Kind   string         `json:"kind,omitempty"`
	Value  *int           `json:"value,omitempty"`
	Trail  string         `json:"trail,omitempty"`
	Seq    int64          `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
