package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/privdir/internal/bootstrap"
	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/store"
	"github.com/roach88/privdir/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a freshly bootstrapped in-memory instance with
// a deterministic clock and correlation IDs.
type Harness struct {
	env    *bootstrap.Env
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Bootstrap an in-memory database (Log and users tables)
// 2. Seed setup users
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the trace and the tables
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	env, res := bootstrap.Open(ctx, bootstrap.Options{
		Database:   store.MemoryPath,
		Thresholds: scenario.Thresholds,
		Logger:     logger,
		Clock:      testutil.NewStepClock().Now,
		IDs:        testutil.NewConstantIDGenerator(scenario.CorrelationID),
	})
	if !res.OK() {
		return nil, fmt.Errorf("failed to bootstrap in-memory store: %w (trail %s)", res.Err, res.Trace)
	}
	defer env.Close()

	h := &Harness{
		env:    env,
		logger: logger,
	}

	out := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, out); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	h.executeFlow(ctx, scenario.Flow, out)

	actx := &AssertionContext{
		Store: env.Store,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(out, scenario.Assertions, actx) {
		out.AddError(errMsg)
	}

	return out, nil
}

// executeSetup inserts the seed users.
//
// Seeds go straight to the users table: they are preconditions, not
// audited directory calls.
func (h *Harness) executeSetup(ctx context.Context, setup []SeedUser, out *Result) error {
	for i, seed := range setup {
		_, err := h.env.Store.DB().ExecContext(ctx,
			"INSERT INTO users (userID, privilege) VALUES (?, ?)", seed.UserID, seed.Privilege)
		if err != nil {
			return fmt.Errorf("setup step %d: insert %q: %w", i, seed.UserID, err)
		}

		out.AddTrace(TraceEvent{
			Type: StepSetup,
			Op:   "seed",
			Args: map[string]any{"user": seed.UserID, "privilege": seed.Privilege},
		})

		h.logger.Info("setup step completed", "step", i, "user", seed.UserID)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
// A failed expectation is recorded and the flow continues, so one run
// reports every divergence.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, out *Result) {
	dir := h.env.Directory

	for i, step := range flow {
		var (
			res   result.Result
			value *int
			args  map[string]any
		)

		switch step.Op {
		case OpCount:
			args = map[string]any{"user": step.User}
			n, r := dir.Count(ctx, step.User)
			res, value = r, &n
		case OpPrivilege:
			args = map[string]any{"user": step.User}
			p, r := dir.Privilege(ctx, step.User)
			res, value = r, &p
		case OpAdd:
			args = map[string]any{"object": step.Object, "subject": step.Subject, "privilege": step.Privilege}
			res = dir.AddUser(ctx, step.Object, step.Subject, step.Privilege)
		case OpModify:
			args = map[string]any{"object": step.Object, "subject": step.Subject, "privilege": step.Privilege}
			res = dir.ModUser(ctx, step.Object, step.Subject, step.Privilege)
		case OpDelete:
			args = map[string]any{"object": step.Object, "subject": step.Subject}
			res = dir.DeleteUser(ctx, step.Object, step.Subject)
		default:
			out.AddError(fmt.Sprintf("flow[%d]: unknown op %q", i, step.Op))
			continue
		}

		ev := TraceEvent{
			Type:   StepFlow,
			Op:     step.Op,
			Args:   args,
			Status: res.Status,
			Kind:   string(result.KindOf(res.Err)),
			Value:  value,
			Trail:  res.Trace.String(),
		}
		out.AddTrace(ev)

		for _, msg := range checkExpect(step, ev, res.Trace) {
			out.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"status", res.Status,
			"trail", ev.Trail,
		)
	}
}

// checkExpect compares an executed step with its expect clause. A step
// without one must succeed.
func checkExpect(step FlowStep, ev TraceEvent, trace result.Trace) []string {
	e := step.Expect
	if e == nil {
		if ev.Status != 0 {
			return []string{fmt.Sprintf("expected success, got status %d (%s) trail %s", ev.Status, ev.Kind, ev.Trail)}
		}
		return nil
	}

	var msgs []string
	if e.Status != nil && *e.Status != ev.Status {
		msgs = append(msgs, fmt.Sprintf("expected status %d, got %d", *e.Status, ev.Status))
	}
	if e.Kind != "" && e.Kind != ev.Kind {
		msgs = append(msgs, fmt.Sprintf("expected kind %s, got %q", e.Kind, ev.Kind))
	}
	if e.Value != nil {
		switch {
		case ev.Value == nil:
			msgs = append(msgs, fmt.Sprintf("expected value %d, op returns none", *e.Value))
		case *ev.Value != *e.Value:
			msgs = append(msgs, fmt.Sprintf("expected value %d, got %d", *e.Value, *ev.Value))
		}
	}
	if e.Trail != "" && !trace.Contains(e.Trail) {
		msgs = append(msgs, fmt.Sprintf("expected trail to contain %q, got %s", e.Trail, ev.Trail))
	}
	return msgs
}
