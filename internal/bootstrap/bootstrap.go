// Package bootstrap opens the store and reconciles the known tables at
// process start.
//
// InitBase opens the database and the text side channel and makes sure the
// Log table is usable, so that everything after it can be audited.
// InitUsers then reconciles the users table, and InitTables any extra
// tables declared in the registry. Open runs all three.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/privdir/internal/audit"
	"github.com/roach88/privdir/internal/directory"
	"github.com/roach88/privdir/internal/reconcile"
	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/schema"
	"github.com/roach88/privdir/internal/store"
)

// Trail op names. They double as the audit eventName.
const (
	OpInitBase   = "initBaseSQL"
	OpInitUsers  = "initTgSQL"
	OpInitTables = "initTables"
)

// InitBase status codes.
const (
	BaseTextLogFailed  = -1
	BaseOpenFailed     = -2
	BaseLogTableFailed = -3
	BaseInvalidSchema  = -4
)

// InitUsers and InitTables status code.
const (
	TableFailed = -1
)

const (
	statusCreated     = "OK(WARN):the table has been created"
	statusOverwritten = "OK(WARN):the table has been overwritten"
)

// Options configures bootstrap.
type Options struct {
	// Database is the SQLite path, or store.MemoryPath.
	Database string

	// TextLog is the side-channel file path. Empty disables the file;
	// fallback events then only reach the structured logger.
	TextLog string

	// Tables are extra tables to reconcile after users.
	Tables []schema.Table

	// Thresholds overrides directory.DefaultThresholds when set.
	Thresholds *directory.Thresholds

	Logger *slog.Logger

	// Clock stamps audit rows. Defaults to time.Now.
	Clock func() time.Time

	// IDs generates result correlation IDs. Defaults to UUIDv7.
	IDs result.IDGenerator
}

// Env is an opened, reconciled privdir instance.
type Env struct {
	Store     *store.Store
	Recorder  *audit.Recorder
	Checker   *reconcile.Checker
	Directory *directory.Directory
	Registry  *schema.Registry

	textSink *audit.TextSink
	logger   *slog.Logger
	ids      result.IDGenerator
}

// Close releases the store and the text side channel.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	var firstErr error
	if err := e.Store.Close(); err != nil {
		firstErr = err
	}
	if e.textSink != nil {
		if err := e.textSink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Open runs InitBase, InitUsers and InitTables. On failure the partially
// opened environment is closed and nil is returned with the failed result.
func Open(ctx context.Context, opts Options) (*Env, result.Result) {
	env, res := InitBase(ctx, opts)
	if !res.OK() {
		return nil, res
	}
	trace := res.Trace

	res = env.InitUsers(ctx)
	trace = trace.Extend(res.Trace)
	if !res.OK() {
		env.Close()
		res.Trace = trace
		return nil, res
	}

	res = env.InitTables(ctx)
	trace = trace.Extend(res.Trace)
	res.Trace = trace
	if !res.OK() {
		env.Close()
		return nil, res
	}
	return env, res
}

// InitBase opens the side channel and the store and reconciles the Log
// table. A created or re-created Log table is reported as a warning.
func InitBase(ctx context.Context, opts Options) (*Env, result.Result) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ids := opts.IDs
	if ids == nil {
		ids = result.UUIDv7Generator{}
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	env := &Env{logger: logger, ids: ids}
	sinks := audit.MultiSink{audit.NewSlogSink(logger)}

	if opts.TextLog != "" {
		ts, err := audit.OpenTextSink(opts.TextLog)
		if err != nil {
			tr := result.Trace{}.Add(OpInitBase, result.TagFailError+"textLog:"+err.Error())
			e := &result.Error{Kind: result.KindStore, Code: BaseTextLogFailed, Op: OpInitBase, Message: "text log unavailable", Err: err}
			return nil, env.finish(OpInitBase, result.Fail(e, tr))
		}
		env.textSink = ts
		sinks = append(sinks, ts)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		ev := audit.Event{EventName: OpInitBase, Object: "DATABASE", Subject: audit.SubjectSystem, Status: result.TagFailSQLite + err.Error()}
		sinks.Write(ev, now().UTC(), err)
		env.Close()
		tr := result.Trace{}.Add(OpInitBase, ev.Status)
		return nil, env.finish(OpInitBase, result.Fail(result.Store(BaseOpenFailed, OpInitBase, err), tr))
	}
	env.Store = st

	env.Recorder = audit.NewRecorder(st.DB(),
		audit.WithSink(sinks),
		audit.WithClock(now),
		audit.WithLogger(logger),
	)
	env.Checker = reconcile.NewChecker(st, env.Recorder,
		reconcile.WithLogger(logger),
		reconcile.WithIDGenerator(ids),
	)
	dirOpts := []directory.Option{
		directory.WithLogger(logger),
		directory.WithIDGenerator(ids),
	}
	if opts.Thresholds != nil {
		dirOpts = append(dirOpts, directory.WithThresholds(*opts.Thresholds))
	}
	env.Directory = directory.New(st.DB(), env.Recorder, dirOpts...)

	registry, err := schema.NewRegistry(append([]schema.Table{schema.LogTable(), schema.UsersTable()}, opts.Tables...)...)
	if err != nil {
		env.Close()
		tr := result.Trace{}.Add(OpInitBase, result.TagFail+err.Error())
		e := &result.Error{Kind: result.KindInvalidSchema, Code: BaseInvalidSchema, Op: OpInitBase, Message: "invalid table declarations", Err: err}
		return nil, env.finish(OpInitBase, result.Fail(e, tr))
	}
	env.Registry = registry

	res := env.ensure(ctx, OpInitBase, schema.LogTable(), BaseLogTableFailed)
	if !res.OK() {
		env.Close()
		return nil, res
	}
	return env, res
}

// InitUsers reconciles the users table.
func (e *Env) InitUsers(ctx context.Context) result.Result {
	return e.ensure(ctx, OpInitUsers, schema.UsersTable(), TableFailed)
}

// InitTables reconciles every registered table other than Log and users.
func (e *Env) InitTables(ctx context.Context) result.Result {
	var tr result.Trace
	for _, t := range e.Registry.Tables() {
		if t.Name == schema.LogTableName || t.Name == schema.UsersTableName {
			continue
		}
		res := e.ensure(ctx, OpInitTables, t, TableFailed)
		tr = tr.Extend(res.Trace)
		if !res.OK() {
			res.Trace = tr
			return res
		}
	}
	if len(tr) == 0 {
		// Nothing declared beyond the built-in tables
		tr = tr.Add(OpInitTables, result.TagOK)
	}
	return e.finish(OpInitTables, result.Ok(tr))
}

// ensure reconciles t and records op's own outcome.
func (e *Env) ensure(ctx context.Context, op string, t schema.Table, code int) result.Result {
	action, res := e.Checker.Ensure(ctx, t)
	tr := res.Trace
	object := reconcile.TableObject(t.Name)

	if !res.OK() {
		status := fmt.Sprintf("%screateTable:%d", result.TagFailError, res.Status)
		tr = e.Recorder.RecordTo(ctx, tr, audit.Event{EventName: op, Object: object, Subject: audit.SubjectSystem, Status: status})
		tr = tr.Add(op, status)
		err := &result.Error{Kind: result.KindOf(res.Err), Code: code, Op: op, Message: "reconcile " + t.Name, Err: res.Err}
		return e.finish(op, result.Fail(err, tr))
	}

	status := result.TagOK
	switch action {
	case reconcile.Created:
		status = statusCreated
	case reconcile.Recreated:
		status = statusOverwritten
	}
	tr = e.Recorder.RecordTo(ctx, tr, audit.Event{EventName: op, Object: object, Subject: audit.SubjectSystem, Status: status})
	tr = tr.Add(op, status)
	if action == reconcile.Recreated {
		e.logger.Warn("table overwritten", "table", t.Name)
	}
	return e.finish(op, result.Ok(tr))
}

func (e *Env) finish(op string, res result.Result) result.Result {
	res.ID = e.ids.Generate()
	if res.Err != nil {
		e.logger.Error("bootstrap failed", "op", op, "status", res.Status, "trace", res.Trace.String(), "trace_id", res.ID, "error", res.Err)
	} else {
		e.logger.Debug("bootstrap step", "op", op, "trace", res.Trace.String(), "trace_id", res.ID)
	}
	return res
}
