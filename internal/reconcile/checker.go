package reconcile

import (
	"context"
	"log/slog"

	"github.com/roach88/privdir/internal/audit"
	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/schema"
)

// Trail op names. They double as the audit eventName.
const (
	OpCheck  = "checkTable"
	OpCreate = "createTable"
	OpDrop   = "dropTable"
)

// Catalog is the storage surface the checker needs.
// Implemented by *store.Store.
type Catalog interface {
	TableExists(ctx context.Context, name string) (bool, error)
	Columns(ctx context.Context, name string) ([]schema.Column, error)
	CreateTable(ctx context.Context, t schema.Table) error
	DropTable(ctx context.Context, name string) error
}

// Checker validates and reconciles tables.
type Checker struct {
	catalog  Catalog
	recorder *audit.Recorder
	logger   *slog.Logger
	ids      result.IDGenerator
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator sets the source of result correlation IDs.
func WithIDGenerator(g result.IDGenerator) Option {
	return func(c *Checker) {
		if g != nil {
			c.ids = g
		}
	}
}

// NewChecker creates a Checker over catalog that records to recorder.
func NewChecker(catalog Catalog, recorder *audit.Recorder, opts ...Option) *Checker {
	c := &Checker{
		catalog:  catalog,
		recorder: recorder,
		logger:   slog.Default(),
		ids:      result.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TableObject is the audit object for table-level events.
func TableObject(name string) string {
	return "TABLE:" + name
}

// note records the outcome of op and appends it to tr, audit entry first.
func (c *Checker) note(ctx context.Context, tr result.Trace, op, table, status string) result.Trace {
	tr = c.recorder.RecordTo(ctx, tr, audit.Event{
		EventName: op,
		Object:    TableObject(table),
		Subject:   audit.SubjectSystem,
		Status:    status,
	})
	return tr.Add(op, status)
}

func (c *Checker) finish(op, table string, res result.Result) result.Result {
	res.ID = c.ids.Generate()
	attrs := []any{
		"op", op,
		"table", table,
		"status", res.Status,
		"trace", res.Trace.String(),
		"trace_id", res.ID,
	}
	if res.Err != nil {
		c.logger.Warn("reconcile operation failed", append(attrs, "error", res.Err)...)
	} else {
		c.logger.Debug("reconcile operation", attrs...)
	}
	return res
}
