// Package directory implements the privilege-gated user directory.
//
// A user record is a userID with an integer privilege. Every mutation names
// two parties: the subject performing it and the object it applies to. A
// subject can never grant, keep or remove a privilege above its own, and
// each mutation additionally requires the subject to reach a fixed
// threshold.
//
// userID uniqueness is not enforced by the table. Lookups treat zero rows
// as NotFound and two or more as Ambiguous.
//
// Each public call writes exactly one audit row. Lookups made on behalf of
// a mutation appear in the returned trace but are not audited separately.
package directory

import (
	"context"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/privdir/internal/audit"
	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/store"
)

// Trail op names. They double as the audit eventName.
const (
	OpCount     = "userCount"
	OpPrivilege = "getUserPrivilege"
	OpAdd       = "addUser"
	OpModify    = "modUser"
	OpDelete    = "deleteUser"
)

// DefaultThreshold is the minimum subject privilege for every mutation
// unless configured otherwise.
const DefaultThreshold = 100

// Thresholds are the minimum subject privileges per mutation.
type Thresholds struct {
	Add    int `yaml:"add" json:"add"`
	Modify int `yaml:"modify" json:"modify"`
	Delete int `yaml:"delete" json:"delete"`
}

// DefaultThresholds returns DefaultThreshold for every mutation.
func DefaultThresholds() Thresholds {
	return Thresholds{Add: DefaultThreshold, Modify: DefaultThreshold, Delete: DefaultThreshold}
}

// Directory runs user operations against the users table.
type Directory struct {
	db         store.DBTX
	recorder   *audit.Recorder
	thresholds Thresholds
	logger     *slog.Logger
	ids        result.IDGenerator
}

// Option configures a Directory.
type Option func(*Directory)

// WithThresholds overrides DefaultThresholds.
func WithThresholds(t Thresholds) Option {
	return func(d *Directory) {
		d.thresholds = t
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithIDGenerator sets the source of result correlation IDs.
func WithIDGenerator(g result.IDGenerator) Option {
	return func(d *Directory) {
		if g != nil {
			d.ids = g
		}
	}
}

// New creates a Directory over db that records to recorder.
func New(db store.DBTX, recorder *audit.Recorder, opts ...Option) *Directory {
	d := &Directory{
		db:         db,
		recorder:   recorder,
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
		ids:        result.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Thresholds returns the configured mutation thresholds.
func (d *Directory) Thresholds() Thresholds {
	return d.thresholds
}

// normalize maps visually identical userIDs to one key.
func normalize(userID string) string {
	return norm.NFC.String(userID)
}

// finish writes the single audit row of a public call and appends op's own
// entry after it.
func (d *Directory) finish(ctx context.Context, tr result.Trace, op, object, subject, status string, err *result.Error) result.Result {
	tr = d.recorder.RecordTo(ctx, tr, audit.Event{
		EventName: op,
		Object:    object,
		Subject:   subject,
		Status:    status,
	})
	tr = tr.Add(op, status)

	var res result.Result
	if err != nil {
		res = result.Fail(err, tr)
	} else {
		res = result.Ok(tr)
	}
	res.ID = d.ids.Generate()

	attrs := []any{
		"op", op,
		"object", object,
		"subject", subject,
		"status", res.Status,
		"trace", tr.String(),
		"trace_id", res.ID,
	}
	if err != nil {
		d.logger.Info("directory operation refused", append(attrs, "error", err)...)
	} else {
		d.logger.Debug("directory operation", attrs...)
	}
	return res
}
