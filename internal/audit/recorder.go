// Package audit records the outcome of every privdir operation in the Log
// table.
//
// Recording is best-effort from the caller's point of view: when the insert
// fails (the Log table is missing or malformed, the disk is full) the event
// is handed to a Sink instead and the caller carries on. The recorder reports
// what happened; it never decides whether an operation may proceed.
package audit

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/store"
)

// DateTimeLayout is the eventDateTime format stored in the Log table.
const DateTimeLayout = "2006-01-02 15:04:05"

// SubjectSystem is the subject recorded for operations privdir performs on
// its own behalf (schema checks, table creation, bootstrap).
const SubjectSystem = "SYSTEM"

// OpLog is the trail op name of the recorder itself.
const OpLog = "Log"

// RecordStoreError is the status code of a failed Log insert.
const RecordStoreError = -1

// Event is one audit record before it is stamped and stored.
type Event struct {
	EventName string
	Object    string
	Subject   string
	Status    string
}

// Entry is a stored audit row.
type Entry struct {
	ID        int64  `json:"id"`
	EventName string `json:"eventName"`
	Object    string `json:"object"`
	Subject   string `json:"subject"`
	Status    string `json:"eventStatus"`
	DateTime  string `json:"eventDateTime"`
}

// Recorder appends events to the Log table.
type Recorder struct {
	db     store.DBTX
	sink   Sink
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSink sets the fallback sink used when the Log insert fails.
func WithSink(s Sink) Option {
	return func(r *Recorder) {
		if s != nil {
			r.sink = s
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder creates a Recorder writing to db. Without WithSink, fallback
// events go to the structured logger.
func NewRecorder(db store.DBTX, opts ...Option) *Recorder {
	r := &Recorder{
		db:     db,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = NewSlogSink(r.logger)
	}
	return r
}

// Record inserts ev into the Log table. On failure the event goes to the
// fallback sink and a STORE_ERROR is returned for the caller's trail.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	at := r.now().UTC()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO Log(eventName, object, subject, eventStatus, eventDateTime) VALUES(?, ?, ?, ?, ?)",
		ev.EventName, ev.Object, ev.Subject, ev.Status, at.Format(DateTimeLayout),
	)
	if err != nil {
		r.sink.Write(ev, at, err)
		return result.Store(RecordStoreError, OpLog, err)
	}
	r.logger.Debug("audit recorded",
		"event", ev.EventName,
		"object", ev.Object,
		"subject", ev.Subject,
		"status", ev.Status,
	)
	return nil
}

// RecordTo records ev and returns tr with the recorder's own outcome
// appended.
func (r *Recorder) RecordTo(ctx context.Context, tr result.Trace, ev Event) result.Trace {
	if err := r.Record(ctx, ev); err != nil {
		return tr.Add(OpLog, result.TagFailSQLite+result.EngineMessage(err))
	}
	return tr.Add(OpLog, result.TagOK)
}

// Entries returns the newest limit rows in insertion order. limit <= 0
// returns every row.
func (r *Recorder) Entries(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, eventName, object, subject, eventStatus, eventDateTime
		FROM (SELECT * FROM Log ORDER BY id DESC LIMIT ?)
		ORDER BY id ASC
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, result.Store(RecordStoreError, "readLog", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var id sql.NullInt64
		var name, object, subject, status, dt sql.NullString
		if err := rows.Scan(&id, &name, &object, &subject, &status, &dt); err != nil {
			return nil, result.Store(RecordStoreError, "readLog", err)
		}
		e.ID = id.Int64
		e.EventName = name.String
		e.Object = object.String
		e.Subject = subject.String
		e.Status = status.String
		e.DateTime = dt.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, result.Store(RecordStoreError, "readLog", err)
	}
	return entries, nil
}
