package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/privdir/internal/result"
	"github.com/roach88/privdir/internal/schema"
)

// Ensure status codes.
const (
	EnsureCheckFailed   = -1
	EnsureDropFailed    = -2
	EnsureCreateFailed  = -3
	EnsureInvalidSchema = -4
)

// Drop status codes.
const (
	DropStoreError  = -1
	DropInvalidName = -2
)

// Action is what Ensure did to the live table.
type Action int

const (
	// Kept means the table already matched.
	Kept Action = iota
	// Created means the table was missing and has been created.
	Created
	// Recreated means a divergent table was dropped and created again.
	Recreated
)

func (a Action) String() string {
	switch a {
	case Created:
		return "created"
	case Recreated:
		return "recreated"
	default:
		return "kept"
	}
}

// Ensure makes the live table match t, creating it when missing and
// dropping and re-creating it when it diverges. A re-created table loses
// all of its rows.
func (c *Checker) Ensure(ctx context.Context, t schema.Table) (Action, result.Result) {
	action, res := c.ensure(ctx, t)
	return action, c.finish(OpCreate, t.Name, res)
}

func (c *Checker) ensure(ctx context.Context, t schema.Table) (Action, result.Result) {
	if err := schema.Validate(t); err != nil {
		tr := c.note(ctx, nil, OpCreate, t.Name, result.TagFail+err.Error())
		e := &result.Error{
			Kind:    result.KindInvalidSchema,
			Code:    EnsureInvalidSchema,
			Op:      OpCreate,
			Message: "invalid table declaration",
			Err:     err,
		}
		return Kept, result.Fail(e, tr)
	}

	rep, res := c.check(ctx, t)
	tr := res.Trace
	if !res.OK() {
		tr = c.note(ctx, tr, OpCreate, t.Name, fmt.Sprintf("%scheckTable:%d", result.TagFailError, res.Status))
		e := &result.Error{
			Kind:    result.KindStore,
			Code:    EnsureCheckFailed,
			Op:      OpCreate,
			Message: "schema check failed",
			Err:     res.Err,
		}
		return Kept, result.Fail(e, tr)
	}

	action := Created
	switch {
	case rep.Outcome == Valid:
		return Kept, result.Ok(c.note(ctx, tr, OpCreate, t.Name, result.TagOK))
	case rep.Outcome.Diverged():
		action = Recreated
		drop := c.drop(ctx, t.Name)
		tr = tr.Extend(drop.Trace)
		if !drop.OK() {
			tr = c.note(ctx, tr, OpCreate, t.Name, fmt.Sprintf("%sdropTable:%d", result.TagFailError, drop.Status))
			e := &result.Error{
				Kind:    result.KindStore,
				Code:    EnsureDropFailed,
				Op:      OpCreate,
				Message: "drop of divergent table failed",
				Err:     drop.Err,
			}
			return action, result.Fail(e, tr)
		}
	}

	if err := c.catalog.CreateTable(ctx, t); err != nil {
		tr = c.note(ctx, tr, OpCreate, t.Name, result.TagFailSQLite+err.Error())
		return action, result.Fail(result.Store(EnsureCreateFailed, OpCreate, err), tr)
	}
	return action, result.Ok(c.note(ctx, tr, OpCreate, t.Name, result.TagOK))
}

// Drop removes the named table if it exists.
func (c *Checker) Drop(ctx context.Context, name string) result.Result {
	return c.finish(OpDrop, name, c.drop(ctx, name))
}

func (c *Checker) drop(ctx context.Context, name string) result.Result {
	err := c.catalog.DropTable(ctx, name)
	if err == nil {
		return result.Ok(c.note(ctx, nil, OpDrop, name, result.TagOK))
	}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		tr := c.note(ctx, nil, OpDrop, name, result.TagFail+"invalid table name")
		e := &result.Error{
			Kind:    result.KindInvalidSchema,
			Code:    DropInvalidName,
			Op:      OpDrop,
			Message: "invalid table name",
			Err:     err,
		}
		return result.Fail(e, tr)
	}
	tr := c.note(ctx, nil, OpDrop, name, result.TagFailSQLite+err.Error())
	return result.Fail(result.Store(DropStoreError, OpDrop, err), tr)
}
