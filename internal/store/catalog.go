package store

import (
	"context"
	"fmt"

	"github.com/roach88/privdir/internal/schema"
)

// TableExists reports whether a table with the name exists. Names compare
// case-insensitively, as the engine resolves them.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ? COLLATE NOCASE",
		name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table %q: %w", name, err)
	}
	return count > 0, nil
}

// Columns returns the live columns of a table in declaration order, with the
// declared type tag exactly as the engine stored it. A missing table yields
// an empty slice.
func (s *Store) Columns(ctx context.Context, name string) ([]schema.Column, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, type FROM pragma_table_info(?) ORDER BY cid",
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("read columns of %q: %w", name, err)
	}
	defer rows.Close()

	cols := []schema.Column{}
	for rows.Next() {
		var c schema.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", name, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %q: %w", name, err)
	}
	return cols, nil
}

// CreateTable runs a single CREATE TABLE statement for t.
// Fails if the table already exists.
func (s *Store) CreateTable(ctx context.Context, t schema.Table) error {
	stmt, err := schema.CreateStatement(t)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %q: %w", t.Name, err)
	}
	return nil
}

// DropTable runs a single DROP TABLE IF EXISTS statement.
func (s *Store) DropTable(ctx context.Context, name string) error {
	stmt, err := schema.DropStatement(name)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("drop table %q: %w", name, err)
	}
	return nil
}
