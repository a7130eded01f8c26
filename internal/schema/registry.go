package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps table names to declarations.
// Entries are copied in and out; a registry never hands out shared slices.
// Names match case-insensitively, as they do in SQLite.
type Registry struct {
	tables map[string]Table // keyed by lower-cased name
	order  []string
}

// NewRegistry creates a registry holding tables in the given order.
// Returns an error on duplicate names or invalid metadata.
func NewRegistry(tables ...Table) (*Registry, error) {
	r := &Registry{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a declaration. Names are unique.
func (r *Registry) Register(t Table) error {
	if err := Validate(t); err != nil {
		return err
	}
	key := strings.ToLower(t.Name)
	if prev, exists := r.tables[key]; exists {
		return fmt.Errorf("table %q already registered as %q", t.Name, prev.Name)
	}
	r.tables[key] = t.Clone()
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns a copy of the named declaration.
func (r *Registry) Lookup(name string) (Table, bool) {
	t, ok := r.tables[strings.ToLower(name)]
	if !ok {
		return Table{}, false
	}
	return t.Clone(), true
}

// Tables returns copies of all declarations in registration order.
func (r *Registry) Tables() []Table {
	out := make([]Table, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[strings.ToLower(name)].Clone())
	}
	return out
}

// Names returns the registered table names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}
