package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Only these shapes are ever interpolated into DDL. Values always travel as
// bound parameters. Type tag words are separated by single spaces: the engine
// stores the declared type trimmed, so a padded tag would never match again.
var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	typePattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*( [A-Za-z0-9_]+)*( ?\([0-9]+(, ?[0-9]+)?\))?$`)
)

// ValidationError reports table metadata that cannot be used in DDL.
type ValidationError struct {
	Table   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("table %q: %s", e.Table, e.Message)
	}
	return fmt.Sprintf("table %q: %s: %s", e.Table, e.Field, e.Message)
}

// ValidIdentifier reports whether name is safe to use as a table or column
// name in a statement.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Validate checks that t can be turned into a CREATE statement.
func Validate(t Table) error {
	if !ValidIdentifier(t.Name) {
		return &ValidationError{Table: t.Name, Message: "invalid table name"}
	}
	if len(t.Columns) == 0 {
		return &ValidationError{Table: t.Name, Message: "at least one column is required"}
	}
	seen := make(map[string]bool, len(t.Columns))
	pk := 0
	for i, c := range t.Columns {
		field := fmt.Sprintf("columns[%d]", i)
		if !ValidIdentifier(c.Name) {
			return &ValidationError{Table: t.Name, Field: field, Message: fmt.Sprintf("invalid column name %q", c.Name)}
		}
		if !typePattern.MatchString(c.Type) {
			return &ValidationError{Table: t.Name, Field: field, Message: fmt.Sprintf("invalid type tag %q", c.Type)}
		}
		// SQLite column names are case-insensitive
		key := strings.ToLower(c.Name)
		if seen[key] {
			return &ValidationError{Table: t.Name, Field: field, Message: fmt.Sprintf("duplicate column %q", c.Name)}
		}
		seen[key] = true
		if c.PrimaryKey {
			pk++
		}
	}
	if pk > 1 {
		return &ValidationError{Table: t.Name, Message: "at most one primary key column is allowed"}
	}
	return nil
}

// CreateStatement builds the CREATE TABLE statement for t, using the
// declared type tags verbatim.
func CreateStatement(t Table) (string, error) {
	if err := Validate(t); err != nil {
		return "", err
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = c.String()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quote(t.Name), strings.Join(cols, ", ")), nil
}

// DropStatement builds the DROP TABLE statement for name.
func DropStatement(name string) (string, error) {
	if !ValidIdentifier(name) {
		return "", &ValidationError{Table: name, Message: "invalid table name"}
	}
	return "DROP TABLE IF EXISTS " + quote(name), nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}
