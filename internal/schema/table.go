// Package schema describes the tables privdir expects to find in its store.
//
// Table values are plain data: build them once at startup (LogTable,
// UsersTable, LoadCUE) and pass them to the reconciler explicitly. Nothing in
// this package holds process-wide mutable state.
package schema

// Column is a declared attribute of a table.
//
// Type is a storage-engine type tag ("INTEGER", "TEXT") compared as an exact,
// case-sensitive string. PrimaryKey only changes the CREATE statement; the
// validator compares Name and Type.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// String renders the column definition used in a CREATE statement.
func (c Column) String() string {
	def := quote(c.Name) + " " + c.Type
	if c.PrimaryKey {
		def += " PRIMARY KEY"
	}
	return def
}

// Table is an ordered column list under a name. Order is significant.
type Table struct {
	Name    string
	Columns []Column
}

// Clone returns a deep copy so callers can never alias a registry entry.
func (t Table) Clone() Table {
	cols := make([]Column, len(t.Columns))
	copy(cols, t.Columns)
	return Table{Name: t.Name, Columns: cols}
}

// Table names of the built-in schemas.
const (
	LogTableName   = "Log"
	UsersTableName = "users"
)

// LogTable returns the audit log declaration.
func LogTable() Table {
	return Table{
		Name: LogTableName,
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "eventName", Type: "TEXT"},
			{Name: "object", Type: "TEXT"},
			{Name: "subject", Type: "TEXT"},
			{Name: "eventStatus", Type: "TEXT"},
			{Name: "eventDateTime", Type: "TEXT"},
		},
	}
}

// UsersTable returns the privilege directory declaration.
func UsersTable() Table {
	return Table{
		Name: UsersTableName,
		Columns: []Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "userID", Type: "TEXT"},
			{Name: "privilege", Type: "INTEGER"},
		},
	}
}
