package sqlstore

import "fmt"

// Table maps one entity type onto a SQL table.
type Table struct {
	// Name is the SQL table name.
	Name string

	// Columns maps scalar field names to column names. The "id" field is
	// required.
	Columns map[string]string

	// FK maps to-one relation field names to the foreign-key column on this
	// table. The column holds the related row's id.
	FK map[string]string

	// Ref maps to-many relation field names to the foreign-key column on the
	// related table pointing back at this table's id.
	Ref map[string]string
}

// selectFields returns the field names this table exposes for selection:
// scalars plus to-one foreign keys.
func (t Table) selectFields() map[string]string {
	cols := make(map[string]string, len(t.Columns)+len(t.FK))
	for field, col := range t.Columns {
		cols[field] = col
	}
	for field, col := range t.FK {
		cols[field] = col
	}
	return cols
}

// column resolves a terminal field name to its column, checking scalars
// first, then foreign keys.
func (t Table) column(field string) (string, bool) {
	if col, ok := t.Columns[field]; ok {
		return col, true
	}
	if col, ok := t.FK[field]; ok {
		return col, true
	}
	return "", false
}

// Mapping describes how an entity graph maps onto relational tables,
// keyed by entity name.
type Mapping map[string]Table

func (m Mapping) table(entity string) (Table, error) {
	t, ok := m[entity]
	if ok {
		return t, nil
	}
	return Table{}, fmt.Errorf("no table mapping for entity %q", entity)
}
