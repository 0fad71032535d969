// Package table turns a sparse set of directory entities into a dense,
// fixed-column table.
//
// A request runs the stages in order:
//
//	schema := table.Discover(entities)
//	sel := table.Filter(schema, table.ParseShow(show, hasShow))
//	sorted := table.SortEntities(entities, table.ParseSortKeys(sortArg))
//	t, err := table.Assemble(sorted, sel, includeOwner)
//
// None of the stages keep state between calls.
package table

import (
	"fmt"

	"github.com/teranos/dirsvc/errors"
)

// Reserved column labels.
const (
	LabelChannel = "channel"
	LabelOwner   = "@owner"
)

// Missing is the cell value of a text column for an entity without the property.
const Missing = ""

// Kind is the value type of a column.
type Kind int

const (
	KindText Kind = iota
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is one named, typed, dense array. Only the slice matching Kind is used.
type Column struct {
	Label string
	Kind  Kind
	Text  []string
	Bool  []bool
}

// TextColumn builds a text column.
func TextColumn(label string, values []string) Column {
	return Column{Label: label, Kind: KindText, Text: values}
}

// BoolColumn builds a boolean column.
func BoolColumn(label string, values []bool) Column {
	return Column{Label: label, Kind: KindBoolean, Bool: values}
}

// Len returns the number of cells in the column.
func (c Column) Len() int {
	if c.Kind == KindBoolean {
		return len(c.Bool)
	}
	return len(c.Text)
}

// Table is an ordered list of labelled columns of equal length.
type Table struct {
	Labels  []string
	Columns []Column
	Rows    int
}

// Validate checks the shape invariants: one label per column, labels matching
// the columns, every column Rows long and of a known kind.
func (t *Table) Validate() error {
	if len(t.Labels) != len(t.Columns) {
		return errors.AssertionFailedf("table has %d labels but %d columns", len(t.Labels), len(t.Columns))
	}
	for i, col := range t.Columns {
		if col.Kind != KindText && col.Kind != KindBoolean {
			return errors.NewUnsupportedColumnTypeError(col.Label, col.Kind)
		}
		if t.Labels[i] != col.Label {
			return errors.AssertionFailedf("label %d is %q but column is %q", i, t.Labels[i], col.Label)
		}
		if col.Len() != t.Rows {
			return errors.AssertionFailedf("column %q has %d cells, want %d", col.Label, col.Len(), t.Rows)
		}
	}
	return nil
}

// Column returns the column with the given label.
func (t *Table) Column(label string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Label == label {
			return col, true
		}
	}
	return Column{}, false
}
