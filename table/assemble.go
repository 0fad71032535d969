package table

import "github.com/teranos/dirsvc/directory"

// Assemble builds the table for entities in their given order.
//
// Column groups are emitted as channel, @owner, properties, tags. The @owner
// column is emitted when includeOwner is set and there is at least one row,
// whatever the selection.
// Property cells default to Missing and tag cells to false, so every column
// is exactly len(entities) long even when no entity carries the field.
func Assemble(entities []directory.Entity, sel Selection, includeOwner bool) (*Table, error) {
	rows := len(entities)
	withOwner := includeOwner && rows > 0

	width := 1 + len(sel.Properties) + len(sel.Tags)
	if withOwner {
		width++
	}
	t := &Table{
		Labels:  make([]string, 0, width),
		Columns: make([]Column, 0, width),
		Rows:    rows,
	}

	names := make([]string, rows)
	for i, e := range entities {
		names[i] = e.Name
	}
	t.append(TextColumn(LabelChannel, names))

	if withOwner {
		owners := make([]string, rows)
		for i, e := range entities {
			owners[i] = e.Owner
		}
		t.append(TextColumn(LabelOwner, owners))
	}

	propIndex := make(map[string][]string, len(sel.Properties))
	for _, name := range sel.Properties {
		values := make([]string, rows)
		propIndex[name] = values
		t.append(TextColumn(name, values))
	}
	tagIndex := make(map[string][]bool, len(sel.Tags))
	for _, name := range sel.Tags {
		values := make([]bool, rows)
		tagIndex[name] = values
		t.append(BoolColumn(name, values))
	}

	// One pass over every entity's own properties and tags fills the cells.
	for i, e := range entities {
		for _, p := range e.Properties {
			if values, ok := propIndex[p.Name]; ok {
				values[i] = p.Value
			}
		}
		for _, tag := range e.Tags {
			if values, ok := tagIndex[tag]; ok {
				values[i] = true
			}
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) append(col Column) {
	t.Labels = append(t.Labels, col.Label)
	t.Columns = append(t.Columns, col)
}
