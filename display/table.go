package display

import (
	"strconv"

	"github.com/pterm/pterm"

	"github.com/teranos/dirsvc/table"
)

// TableData lays t out row-wise with the labels as the header row.
// Boolean cells print as true/false, missing text cells stay empty.
func TableData(t *table.Table) pterm.TableData {
	data := make(pterm.TableData, 0, t.Rows+1)
	data = append(data, append([]string(nil), t.Labels...))
	for row := 0; row < t.Rows; row++ {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			switch col.Kind {
			case table.KindBoolean:
				cells[i] = strconv.FormatBool(col.Bool[row])
			default:
				cells[i] = col.Text[row]
			}
		}
		data = append(data, cells)
	}
	return data
}

// RenderTable prints t with a header row.
func RenderTable(t *table.Table) error {
	return pterm.DefaultTable.WithHasHeader().WithData(TableData(t)).Render()
}
