package core

import "strconv"

// ProjectedRow is a row reshaped for output: cell values keyed by column
// title plus the row's identity and audit fields.
type ProjectedRow struct {
	ID         int64          `json:"id"`
	TableID    int64          `json:"tableId,omitempty"`
	CreatedBy  string         `json:"createdBy,omitempty"`
	CreatedAt  string         `json:"createdAt,omitempty"`
	LastEditBy string         `json:"lastEditBy,omitempty"`
	LastEditAt string         `json:"lastEditAt,omitempty"`
	Values     map[string]any `json:"values"`
}

// Project maps a raw row's cells to display values keyed by column title.
// Cells whose column is not in columns are keyed "column_<id>" and passed
// through unchanged.
func Project(row Row, columns []Column, opts FormatOptions) map[string]any {
	out := make(map[string]any, len(row.Data))

	for _, cell := range row.Data {
		col, ok := FindColumn(columns, cell.ColumnID)
		if !ok {
			out[fallbackTitle(cell.ColumnID)] = cell.Value
			continue
		}

		name := col.Title
		if name == "" {
			name = fallbackTitle(col.ID)
		}

		value := cell.Value
		if f, ok := formatterFor(col.Type); ok {
			value = f.display(col, cell.Value, opts)
		}
		out[name] = value
	}

	return out
}

// ProjectRow is Project plus the row's identity fields.
func ProjectRow(row Row, columns []Column, opts FormatOptions) ProjectedRow {
	return ProjectedRow{
		ID:         row.ID,
		TableID:    row.TableID,
		CreatedBy:  row.CreatedBy,
		CreatedAt:  row.CreatedAt,
		LastEditBy: row.LastEditBy,
		LastEditAt: row.LastEditAt,
		Values:     Project(row, columns, opts),
	}
}

// ProjectRows projects a page of rows against the same column list.
func ProjectRows(rows []Row, columns []Column, opts FormatOptions) []ProjectedRow {
	out := make([]ProjectedRow, len(rows))
	for i, row := range rows {
		out[i] = ProjectRow(row, columns, opts)
	}
	return out
}

// ColumnTitles returns the projection keys for columns, in column order.
func ColumnTitles(columns []Column) []string {
	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
		if titles[i] == "" {
			titles[i] = fallbackTitle(c.ID)
		}
	}
	return titles
}

func fallbackTitle(id int64) string {
	return "column_" + strconv.FormatInt(id, 10)
}
