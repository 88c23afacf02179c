package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/tablelink/internal/core"
)

// Target selects where a row write goes: a table, or a view when ViewID is
// set. Writes through a view only see the view's columns.
type Target struct {
	TableID int64
	ViewID  int64
}

func (t Target) String() string {
	if t.ViewID > 0 {
		return fmt.Sprintf("view %d", t.ViewID)
	}
	return fmt.Sprintf("table %d", t.TableID)
}

func (t Target) path() string {
	if t.ViewID > 0 {
		return viewPath(t.ViewID)
	}
	return tablePath(t.TableID)
}

// Columns returns the columns visible through the target.
func (c *Client) Columns(ctx context.Context, t Target) ([]core.Column, error) {
	if t.ViewID > 0 {
		return c.ListViewColumns(ctx, t.ViewID)
	}
	return c.ListColumns(ctx, t.TableID)
}

// ListRows returns one page of a table's or view's rows.
func (c *Client) ListRows(ctx context.Context, t Target, page Page) ([]core.Row, error) {
	var rows []core.Row
	req := Request{Method: http.MethodGet, Path: t.path() + "/rows", Params: page.params(), InQuery: true}
	if err := c.Do(ctx, req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetRow returns one row.
func (c *Client) GetRow(ctx context.Context, id int64) (*core.Row, error) {
	var row core.Row
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: rowPath(id)}, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateRow formats values against the target's columns and inserts the
// row. values is keyed by column id; nil and empty values are left out.
func (c *Client) CreateRow(ctx context.Context, t Target, values map[string]any) (*core.Row, error) {
	cols, err := c.Columns(ctx, t)
	if err != nil {
		return nil, err
	}
	return c.CreateRowWithColumns(ctx, t, cols, values)
}

// CreateRowWithColumns is CreateRow with a column list the caller already
// fetched for t. Bulk writers use it to fetch columns once per batch.
func (c *Client) CreateRowWithColumns(ctx context.Context, t Target, cols []core.Column, values map[string]any) (*core.Row, error) {
	data, err := c.PrepareRow(cols, values)
	if err != nil {
		return nil, err
	}

	var row core.Row
	req := Request{Method: http.MethodPost, Path: t.path() + "/rows", Params: map[string]any{"data": data}}
	if err := c.Do(ctx, req, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// PrepareRow runs every check CreateRowWithColumns makes before writing and
// returns the API payload. Callers that must not write anything unless a
// whole set of rows is valid use it as a first pass.
func (c *Client) PrepareRow(cols []core.Column, values map[string]any) (map[string]any, error) {
	data, err := core.Format(values, cols, c.format)
	if err != nil {
		return nil, err
	}
	if err := checkMandatory(cols, data); err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateRow formats values against the columns of the row's table and
// writes them. Only the supplied columns change. viewID may be zero.
func (c *Client) UpdateRow(ctx context.Context, id, viewID int64, values map[string]any) (*core.Row, error) {
	cols, err := c.UpdateColumns(ctx, id, viewID)
	if err != nil {
		return nil, err
	}
	return c.UpdateRowWithColumns(ctx, id, viewID, cols, values)
}

// UpdateColumns returns the columns an update of row id is checked against:
// the view's columns when viewID is set, otherwise those of the row's table.
func (c *Client) UpdateColumns(ctx context.Context, id, viewID int64) ([]core.Column, error) {
	if viewID > 0 {
		return c.ListViewColumns(ctx, viewID)
	}
	current, err := c.GetRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.ListColumns(ctx, current.TableID)
}

// UpdateRowWithColumns is UpdateRow with the columns from UpdateColumns
// already in hand.
func (c *Client) UpdateRowWithColumns(ctx context.Context, id, viewID int64, cols []core.Column, values map[string]any) (*core.Row, error) {
	data, err := core.Format(values, cols, c.format)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, core.NewValidationError("values", "", "no values to update")
	}

	params := map[string]any{"data": data}
	if viewID > 0 {
		params["viewId"] = viewID
	}

	var row core.Row
	if err := c.Do(ctx, Request{Method: http.MethodPut, Path: rowPath(id), Params: params}, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// DeleteRow deletes a row, through a view when viewID is set.
func (c *Client) DeleteRow(ctx context.Context, id, viewID int64) (*core.Row, error) {
	path := rowPath(id)
	if viewID > 0 {
		path = fmt.Sprintf("%s/rows/%d", viewPath(viewID), id)
	}

	var row core.Row
	if err := c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ProjectRows lists a page of rows and projects them by column title.
func (c *Client) ProjectRows(ctx context.Context, t Target, page Page) ([]core.ProjectedRow, []core.Column, error) {
	cols, err := c.Columns(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	rows, err := c.ListRows(ctx, t, page)
	if err != nil {
		return nil, nil, err
	}
	return core.ProjectRows(rows, cols, c.format), cols, nil
}

// checkMandatory rejects a new row that leaves a mandatory column without
// a value or a default.
func checkMandatory(cols []core.Column, data map[string]any) error {
	for _, col := range cols {
		if !col.Mandatory {
			continue
		}
		if _, ok := data[fmt.Sprint(col.ID)]; ok {
			continue
		}
		if hasDefault(col) {
			continue
		}
		return core.NewValidationError(col.Title, "", "value is required")
	}
	return nil
}

func hasDefault(col core.Column) bool {
	switch col.Type {
	case core.TypeText:
		return col.TextDefault != ""
	case core.TypeNumber:
		return col.NumberDefault != nil
	case core.TypeDatetime:
		return col.DatetimeDefault != ""
	case core.TypeSelection:
		return len(col.SelectionDefault.Strings()) > 0
	case core.TypeUsergroup:
		return len(col.UsergroupDefault.Strings()) > 0
	}
	return false
}

func rowPath(id int64) string { return fmt.Sprintf("/rows/%d", id) }
