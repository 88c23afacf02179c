package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tablelink/internal/core"
)

// ColumnInput describes a column to create or update. Only the constraint
// fields that belong to Type are sent.
type ColumnInput struct {
	Title       string
	Type        core.ColumnType
	Subtype     string
	Mandatory   bool
	Description string

	TextMaxLength      *int
	TextAllowedPattern string
	TextDefault        string

	NumberMin      *float64
	NumberMax      *float64
	NumberDecimals *int
	NumberPrefix   string
	NumberSuffix   string
	NumberDefault  *float64

	DatetimeDefault string

	SelectionOptions []string
	SelectionDefault []string

	UsergroupDefault       []string
	UsergroupMultipleItems bool
	UsergroupSelectUsers   bool
	UsergroupSelectGroups  bool

	// SelectedViewIDs adds the new column to these views.
	SelectedViewIDs []int64
}

// params renders the input as the query parameters the column endpoints
// expect. Lists are sent as JSON text.
func (in ColumnInput) params() map[string]any {
	p := map[string]any{
		"title":     in.Title,
		"type":      string(in.Type),
		"subtype":   in.Subtype,
		"mandatory": in.Mandatory,
	}
	if in.Description != "" {
		p["description"] = in.Description
	}
	if len(in.SelectedViewIDs) > 0 {
		p["selectedViewIds"] = in.SelectedViewIDs
	}

	switch in.Type {
	case core.TypeText:
		p["textMaxLength"] = in.TextMaxLength
		p["textAllowedPattern"] = in.TextAllowedPattern
		p["textDefault"] = in.TextDefault
	case core.TypeNumber:
		p["numberMin"] = in.NumberMin
		p["numberMax"] = in.NumberMax
		p["numberDecimals"] = in.NumberDecimals
		p["numberPrefix"] = in.NumberPrefix
		p["numberSuffix"] = in.NumberSuffix
		p["numberDefault"] = in.NumberDefault
	case core.TypeDatetime:
		p["datetimeDefault"] = in.DatetimeDefault
	case core.TypeSelection:
		if len(in.SelectionOptions) > 0 {
			p["selectionOptions"] = selectionOptionsJSON(in.SelectionOptions)
		}
		if len(in.SelectionDefault) > 0 {
			p["selectionDefault"] = jsonStrings(in.SelectionDefault)
		}
	case core.TypeUsergroup:
		if len(in.UsergroupDefault) > 0 {
			p["usergroupDefault"] = jsonStrings(in.UsergroupDefault)
		}
		p["usergroupMultipleItems"] = in.UsergroupMultipleItems
		p["usergroupSelectUsers"] = in.UsergroupSelectUsers
		p["usergroupSelectGroups"] = in.UsergroupSelectGroups
	}
	return p
}

func (in ColumnInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fieldRequired("title")
	}
	switch in.Type {
	case core.TypeText, core.TypeNumber, core.TypeDatetime, core.TypeSelection, core.TypeUsergroup, core.TypeFile:
	default:
		return core.NewValidationError("type", string(in.Type), "unknown column type")
	}
	if in.NumberMin != nil && in.NumberMax != nil && *in.NumberMin > *in.NumberMax {
		return core.NewValidationError("numberMin", "", "minimum is greater than maximum")
	}
	return nil
}

// ListColumns returns the columns of a table.
func (c *Client) ListColumns(ctx context.Context, tableID int64) ([]core.Column, error) {
	var cols []core.Column
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: tablePath(tableID) + "/columns"}, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// ListViewColumns returns the columns visible in a view.
func (c *Client) ListViewColumns(ctx context.Context, viewID int64) ([]core.Column, error) {
	var cols []core.Column
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: viewPath(viewID) + "/columns"}, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// GetColumn returns one column.
func (c *Client) GetColumn(ctx context.Context, id int64) (*core.Column, error) {
	var col core.Column
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: columnPath(id)}, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// CreateColumn adds a column to a table.
func (c *Client) CreateColumn(ctx context.Context, tableID int64, in ColumnInput) (*core.Column, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var col core.Column
	req := Request{Method: http.MethodPost, Path: tablePath(tableID) + "/columns", Params: in.params(), InQuery: true}
	if err := c.Do(ctx, req, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// UpdateColumn changes a column's title and constraints.
func (c *Client) UpdateColumn(ctx context.Context, id int64, in ColumnInput) (*core.Column, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	params := in.params()
	delete(params, "type")
	delete(params, "selectedViewIds")

	var col core.Column
	if err := c.Do(ctx, Request{Method: http.MethodPut, Path: columnPath(id), Params: params, InQuery: true}, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// DeleteColumn deletes a column and returns its last state.
func (c *Client) DeleteColumn(ctx context.Context, id int64) (*core.Column, error) {
	var col core.Column
	if err := c.Do(ctx, Request{Method: http.MethodDelete, Path: columnPath(id)}, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

func columnPath(id int64) string { return fmt.Sprintf("/columns/%d", id) }

// selectionOptionsJSON encodes option labels as the [{id, label}] list the
// server stores.
func selectionOptionsJSON(labels []string) string {
	type option struct {
		ID    int    `json:"id"`
		Label string `json:"label"`
	}
	opts := make([]option, len(labels))
	for i, label := range labels {
		opts[i] = option{ID: i, Label: label}
	}
	b, _ := json.Marshal(opts)
	return string(b)
}

func jsonStrings(values []string) string {
	b, _ := json.Marshal(values)
	return string(b)
}

func fieldRequired(field string) *core.Error {
	return core.NewValidationError(field, "", "%s is required", field)
}
