package client

import (
	"context"
	"fmt"
	"net/http"
)

// TableInput holds the writable table fields. Empty fields are not sent.
type TableInput struct {
	Title       string `json:"title,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template,omitempty"`
	Archived    *bool  `json:"archived,omitempty"`
}

func (in TableInput) params() map[string]any {
	p := map[string]any{}
	if in.Title != "" {
		p["title"] = in.Title
	}
	if in.Emoji != "" {
		p["emoji"] = in.Emoji
	}
	if in.Description != "" {
		p["description"] = in.Description
	}
	if in.Template != "" {
		p["template"] = in.Template
	}
	if in.Archived != nil {
		p["archived"] = *in.Archived
	}
	return p
}

// ListTables returns every table the user can see.
func (c *Client) ListTables(ctx context.Context) ([]Table, error) {
	var tables []Table
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/tables"}, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// GetTable returns one table.
func (c *Client) GetTable(ctx context.Context, id int64) (*Table, error) {
	var t Table
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: tablePath(id)}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTable creates a table, optionally from a server-side template.
func (c *Client) CreateTable(ctx context.Context, in TableInput) (*Table, error) {
	if in.Title == "" {
		return nil, fieldRequired("title")
	}
	var t Table
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/tables", Params: in.params()}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTable changes the supplied fields of a table.
func (c *Client) UpdateTable(ctx context.Context, id int64, in TableInput) (*Table, error) {
	var t Table
	if err := c.Do(ctx, Request{Method: http.MethodPut, Path: tablePath(id), Params: in.params()}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTable deletes a table and returns its last state.
func (c *Client) DeleteTable(ctx context.Context, id int64) (*Table, error) {
	var t Table
	if err := c.Do(ctx, Request{Method: http.MethodDelete, Path: tablePath(id)}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func tablePath(id int64) string { return fmt.Sprintf("/tables/%d", id) }
