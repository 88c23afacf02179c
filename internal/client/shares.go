package client

import (
	"context"
	"fmt"
	"net/http"
)

// Share permissions accepted by UpdateSharePermission.
const (
	PermissionRead   = "read"
	PermissionCreate = "create"
	PermissionUpdate = "update"
	PermissionDelete = "delete"
	PermissionManage = "manage"
)

// ShareInput describes a new share of a table.
type ShareInput struct {
	Receiver     string
	ReceiverType string // user or group
	Read         bool
	Create       bool
	Update       bool
	Delete       bool
	Manage       bool
}

func (in ShareInput) params(tableID int64) map[string]any {
	return map[string]any{
		"nodeId":           tableID,
		"nodeType":         "table",
		"receiver":         in.Receiver,
		"receiverType":     in.ReceiverType,
		"permissionRead":   in.Read,
		"permissionCreate": in.Create,
		"permissionUpdate": in.Update,
		"permissionDelete": in.Delete,
		"permissionManage": in.Manage,
	}
}

// ListShares returns the shares of a table.
func (c *Client) ListShares(ctx context.Context, tableID int64) ([]Share, error) {
	var shares []Share
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: tablePath(tableID) + "/shares"}, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// CreateShare shares a table with a user or group.
func (c *Client) CreateShare(ctx context.Context, tableID int64, in ShareInput) (*Share, error) {
	if in.Receiver == "" {
		return nil, fieldRequired("receiver")
	}
	if in.ReceiverType == "" {
		in.ReceiverType = ReceiverUser
	}
	if in.ReceiverType != ReceiverUser && in.ReceiverType != ReceiverGroup {
		return nil, invalidChoice("receiverType", in.ReceiverType, ReceiverUser, ReceiverGroup)
	}

	var s Share
	req := Request{Method: http.MethodPost, Path: tablePath(tableID) + "/shares", Params: in.params(tableID)}
	if err := c.Do(ctx, req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSharePermission sets one permission flag of a share.
func (c *Client) UpdateSharePermission(ctx context.Context, id int64, permission string, value bool) (*Share, error) {
	switch permission {
	case PermissionRead, PermissionCreate, PermissionUpdate, PermissionDelete, PermissionManage:
	default:
		return nil, invalidChoice("permission", permission,
			PermissionRead, PermissionCreate, PermissionUpdate, PermissionDelete, PermissionManage)
	}

	var s Share
	params := map[string]any{"permissionType": permission, "permissionValue": value}
	if err := c.Do(ctx, Request{Method: http.MethodPut, Path: sharePath(id), Params: params}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteShare removes a share and returns its last state.
func (c *Client) DeleteShare(ctx context.Context, id int64) (*Share, error) {
	var s Share
	if err := c.Do(ctx, Request{Method: http.MethodDelete, Path: sharePath(id)}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func sharePath(id int64) string { return fmt.Sprintf("/shares/%d", id) }
