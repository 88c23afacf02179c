package client

import "encoding/json"

// Table is a table as listed by the API.
type Table struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Emoji            string `json:"emoji,omitempty"`
	Description      string `json:"description,omitempty"`
	Ownership        string `json:"ownership,omitempty"`
	OwnerDisplayName string `json:"ownerDisplayName,omitempty"`
	CreatedBy        string `json:"createdBy,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	LastEditBy       string `json:"lastEditBy,omitempty"`
	LastEditAt       string `json:"lastEditAt,omitempty"`
	Archived         bool   `json:"archived,omitempty"`
	Favorite         bool   `json:"favorite,omitempty"`
	IsShared         bool   `json:"isShared,omitempty"`
	RowsCount        int    `json:"rowsCount,omitempty"`
	ColumnsCount     int    `json:"columnsCount,omitempty"`
	Views            []View `json:"views,omitempty"`
}

// View is a filtered and sorted projection of a table.
type View struct {
	ID          int64           `json:"id"`
	TableID     int64           `json:"tableId"`
	Title       string          `json:"title"`
	Emoji       string          `json:"emoji,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedBy   string          `json:"createdBy,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	LastEditBy  string          `json:"lastEditBy,omitempty"`
	LastEditAt  string          `json:"lastEditAt,omitempty"`
	Columns     []int64         `json:"columns,omitempty"`
	Sort        json.RawMessage `json:"sort,omitempty"`
	Filter      json.RawMessage `json:"filter,omitempty"`
	RowsCount   int             `json:"rowsCount,omitempty"`
}

// Receiver types for shares.
const (
	ReceiverUser  = "user"
	ReceiverGroup = "group"
)

// Share grants a user or group access to a table or view.
type Share struct {
	ID                  int64  `json:"id"`
	Sender              string `json:"sender,omitempty"`
	Receiver            string `json:"receiver"`
	ReceiverDisplayName string `json:"receiverDisplayName,omitempty"`
	ReceiverType        string `json:"receiverType"`
	NodeID              int64  `json:"nodeId"`
	NodeType            string `json:"nodeType"`
	PermissionRead      bool   `json:"permissionRead"`
	PermissionCreate    bool   `json:"permissionCreate"`
	PermissionUpdate    bool   `json:"permissionUpdate"`
	PermissionDelete    bool   `json:"permissionDelete"`
	PermissionManage    bool   `json:"permissionManage"`
	CreatedAt           string `json:"createdAt,omitempty"`
}

// ImportResult is the server's summary of a file import.
type ImportResult struct {
	FoundColumnsCount    int `json:"found_columns_count"`
	MatchingColumnsCount int `json:"matching_columns_count"`
	CreatedColumnsCount  int `json:"created_columns_count"`
	InsertedRowsCount    int `json:"inserted_rows_count"`
	ErrorsParsingCount   int `json:"errors_parsing_count"`
	ErrorsCount          int `json:"errors_count"`
}

// Page is passed through to list endpoints. Zero values are omitted.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) params() map[string]any {
	params := map[string]any{}
	if p.Limit > 0 {
		params["limit"] = p.Limit
	}
	if p.Offset > 0 {
		params["offset"] = p.Offset
	}
	return params
}
