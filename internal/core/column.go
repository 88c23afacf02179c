package core

import (
	"encoding/json"
	"strings"
)

// ColumnType identifies how a column's values are validated and encoded.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeNumber    ColumnType = "number"
	TypeDatetime  ColumnType = "datetime"
	TypeSelection ColumnType = "selection"
	TypeUsergroup ColumnType = "usergroup"
	TypeFile      ColumnType = "file"
)

// Column is a snapshot of one column's metadata as returned by the API.
// Only the constraint fields belonging to Type are meaningful.
type Column struct {
	ID          int64      `json:"id"`
	TableID     int64      `json:"tableId,omitempty"`
	Title       string     `json:"title"`
	Type        ColumnType `json:"type"`
	Subtype     string     `json:"subtype,omitempty"`
	Mandatory   bool       `json:"mandatory"`
	Description string     `json:"description,omitempty"`

	// text
	TextMaxLength      *int   `json:"textMaxLength,omitempty"`
	TextAllowedPattern string `json:"textAllowedPattern,omitempty"`
	TextDefault        string `json:"textDefault,omitempty"`

	// number
	NumberMin      *float64 `json:"numberMin,omitempty"`
	NumberMax      *float64 `json:"numberMax,omitempty"`
	NumberDecimals *int     `json:"numberDecimals,omitempty"`
	NumberPrefix   string   `json:"numberPrefix,omitempty"`
	NumberSuffix   string   `json:"numberSuffix,omitempty"`
	NumberDefault  *float64 `json:"numberDefault,omitempty"`

	// datetime: ISO-8601 or the literal "today"
	DatetimeDefault string `json:"datetimeDefault,omitempty"`

	// selection
	SelectionOptions  RawList `json:"selectionOptions,omitempty"`
	SelectionDefault  RawList `json:"selectionDefault,omitempty"`
	SelectionMultiple bool    `json:"selectionMultiple,omitempty"`

	// usergroup
	UsergroupDefault       RawList `json:"usergroupDefault,omitempty"`
	UsergroupMultipleItems bool    `json:"usergroupMultipleItems,omitempty"`
	UsergroupSelectUsers   bool    `json:"usergroupSelectUsers,omitempty"`
	UsergroupSelectGroups  bool    `json:"usergroupSelectGroups,omitempty"`
}

// Multiple reports whether the column holds a list of values.
func (c Column) Multiple() bool {
	switch c.Type {
	case TypeSelection:
		return c.SelectionMultiple || c.Subtype == "multi"
	case TypeUsergroup:
		return c.UsergroupMultipleItems
	}
	return false
}

// Options returns the selection option labels.
//
// The stored value is tried as a JSON array first, then as a comma separated
// list, and finally taken verbatim as a single option. Older servers store
// the list as a serialized string, newer ones as an array of {id, label}.
func (c Column) Options() []string {
	return c.SelectionOptions.Strings()
}

// RawList is a list-valued column attribute that the API may send either as
// a JSON array or as a string holding a serialized list.
type RawList string

// UnmarshalJSON keeps arrays in their JSON text form and strings unquoted so
// Strings can apply the same fallback to both.
func (l *RawList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = RawList(s)
		return nil
	}
	*l = RawList(trimmed)
	return nil
}

// MarshalJSON emits the stored text as a JSON string.
func (l RawList) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(l))
}

// Strings parses the list with the JSON → comma → single fallback.
func (l RawList) Strings() []string {
	raw := strings.TrimSpace(string(l))
	if raw == "" {
		return nil
	}

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err == nil {
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := listItemString(item, "label", "id"); ok {
				out = append(out, s)
			}
		}
		return out
	}

	if strings.Contains(raw, ",") {
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	return []string{raw}
}

// listItemString reduces one decoded list entry to a string. Objects
// contribute the first of keys they carry.
func listItemString(item any, keys ...string) (string, bool) {
	switch v := item.(type) {
	case string:
		return v, true
	case float64, bool, json.Number, int, int64:
		return stringify(v), true
	case map[string]any:
		for _, key := range keys {
			if inner, ok := v[key]; ok && inner != nil {
				return stringify(inner), true
			}
		}
	}
	return "", false
}

// FindColumn returns the column with the given id.
func FindColumn(columns []Column, id int64) (Column, bool) {
	for _, c := range columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// Cell is one (column id, value) pair of a row.
type Cell struct {
	ColumnID int64 `json:"columnId"`
	Value    any   `json:"value"`
}

// Row is one record as returned by the API.
type Row struct {
	ID         int64  `json:"id"`
	TableID    int64  `json:"tableId"`
	CreatedBy  string `json:"createdBy,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	LastEditBy string `json:"lastEditBy,omitempty"`
	LastEditAt string `json:"lastEditAt,omitempty"`
	Data       []Cell `json:"data"`
}
