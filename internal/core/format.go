package core

// format.go converts raw client values into API-ready cell values.
//
// Input values come from JSON decoding (string, float64, bool, []any,
// map[string]any), from Go callers (ints, []string, time.Time) or from CSV
// cells (always strings). Every value is validated against the column it is
// addressed to; the caller is responsible for passing columns that belong to
// the target table.

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Date-time output formats.
const (
	DateTimeISO  = "iso"
	DateTimeUnix = "unix"
	DateTimeDate = "date"
)

// isoLayout matches the millisecond UTC form the API emits and accepts.
const isoLayout = "2006-01-02T15:04:05.000Z"

// FormatOptions controls how values are converted to and from the wire.
type FormatOptions struct {
	DateTimeFormat     string `json:"dateTimeFormat,omitempty"`     // iso (default), unix or date
	ValidateSelections bool   `json:"validateSelections,omitempty"` // selection values must be listed options
	ResolveUserGroups  bool   `json:"resolveUserGroups,omitempty"`  // reserved
	Timezone           string `json:"timezone,omitempty"`           // IANA name used for date output and display
}

// DefaultFormatOptions returns ISO date-times with selection validation on.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		DateTimeFormat:     DateTimeISO,
		ValidateSelections: true,
	}
}

// location returns the configured timezone, falling back to UTC when the
// name is empty or unknown.
func (o FormatOptions) location() *time.Location {
	if o.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Format converts raw values keyed by column id into API values keyed the
// same way. Keys whose value is nil or "" are left out. The first invalid
// value aborts the call with a validation *Error.
func Format(raw map[string]any, columns []Column, opts FormatOptions) (map[string]any, error) {
	out := make(map[string]any, len(raw))

	for key, value := range raw {
		if notSupplied(value) {
			continue
		}

		col, ok := columnForKey(key, columns)
		if !ok {
			out[key] = Sanitize(value)
			continue
		}

		formatted, err := FormatValue(col, value, opts)
		if err != nil {
			return nil, err
		}
		if formatted == nil {
			continue
		}
		out[key] = formatted
	}

	return out, nil
}

// FormatValue converts a single value for col. A nil result means the
// column has nothing to write (no value and no default).
func FormatValue(col Column, value any, opts FormatOptions) (any, error) {
	f, ok := formatterFor(col.Type)
	if !ok {
		return Sanitize(value), nil
	}
	return f.format(col, value, opts)
}

// ToCells converts a formatted value map into the ordered cell list the row
// endpoints return, skipping keys that are not column ids.
func ToCells(values map[string]any) []Cell {
	cells := make([]Cell, 0, len(values))
	for key, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		cells = append(cells, Cell{ColumnID: id, Value: v})
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].ColumnID < cells[j].ColumnID })
	return cells
}

func notSupplied(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	}
	return false
}

func columnForKey(key string, columns []Column) (Column, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
	if err != nil {
		return Column{}, false
	}
	return FindColumn(columns, id)
}

// Sanitize applies the type-agnostic cleanup used for values without a
// known column: strings are trimmed, time values become ISO-8601 and
// containers are cleaned recursively.
func Sanitize(v any) any {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case time.Time:
		return x.UTC().Format(isoLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(isoLayout)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Sanitize(item)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, item := range x {
			out[i] = strings.TrimSpace(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Sanitize(item)
		}
		return out
	}
	return v
}

// stringify renders a scalar the way it would appear in a text cell.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(isoLayout)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// toList normalizes a value into a list of strings, reporting whether the
// input was list-shaped. Object entries are reduced by the first of keys
// they carry.
func toList(v any, keys ...string) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...), true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if notSupplied(item) {
				continue
			}
			if s, ok := listItemString(item, keys...); ok {
				out = append(out, s)
			} else {
				out = append(out, stringify(item))
			}
		}
		return out, true
	case map[string]any:
		if s, ok := listItemString(x, keys...); ok {
			return []string{s}, false
		}
	case nil:
		return nil, false
	}
	return []string{stringify(v)}, false
}
