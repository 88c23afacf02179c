package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// typeFormatter owns the conversion rules for one column type.
// format validates and encodes a supplied value for the API; display renders
// a stored value for projection output.
type typeFormatter interface {
	format(col Column, v any, opts FormatOptions) (any, error)
	display(col Column, v any, opts FormatOptions) any
}

// formatters is the closed set of column variants. Adding a column type
// means adding one entry here.
var formatters = map[ColumnType]typeFormatter{
	TypeText:      textFormatter{},
	TypeNumber:    numberFormatter{},
	TypeDatetime:  datetimeFormatter{},
	TypeSelection: selectionFormatter{},
	TypeUsergroup: usergroupFormatter{},
	TypeFile:      fileFormatter{},
}

func formatterFor(t ColumnType) (typeFormatter, bool) {
	f, ok := formatters[t]
	return f, ok
}

// ----------------------------------------------------------------------------
// text
// ----------------------------------------------------------------------------

type textFormatter struct{}

func (textFormatter) format(col Column, v any, _ FormatOptions) (any, error) {
	s := stringify(v)

	if col.TextMaxLength != nil && *col.TextMaxLength > 0 {
		if n := utf8.RuneCountInString(s); n > *col.TextMaxLength {
			return nil, NewValidationError(col.Title, s,
				"value is %d characters long, maximum is %d", n, *col.TextMaxLength)
		}
	}

	if col.TextAllowedPattern != "" {
		re, err := regexp.Compile(col.TextAllowedPattern)
		if err != nil {
			return nil, NewValidationError(col.Title, s,
				"column pattern %q is not a valid regular expression", col.TextAllowedPattern)
		}
		if !re.MatchString(s) {
			return nil, NewValidationError(col.Title, s,
				"value does not match the allowed pattern %s", col.TextAllowedPattern)
		}
	}

	return s, nil
}

func (textFormatter) display(_ Column, v any, _ FormatOptions) any { return v }

// ----------------------------------------------------------------------------
// number
// ----------------------------------------------------------------------------

type numberFormatter struct{}

func (numberFormatter) format(col Column, v any, _ FormatOptions) (any, error) {
	f, ok := parseNumber(col, v)
	if !ok {
		return nil, NewValidationError(col.Title, stringify(v), "invalid number format")
	}

	if col.NumberMin != nil && f < *col.NumberMin {
		return nil, NewValidationError(col.Title, stringify(v),
			"value %s is below the minimum %s", formatFloat(f), formatFloat(*col.NumberMin))
	}
	if col.NumberMax != nil && f > *col.NumberMax {
		return nil, NewValidationError(col.Title, stringify(v),
			"value %s is above the maximum %s", formatFloat(f), formatFloat(*col.NumberMax))
	}

	if col.NumberDecimals != nil && *col.NumberDecimals >= 0 {
		f = roundTo(f, *col.NumberDecimals)
	}
	return f, nil
}

func (numberFormatter) display(_ Column, v any, _ FormatOptions) any { return v }

// parseNumber accepts numeric Go values and numeric strings. The column's
// prefix and suffix (currency symbols, units) are stripped from strings.
func parseNumber(col Column, v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case bool:
		return 0, false
	case string:
		s := strings.TrimSpace(x)
		if col.NumberPrefix != "" {
			s = strings.TrimSpace(strings.TrimPrefix(s, col.NumberPrefix))
		}
		if col.NumberSuffix != "" {
			s = strings.TrimSpace(strings.TrimSuffix(s, col.NumberSuffix))
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		parsed, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// roundTo rounds half away from zero at the given number of decimals.
// Rounding an already rounded value is a no-op. Values whose scaled form
// has no fractional precision left are returned unchanged.
func roundTo(f float64, decimals int) float64 {
	p := math.Pow10(decimals)
	if math.IsInf(p, 0) {
		return f
	}
	scaled := f * p
	if math.IsInf(scaled, 0) || math.Abs(scaled) >= maxExactFloat {
		return f
	}
	return math.Round(scaled) / p
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ----------------------------------------------------------------------------
// datetime
// ----------------------------------------------------------------------------

// unixSecondsLimit separates second and millisecond timestamps.
const unixSecondsLimit = 1e10

// displayLayout approximates the en-US locale rendering of a date-time.
const displayLayout = "1/2/2006, 3:04:05 PM"

// dateLayouts are tried in order for string input that is not all digits.
// Layouts without a zone are read in the configured timezone.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"1/2/2006",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

type datetimeFormatter struct{}

func (datetimeFormatter) format(col Column, v any, opts FormatOptions) (any, error) {
	t, ok := parseDateTime(v, opts.location())
	if !ok {
		return nil, NewValidationError(col.Title, stringify(v), "invalid date format (use ISO-8601 or a Unix timestamp)")
	}

	switch opts.DateTimeFormat {
	case DateTimeUnix:
		return t.Unix(), nil
	case DateTimeDate:
		return t.In(opts.location()).Format("2006-01-02"), nil
	default:
		return t.UTC().Format(isoLayout), nil
	}
}

func (datetimeFormatter) display(_ Column, v any, opts FormatOptions) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return v
	}
	t, ok := parseDateTime(v, opts.location())
	if !ok {
		return v
	}
	return t.In(opts.location()).Format(displayLayout)
}

// parseDateTime reads time values, Unix timestamps (digit strings are
// seconds; numbers are seconds up to 1e10 and milliseconds above) and the
// string layouts in dateLayouts.
func parseDateTime(v any, loc *time.Location) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		if strings.EqualFold(s, "today") || strings.EqualFold(s, "now") {
			return time.Now(), true
		}
		if allDigits(s) {
			sec, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return time.Time{}, false
			}
			return time.Unix(sec, 0), true
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case bool:
		return time.Time{}, false
	}

	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if math.Abs(f) <= unixSecondsLimit {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)), true
	}
	return time.UnixMilli(int64(f)), true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ----------------------------------------------------------------------------
// selection
// ----------------------------------------------------------------------------

type selectionFormatter struct{}

func (selectionFormatter) format(col Column, v any, opts FormatOptions) (any, error) {
	values, isList := selectionValues(col, v)

	if len(values) == 0 {
		values = col.SelectionDefault.Strings()
		isList = col.Multiple() || len(values) > 1
		if len(values) == 0 {
			return nil, nil
		}
	}

	if opts.ValidateSelections {
		allowed := col.Options()
		for _, value := range values {
			if !containsString(allowed, value) {
				return nil, NewValidationError(col.Title, value,
					"value must be one of: %s", strings.Join(allowed, ", "))
			}
		}
	}

	if isList {
		return values, nil
	}
	return values[0], nil
}

func (selectionFormatter) display(_ Column, v any, _ FormatOptions) any {
	return joinList(v, "label", "id")
}

// selectionValues trims the supplied values. Multi-select columns also
// accept a serialized list in a single string.
func selectionValues(col Column, v any) ([]string, bool) {
	if s, ok := v.(string); ok && col.Multiple() {
		return trimAll(RawList(s).Strings()), true
	}
	values, isList := toList(v, "label", "id")
	return trimAll(values), isList
}

// ----------------------------------------------------------------------------
// usergroup
// ----------------------------------------------------------------------------

type usergroupFormatter struct{}

func (usergroupFormatter) format(col Column, v any, _ FormatOptions) (any, error) {
	var values []string
	if s, ok := v.(string); ok && col.Multiple() {
		values = RawList(s).Strings()
	} else {
		values, _ = toList(v, "id")
	}
	values = trimAll(values)

	if len(values) == 0 {
		values = trimAll(col.UsergroupDefault.Strings())
		if len(values) == 0 {
			return nil, nil
		}
	}

	if col.Multiple() {
		return values, nil
	}
	return values[0], nil
}

func (usergroupFormatter) display(_ Column, v any, _ FormatOptions) any {
	return joinList(v, "displayName", "id")
}

// ----------------------------------------------------------------------------
// file
// ----------------------------------------------------------------------------

type fileFormatter struct{}

func (fileFormatter) format(col Column, v any, _ FormatOptions) (any, error) {
	if m, ok := v.(map[string]any); ok {
		id, present := m["fileId"]
		if !present || notSupplied(id) {
			return nil, NewValidationError(col.Title, "", "file reference has no fileId")
		}
		v = id
	}
	s := strings.TrimSpace(stringify(v))
	if s == "" {
		return nil, nil
	}
	return s, nil
}

func (fileFormatter) display(_ Column, v any, _ FormatOptions) any { return v }

// ----------------------------------------------------------------------------
// helpers
// ----------------------------------------------------------------------------

func joinList(v any, keys ...string) any {
	switch v.(type) {
	case []any, []string:
		values, _ := toList(v, keys...)
		return strings.Join(values, ", ")
	}
	return v
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
