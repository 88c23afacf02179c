package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LocatorKind tags which input shape a Locator was parsed from.
type LocatorKind int

const (
	LocatorID         LocatorKind = iota + 1 // plain number
	LocatorString                            // numeric string
	LocatorStructured                        // {mode, value} with or without __rl
)

// Locator modes accepted in the structured form.
const (
	ModeID   = "id"
	ModeList = "list"
)

// ResourceLocator is the structured reference shape used by workflow hosts.
type ResourceLocator struct {
	RL    bool   `json:"__rl,omitempty"`
	Mode  string `json:"mode"`
	Value any    `json:"value"`
}

// Locator is a parsed reference to a table, view, column or row.
type Locator struct {
	Kind  LocatorKind
	Num   float64 // LocatorID from a float
	Int   int64   // LocatorID from an integer type
	Text  string  // LocatorString, or the structured value
	Mode  string  // LocatorStructured
	inner *Locator
	exact bool // Int is set
}

// sentinelStrings are string spellings of absent values that hosts pass
// through unchanged.
var sentinelStrings = map[string]bool{
	"null":      true,
	"undefined": true,
	"NaN":       true,
}

// Resolve normalizes any accepted locator shape into a positive id.
func Resolve(v any) (int64, error) {
	loc, err := ParseLocator(v)
	if err != nil {
		return 0, err
	}
	return loc.ID()
}

// ParseLocator classifies v into one of the Locator shapes without
// interpreting its value.
func ParseLocator(v any) (Locator, error) {
	switch x := v.(type) {
	case nil:
		return Locator{}, invalidLocator(v, "locator is empty")
	case Locator:
		return x, nil
	case *Locator:
		if x == nil {
			return Locator{}, invalidLocator(v, "locator is empty")
		}
		return *x, nil
	case string:
		if sentinelStrings[x] {
			return Locator{}, invalidLocator(v, "locator is empty")
		}
		return Locator{Kind: LocatorString, Text: x}, nil
	case ResourceLocator:
		return structuredLocator(x.Mode, x.Value)
	case *ResourceLocator:
		if x == nil {
			return Locator{}, invalidLocator(v, "locator is empty")
		}
		return structuredLocator(x.Mode, x.Value)
	case map[string]any:
		rl, _ := x["__rl"].(bool)
		_, hasMode := x["mode"]
		_, hasValue := x["value"]
		if rl || (hasMode && hasValue) {
			mode, _ := x["mode"].(string)
			return structuredLocator(mode, x["value"])
		}
		return Locator{}, invalidLocator(v, "unsupported locator shape")
	}

	if loc, ok, err := integerLocator(v); ok {
		return loc, err
	}
	if f, ok := toFloat(v); ok {
		if math.IsNaN(f) {
			return Locator{}, invalidLocator(v, "locator is NaN")
		}
		return Locator{Kind: LocatorID, Num: f}, nil
	}
	return Locator{}, invalidLocator(v, "unsupported locator type %T", v)
}

// integerLocator keeps integer inputs as integers so large ids survive
// unchanged.
func integerLocator(v any) (Locator, bool, error) {
	var n int64
	switch x := v.(type) {
	case int:
		n = int64(x)
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case uint:
		return unsignedLocator(uint64(x))
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	case uint64:
		return unsignedLocator(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return Locator{}, false, nil
		}
		n = i
	default:
		return Locator{}, false, nil
	}
	return Locator{Kind: LocatorID, Int: n, exact: true}, true, nil
}

func unsignedLocator(u uint64) (Locator, bool, error) {
	if u > math.MaxInt64 {
		return Locator{}, true, invalidLocator(u, "id %d is out of range", u)
	}
	return Locator{Kind: LocatorID, Int: int64(u), exact: true}, true, nil
}

func structuredLocator(mode string, value any) (Locator, error) {
	if value == nil {
		return Locator{}, invalidLocator(value, "locator value is empty")
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return Locator{}, invalidLocator(value, "locator value is empty")
	}
	if mode != ModeID && mode != ModeList {
		return Locator{}, invalidLocator(value, "unknown locator mode %q", mode)
	}
	inner, err := ParseLocator(value)
	if err != nil {
		return Locator{}, err
	}
	if inner.Kind == LocatorStructured {
		return Locator{}, invalidLocator(value, "nested locators are not supported")
	}
	return Locator{Kind: LocatorStructured, Mode: mode, Text: stringify(value), inner: &inner}, nil
}

// ID canonicalizes the locator into a positive integer.
func (l Locator) ID() (int64, error) {
	switch l.Kind {
	case LocatorID:
		if l.exact {
			if l.Int <= 0 {
				return 0, invalidLocator(l.Int, "id must be positive")
			}
			return l.Int, nil
		}
		if l.Num <= 0 {
			return 0, invalidLocator(l.Num, "id must be positive")
		}
		if l.Num != math.Trunc(l.Num) {
			return 0, invalidLocator(l.Num, "id must be an integer")
		}
		if l.Num > maxExactFloat {
			return 0, invalidLocator(l.Num, "id is too large to be exact as a number; pass it as a string")
		}
		return int64(l.Num), nil
	case LocatorString:
		return parseLocatorString(l.Text)
	case LocatorStructured:
		if l.inner == nil {
			return parseLocatorString(l.Text)
		}
		return l.inner.ID()
	}
	return 0, invalidLocator(nil, "locator is empty")
}

func parseLocatorString(s string) (int64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || sentinelStrings[trimmed] {
		return 0, invalidLocator(s, "locator is empty")
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, invalidLocator(s, "locator %q is not a number", s)
	}
	if n <= 0 {
		return 0, invalidLocator(s, "id must be positive")
	}
	return n, nil
}

func invalidLocator(v any, format string, args ...any) *Error {
	value := ""
	if v != nil {
		value = stringify(v)
	}
	return NewValidationError("locator", value, format, args...)
}

// toFloat accepts the numeric types JSON decoding and Go callers produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	}
	return 0, false
}

// String renders the locator for logs.
func (l Locator) String() string {
	switch l.Kind {
	case LocatorID:
		if l.exact {
			return strconv.FormatInt(l.Int, 10)
		}
		return strconv.FormatFloat(l.Num, 'f', -1, 64)
	case LocatorString:
		return l.Text
	case LocatorStructured:
		return fmt.Sprintf("%s:%s", l.Mode, l.Text)
	}
	return "<empty>"
}
