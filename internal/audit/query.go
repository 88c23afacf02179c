package audit

import (
	"strconv"
	"strings"
)

// whereBuilder assembles a parameterized WHERE clause. Empty values are
// skipped so optional filters can be added unconditionally.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

func (wb *whereBuilder) placeholder() string {
	p := "$" + strconv.Itoa(wb.argIndex)
	wb.argIndex++
	return p
}

// Add appends "column = $n" unless value is the zero value of its type.
func (wb *whereBuilder) Add(column string, value any) {
	switch v := value.(type) {
	case nil:
		return
	case string:
		if v == "" {
			return
		}
	case int64:
		if v == 0 {
			return
		}
	}
	wb.conditions = append(wb.conditions, column+" = "+wb.placeholder())
	wb.args = append(wb.args, value)
}

// AddRange appends "column >= $n AND column < $m". A nil bound is skipped.
func (wb *whereBuilder) AddRange(column string, from, until any) {
	if from != nil {
		wb.conditions = append(wb.conditions, column+" >= "+wb.placeholder())
		wb.args = append(wb.args, from)
	}
	if until != nil {
		wb.conditions = append(wb.conditions, column+" < "+wb.placeholder())
		wb.args = append(wb.args, until)
	}
}

// Build returns the clause with a leading " WHERE", or "" and nil args when
// nothing was added.
func (wb *whereBuilder) Build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// NextArgIndex is the number the next placeholder will use.
func (wb *whereBuilder) NextArgIndex() int {
	return wb.argIndex
}
