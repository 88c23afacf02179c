package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_SelectionRoundTrip(t *testing.T) {
	cols := []Column{{ID: 5, Title: "Status", Type: TypeSelection, SelectionOptions: `["Option 1","Option 2"]`}}
	opts := DefaultFormatOptions()

	formatted, err := Format(map[string]any{"5": "Option 1"}, cols, opts)
	require.NoError(t, err)

	row := Row{ID: 1, TableID: 2, Data: ToCells(formatted)}
	assert.Equal(t, map[string]any{"Status": "Option 1"}, Project(row, cols, opts))

	_, err = Format(map[string]any{"5": "Option 9"}, cols, opts)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestProject_DisplayValues(t *testing.T) {
	cols := []Column{
		{ID: 1, Title: "Name", Type: TypeText},
		{ID: 2, Title: "Due", Type: TypeDatetime},
		{ID: 3, Title: "Tags", Type: TypeSelection, SelectionMultiple: true},
		{ID: 4, Title: "Owners", Type: TypeUsergroup, UsergroupMultipleItems: true},
		{ID: 5, Title: "", Type: TypeNumber},
		{ID: 6, Title: "Amount", Type: TypeNumber},
	}
	row := Row{
		ID: 10,
		Data: []Cell{
			{ColumnID: 1, Value: "Widget"},
			{ColumnID: 2, Value: "2023-11-14T22:13:20.000Z"},
			{ColumnID: 3, Value: []any{map[string]any{"id": 1.0, "label": "red"}, "blue"}},
			{ColumnID: 4, Value: []any{map[string]any{"id": "alice", "displayName": "Alice"}, map[string]any{"id": "bob"}}},
			{ColumnID: 5, Value: 3.0},
			{ColumnID: 6, Value: 19.5},
			{ColumnID: 99, Value: "orphan"},
		},
	}

	got := Project(row, cols, DefaultFormatOptions())

	assert.Equal(t, map[string]any{
		"Name":      "Widget",
		"Due":       "11/14/2023, 10:13:20 PM",
		"Tags":      "red, blue",
		"Owners":    "Alice, bob",
		"column_5":  3.0,
		"Amount":    19.5,
		"column_99": "orphan",
	}, got)
}

func TestProject_DatetimeTimezone(t *testing.T) {
	cols := []Column{{ID: 1, Title: "Due", Type: TypeDatetime}}
	row := Row{Data: []Cell{{ColumnID: 1, Value: "2023-11-14T22:13:20.000Z"}}}

	got := Project(row, cols, FormatOptions{Timezone: "Europe/Berlin"})
	assert.Equal(t, "11/14/2023, 11:13:20 PM", got["Due"])
}

func TestProject_UnparseableDatetimePassesThrough(t *testing.T) {
	cols := []Column{{ID: 1, Title: "Due", Type: TypeDatetime}}
	row := Row{Data: []Cell{{ColumnID: 1, Value: "someday"}}}

	assert.Equal(t, "someday", Project(row, cols, DefaultFormatOptions())["Due"])
}

func TestProjectRows(t *testing.T) {
	cols := []Column{{ID: 1, Title: "Name", Type: TypeText}}
	rows := []Row{
		{ID: 1, TableID: 7, CreatedBy: "alice", Data: []Cell{{ColumnID: 1, Value: "a"}}},
		{ID: 2, TableID: 7, LastEditBy: "bob", Data: []Cell{{ColumnID: 1, Value: "b"}}},
	}

	got := ProjectRows(rows, cols, DefaultFormatOptions())
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "alice", got[0].CreatedBy)
	assert.Equal(t, "b", got[1].Values["Name"])
	assert.Equal(t, "bob", got[1].LastEditBy)
}

func TestColumnTitles(t *testing.T) {
	cols := []Column{{ID: 1, Title: "Name"}, {ID: 2}}
	assert.Equal(t, []string{"Name", "column_2"}, ColumnTitles(cols))
}
