package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawList_Strings(t *testing.T) {
	tests := []struct {
		name string
		raw  RawList
		want []string
	}{
		{name: "json strings", raw: `["Option 1","Option 2"]`, want: []string{"Option 1", "Option 2"}},
		{name: "json objects", raw: `[{"id":1,"label":"Low"},{"id":2,"label":"High"}]`, want: []string{"Low", "High"}},
		{name: "json numbers", raw: `[1, 2.5]`, want: []string{"1", "2.5"}},
		{name: "comma separated", raw: "a, b ,c", want: []string{"a", "b", "c"}},
		{name: "malformed json falls back to commas", raw: `["a", "b"`, want: []string{`["a"`, `"b"`}},
		{name: "single value", raw: "only", want: []string{"only"}},
		{name: "only commas", raw: ",,", want: []string{",,"}},
		{name: "empty", raw: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.raw.Strings())
		})
	}
}

func TestColumn_DecodesBothOptionShapes(t *testing.T) {
	var modern Column
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 5, "title": "Status", "type": "selection", "subtype": "multi",
		"selectionOptions": [{"id": 0, "label": "Open"}, {"id": 1, "label": "Done"}],
		"selectionDefault": null
	}`), &modern))

	var legacy Column
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 6, "title": "Status", "type": "selection",
		"selectionOptions": "[\"Open\",\"Done\"]",
		"selectionDefault": "Open"
	}`), &legacy))

	assert.Equal(t, []string{"Open", "Done"}, modern.Options())
	assert.Equal(t, []string{"Open", "Done"}, legacy.Options())
	assert.True(t, modern.Multiple())
	assert.False(t, legacy.Multiple())
	assert.Empty(t, modern.SelectionDefault.Strings())
	assert.Equal(t, []string{"Open"}, legacy.SelectionDefault.Strings())
}

func TestColumn_Multiple(t *testing.T) {
	assert.True(t, Column{Type: TypeSelection, SelectionMultiple: true}.Multiple())
	assert.True(t, Column{Type: TypeUsergroup, UsergroupMultipleItems: true}.Multiple())
	assert.False(t, Column{Type: TypeText, SelectionMultiple: true}.Multiple())
}

func TestRow_Decode(t *testing.T) {
	var row Row
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 3, "tableId": 1, "createdBy": "admin",
		"data": [{"columnId": 1, "value": "x"}, {"columnId": 2, "value": 4}]
	}`), &row))

	assert.Equal(t, int64(3), row.ID)
	require.Len(t, row.Data, 2)
	assert.Equal(t, 4.0, row.Data[1].Value)

	col, ok := FindColumn([]Column{{ID: 2, Title: "n"}}, row.Data[1].ColumnID)
	assert.True(t, ok)
	assert.Equal(t, "n", col.Title)
}
