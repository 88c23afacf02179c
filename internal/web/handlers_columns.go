package web

import (
	"net/http"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/core"
)

type columnRequest struct {
	Title       string          `json:"title"`
	Type        core.ColumnType `json:"type"`
	Subtype     string          `json:"subtype"`
	Mandatory   bool            `json:"mandatory"`
	Description string          `json:"description"`

	TextMaxLength      *int   `json:"textMaxLength"`
	TextAllowedPattern string `json:"textAllowedPattern"`
	TextDefault        string `json:"textDefault"`

	NumberMin      *float64 `json:"numberMin"`
	NumberMax      *float64 `json:"numberMax"`
	NumberDecimals *int     `json:"numberDecimals"`
	NumberPrefix   string   `json:"numberPrefix"`
	NumberSuffix   string   `json:"numberSuffix"`
	NumberDefault  *float64 `json:"numberDefault"`

	DatetimeDefault string `json:"datetimeDefault"`

	SelectionOptions []string `json:"selectionOptions"`
	SelectionDefault []string `json:"selectionDefault"`

	UsergroupDefault       []string `json:"usergroupDefault"`
	UsergroupMultipleItems bool     `json:"usergroupMultipleItems"`
	UsergroupSelectUsers   bool     `json:"usergroupSelectUsers"`
	UsergroupSelectGroups  bool     `json:"usergroupSelectGroups"`

	SelectedViewIDs []int64 `json:"selectedViewIds"`
}

func (c columnRequest) input() client.ColumnInput {
	return client.ColumnInput{
		Title:                  c.Title,
		Type:                   c.Type,
		Subtype:                c.Subtype,
		Mandatory:              c.Mandatory,
		Description:            c.Description,
		TextMaxLength:          c.TextMaxLength,
		TextAllowedPattern:     c.TextAllowedPattern,
		TextDefault:            c.TextDefault,
		NumberMin:              c.NumberMin,
		NumberMax:              c.NumberMax,
		NumberDecimals:         c.NumberDecimals,
		NumberPrefix:           c.NumberPrefix,
		NumberSuffix:           c.NumberSuffix,
		NumberDefault:          c.NumberDefault,
		DatetimeDefault:        c.DatetimeDefault,
		SelectionOptions:       c.SelectionOptions,
		SelectionDefault:       c.SelectionDefault,
		UsergroupDefault:       c.UsergroupDefault,
		UsergroupMultipleItems: c.UsergroupMultipleItems,
		UsergroupSelectUsers:   c.UsergroupSelectUsers,
		UsergroupSelectGroups:  c.UsergroupSelectGroups,
		SelectedViewIDs:        c.SelectedViewIDs,
	}
}

// handleListColumns serves both /tables/{table}/columns and
// /views/{view}/columns.
func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	t, err := pathTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	cols, err := s.client.Columns(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (s *Server) handleGetColumn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "column")
	if err != nil {
		respondError(w, r, err)
		return
	}
	col, err := s.client.GetColumn(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

func (s *Server) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req columnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	col, err := s.client.CreateColumn(r.Context(), tableID, req.input())
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:  audit.ActionColumnCreate,
		TableID: tableID,
		Values:  map[string]any{"id": col.ID, "title": col.Title, "type": string(col.Type)},
	})
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "column")
	if err != nil {
		respondError(w, r, err)
		return
	}

	col, err := s.client.DeleteColumn(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:  audit.ActionColumnDelete,
		TableID: col.TableID,
		Values:  map[string]any{"id": id, "title": col.Title},
	})
	writeJSON(w, http.StatusOK, col)
}
