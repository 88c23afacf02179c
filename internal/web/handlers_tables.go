package web

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/client"
)

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.client.ListTables(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}
	table, err := s.client.GetTable(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var in client.TableInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	table, err := s.client.CreateTable(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:  audit.ActionTableCreate,
		TableID: table.ID,
		Values:  map[string]any{"title": table.Title},
	})
	writeJSON(w, http.StatusCreated, table)
}

func (s *Server) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in client.TableInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	table, err := s.client.UpdateTable(r.Context(), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}

	table, err := s.client.DeleteTable(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:  audit.ActionTableDelete,
		TableID: id,
		Values:  map[string]any{"title": table.Title},
	})
	writeJSON(w, http.StatusOK, table)
}

type viewRequest struct {
	Title       string          `json:"title"`
	Emoji       string          `json:"emoji"`
	Description string          `json:"description"`
	Columns     []int64         `json:"columns"`
	Sort        json.RawMessage `json:"sort"`
	Filter      json.RawMessage `json:"filter"`
}

func (v viewRequest) input() client.ViewInput {
	return client.ViewInput{
		Title:       v.Title,
		Emoji:       v.Emoji,
		Description: v.Description,
		Columns:     v.Columns,
		Sort:        v.Sort,
		Filter:      v.Filter,
	}
}

func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}
	views, err := s.client.ListViews(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "view")
	if err != nil {
		respondError(w, r, err)
		return
	}
	view, err := s.client.GetView(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCreateView(w http.ResponseWriter, r *http.Request) {
	tableID, err := pathID(r, "table")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req viewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.client.CreateView(r.Context(), tableID, req.input())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleUpdateView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "view")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req viewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	view, err := s.client.UpdateView(r.Context(), id, req.input())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "view")
	if err != nil {
		respondError(w, r, err)
		return
	}
	view, err := s.client.DeleteView(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
