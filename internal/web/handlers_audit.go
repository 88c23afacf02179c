package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleAuditLog lists audit entries, newest first. Filters: table (a
// locator), action, severity, since and until (RFC 3339), limit, offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	store := s.recorder.Store()
	if store == nil {
		writeJSON(w, http.StatusOK, audit.Page{Entries: []audit.Entry{}, Limit: audit.DefaultLimit})
		return
	}

	q := r.URL.Query()
	f := audit.Filter{
		Action:   audit.Action(strings.TrimSpace(q.Get("action"))),
		Severity: audit.Severity(strings.TrimSpace(q.Get("severity"))),
		Limit:    intQuery(r, "limit"),
		Offset:   intQuery(r, "offset"),
	}

	if v := q.Get("table"); v != "" {
		id, err := core.Resolve(v)
		if err != nil {
			respondError(w, r, err)
			return
		}
		f.TableID = id
	}

	var err error
	if f.Since, err = timeQuery(q.Get("since"), "since"); err != nil {
		respondError(w, r, err)
		return
	}
	if f.Until, err = timeQuery(q.Get("until"), "until"); err != nil {
		respondError(w, r, err)
		return
	}

	page, err := store.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAuditLogEntry(w http.ResponseWriter, r *http.Request) {
	store := s.recorder.Store()
	if store == nil {
		respondError(w, r, audit.ErrNotFound)
		return
	}

	entry, err := store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func timeQuery(v, field string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, core.NewValidationError(field, v, "must be an RFC 3339 timestamp")
	}
	return t, nil
}
