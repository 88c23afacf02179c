package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// rowRequest is the body of row create and update. Values are keyed by
// column id or column title.
type rowRequest struct {
	Table   any             `json:"table"`
	View    any             `json:"view"`
	Values  map[string]any  `json:"values"`
	Options *formatOverride `json:"options"`
}

type rowsResponse struct {
	Columns []string            `json:"columns"`
	Rows    []core.ProjectedRow `json:"rows"`
	Limit   int                 `json:"limit,omitempty"`
	Offset  int                 `json:"offset,omitempty"`
}

// handleListRows returns projected rows; ?raw=true returns the rows as the
// server sent them.
func (s *Server) handleListRows(w http.ResponseWriter, r *http.Request) {
	t, err := pathTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page := pageParams(r)

	if boolQuery(r, "raw") {
		rows, err := s.client.ListRows(r.Context(), t, page)
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
		return
	}

	rows, cols, err := s.client.ProjectRows(r.Context(), t, page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{
		Columns: core.ColumnTitles(cols),
		Rows:    rows,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "row")
	if err != nil {
		respondError(w, r, err)
		return
	}

	row, err := s.client.GetRow(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if boolQuery(r, "raw") {
		writeJSON(w, http.StatusOK, row)
		return
	}

	cols, err := s.client.ListColumns(r.Context(), row.TableID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, core.ProjectRow(*row, cols, s.client.FormatOptions()))
}

// handleCreateRow serves POST /tables/{table}/rows, /views/{view}/rows and
// /rows, where the body names the table or view.
func (s *Server) handleCreateRow(w http.ResponseWriter, r *http.Request) {
	var req rowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	t, err := s.requestTarget(r, req.Table, req.View)
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.clientFor(req.Options)
	if err != nil {
		respondError(w, r, err)
		return
	}

	cols, err := c.Columns(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	row, err := c.CreateRowWithColumns(r.Context(), t, cols, keyByID(req.Values, cols))
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:       audit.ActionRowCreate,
		TableID:      orDefault(row.TableID, t.TableID),
		ViewID:       t.ViewID,
		RowID:        row.ID,
		Values:       req.Values,
		RowsAffected: 1,
	})
	writeJSON(w, http.StatusCreated, core.ProjectRow(*row, cols, c.FormatOptions()))
}

func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "row")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req rowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	viewID, err := optionalID(req.View)
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.clientFor(req.Options)
	if err != nil {
		respondError(w, r, err)
		return
	}

	cols, err := c.UpdateColumns(r.Context(), id, viewID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	row, err := c.UpdateRowWithColumns(r.Context(), id, viewID, cols, keyByID(req.Values, cols))
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:       audit.ActionRowUpdate,
		TableID:      row.TableID,
		ViewID:       viewID,
		RowID:        id,
		Values:       req.Values,
		RowsAffected: 1,
	})
	writeJSON(w, http.StatusOK, row)
}

// handleDeleteRow deletes through a view when ?view= is given.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "row")
	if err != nil {
		respondError(w, r, err)
		return
	}
	viewID, err := optionalID(r.URL.Query().Get("view"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	row, err := s.client.DeleteRow(r.Context(), id, viewID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:       audit.ActionRowDelete,
		TableID:      row.TableID,
		ViewID:       viewID,
		RowID:        id,
		RowsAffected: 1,
	})
	writeJSON(w, http.StatusOK, row)
}

type batchRequest struct {
	Table          any              `json:"table"`
	View           any              `json:"view"`
	Rows           []map[string]any `json:"rows"`
	ContinueOnFail bool             `json:"continueOnFail"`
	Options        *formatOverride  `json:"options"`
}

type batchItem struct {
	Index int                `json:"index"`
	Row   *core.ProjectedRow `json:"row,omitempty"`
	Error *ErrorResponse     `json:"error,omitempty"`
}

type batchResponse struct {
	Created int         `json:"created"`
	Failed  int         `json:"failed"`
	Items   []batchItem `json:"items"`
}

// maxBatchRows bounds one batch request.
const maxBatchRows = 1000

// handleBatchCreate creates many rows in one target. With continueOnFail
// every item gets a result; otherwise all values are validated first and the
// first failure ends the request with that failure's status.
func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.Rows) == 0 {
		respondError(w, r, core.NewValidationError("rows", "", "at least one row is required"))
		return
	}
	if len(req.Rows) > maxBatchRows {
		respondError(w, r, core.NewValidationError("rows", strconv.Itoa(len(req.Rows)),
			"at most %d rows per batch", maxBatchRows))
		return
	}

	t, err := bodyTarget(req.Table, req.View)
	if err != nil {
		respondError(w, r, err)
		return
	}
	c, err := s.clientFor(req.Options)
	if err != nil {
		respondError(w, r, err)
		return
	}
	cols, err := c.Columns(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}

	values := make([]map[string]any, len(req.Rows))
	for i, raw := range req.Rows {
		values[i] = keyByID(raw, cols)
		if req.ContinueOnFail {
			continue
		}
		if _, err := c.PrepareRow(cols, values[i]); err != nil {
			respondError(w, r, err)
			return
		}
	}

	items, firstErr := s.createBatch(r.Context(), c, t, cols, values, req.ContinueOnFail)

	resp := batchResponse{Items: items}
	for _, it := range items {
		if it.Row != nil {
			resp.Created++
		} else if it.Error != nil {
			resp.Failed++
		}
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:       audit.ActionBatchCreate,
		TableID:      t.TableID,
		ViewID:       t.ViewID,
		RowsAffected: resp.Created,
		Values:       map[string]any{"requested": len(req.Rows), "failed": resp.Failed},
	})

	if firstErr != nil && !req.ContinueOnFail {
		respondError(w, r, firstErr)
		return
	}
	status := http.StatusCreated
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, resp)
}

// createBatch writes rows with at most cfg.Import.Workers in flight. When
// continueOnFail is false the first failure cancels the rows not yet sent.
func (s *Server) createBatch(ctx context.Context, c *client.Client, t client.Target, cols []core.Column, values []map[string]any, continueOnFail bool) ([]batchItem, error) {
	items := make([]batchItem, len(values))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Import.Workers, 1))

	for i := range values {
		items[i].Index = i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				_, body := errorResponse(core.Classify(0, nil, err))
				items[i].Error = &body
				return nil
			}

			row, err := c.CreateRowWithColumns(gctx, t, cols, values[i])
			if err != nil {
				_, body := errorResponse(err)
				items[i].Error = &body
				if continueOnFail {
					return nil
				}
				return err
			}
			projected := core.ProjectRow(*row, cols, c.FormatOptions())
			items[i].Row = &projected
			return nil
		})
	}

	if err := g.Wait(); err != nil && !continueOnFail {
		return items, err
	}
	return items, nil
}

// requestTarget takes the target from the path when the route has one and
// from the body otherwise.
func (s *Server) requestTarget(r *http.Request, table, view any) (client.Target, error) {
	if chi.URLParam(r, "table") != "" || chi.URLParam(r, "view") != "" {
		return pathTarget(r)
	}
	return bodyTarget(table, view)
}

func orDefault(v, fallback int64) int64 {
	if v != 0 {
		return v
	}
	return fallback
}
