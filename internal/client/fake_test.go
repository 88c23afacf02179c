package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory Tables server covering the endpoints the
// client uses. It records every request it sees.
type fakeRemote struct {
	t *testing.T

	mu       sync.Mutex
	columns  map[int64][]core.Column // by table
	rows     map[int64]*core.Row
	nextRow  int64
	requests []recorded
}

type recorded struct {
	Method  string
	Path    string
	Query   string
	Header  http.Header
	Body    map[string]any
	RawBody string
}

func newFakeRemote(t *testing.T) (*fakeRemote, *httptest.Server) {
	t.Helper()
	f := &fakeRemote{
		t:       t,
		columns: map[int64][]core.Column{},
		rows:    map[int64]*core.Row{},
		nextRow: 100,
	}

	r := chi.NewRouter()
	r.Use(f.record)
	r.Route(APIPath, func(r chi.Router) {
		r.Get("/tables", func(w http.ResponseWriter, r *http.Request) {
			writeFake(w, http.StatusOK, []Table{{ID: 1, Title: "Inventory"}})
		})
		r.Get("/tables/{id}/columns", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			cols, ok := f.columns[pathID(r, "id")]
			f.mu.Unlock()
			if !ok {
				writeFake(w, http.StatusNotFound, map[string]string{"message": "Table not found"})
				return
			}
			writeFake(w, http.StatusOK, cols)
		})
		r.Post("/tables/{id}/columns", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			writeFake(w, http.StatusOK, core.Column{ID: 50, Title: q.Get("title"), Type: core.ColumnType(q.Get("type"))})
		})
		r.Get("/tables/{id}/rows", func(w http.ResponseWriter, r *http.Request) {
			tableID := pathID(r, "id")
			f.mu.Lock()
			defer f.mu.Unlock()
			var out []core.Row
			for _, row := range f.rows {
				if row.TableID == tableID {
					out = append(out, *row)
				}
			}
			writeFake(w, http.StatusOK, out)
		})
		r.Post("/tables/{id}/rows", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			body := f.requests[len(f.requests)-1].Body
			data, _ := body["data"].(map[string]any)
			f.nextRow++
			row := &core.Row{ID: f.nextRow, TableID: pathID(r, "id")}
			for k, v := range data {
				id, _ := strconv.ParseInt(k, 10, 64)
				row.Data = append(row.Data, core.Cell{ColumnID: id, Value: v})
			}
			f.rows[row.ID] = row
			writeFake(w, http.StatusOK, row)
		})
		r.Get("/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			row, ok := f.rows[pathID(r, "id")]
			f.mu.Unlock()
			if !ok {
				writeFake(w, http.StatusNotFound, map[string]string{"message": "Row not found"})
				return
			}
			writeFake(w, http.StatusOK, row)
		})
		r.Put("/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			row, ok := f.rows[pathID(r, "id")]
			if !ok {
				writeFake(w, http.StatusNotFound, map[string]string{"message": "Row not found"})
				return
			}
			writeFake(w, http.StatusOK, row)
		})
		r.Delete("/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			id := pathID(r, "id")
			row, ok := f.rows[id]
			if !ok {
				writeFake(w, http.StatusNotFound, map[string]string{"message": "Row not found"})
				return
			}
			delete(f.rows, id)
			writeFake(w, http.StatusOK, row)
		})
		r.Delete("/views/{view}/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeFake(w, http.StatusOK, core.Row{ID: pathID(r, "id")})
		})
		r.Get("/views/{id}/columns", func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			cols := f.columns[1]
			f.mu.Unlock()
			writeFake(w, http.StatusOK, cols[:1])
		})
		r.Post("/import/table/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeFake(w, http.StatusOK, ImportResult{FoundColumnsCount: 3, InsertedRowsCount: 10})
		})
		r.Get("/shares/{id}", func(w http.ResponseWriter, r *http.Request) {
			writeFake(w, http.StatusOK, map[string]any{"ocs": map[string]any{
				"meta": map[string]any{"status": "ok", "statuscode": 200},
				"data": Share{ID: pathID(r, "id"), Receiver: "bob", ReceiverType: ReceiverUser},
			}})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeRemote) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recorded{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Header:  r.Header.Clone(),
			RawBody: string(raw),
		}
		if len(raw) > 0 {
			require.NoError(f.t, json.Unmarshal(raw, &rec.Body))
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (f *fakeRemote) setColumns(tableID int64, cols []core.Column) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.columns[tableID] = cols
}

func (f *fakeRemote) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func pathID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func writeFake(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL, Username: "alice", Password: "app-pass", Format: core.DefaultFormatOptions()}, opts...)
	require.NoError(t, err)
	return c
}

func intPtr(i int) *int { return &i }

func inventoryColumns() []core.Column {
	return []core.Column{
		{ID: 1, TableID: 1, Title: "Name", Type: core.TypeText, Mandatory: true},
		{ID: 2, TableID: 1, Title: "Qty", Type: core.TypeNumber, NumberDecimals: intPtr(0)},
		{ID: 3, TableID: 1, Title: "Status", Type: core.TypeSelection, SelectionOptions: `["Open","Closed"]`},
		{ID: 4, TableID: 1, Title: "Due", Type: core.TypeDatetime},
	}
}
