package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/config"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// remote is a minimal Tables server holding one table (id 1) with the
// inventory columns.
type remote struct {
	mu       sync.Mutex
	rows     map[int64]*core.Row
	nextRow  int64
	requests []remoteRequest
}

type remoteRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

func newRemote(t *testing.T) (*remote, *httptest.Server) {
	t.Helper()
	rm := &remote{rows: map[int64]*core.Row{}}

	r := chi.NewRouter()
	r.Use(rm.record)
	r.Route(client.APIPath, func(r chi.Router) {
		r.Get("/tables", func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, []client.Table{{ID: 1, Title: "Inventory"}})
		})
		r.Get("/tables/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch chi.URLParam(r, "id") {
			case "1":
				reply(w, http.StatusOK, client.Table{ID: 1, Title: "Inventory"})
			case "8":
				select {
				case <-time.After(300 * time.Millisecond):
					reply(w, http.StatusOK, client.Table{ID: 8, Title: "Slow"})
				case <-r.Context().Done():
				}
			case "9":
				reply(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
			default:
				reply(w, http.StatusNotFound, map[string]string{"message": "Table not found"})
			}
		})
		r.Get("/tables/{id}/columns", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") != "1" {
				reply(w, http.StatusNotFound, map[string]string{"message": "Table not found"})
				return
			}
			reply(w, http.StatusOK, inventory())
		})
		r.Get("/views/{id}/columns", func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, inventory()[:2])
		})
		r.Get("/tables/{id}/rows", func(w http.ResponseWriter, r *http.Request) {
			rm.mu.Lock()
			defer rm.mu.Unlock()
			out := []core.Row{}
			for id := int64(1); id <= rm.nextRow; id++ {
				if row, ok := rm.rows[id]; ok {
					out = append(out, *row)
				}
			}
			reply(w, http.StatusOK, out)
		})
		r.Post("/tables/{id}/rows", rm.createRow)
		r.Post("/views/{id}/rows", rm.createRow)
		r.Get("/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			rm.mu.Lock()
			row, ok := rm.rows[urlID(r, "id")]
			rm.mu.Unlock()
			if !ok {
				reply(w, http.StatusNotFound, map[string]string{"message": "Row not found"})
				return
			}
			reply(w, http.StatusOK, row)
		})
		r.Put("/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			rm.mu.Lock()
			row, ok := rm.rows[urlID(r, "id")]
			rm.mu.Unlock()
			if !ok {
				reply(w, http.StatusNotFound, map[string]string{"message": "Row not found"})
				return
			}
			reply(w, http.StatusOK, row)
		})
		r.Delete("/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, core.Row{ID: urlID(r, "id"), TableID: 1})
		})
		r.Delete("/views/{view}/rows/{id}", func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, core.Row{ID: urlID(r, "id"), TableID: 1})
		})
		r.Post("/import/table/{id}", func(w http.ResponseWriter, r *http.Request) {
			reply(w, http.StatusOK, client.ImportResult{FoundColumnsCount: 2, InsertedRowsCount: 4})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return rm, srv
}

func (rm *remote) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		req := remoteRequest{Method: r.Method, Path: r.URL.Path}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &req.Body)
		}
		rm.mu.Lock()
		rm.requests = append(rm.requests, req)
		rm.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (rm *remote) createRow(w http.ResponseWriter, r *http.Request) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	body := rm.requests[len(rm.requests)-1].Body
	data, _ := body["data"].(map[string]any)
	if data["1"] == "Forbidden" {
		reply(w, http.StatusForbidden, map[string]string{"message": "no write access"})
		return
	}

	rm.nextRow++
	row := &core.Row{ID: rm.nextRow, TableID: 1}
	row.Data = core.ToCells(data)
	rm.rows[row.ID] = row
	reply(w, http.StatusOK, row)
}

func (rm *remote) count(method, path string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	n := 0
	for _, req := range rm.requests {
		if req.Method == method && req.Path == client.APIPath+path {
			n++
		}
	}
	return n
}

func (rm *remote) lastBody(method, path string) map[string]any {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	for i := len(rm.requests) - 1; i >= 0; i-- {
		req := rm.requests[i]
		if req.Method == method && req.Path == client.APIPath+path {
			return req.Body
		}
	}
	return nil
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func urlID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func intPtr(n int) *int { return &n }

func inventory() []core.Column {
	return []core.Column{
		{ID: 1, TableID: 1, Title: "Name", Type: core.TypeText, Mandatory: true},
		{ID: 2, TableID: 1, Title: "Qty", Type: core.TypeNumber, NumberDecimals: intPtr(0)},
		{ID: 3, TableID: 1, Title: "Status", Type: core.TypeSelection, SelectionOptions: `["Open","Closed"]`},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Import.MaxConcurrent = 2
	cfg.Import.MaxWaitTime = 50 * time.Millisecond
	cfg.Import.Timeout = 5 * time.Second
	cfg.Import.Workers = 2
	cfg.Import.MaxFileSize = 1 << 20
	return cfg
}

type harness struct {
	remote *remote
	store  *audit.MemoryStore
	server *Server
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	rm, srv := newRemote(t)

	c, err := client.New(client.Config{
		BaseURL:  srv.URL,
		Username: "alice",
		Password: "app-pass",
		Format:   core.DefaultFormatOptions(),
	})
	require.NoError(t, err)

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	store := audit.NewMemoryStore(0)
	return &harness{
		remote: rm,
		store:  store,
		server: NewServer(Deps{Client: c, Recorder: audit.NewRecorder(store)}, cfg),
	}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
