package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "https", baseURL: "https://cloud.example.com"},
		{name: "trailing slash", baseURL: "http://localhost:8080/"},
		{name: "empty", baseURL: "", wantErr: true},
		{name: "no scheme", baseURL: "cloud.example.com", wantErr: true},
		{name: "ftp", baseURL: "ftp://cloud.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.baseURL})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDo_Headers(t *testing.T) {
	f, srv := newFakeRemote(t)
	c := newTestClient(t, srv)

	_, err := c.ListTables(context.Background())
	require.NoError(t, err)

	req := f.last()
	assert.Equal(t, APIPath+"/tables", req.Path)
	assert.Equal(t, "true", req.Header.Get("OCS-APIRequest"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Len(t, req.Header.Get("X-Request-ID"), 36)

	user, pass, ok := (&http.Request{Header: req.Header}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "app-pass", pass)
}

func TestDo_QueryOrBodyNeverBoth(t *testing.T) {
	f, srv := newFakeRemote(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.CreateColumn(ctx, 1, ColumnInput{
		Title:            "Status",
		Type:             core.TypeSelection,
		SelectionOptions: []string{"Open", "Closed"},
	})
	require.NoError(t, err)

	req := f.last()
	assert.Empty(t, req.RawBody)
	assert.Contains(t, req.Query, "title=Status")
	assert.Contains(t, req.Query, "type=selection")
	assert.Contains(t, req.Query, "mandatory=false")
	assert.NotContains(t, req.Query, "subtype=")
	assert.NotContains(t, req.Query, "numberMin")

	f.setColumns(1, inventoryColumns())
	_, err = c.CreateRow(ctx, Target{TableID: 1}, map[string]any{"1": "Bolt"})
	require.NoError(t, err)

	req = f.last()
	assert.Empty(t, req.Query)
	assert.Equal(t, map[string]any{"data": map[string]any{"1": "Bolt"}}, req.Body)
}

func TestEncodeQuery(t *testing.T) {
	got := encodeQuery(map[string]any{
		"b":     2,
		"a":     "x y",
		"empty": "",
		"nil":   nil,
		"ptr":   (*int)(nil),
		"list":  []string{"1", "2"},
		"flag":  true,
		"f":     1.5,
	})
	assert.Equal(t, "a=x+y&b=2&f=1.5&flag=true&list=1%2C2", got)
}

func TestDo_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      core.ErrorKind
		message   string
		retryable bool
	}{
		{name: "not found", status: 404, body: `{"message":"Table not found"}`, kind: core.KindNotFound, message: "Table not found"},
		{name: "rate limited", status: 429, body: ``, kind: core.KindRateLimit, retryable: true},
		{name: "unauthorized", status: 401, body: `{"error":"bad credentials"}`, kind: core.KindAuth, message: "bad credentials"},
		{name: "teapot", status: 418, body: `{}`, kind: core.KindUnknown},
		{name: "server", status: 500, body: `{"message":"boom"}`, kind: core.KindServer, message: "boom"},
		{name: "gateway", status: 503, body: `<html/>`, kind: core.KindUnavailable, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv)
			_, err := c.GetTable(context.Background(), 1)
			require.Error(t, err)

			var e *core.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.retryable, e.Retryable())
			if tt.message != "" {
				assert.Equal(t, tt.message, e.Message)
			}
		})
	}
}

func TestDo_TransportFailureIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv)
	srv.Close()

	_, err := c.ListTables(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindUnknown, core.KindOf(err))
	assert.Equal(t, 0, err.(*core.Error).Status)
}

func TestDo_UnwrapsOCS(t *testing.T) {
	_, srv := newFakeRemote(t)
	c := newTestClient(t, srv)

	var share Share
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/shares/9"}, &share)
	require.NoError(t, err)
	assert.Equal(t, int64(9), share.ID)
	assert.Equal(t, "bob", share.Receiver)
}

func TestDo_OCSFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ocs":{"meta":{"status":"failure","statuscode":998,"message":"Share not found"},"data":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	err := c.Do(context.Background(), Request{Path: "/shares/1"}, &Share{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "Share not found")
}

func TestDo_UndecodableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListTables(context.Background())
	require.Error(t, err)
	assert.Equal(t, core.KindUnknown, core.KindOf(err))
}

type recordingObserver struct {
	mu        sync.Mutex
	requests  []RequestEvent
	responses []ResponseEvent
	errs      []ErrorEvent
}

func (o *recordingObserver) OnRequest(_ context.Context, ev RequestEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, ev)
}

func (o *recordingObserver) OnResponse(_ context.Context, ev ResponseEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responses = append(o.responses, ev)
}

func (o *recordingObserver) OnError(_ context.Context, ev ErrorEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, ev)
}

type panickingObserver struct{ NopObserver }

func (panickingObserver) OnResponse(context.Context, ResponseEvent) { panic("observer exploded") }

func TestDo_Observer(t *testing.T) {
	big := strings.Repeat("x", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == APIPath+"/tables/2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"title":"` + big + `"}]`))
	}))
	defer srv.Close()

	rec := &recordingObserver{}
	c := newTestClient(t, srv, WithObserver(panickingObserver{}), WithObserver(rec))
	ctx := context.Background()

	tables, err := c.ListTables(ctx)
	require.NoError(t, err, "a panicking observer must not affect the call")
	require.Len(t, tables, 1)

	_, err = c.GetTable(ctx, 2)
	require.Error(t, err)

	require.Len(t, rec.requests, 2)
	require.Len(t, rec.responses, 2)
	require.Len(t, rec.errs, 1)

	assert.Equal(t, rec.requests[0].RequestID, rec.responses[0].RequestID)
	assert.LessOrEqual(t, len(rec.responses[0].Body), maxLoggedBody+len("…"))
	assert.Equal(t, http.StatusForbidden, rec.errs[0].Status)
	assert.Equal(t, core.KindPermission, core.KindOf(rec.errs[0].Err))
}

func TestDo_RateLimitHonoursContext(t *testing.T) {
	_, srv := newFakeRemote(t)
	c := newTestClient(t, srv, WithRateLimit(0.001, 1))

	_, err := c.ListTables(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListTables(ctx)
	require.Error(t, err)
	assert.Equal(t, core.KindUnknown, core.KindOf(err))
}
