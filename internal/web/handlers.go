package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/go-chi/chi/v5"
)

// pathID resolves a path segment as a locator.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := core.Resolve(chi.URLParam(r, name))
	var ce *core.Error
	if errors.As(err, &ce) {
		ce.Field = name
	}
	return id, err
}

// pathTarget builds the row target from a {table} or {view} segment.
func pathTarget(r *http.Request) (client.Target, error) {
	if chi.URLParam(r, "view") != "" {
		id, err := pathID(r, "view")
		return client.Target{ViewID: id}, err
	}
	id, err := pathID(r, "table")
	return client.Target{TableID: id}, err
}

// bodyTarget resolves table and view locators taken from a request body.
// Either may be any locator shape; a view wins when both are present.
func bodyTarget(table, view any) (client.Target, error) {
	var t client.Target
	if view != nil {
		id, err := core.Resolve(view)
		if err != nil {
			return t, err
		}
		t.ViewID = id
	}
	if table != nil {
		id, err := core.Resolve(table)
		if err != nil {
			return t, err
		}
		t.TableID = id
	}
	if t.TableID == 0 && t.ViewID == 0 {
		return t, core.NewValidationError("table", "", "a table or view is required")
	}
	return t, nil
}

// optionalID resolves a locator that may be absent.
func optionalID(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return core.Resolve(v)
}

// pageParams reads limit and offset; invalid values are ignored.
func pageParams(r *http.Request) client.Page {
	return client.Page{
		Limit:  intQuery(r, "limit"),
		Offset: intQuery(r, "offset"),
	}
}

func intQuery(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func boolQuery(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// formatOverride is the per-request "options" object of row endpoints.
type formatOverride struct {
	DateTimeFormat     string `json:"dateTimeFormat"`
	ValidateSelections *bool  `json:"validateSelections"`
	Timezone           string `json:"timezone"`
}

// clientFor returns the client with opts applied over its defaults.
func (s *Server) clientFor(opts *formatOverride) (*client.Client, error) {
	if opts == nil {
		return s.client, nil
	}

	merged := s.client.FormatOptions()
	switch strings.ToLower(opts.DateTimeFormat) {
	case "":
	case core.DateTimeISO, core.DateTimeUnix, core.DateTimeDate:
		merged.DateTimeFormat = strings.ToLower(opts.DateTimeFormat)
	default:
		return nil, core.NewValidationError("dateTimeFormat", opts.DateTimeFormat, "must be iso, unix or date")
	}
	if opts.Timezone != "" {
		if _, err := time.LoadLocation(opts.Timezone); err != nil {
			return nil, core.NewValidationError("timezone", opts.Timezone, "unknown timezone")
		}
		merged.Timezone = opts.Timezone
	}
	if opts.ValidateSelections != nil {
		merged.ValidateSelections = *opts.ValidateSelections
	}
	return s.client.WithFormat(merged), nil
}

// keyByID rewrites value keys that name a column title to the column id.
// Numeric keys and unknown titles are kept as they are.
func keyByID(values map[string]any, cols []core.Column) map[string]any {
	out := make(map[string]any, len(values))
	for key, v := range values {
		if _, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64); err == nil {
			out[key] = v
			continue
		}
		if col, ok := columnByTitle(cols, key); ok {
			out[strconv.FormatInt(col.ID, 10)] = v
			continue
		}
		out[key] = v
	}
	return out
}

func columnByTitle(cols []core.Column, title string) (core.Column, bool) {
	title = strings.TrimSpace(title)
	for _, c := range cols {
		if strings.EqualFold(strings.TrimSpace(c.Title), title) {
			return c, true
		}
	}
	return core.Column{}, false
}
