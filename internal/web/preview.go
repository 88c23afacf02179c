package web

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/a-h/templ"
)

// RowsTable renders projected rows as an HTML table, one column per title.
func RowsTable(caption string, titles []string, rows []core.ProjectedRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var err error
		write := func(s string) {
			if err == nil {
				_, err = io.WriteString(w, s)
			}
		}

		write(`<table class="rows">`)
		write(`<caption>` + templ.EscapeString(caption) + `</caption>`)
		write(`<thead><tr><th>id</th>`)
		for _, t := range titles {
			write(`<th>` + templ.EscapeString(t) + `</th>`)
		}
		write(`</tr></thead><tbody>`)

		for _, row := range rows {
			write(fmt.Sprintf(`<tr data-row-id="%d"><td>%d</td>`, row.ID, row.ID))
			for _, t := range titles {
				write(`<td>` + templ.EscapeString(cellText(row.Values[t])) + `</td>`)
			}
			write(`</tr>`)
		}
		if len(rows) == 0 {
			write(fmt.Sprintf(`<tr><td colspan="%d">No rows</td></tr>`, len(titles)+1))
		}

		write(`</tbody></table>`)
		return err
	})
}

// previewPage wraps the table in a minimal standalone document.
func previewPage(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>`+
			templ.EscapeString(title)+`</title><style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style></head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	}
	return fmt.Sprint(v)
}

// handlePreviewRows renders a page of projected rows as HTML.
func (s *Server) handlePreviewRows(w http.ResponseWriter, r *http.Request) {
	t, err := pathTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	page := pageParams(r)
	if page.Limit == 0 {
		page.Limit = 50
	}

	rows, cols, err := s.client.ProjectRows(r.Context(), t, page)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	caption := t.String()
	if err := previewPage(caption, RowsTable(caption, core.ColumnTitles(cols), rows)).Render(r.Context(), w); err != nil {
		respondError(w, r, err)
	}
}
