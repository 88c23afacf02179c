// Package importer loads CSV files from the host into a remote table, one
// row create per data line.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/JonMunkholm/tablelink/internal/logging"
	"golang.org/x/sync/errgroup"
)

// RowWriter is the part of the client the importer needs.
type RowWriter interface {
	Columns(ctx context.Context, t client.Target) ([]core.Column, error)
	CreateRowWithColumns(ctx context.Context, t client.Target, cols []core.Column, values map[string]any) (*core.Row, error)
}

// Options controls one import run.
type Options struct {
	// ContinueOnFail keeps importing after a failed line. When false the
	// first failure stops the run and is returned as the error.
	ContinueOnFail bool

	// Workers is the number of rows created concurrently (default 1).
	Workers int
}

// FailedRow is a data line that could not be written.
type FailedRow struct {
	Line   int               `json:"line"`
	Reason string            `json:"reason"`
	Kind   core.ErrorKind    `json:"kind"`
	Data   map[string]string `json:"data"`
}

// Result summarizes an import run.
type Result struct {
	Created   int         `json:"created"`
	RowIDs    []int64     `json:"rowIds"`
	Failed    []FailedRow `json:"failed"`
	Unmatched []string    `json:"unmatchedHeaders"`
	Aborted   bool        `json:"aborted"`
}

// ErrNoHeader is returned for an empty file.
var ErrNoHeader = core.NewValidationError("file", "", "CSV file has no header line")

type line struct {
	number int
	values map[string]any
	data   map[string]string
}

// Import reads a CSV with a header line from r and creates one row per data
// line in t. Headers are matched to column titles case-insensitively;
// unmatched headers are reported and their cells ignored.
func Import(ctx context.Context, w RowWriter, t client.Target, r io.Reader, opts Options) (*Result, error) {
	logger := logging.WithFields(ctx, "target", t.String())

	cols, err := w.Columns(ctx, t)
	if err != nil {
		return nil, err
	}

	cr := NewCSVReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, core.NewValidationError("file", "", "read header: %v", err)
	}

	mapping, unmatched := matchHeader(header, cols)
	res := &Result{Unmatched: unmatched, RowIDs: []int64{}, Failed: []FailedRow{}}
	if len(mapping) == 0 {
		return res, core.NewValidationError("file", strings.Join(header, ","),
			"no header matches a column of %s", t)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu       sync.Mutex
		created  []createdRow
		firstErr error
	)
	fail := func(ln line, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.Failed = append(res.Failed, FailedRow{
			Line:   ln.number,
			Reason: err.Error(),
			Kind:   core.KindOf(err),
			Data:   ln.data,
		})
		if firstErr == nil {
			firstErr = err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for {
		if gctx.Err() != nil {
			break
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(line{number: parseErrorLine(err)}, core.NewValidationError("file", "", "malformed CSV: %v", err))
			if !opts.ContinueOnFail {
				break
			}
			continue
		}
		lineNo, _ := cr.FieldPos(0)

		ln := buildLine(lineNo, record, header, mapping)
		if len(ln.values) == 0 {
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			row, err := w.CreateRowWithColumns(gctx, t, cols, ln.values)
			if err != nil {
				if gctx.Err() != nil && !opts.ContinueOnFail {
					return gctx.Err()
				}
				fail(ln, err)
				if opts.ContinueOnFail {
					return nil
				}
				return err
			}
			mu.Lock()
			created = append(created, createdRow{line: ln.number, id: row.ID})
			mu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()

	sort.Slice(created, func(i, j int) bool { return created[i].line < created[j].line })
	for _, c := range created {
		res.RowIDs = append(res.RowIDs, c.id)
	}
	res.Created = len(created)
	sort.Slice(res.Failed, func(i, j int) bool { return res.Failed[i].Line < res.Failed[j].Line })

	if ctx.Err() != nil {
		res.Aborted = true
		return res, ctx.Err()
	}
	if !opts.ContinueOnFail && firstErr != nil {
		res.Aborted = true
		logger.Warn("import aborted", "created", res.Created, "error", firstErr)
		return res, firstErr
	}
	if waitErr != nil {
		return res, waitErr
	}

	logger.Info("import finished",
		"created", res.Created,
		"failed", len(res.Failed),
		"unmatched", len(res.Unmatched),
	)
	return res, nil
}

type createdRow struct {
	line int
	id   int64
}

// matchHeader maps header positions to column ids.
func matchHeader(header []string, cols []core.Column) (map[int]int64, []string) {
	byTitle := make(map[string]int64, len(cols))
	for _, c := range cols {
		key := strings.ToLower(strings.TrimSpace(c.Title))
		if _, dup := byTitle[key]; !dup {
			byTitle[key] = c.ID
		}
	}

	mapping := make(map[int]int64, len(header))
	unmatched := []string{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if id, ok := byTitle[strings.ToLower(name)]; ok && name != "" {
			mapping[i] = id
			continue
		}
		unmatched = append(unmatched, name)
	}
	return mapping, unmatched
}

func buildLine(number int, record, header []string, mapping map[int]int64) line {
	ln := line{
		number: number,
		values: make(map[string]any, len(mapping)),
		data:   make(map[string]string, len(record)),
	}
	for i, cell := range record {
		if i < len(header) {
			ln.data[header[i]] = cell
		}
		id, ok := mapping[i]
		if !ok || strings.TrimSpace(cell) == "" {
			continue
		}
		ln.values[strconv.FormatInt(id, 10)] = cell
	}
	return ln
}

func parseErrorLine(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.StartLine
	}
	return 0
}
