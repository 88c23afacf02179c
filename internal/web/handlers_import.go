package web

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/JonMunkholm/tablelink/internal/importer"
	"github.com/JonMunkholm/tablelink/internal/logging"
)

type remoteImportRequest struct {
	Path                 string `json:"path"`
	CreateMissingColumns bool   `json:"createMissingColumns"`
}

// handleImportRemote asks the server to import a file it already stores.
func (s *Server) handleImportRemote(w http.ResponseWriter, r *http.Request) {
	t, err := pathTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req remoteImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.client.ImportFile(r.Context(), t, req.Path, req.CreateMissingColumns)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.recorder.Record(r.Context(), audit.Params{
		Action:       audit.ActionImportRemote,
		TableID:      t.TableID,
		ViewID:       t.ViewID,
		RowsAffected: res.InsertedRowsCount,
		Values: map[string]any{
			"path":                 req.Path,
			"createMissingColumns": req.CreateMissingColumns,
			"errors":               res.ErrorsCount,
		},
	})
	writeJSON(w, http.StatusOK, res)
}

type csvImportResponse struct {
	*importer.Result
	Error *ErrorResponse `json:"error,omitempty"`
}

// handleImportCSV streams an uploaded CSV into the target, one row create
// per line. The file is sent as multipart field "file" or as a text/csv
// body; continueOnFail comes from the form or the query string. With
// ?noWait=true a busy host answers 429 at once instead of queueing.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	t, err := pathTarget(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.acquireImport(r); err != nil {
		respondError(w, r, err)
		return
	}
	defer s.imports.Release()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	file, name, continueOnFail, err := csvSource(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	logger := logging.WithFields(ctx, "file", name, "target", t.String())
	logger.Info("csv import started", "continue_on_fail", continueOnFail)

	res, importErr := importer.Import(ctx, s.client, t, file, importer.Options{
		ContinueOnFail: continueOnFail,
		Workers:        s.cfg.Import.Workers,
	})

	if res != nil {
		s.recorder.Record(r.Context(), audit.Params{
			Action:       audit.ActionImportLocal,
			TableID:      t.TableID,
			ViewID:       t.ViewID,
			RowsAffected: res.Created,
			Values: map[string]any{
				"file":    name,
				"failed":  len(res.Failed),
				"aborted": res.Aborted,
			},
		})
	}

	if importErr != nil {
		if res == nil {
			respondError(w, r, importErr)
			return
		}
		status, body := errorResponse(importErr)
		logger.Warn("csv import stopped", "created", res.Created, "error", importErr)
		writeJSON(w, status, csvImportResponse{Result: res, Error: &body})
		return
	}

	status := http.StatusOK
	if len(res.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, csvImportResponse{Result: res})
}

// csvSource returns the uploaded file, its name and the continueOnFail flag.
func csvSource(r *http.Request) (io.ReadCloser, string, bool, error) {
	continueOnFail, _ := strconv.ParseBool(r.URL.Query().Get("continueOnFail"))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv", "application/csv", "text/plain":
		return r.Body, "upload.csv", continueOnFail, nil
	case "multipart/form-data":
	default:
		return nil, "", false, core.NewValidationError("file", mediaType,
			"send the CSV as multipart field \"file\" or with Content-Type text/csv")
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", false, core.NewValidationError("file", "", "invalid multipart body: %v", err)
	}

	// Fields before the file are read; the file itself is streamed.
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", false, core.NewValidationError("file", "", "multipart field \"file\" is missing")
		}
		if err != nil {
			return nil, "", false, core.NewValidationError("file", "", "invalid multipart body: %v", err)
		}

		switch part.FormName() {
		case "continueOnFail":
			v, _ := io.ReadAll(io.LimitReader(part, 16))
			continueOnFail, _ = strconv.ParseBool(string(v))
			part.Close()
		case "file":
			return part, part.FileName(), continueOnFail, nil
		default:
			part.Close()
		}
	}
}

// acquireImport takes an import slot, waiting up to the configured time
// unless the caller asked not to.
func (s *Server) acquireImport(r *http.Request) error {
	if boolQuery(r, "noWait") {
		if !s.imports.TryAcquire() {
			return importer.ErrTooManyImports
		}
		return nil
	}
	return s.imports.Acquire(r.Context())
}
