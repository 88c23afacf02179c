// Package audit records the mutating operations the host performs against
// the remote tables service.
//
// Auditing is advisory. Recorder.Record never fails the operation it
// describes: store errors are logged and dropped.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/tablelink/internal/logging"
	"github.com/google/uuid"
)

// Action is the kind of operation being audited.
type Action string

const (
	ActionTableCreate  Action = "table_create"
	ActionTableDelete  Action = "table_delete"
	ActionColumnCreate Action = "column_create"
	ActionColumnDelete Action = "column_delete"
	ActionRowCreate    Action = "row_create"
	ActionRowUpdate    Action = "row_update"
	ActionRowDelete    Action = "row_delete"
	ActionBatchCreate  Action = "batch_create"
	ActionImportRemote Action = "import_remote"
	ActionImportLocal  Action = "import_local"
	ActionShareCreate  Action = "share_create"
	ActionShareUpdate  Action = "share_update"
	ActionShareDelete  Action = "share_delete"
)

// Severity ranks entries for review.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFor returns the severity recorded for action.
func SeverityFor(action Action) Severity {
	switch action {
	case ActionTableDelete:
		return SeverityCritical
	case ActionRowDelete, ActionColumnDelete, ActionBatchCreate, ActionImportRemote, ActionImportLocal, ActionShareDelete:
		return SeverityHigh
	case ActionRowCreate, ActionRowUpdate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// Entry is one audit record.
type Entry struct {
	ID           string         `json:"id"`
	Action       Action         `json:"action"`
	Severity     Severity       `json:"severity"`
	TableID      int64          `json:"tableId,omitempty"`
	ViewID       int64          `json:"viewId,omitempty"`
	RowID        int64          `json:"rowId,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	Values       map[string]any `json:"values,omitempty"`
	RowsAffected int            `json:"rowsAffected,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Params describes an operation to record. Request metadata (request id,
// IP address, user agent) is taken from the context when not set.
type Params struct {
	Action       Action
	TableID      int64
	ViewID       int64
	RowID        int64
	RequestID    string
	IPAddress    string
	UserAgent    string
	Values       map[string]any
	RowsAffected int
	Reason       string
}

// Filter selects entries for listing. Zero fields do not filter.
type Filter struct {
	TableID  int64
	Action   Action
	Severity Severity
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// DefaultLimit and MaxLimit bound Filter.Limit.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Page is one page of entries, newest first.
type Page struct {
	Entries []Entry `json:"entries"`
	Total   int64   `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// ErrNotFound is returned by Store.Get for an unknown id.
var ErrNotFound = errors.New("audit: entry not found")

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) (*Page, error)
	Get(ctx context.Context, id string) (*Entry, error)
}

// Recorder builds entries and writes them to a Store. A nil Recorder
// records nothing.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Store returns the underlying store, or nil.
func (r *Recorder) Store() Store {
	if r == nil {
		return nil
	}
	return r.store
}

// Record writes an entry for p. The returned entry is nil when nothing was
// stored.
func (r *Recorder) Record(ctx context.Context, p Params) *Entry {
	if r == nil || r.store == nil {
		return nil
	}

	meta := MetadataFromContext(ctx)
	if p.RequestID == "" {
		p.RequestID = meta.RequestID
	}
	if p.IPAddress == "" {
		p.IPAddress = meta.IPAddress
	}
	if p.UserAgent == "" {
		p.UserAgent = meta.UserAgent
	}

	e := Entry{
		ID:           uuid.NewString(),
		Action:       p.Action,
		Severity:     SeverityFor(p.Action),
		TableID:      p.TableID,
		ViewID:       p.ViewID,
		RowID:        p.RowID,
		RequestID:    p.RequestID,
		IPAddress:    p.IPAddress,
		UserAgent:    p.UserAgent,
		Values:       p.Values,
		RowsAffected: p.RowsAffected,
		Reason:       p.Reason,
		CreatedAt:    r.now().UTC(),
	}

	if err := r.store.Insert(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("audit write failed",
			"action", e.Action,
			"table", e.TableID,
			"error", err,
		)
		return nil
	}
	return &e
}
