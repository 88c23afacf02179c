package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/tablelink/internal/client"
	"github.com/JonMunkholm/tablelink/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu      sync.Mutex
	cols    []core.Column
	colsErr error
	nextID  int64
	written []map[string]any
	// reject fails rows whose Name cell equals the key.
	reject map[string]error
}

func (f *fakeWriter) Columns(context.Context, client.Target) ([]core.Column, error) {
	return f.cols, f.colsErr
}

func (f *fakeWriter) CreateRowWithColumns(ctx context.Context, _ client.Target, cols []core.Column, values map[string]any) (*core.Row, error) {
	data, err := core.Format(values, cols, core.DefaultFormatOptions())
	if err != nil {
		return nil, err
	}
	if name, ok := data["1"].(string); ok {
		if rejectErr, found := f.reject[name]; found {
			return nil, rejectErr
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.written = append(f.written, data)
	return &core.Row{ID: f.nextID, Data: core.ToCells(data)}, nil
}

func intPtr(n int) *int { return &n }

func inventory() []core.Column {
	return []core.Column{
		{ID: 1, Title: "Name", Type: core.TypeText},
		{ID: 2, Title: "Qty", Type: core.TypeNumber, NumberDecimals: intPtr(0)},
		{ID: 3, Title: "Status", Type: core.TypeSelection, SelectionOptions: `["Open","Closed"]`},
	}
}

var target = client.Target{TableID: 7}

func TestImport_HappyPath(t *testing.T) {
	w := &fakeWriter{cols: inventory()}
	csv := "\ufeffname,QTY,status,Notes\nBolt,12.6,Open,x\nNut,3,Closed,\n"

	res, err := Import(context.Background(), w, target, strings.NewReader(csv), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, []int64{1, 2}, res.RowIDs)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{"Notes"}, res.Unmatched)
	assert.False(t, res.Aborted)

	require.Len(t, w.written, 2)
	assert.Equal(t, map[string]any{"1": "Bolt", "2": 13.0, "3": "Open"}, w.written[0])
}

func TestImport_ContinueOnFail(t *testing.T) {
	w := &fakeWriter{cols: inventory()}
	csv := "Name,Qty,Status\nBolt,1,Open\nNut,lots,Open\nWasher,2,Purple\nScrew,4,Closed\n"

	res, err := Import(context.Background(), w, target, strings.NewReader(csv), Options{ContinueOnFail: true, Workers: 3})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Failed, 2)

	assert.Equal(t, 3, res.Failed[0].Line)
	assert.Equal(t, core.KindValidation, res.Failed[0].Kind)
	assert.Equal(t, "lots", res.Failed[0].Data["Qty"])
	assert.Contains(t, res.Failed[0].Reason, "Qty")

	assert.Equal(t, 4, res.Failed[1].Line)
	assert.Contains(t, res.Failed[1].Reason, "Status")
}

func TestImport_AbortOnFirstFailure(t *testing.T) {
	w := &fakeWriter{cols: inventory()}
	csv := "Name,Qty\nBolt,1\nNut,lots\nScrew,4\n"

	res, err := Import(context.Background(), w, target, strings.NewReader(csv), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)

	assert.True(t, res.Aborted)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 3, res.Failed[0].Line)
	assert.Len(t, w.written, 1)
}

func TestImport_RemoteFailureKeepsKind(t *testing.T) {
	w := &fakeWriter{
		cols:   inventory(),
		reject: map[string]error{"Nut": core.Classify(403, []byte(`{"message":"no write access"}`), nil)},
	}
	csv := "Name\nBolt\nNut\n"

	res, err := Import(context.Background(), w, target, strings.NewReader(csv), Options{ContinueOnFail: true})
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, core.KindPermission, res.Failed[0].Kind)
	assert.Contains(t, res.Failed[0].Reason, "no write access")
}

func TestImport_SkipsBlankLines(t *testing.T) {
	w := &fakeWriter{cols: inventory()}
	csv := "Name,Qty\n\nBolt,1\n,\n"

	res, err := Import(context.Background(), w, target, strings.NewReader(csv), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Failed)
}

func TestImport_HeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty file", ""},
		{"no matching header", "Colour,Size\nred,XL\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{cols: inventory()}
			_, err := Import(context.Background(), w, target, strings.NewReader(tt.csv), Options{})
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.Empty(t, w.written)
		})
	}
}

func TestImport_ColumnsError(t *testing.T) {
	w := &fakeWriter{colsErr: core.Classify(404, nil, nil)}
	_, err := Import(context.Background(), w, target, strings.NewReader("Name\nBolt\n"), Options{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestImport_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &fakeWriter{cols: inventory()}
	res, err := Import(ctx, w, target, strings.NewReader("Name\nBolt\n"), Options{})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.True(t, res.Aborted)
	assert.Empty(t, w.written)
}

func TestNewCSVReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{"utf8 bom", "\xef\xbb\xbfa,b\n1,2\n", [][]string{{"a", "b"}, {"1", "2"}}},
		{"invalid utf8 replaced", "a\n\xff\xfeok\n", [][]string{{"a"}, {"\ufffd\ufffdok"}}},
		{"ragged records", "a,b\n1\n", [][]string{{"a", "b"}, {"1"}}},
		{"utf16 bom", "\xff\xfea\x00,\x00b\x00\n\x00", [][]string{{"a", "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewCSVReader(strings.NewReader(tt.input)).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(1, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, LimiterStatus{Active: 1, Available: 0, MaxConcurrent: 1}, l.Status())
	assert.False(t, l.TryAcquire())

	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, core.ErrRateLimit)
	assert.True(t, core.IsRetryable(err))

	l.Release()
	assert.True(t, l.TryAcquire())
	l.Release()

	drainCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, l.WaitForDrain(drainCtx))
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	require.True(t, l.TryAcquire())
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Acquire(ctx), context.Canceled)
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrent, l.Status().MaxConcurrent)
	assert.Equal(t, DefaultMaxWait, l.maxWait)
}

func TestImport_ErrNoHeaderIsValidation(t *testing.T) {
	assert.True(t, errors.Is(ErrNoHeader, core.ErrValidation))
}
