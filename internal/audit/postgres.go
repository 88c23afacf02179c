package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes entries to the audit_log table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PoolConfig sizes the connection pool opened by OpenPool.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OpenPool connects to the audit database and verifies the connection.
func OpenPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// NewPostgresStore returns a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const selectColumns = `SELECT id, action, severity, table_id, view_id, row_id,
	request_id, ip_address, user_agent, row_data, rows_affected, reason, created_at
	FROM audit_log`

func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("audit entry id: %w", err)
	}

	var rowData []byte
	if len(e.Values) > 0 {
		rowData, err = json.Marshal(e.Values)
		if err != nil {
			return fmt.Errorf("audit row data: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO audit_log (
		id, action, severity, table_id, view_id, row_id,
		request_id, ip_address, user_agent, row_data, rows_affected, reason, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		pgtype.UUID{Bytes: id, Valid: true},
		string(e.Action),
		string(e.Severity),
		toPgInt8(e.TableID),
		toPgInt8(e.ViewID),
		toPgInt8(e.RowID),
		toPgText(e.RequestID),
		parseIP(e.IPAddress),
		toPgText(e.UserAgent),
		rowData,
		pgtype.Int4{Int32: int32(e.RowsAffected), Valid: e.RowsAffected > 0},
		toPgText(e.Reason),
		pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
	)
	return err
}

func (s *PostgresStore) List(ctx context.Context, f Filter) (*Page, error) {
	f = f.normalized()

	wb := newWhereBuilder()
	wb.Add("table_id", f.TableID)
	wb.Add("action", string(f.Action))
	wb.Add("severity", string(f.Severity))
	var since, until any
	if !f.Since.IsZero() {
		since = f.Since
	}
	if !f.Until.IsZero() {
		until = f.Until
	}
	wb.AddRange("created_at", since, until)

	where, args := wb.Build()

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := selectColumns + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Page{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	row := s.pool.QueryRow(ctx, selectColumns+" WHERE id = $1", pgtype.UUID{Bytes: parsed, Valid: true})
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		id                        pgtype.UUID
		action, severity          string
		tableID, viewID, rowID    pgtype.Int8
		requestID, userAgent, why pgtype.Text
		ip                        *netip.Addr
		rowData                   []byte
		rowsAffected              pgtype.Int4
		createdAt                 pgtype.Timestamptz
	)

	if err := row.Scan(&id, &action, &severity, &tableID, &viewID, &rowID,
		&requestID, &ip, &userAgent, &rowData, &rowsAffected, &why, &createdAt); err != nil {
		return nil, err
	}

	e := &Entry{
		Action:       Action(action),
		Severity:     Severity(severity),
		TableID:      tableID.Int64,
		ViewID:       viewID.Int64,
		RowID:        rowID.Int64,
		RequestID:    requestID.String,
		UserAgent:    userAgent.String,
		RowsAffected: int(rowsAffected.Int32),
		Reason:       why.String,
		CreatedAt:    createdAt.Time,
	}
	if id.Valid {
		e.ID = uuid.UUID(id.Bytes).String()
	}
	if ip != nil {
		e.IPAddress = ip.String()
	}
	if len(rowData) > 0 {
		if err := json.Unmarshal(rowData, &e.Values); err != nil {
			return nil, fmt.Errorf("audit row data: %w", err)
		}
	}
	return e, nil
}

func toPgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func toPgInt8(n int64) pgtype.Int8 {
	return pgtype.Int8{Int64: n, Valid: n != 0}
}

// parseIP accepts a bare address or host:port. Unparseable input is stored
// as NULL.
func parseIP(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
