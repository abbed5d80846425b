package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Page size bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry is one drive's outcome within one dispatch.
type Entry struct {
	ID         string    `json:"id"`
	DispatchID string    `json:"dispatch_id"`
	Action     string    `json:"action"`
	Target     string    `json:"target"`
	Source     string    `json:"source,omitempty"`
	Device     string    `json:"device"`
	Group      string    `json:"group"`
	Address    string    `json:"address"`
	Succeeded  bool      `json:"succeeded"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	Battery    *int      `json:"battery,omitempty"`
	Position   *int      `json:"position,omitempty"`
	Light      *float64  `json:"light,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Device     string // optional: device name (lower case)
	DispatchID string // optional: one dispatch
	Limit      int    // default 50, max 200
	Offset     int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores dispatch log entries.
type Repository interface {
	Create(ctx context.Context, entries []Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in the dispatch_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db. The dispatch_log
// migration must have been applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts entries in one transaction. Empty IDs and timestamps are
// filled in.
func (r *SQLiteRepository) Create(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dispatch_log (
			id, dispatch_id, action, target, source, device, device_group, address,
			succeeded, reason, error, battery, position, light, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx,
			e.ID, e.DispatchID, e.Action, e.Target, nullableString(e.Source),
			e.Device, e.Group, e.Address,
			e.Succeeded, nullableString(e.Reason), nullableString(e.Error),
			e.Battery, e.Position, e.Light,
			e.DurationMS, e.CreatedAt.UTC().Format(timeFormat),
		); err != nil {
			return fmt.Errorf("inserting dispatch log entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing dispatch log: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Device != "" {
		conditions = append(conditions, "device = ?")
		args = append(args, strings.ToLower(filter.Device))
	}
	if filter.DispatchID != "" {
		conditions = append(conditions, "dispatch_id = ?")
		args = append(args, filter.DispatchID)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM dispatch_log " + where //nolint:gosec // WHERE holds placeholders only
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting dispatch log: %w", err)
	}

	query := `SELECT id, dispatch_id, action, target, source, device, device_group, address,
			succeeded, reason, error, battery, position, light, duration_ms, created_at
		FROM dispatch_log ` + where + ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?` //nolint:gosec // WHERE holds placeholders only
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dispatch log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatch log: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var source, reason, errText sql.NullString
	var battery, position sql.NullInt64
	var light sql.NullFloat64
	var createdAt string

	if err := rows.Scan(&e.ID, &e.DispatchID, &e.Action, &e.Target, &source,
		&e.Device, &e.Group, &e.Address,
		&e.Succeeded, &reason, &errText, &battery, &position, &light,
		&e.DurationMS, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning dispatch log entry: %w", err)
	}

	e.Source = source.String
	e.Reason = reason.String
	e.Error = errText.String
	if battery.Valid {
		v := int(battery.Int64)
		e.Battery = &v
	}
	if position.Valid {
		v := int(position.Int64)
		e.Position = &v
	}
	if light.Valid {
		v := light.Float64
		e.Light = &v
	}

	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing dispatch log timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
